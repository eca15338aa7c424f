package tryon

import (
	"strings"

	"golang.org/x/text/cases"
)

// Category is the provider-neutral garment category.
type Category string

const (
	CategoryAuto      Category = "auto"
	CategoryTops      Category = "tops"
	CategoryBottoms   Category = "bottoms"
	CategoryOnePieces Category = "one-pieces"
)

var categoryAliases = map[string]Category{
	"":           CategoryAuto,
	"auto":       CategoryAuto,
	"tops":       CategoryTops,
	"top":        CategoryTops,
	"upper_body": CategoryTops,
	"upper-body": CategoryTops,
	"shirt":      CategoryTops,
	"bottoms":    CategoryBottoms,
	"bottom":     CategoryBottoms,
	"lower_body": CategoryBottoms,
	"lower-body": CategoryBottoms,
	"pants":      CategoryBottoms,
	"one-pieces": CategoryOnePieces,
	"one-piece":  CategoryOnePieces,
	"one_pieces": CategoryOnePieces,
	"dress":      CategoryOnePieces,
	"dresses":    CategoryOnePieces,
}

// ParseCategory maps free-form input onto a Category.
func ParseCategory(raw string) (Category, error) {
	key := fold(strings.TrimSpace(raw))
	if c, ok := categoryAliases[key]; ok {
		return c, nil
	}
	return "", configErrorf("unsupported garment category %q", raw)
}

// fold builds a fresh Caser per call; Casers are stateful.
func fold(s string) string {
	return cases.Fold().String(s)
}

func normalizeGender(raw string) string {
	switch fold(strings.TrimSpace(raw)) {
	case "male", "man", "men", "m":
		return "male"
	case "female", "woman", "women", "f":
		return "female"
	default:
		return ""
	}
}
