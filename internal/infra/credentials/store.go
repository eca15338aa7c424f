package credentials

import (
	"sort"
	"strings"

	"tryon/internal/tryon"
)

// Store hands out provider bearer tokens loaded from the environment. Tokens
// are returned wrapped in tryon.Credentials so they never get logged in clear.
type Store struct {
	tokens map[string]string
}

// NewStore copies tokens keyed by provider name. Blank tokens are dropped.
func NewStore(tokens map[string]string) *Store {
	s := &Store{tokens: make(map[string]string, len(tokens))}
	for provider, token := range tokens {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		s.tokens[strings.ToLower(strings.TrimSpace(provider))] = token
	}
	return s
}

// Token returns the credentials for provider. An unknown provider or a
// missing token yields empty credentials; the adapter rejects those.
func (s *Store) Token(provider string) tryon.Credentials {
	if s == nil {
		return tryon.Credentials{}
	}
	return tryon.NewCredentials(s.tokens[strings.ToLower(strings.TrimSpace(provider))])
}

// Configured lists providers that have a token.
func (s *Store) Configured() []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.tokens))
	for provider := range s.tokens {
		out = append(out, provider)
	}
	sort.Strings(out)
	return out
}
