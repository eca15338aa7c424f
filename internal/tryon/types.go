package tryon

import (
	"errors"
	"strings"
	"time"
)

// ImageKind tags which variant of an ImageRef is populated.
type ImageKind int

const (
	ImageKindNone ImageKind = iota
	ImageKindURL
	ImageKindBytes
	ImageKindInline
)

func (k ImageKind) String() string {
	switch k {
	case ImageKindURL:
		return "url"
	case ImageKindBytes:
		return "bytes"
	case ImageKindInline:
		return "inline"
	default:
		return "none"
	}
}

// ImageRef points at an image either by URL, by raw bytes or by an inline
// data URI. Exactly one of the three must be set.
type ImageRef struct {
	URL      string
	Data     []byte
	MIMEType string
	Inline   string
}

// ImageFromURL builds a URL-backed reference.
func ImageFromURL(u string) ImageRef {
	return ImageRef{URL: strings.TrimSpace(u)}
}

// ImageFromBytes builds a reference from raw bytes.
func ImageFromBytes(data []byte, mimeType string) ImageRef {
	return ImageRef{Data: data, MIMEType: strings.TrimSpace(mimeType)}
}

// ImageFromInline builds a reference from an existing data URI.
func ImageFromInline(uri string) ImageRef {
	return ImageRef{Inline: strings.TrimSpace(uri)}
}

// Kind reports the populated variant, or ImageKindNone when zero or several
// variants are set.
func (r ImageRef) Kind() ImageKind {
	kind := ImageKindNone
	set := 0
	if r.URL != "" {
		kind = ImageKindURL
		set++
	}
	if len(r.Data) > 0 {
		kind = ImageKindBytes
		set++
	}
	if r.Inline != "" {
		kind = ImageKindInline
		set++
	}
	if set != 1 {
		return ImageKindNone
	}
	return kind
}

// Validate enforces the single-variant invariant.
func (r ImageRef) Validate() error {
	if r.Kind() == ImageKindNone {
		return errors.New("image reference must set exactly one of url, bytes or inline data")
	}
	return nil
}

// GenerationRequest is one try-on call: a garment placed onto a subject.
type GenerationRequest struct {
	GarmentImage ImageRef
	// SubjectImage is optional; adapters fall back to their stock model image.
	SubjectImage *ImageRef
	Category     string
	Gender       string
}

// JobHandle identifies a submitted remote job. It is never mutated.
type JobHandle struct {
	ID           string
	ProviderName string
	SubmittedAt  time.Time
}

// JobStatus is the provider-neutral lifecycle of a remote job.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// GenerationResult is the uniform answer returned to callers.
type GenerationResult struct {
	Success        bool   `json:"success"`
	ResultImageURL string `json:"result_image_url,omitempty"`
	ErrorMessage   string `json:"error,omitempty"`
	Details        string `json:"details,omitempty"`
}

// Succeeded builds a successful result.
func Succeeded(url string) GenerationResult {
	return GenerationResult{Success: true, ResultImageURL: url}
}

// Credentials carries a bearer token supplied by the environment. It redacts
// itself when formatted so it cannot leak through logs.
type Credentials struct {
	token string
}

// NewCredentials wraps a token. Surrounding whitespace is dropped.
func NewCredentials(token string) Credentials {
	return Credentials{token: strings.TrimSpace(token)}
}

// Token returns the raw bearer token.
func (c Credentials) Token() string { return c.token }

// Empty reports whether no token was supplied.
func (c Credentials) Empty() bool { return c.token == "" }

func (c Credentials) String() string {
	if c.token == "" {
		return "credentials(none)"
	}
	return "credentials(redacted)"
}

func (c Credentials) GoString() string { return c.String() }
