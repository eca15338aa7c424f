package tryon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"tryon/internal/infra"
)

// maxResponseBytes bounds provider answers. Replicate echoes the inputs, which
// may be inlined uploads, back in every prediction object.
const maxResponseBytes = 64 << 20

// Submission is a provider-specific request ready to be sent.
type Submission struct {
	Provider    string
	Endpoint    string
	Body        any
	Header      http.Header
	Credentials Credentials
}

// Outcome is what a submission yields: a terminal result for providers that
// answer synchronously, or a handle that must be polled.
type Outcome struct {
	Result *GenerationResult
	Handle *JobHandle
}

// Terminal reports whether polling can be skipped.
func (o Outcome) Terminal() bool { return o.Result != nil }

// StatusReport is one answer from a provider status endpoint.
type StatusReport struct {
	Status  JobStatus
	Details string
	Payload []byte
}

// Credits is the answer of the diagnostic credential check.
type Credits struct {
	Total        float64 `json:"total"`
	Subscription float64 `json:"subscription,omitempty"`
	OnDemand     float64 `json:"on_demand,omitempty"`
	Account      string  `json:"account,omitempty"`
}

// Adapter translates generic requests into one provider's API and maps the
// provider's answers back.
type Adapter interface {
	Name() string
	BuildSubmission(ctx context.Context, req GenerationRequest, creds Credentials) (*Submission, error)
	Submit(ctx context.Context, sub *Submission) (Outcome, error)
	Status(ctx context.Context, handle JobHandle, creds Credentials) (StatusReport, error)
	Normalize(payload []byte) (GenerationResult, error)
}

// CreditsChecker is implemented by adapters exposing a credential check.
type CreditsChecker interface {
	Credits(ctx context.Context, creds Credentials) (Credits, error)
}

// OutputShape declares how a provider encodes its output field.
type OutputShape int

const (
	// OutputScalar is a single URL string.
	OutputScalar OutputShape = iota
	// OutputList is an array of URL strings; the first entry wins.
	OutputList
	// OutputEither accepts both encodings.
	OutputEither
)

// outputURL extracts the result URL according to shape. An empty string
// means the output is missing.
func outputURL(raw json.RawMessage, shape OutputShape) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	if shape == OutputScalar || shape == OutputEither {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return strings.TrimSpace(s)
		}
	}
	if shape == OutputList || shape == OutputEither {
		var list []string
		if err := json.Unmarshal(raw, &list); err == nil {
			for _, item := range list {
				if item = strings.TrimSpace(item); item != "" {
					return item
				}
			}
		}
	}
	return ""
}

// errorText flattens provider error fields, which arrive as strings or as
// {name, message} objects.
func errorText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var obj struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && (obj.Name != "" || obj.Message != "") {
		if obj.Name != "" && obj.Message != "" {
			return obj.Name + ": " + obj.Message
		}
		return obj.Name + obj.Message
	}
	return strings.TrimSpace(string(raw))
}

// apiClient holds what every adapter needs to talk to its provider.
type apiClient struct {
	name       string
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

func newAPIClient(name, baseURL, fallbackURL string, client *http.Client, logger *infra.Logger) apiClient {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = fallbackURL
	}
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	if logger == nil {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}
	return apiClient{name: name, baseURL: base, httpClient: client, logger: logger}
}

func (c apiClient) requireCredentials(creds Credentials) error {
	if creds.Empty() {
		return configErrorf("%s: missing api credential", c.name)
	}
	return nil
}

// do sends one authorized request and returns the body of a 2xx answer.
// Anything else becomes a ProviderError carrying the raw body.
func (c apiClient) do(ctx context.Context, method, endpoint string, creds Credentials, payload any, header http.Header) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request: %w", c.name, err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", c.name, err)
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+creds.Token())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &Cancelled{Err: ctxErr}
		}
		return nil, &ProviderError{Provider: c.name, Reason: "request failed", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, &ProviderError{Provider: c.name, StatusCode: resp.StatusCode, Reason: "read response", Err: err}
	}
	if len(raw) > maxResponseBytes {
		return nil, &ProviderError{Provider: c.name, StatusCode: resp.StatusCode, Reason: "response too large"}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Debug().
			Str("provider", c.name).
			Str("method", method).
			Int("status", resp.StatusCode).
			Msg("tryon: provider rejected request")
		return nil, &ProviderError{Provider: c.name, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	return raw, nil
}

func (c apiClient) decode(raw []byte, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return &ProviderError{Provider: c.name, Reason: "malformed response", Body: truncate(string(raw), 512), Err: err}
	}
	return nil
}

func (c apiClient) missingOutput(raw []byte) error {
	return &ProviderError{Provider: c.name, Reason: "missing output", Body: truncate(string(raw), 512)}
}

func (c apiClient) handle(id string) (*JobHandle, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, &ProviderError{Provider: c.name, Reason: "missing job id"}
	}
	return &JobHandle{ID: id, ProviderName: c.name, SubmittedAt: time.Now()}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// stockModels resolves the provider-side default subject by gender.
type stockModels map[string]string

func (m stockModels) lookup(gender string) (string, bool) {
	if u, ok := m[normalizeGender(gender)]; ok && u != "" {
		return u, true
	}
	if u, ok := m[""]; ok && u != "" {
		return u, true
	}
	return "", false
}

// subjectImage returns the request's subject or the configured stock one.
func subjectImage(req GenerationRequest, stock stockModels) (ImageRef, error) {
	if req.SubjectImage != nil {
		return *req.SubjectImage, nil
	}
	u, ok := stock.lookup(req.Gender)
	if !ok {
		return ImageRef{}, configErrorf("no subject image given and no stock model image configured")
	}
	return ImageFromURL(u), nil
}
