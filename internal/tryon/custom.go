package tryon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"tryon/internal/infra"
)

const ProviderCustom = "custom"

// CustomOptions configures the adapter for a self-hosted try-on endpoint.
type CustomOptions struct {
	BaseURL     string
	ModelName   string
	HTTPClient  *http.Client
	Logger      *infra.Logger
	StockModels map[string]string
}

// CustomAdapter speaks the flat /v1/run contract of a self-hosted service.
// The service fetches images itself, so only URLs are accepted. It may finish
// synchronously and its output is either a URL or a list of URLs.
type CustomAdapter struct {
	api   apiClient
	model string
	stock stockModels
}

// NewCustomAdapter builds the adapter. BaseURL has no public default.
func NewCustomAdapter(opts CustomOptions) *CustomAdapter {
	return &CustomAdapter{
		api:   newAPIClient(ProviderCustom, opts.BaseURL, "", opts.HTTPClient, opts.Logger),
		model: strings.TrimSpace(opts.ModelName),
		stock: stockModels(opts.StockModels),
	}
}

func (a *CustomAdapter) Name() string { return ProviderCustom }

type customRunRequest struct {
	ModelName    string `json:"model_name,omitempty"`
	ModelImage   string `json:"model_image"`
	GarmentImage string `json:"garment_image"`
	Category     string `json:"category"`
}

type customJobResponse struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  json.RawMessage `json:"error"`
}

func (a *CustomAdapter) BuildSubmission(_ context.Context, req GenerationRequest, creds Credentials) (*Submission, error) {
	if a.api.baseURL == "" {
		return nil, configErrorf("custom: base url is not configured")
	}
	if err := a.api.requireCredentials(creds); err != nil {
		return nil, err
	}
	category, err := ParseCategory(req.Category)
	if err != nil {
		return nil, err
	}
	subject, err := subjectImage(req, a.stock)
	if err != nil {
		return nil, err
	}
	garment, err := urlOnly("garment", req.GarmentImage)
	if err != nil {
		return nil, err
	}
	model, err := urlOnly("model", subject)
	if err != nil {
		return nil, err
	}
	return &Submission{
		Provider: ProviderCustom,
		Endpoint: a.api.baseURL + "/v1/run",
		Body: customRunRequest{
			ModelName:    a.model,
			ModelImage:   model,
			GarmentImage: garment,
			Category:     string(category),
		},
		Credentials: creds,
	}, nil
}

func urlOnly(field string, ref ImageRef) (string, error) {
	switch ref.Kind() {
	case ImageKindURL:
		return ref.URL, nil
	case ImageKindNone:
		return "", configErrorf("%s image: reference must set exactly one of url, bytes or inline data", field)
	default:
		return "", configErrorf("%s image: custom provider accepts image urls only, got %s", field, ref.Kind())
	}
}

func (a *CustomAdapter) Submit(ctx context.Context, sub *Submission) (Outcome, error) {
	raw, err := a.api.do(ctx, http.MethodPost, sub.Endpoint, sub.Credentials, sub.Body, sub.Header)
	if err != nil {
		return Outcome{}, err
	}
	var resp customJobResponse
	if err := a.api.decode(raw, &resp); err != nil {
		return Outcome{}, err
	}
	switch status, _ := customStatus(resp.Status); status {
	case JobStatusCompleted:
		res, err := a.Normalize(raw)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Result: &res}, nil
	case JobStatusFailed:
		return Outcome{}, &RemoteJobFailed{JobID: resp.ID, Details: errorText(resp.Error)}
	}
	handle, err := a.api.handle(resp.ID)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Handle: handle}, nil
}

func (a *CustomAdapter) Status(ctx context.Context, handle JobHandle, creds Credentials) (StatusReport, error) {
	endpoint := a.api.baseURL + "/v1/status/" + url.PathEscape(handle.ID)
	raw, err := a.api.do(ctx, http.MethodGet, endpoint, creds, nil, nil)
	if err != nil {
		return StatusReport{}, err
	}
	var resp customJobResponse
	if err := a.api.decode(raw, &resp); err != nil {
		return StatusReport{}, err
	}
	status, ok := customStatus(resp.Status)
	if !ok {
		return StatusReport{}, &ProviderError{Provider: ProviderCustom, Reason: "unknown job status " + resp.Status, Body: string(raw)}
	}
	return StatusReport{Status: status, Details: errorText(resp.Error), Payload: raw}, nil
}

func (a *CustomAdapter) Normalize(payload []byte) (GenerationResult, error) {
	var resp customJobResponse
	if err := a.api.decode(payload, &resp); err != nil {
		return GenerationResult{}, err
	}
	if status, _ := customStatus(resp.Status); status == JobStatusFailed {
		return GenerationResult{}, &RemoteJobFailed{JobID: resp.ID, Details: errorText(resp.Error)}
	}
	u := outputURL(resp.Output, OutputEither)
	if u == "" {
		return GenerationResult{}, a.api.missingOutput(payload)
	}
	return Succeeded(u), nil
}

func (a *CustomAdapter) Credits(ctx context.Context, creds Credentials) (Credits, error) {
	if a.api.baseURL == "" {
		return Credits{}, configErrorf("custom: base url is not configured")
	}
	if err := a.api.requireCredentials(creds); err != nil {
		return Credits{}, err
	}
	raw, err := a.api.do(ctx, http.MethodGet, a.api.baseURL+"/v1/credits", creds, nil, nil)
	if err != nil {
		return Credits{}, err
	}
	var resp fashnCreditsResponse
	if err := a.api.decode(raw, &resp); err != nil {
		return Credits{}, err
	}
	return Credits{
		Total:        resp.Credits.Total,
		Subscription: resp.Credits.Subscription,
		OnDemand:     resp.Credits.OnDemand,
	}, nil
}

func customStatus(s string) (JobStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "queued", "pending", "starting", "in_queue":
		return JobStatusQueued, true
	case "processing", "running":
		return JobStatusProcessing, true
	case "completed", "succeeded":
		return JobStatusCompleted, true
	case "failed", "error", "canceled":
		return JobStatusFailed, true
	default:
		return "", false
	}
}

var (
	_ Adapter        = (*CustomAdapter)(nil)
	_ CreditsChecker = (*CustomAdapter)(nil)
)
