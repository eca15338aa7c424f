package tryon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"tryon/internal/infra"
)

const (
	ProviderFashn = "fashn"

	defaultFashnBaseURL = "https://api.fashn.ai"
	defaultFashnModel   = "tryon-v1.6"
)

// FashnOptions configures the FASHN adapter.
type FashnOptions struct {
	BaseURL    string
	ModelName  string
	HTTPClient *http.Client
	Codec      *Codec
	Logger     *infra.Logger
	// StockModels maps gender ("", "male", "female") to a default subject URL.
	StockModels map[string]string
	// InlineRemoteImages fetches URL inputs and sends them as data URIs, for
	// image hosts FASHN cannot reach.
	InlineRemoteImages bool
}

// FashnAdapter talks to the FASHN /v1/run API. It accepts image URLs and
// base64 data URIs and always answers with an output list.
type FashnAdapter struct {
	api    apiClient
	codec  *Codec
	accept Accept
	model  string
	stock  stockModels
}

// NewFashnAdapter builds the adapter with defaults for empty options.
func NewFashnAdapter(opts FashnOptions) *FashnAdapter {
	model := strings.TrimSpace(opts.ModelName)
	if model == "" {
		model = defaultFashnModel
	}
	codec := opts.Codec
	if codec == nil {
		codec = NewCodec(opts.HTTPClient)
	}
	accept := Accept{URL: true, Inline: true}
	if opts.InlineRemoteImages {
		accept = Accept{Inline: true}
	}
	return &FashnAdapter{
		api:    newAPIClient(ProviderFashn, opts.BaseURL, defaultFashnBaseURL, opts.HTTPClient, opts.Logger),
		codec:  codec,
		accept: accept,
		model:  model,
		stock:  stockModels(opts.StockModels),
	}
}

func (a *FashnAdapter) Name() string { return ProviderFashn }

type fashnRunRequest struct {
	ModelName string      `json:"model_name"`
	Inputs    fashnInputs `json:"inputs"`
}

type fashnInputs struct {
	ModelImage   string `json:"model_image"`
	GarmentImage string `json:"garment_image"`
	Category     string `json:"category"`
}

type fashnRunResponse struct {
	ID    string          `json:"id"`
	Error json.RawMessage `json:"error"`
}

type fashnStatusResponse struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  json.RawMessage `json:"error"`
}

func (a *FashnAdapter) BuildSubmission(ctx context.Context, req GenerationRequest, creds Credentials) (*Submission, error) {
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
	garment, err := a.codec.Resolve(ctx, req.GarmentImage, a.accept)
	if err != nil {
		return nil, err
	}
	model, err := a.codec.Resolve(ctx, subject, a.accept)
	if err != nil {
		return nil, err
	}
	return &Submission{
		Provider: ProviderFashn,
		Endpoint: a.api.baseURL + "/v1/run",
		Body: fashnRunRequest{
			ModelName: a.model,
			Inputs: fashnInputs{
				ModelImage:   model,
				GarmentImage: garment,
				Category:     string(category),
			},
		},
		Credentials: creds,
	}, nil
}

func (a *FashnAdapter) Submit(ctx context.Context, sub *Submission) (Outcome, error) {
	raw, err := a.api.do(ctx, http.MethodPost, sub.Endpoint, sub.Credentials, sub.Body, sub.Header)
	if err != nil {
		return Outcome{}, err
	}
	var resp fashnRunResponse
	if err := a.api.decode(raw, &resp); err != nil {
		return Outcome{}, err
	}
	if msg := errorText(resp.Error); msg != "" {
		return Outcome{}, &ProviderError{Provider: ProviderFashn, Reason: msg, Body: string(raw)}
	}
	handle, err := a.api.handle(resp.ID)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Handle: handle}, nil
}

func (a *FashnAdapter) Status(ctx context.Context, handle JobHandle, creds Credentials) (StatusReport, error) {
	endpoint := a.api.baseURL + "/v1/status/" + url.PathEscape(handle.ID)
	raw, err := a.api.do(ctx, http.MethodGet, endpoint, creds, nil, nil)
	if err != nil {
		return StatusReport{}, err
	}
	var resp fashnStatusResponse
	if err := a.api.decode(raw, &resp); err != nil {
		return StatusReport{}, err
	}
	status, ok := fashnStatus(resp.Status)
	if !ok {
		return StatusReport{}, &ProviderError{Provider: ProviderFashn, Reason: "unknown job status " + resp.Status, Body: string(raw)}
	}
	return StatusReport{Status: status, Details: errorText(resp.Error), Payload: raw}, nil
}

// Normalize reads output[0] from a completed status payload.
func (a *FashnAdapter) Normalize(payload []byte) (GenerationResult, error) {
	var resp fashnStatusResponse
	if err := a.api.decode(payload, &resp); err != nil {
		return GenerationResult{}, err
	}
	if status, _ := fashnStatus(resp.Status); status == JobStatusFailed {
		return GenerationResult{}, &RemoteJobFailed{JobID: resp.ID, Details: errorText(resp.Error)}
	}
	u := outputURL(resp.Output, OutputList)
	if u == "" {
		return GenerationResult{}, a.api.missingOutput(payload)
	}
	return Succeeded(u), nil
}

type fashnCreditsResponse struct {
	Credits struct {
		Total        float64 `json:"total"`
		Subscription float64 `json:"subscription"`
		OnDemand     float64 `json:"on_demand"`
	} `json:"credits"`
}

func (a *FashnAdapter) Credits(ctx context.Context, creds Credentials) (Credits, error) {
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

func fashnStatus(s string) (JobStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "starting", "in_queue", "queued":
		return JobStatusQueued, true
	case "processing":
		return JobStatusProcessing, true
	case "completed":
		return JobStatusCompleted, true
	case "failed", "canceled":
		return JobStatusFailed, true
	default:
		return "", false
	}
}

var (
	_ Adapter        = (*FashnAdapter)(nil)
	_ CreditsChecker = (*FashnAdapter)(nil)
)
