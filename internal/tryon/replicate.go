package tryon

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"tryon/internal/infra"
)

const (
	ProviderReplicate = "replicate"

	defaultReplicateBaseURL = "https://api.replicate.com"
	// IDM-VTON on Replicate.
	defaultReplicateVersion = "c871bb9b046607b680449ecbae55fd8c6d945e0a1948644bf2361b3d021d3ff4"
)

// ReplicateOptions configures the Replicate adapter.
type ReplicateOptions struct {
	BaseURL string
	Version string
	// Output declares the model's output encoding. IDM-VTON returns a single URL.
	Output OutputShape
	// WaitSeconds asks Replicate to hold the creation call open (Prefer: wait)
	// so fast predictions complete without polling. Zero disables it.
	WaitSeconds        int
	GarmentDescription string
	HTTPClient         *http.Client
	Codec              *Codec
	Logger             *infra.Logger
	StockModels        map[string]string
}

// ReplicateAdapter drives the Replicate predictions API.
type ReplicateAdapter struct {
	api         apiClient
	codec       *Codec
	version     string
	output      OutputShape
	wait        int
	description string
	stock       stockModels
}

// NewReplicateAdapter builds the adapter with defaults for empty options.
func NewReplicateAdapter(opts ReplicateOptions) *ReplicateAdapter {
	version := strings.TrimSpace(opts.Version)
	if version == "" {
		version = defaultReplicateVersion
	}
	codec := opts.Codec
	if codec == nil {
		codec = NewCodec(opts.HTTPClient)
	}
	description := strings.TrimSpace(opts.GarmentDescription)
	if description == "" {
		description = "garment"
	}
	return &ReplicateAdapter{
		api:         newAPIClient(ProviderReplicate, opts.BaseURL, defaultReplicateBaseURL, opts.HTTPClient, opts.Logger),
		codec:       codec,
		version:     version,
		output:      opts.Output,
		wait:        opts.WaitSeconds,
		description: description,
		stock:       stockModels(opts.StockModels),
	}
}

func (a *ReplicateAdapter) Name() string { return ProviderReplicate }

type replicateInput struct {
	HumanImage         string `json:"human_img"`
	GarmentImage       string `json:"garm_img"`
	GarmentDescription string `json:"garment_des"`
	Category           string `json:"category"`
}

type replicateCreateRequest struct {
	Version string         `json:"version"`
	Input   replicateInput `json:"input"`
}

type replicatePrediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  json.RawMessage `json:"error"`
}

var replicateAccept = Accept{URL: true, Inline: true}

func replicateCategory(c Category) string {
	switch c {
	case CategoryBottoms:
		return "lower_body"
	case CategoryOnePieces:
		return "dresses"
	default:
		return "upper_body"
	}
}

func (a *ReplicateAdapter) BuildSubmission(ctx context.Context, req GenerationRequest, creds Credentials) (*Submission, error) {
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
	garment, err := a.codec.Resolve(ctx, req.GarmentImage, replicateAccept)
	if err != nil {
		return nil, err
	}
	human, err := a.codec.Resolve(ctx, subject, replicateAccept)
	if err != nil {
		return nil, err
	}
	var header http.Header
	if a.wait > 0 {
		header = http.Header{}
		header.Set("Prefer", fmt.Sprintf("wait=%d", a.wait))
	}
	return &Submission{
		Provider: ProviderReplicate,
		Endpoint: a.api.baseURL + "/v1/predictions",
		Body: replicateCreateRequest{
			Version: a.version,
			Input: replicateInput{
				HumanImage:         human,
				GarmentImage:       garment,
				GarmentDescription: a.description,
				Category:           replicateCategory(category),
			},
		},
		Header:      header,
		Credentials: creds,
	}, nil
}

// Submit creates the prediction. With Prefer: wait the prediction may already
// be finished, in which case no polling is needed.
func (a *ReplicateAdapter) Submit(ctx context.Context, sub *Submission) (Outcome, error) {
	raw, err := a.api.do(ctx, http.MethodPost, sub.Endpoint, sub.Credentials, sub.Body, sub.Header)
	if err != nil {
		return Outcome{}, err
	}
	var pred replicatePrediction
	if err := a.api.decode(raw, &pred); err != nil {
		return Outcome{}, err
	}
	switch status, _ := replicateStatus(pred.Status); status {
	case JobStatusCompleted:
		res, err := a.Normalize(raw)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Result: &res}, nil
	case JobStatusFailed:
		return Outcome{}, &RemoteJobFailed{JobID: pred.ID, Details: errorText(pred.Error)}
	}
	handle, err := a.api.handle(pred.ID)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Handle: handle}, nil
}

func (a *ReplicateAdapter) Status(ctx context.Context, handle JobHandle, creds Credentials) (StatusReport, error) {
	endpoint := a.api.baseURL + "/v1/predictions/" + url.PathEscape(handle.ID)
	raw, err := a.api.do(ctx, http.MethodGet, endpoint, creds, nil, nil)
	if err != nil {
		return StatusReport{}, err
	}
	var pred replicatePrediction
	if err := a.api.decode(raw, &pred); err != nil {
		return StatusReport{}, err
	}
	status, ok := replicateStatus(pred.Status)
	if !ok {
		return StatusReport{}, &ProviderError{Provider: ProviderReplicate, Reason: "unknown prediction status " + pred.Status, Body: string(raw)}
	}
	details := errorText(pred.Error)
	if details == "" && strings.EqualFold(pred.Status, "canceled") {
		details = "prediction canceled"
	}
	return StatusReport{Status: status, Details: details, Payload: raw}, nil
}

// Normalize reads output as declared by the model's OutputShape.
func (a *ReplicateAdapter) Normalize(payload []byte) (GenerationResult, error) {
	var pred replicatePrediction
	if err := a.api.decode(payload, &pred); err != nil {
		return GenerationResult{}, err
	}
	if status, _ := replicateStatus(pred.Status); status == JobStatusFailed {
		return GenerationResult{}, &RemoteJobFailed{JobID: pred.ID, Details: errorText(pred.Error)}
	}
	u := outputURL(pred.Output, a.output)
	if u == "" {
		return GenerationResult{}, a.api.missingOutput(payload)
	}
	return Succeeded(u), nil
}

type replicateAccount struct {
	Type     string `json:"type"`
	Username string `json:"username"`
}

// Credits validates the token against /v1/account. Replicate bills per
// second and exposes no balance, so only the account is reported.
func (a *ReplicateAdapter) Credits(ctx context.Context, creds Credentials) (Credits, error) {
	if err := a.api.requireCredentials(creds); err != nil {
		return Credits{}, err
	}
	raw, err := a.api.do(ctx, http.MethodGet, a.api.baseURL+"/v1/account", creds, nil, nil)
	if err != nil {
		return Credits{}, err
	}
	var acct replicateAccount
	if err := a.api.decode(raw, &acct); err != nil {
		return Credits{}, err
	}
	return Credits{Account: acct.Username}, nil
}

func replicateStatus(s string) (JobStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "starting":
		return JobStatusQueued, true
	case "processing":
		return JobStatusProcessing, true
	case "succeeded":
		return JobStatusCompleted, true
	case "failed", "canceled":
		return JobStatusFailed, true
	default:
		return "", false
	}
}

var (
	_ Adapter        = (*ReplicateAdapter)(nil)
	_ CreditsChecker = (*ReplicateAdapter)(nil)
)
