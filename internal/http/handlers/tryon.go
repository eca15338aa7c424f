package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"tryon/internal/middleware"
	"tryon/internal/tryon"
)

type tryOnRequest struct {
	ImageURL      string `json:"image_url"`
	ModelImageURL string `json:"model_image_url"`
	Category      string `json:"category"`
	Gender        string `json:"gender"`
	Provider      string `json:"provider"`
}

// TryOn runs one try-on call synchronously and answers with the uniform
// result shape. The request is either multipart with uploaded images or JSON
// with image URLs.
func (a *App) TryOn(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, a.MaxUploadBytes)

	var (
		req      tryon.GenerationRequest
		provider string
		err      error
	)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		req, provider, err = a.parseMultipart(r)
	} else {
		req, provider, err = parseJSON(r)
	}
	if err != nil {
		a.json(w, http.StatusBadRequest, tryon.GenerationResult{Success: false, ErrorMessage: "invalid payload", Details: err.Error()})
		return
	}

	if q := strings.TrimSpace(r.URL.Query().Get("provider")); q != "" {
		provider = q
	}
	if provider == "" {
		provider = a.DefaultProvider
	}
	provider = strings.ToLower(provider)

	res, err := a.Orchestrator.Generate(r.Context(), req, provider, a.Credentials.Token(provider))
	if err != nil {
		a.Logger.Warn().
			Err(err).
			Str("request_id", middleware.RequestIDFromContext(r.Context())).
			Str("provider", provider).
			Msg("tryon request failed")
		a.json(w, httpStatus(err), tryon.FailureResult(err))
		return
	}
	a.json(w, http.StatusOK, res)
}

func parseJSON(r *http.Request) (tryon.GenerationRequest, string, error) {
	var body tryOnRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return tryon.GenerationRequest{}, "", fmt.Errorf("decode body: %w", err)
	}
	garment := strings.TrimSpace(body.ImageURL)
	if garment == "" {
		return tryon.GenerationRequest{}, "", errors.New("image_url is required")
	}
	req := tryon.GenerationRequest{
		GarmentImage: garmentRef(garment),
		Category:     body.Category,
		Gender:       body.Gender,
	}
	if subject := strings.TrimSpace(body.ModelImageURL); subject != "" {
		ref := garmentRef(subject)
		req.SubjectImage = &ref
	}
	return req, strings.TrimSpace(body.Provider), nil
}

// garmentRef accepts either a remote URL or an inline data URI.
func garmentRef(raw string) tryon.ImageRef {
	if strings.HasPrefix(raw, "data:") {
		return tryon.ImageFromInline(raw)
	}
	return tryon.ImageFromURL(raw)
}

func (a *App) parseMultipart(r *http.Request) (tryon.GenerationRequest, string, error) {
	if err := r.ParseMultipartForm(a.MaxUploadBytes); err != nil {
		return tryon.GenerationRequest{}, "", fmt.Errorf("parse form: %w", err)
	}
	garment, err := formImage(r, "garment_image")
	if err != nil {
		return tryon.GenerationRequest{}, "", err
	}
	if garment == nil {
		return tryon.GenerationRequest{}, "", errors.New("garment_image is required")
	}
	subject, err := formImage(r, "model_image")
	if err != nil {
		return tryon.GenerationRequest{}, "", err
	}
	req := tryon.GenerationRequest{
		GarmentImage: *garment,
		SubjectImage: subject,
		Category:     r.FormValue("category"),
		Gender:       r.FormValue("gender"),
	}
	return req, strings.TrimSpace(r.FormValue("provider")), nil
}

// formImage reads an uploaded file. A missing field yields nil.
func formImage(r *http.Request, field string) (*tryon.ImageRef, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("%s: read: %w", field, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%s is empty", field)
	}
	ref := tryon.ImageFromBytes(data, uploadType(header, data))
	return &ref, nil
}

func uploadType(header *multipart.FileHeader, data []byte) string {
	if header != nil {
		if mt, _, err := mime.ParseMediaType(header.Header.Get("Content-Type")); err == nil && strings.HasPrefix(mt, "image/") {
			return mt
		}
	}
	if detected := http.DetectContentType(data); strings.HasPrefix(detected, "image/") {
		return detected
	}
	return "image/jpeg"
}
