package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tryon/internal/infra"
	"tryon/internal/infra/credentials"
	"tryon/internal/metrics"
	"tryon/internal/tryon"
)

type fashnStub struct {
	server *httptest.Server

	mu       sync.Mutex
	runs     []map[string]any
	statuses atomic.Int32
	// pending is the number of "processing" answers before completion.
	pending  int32
	runCode  int
}

func newFashnStub(t *testing.T) *fashnStub {
	t.Helper()
	stub := &fashnStub{runCode: http.StatusOK}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/run", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		stub.mu.Lock()
		stub.runs = append(stub.runs, body)
		stub.mu.Unlock()
		if stub.runCode != http.StatusOK {
			w.WriteHeader(stub.runCode)
			_, _ = w.Write([]byte(`{"error":"Unauthorized"}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"job-1","error":null}`))
	})
	mux.HandleFunc("/v1/status/job-1", func(w http.ResponseWriter, r *http.Request) {
		n := stub.statuses.Add(1)
		if n <= stub.pending {
			_, _ = w.Write([]byte(`{"id":"job-1","status":"processing"}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"job-1","status":"completed","output":["https://cdn.fashn.ai/job-1/0.png"]}`))
	})
	mux.HandleFunc("/v1/credits", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"credits":{"total":120,"subscription":100,"on_demand":20}}`))
	})
	stub.server = httptest.NewServer(mux)
	t.Cleanup(stub.server.Close)
	return stub
}

func (s *fashnStub) lastRun(t *testing.T) map[string]any {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.runs, "no run request recorded")
	return s.runs[len(s.runs)-1]
}

func newTestApp(t *testing.T, baseURL string, tokens map[string]string) *App {
	t.Helper()
	logger := zerolog.New(io.Discard)
	fashn := tryon.NewFashnAdapter(tryon.FashnOptions{
		BaseURL:     baseURL,
		StockModels: map[string]string{"": "https://cdn.example.com/stock.jpg"},
	})
	orch := tryon.NewOrchestrator(tryon.Options{
		Registry: tryon.NewRegistry(fashn),
		Poller: &tryon.Poller{
			Interval:    time.Second,
			MaxAttempts: 3,
			Wait:        func(context.Context, time.Duration) error { return nil },
		},
		Logger: &logger,
	})
	cfg := &infra.Config{DefaultProvider: tryon.ProviderFashn, MaxUploadBytes: 1 << 20}
	return NewApp(cfg, orch, credentials.NewStore(tokens), metrics.NewCollector("test"), &logger)
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) tryon.GenerationResult {
	t.Helper()
	var res tryon.GenerationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res), "body: %s", rec.Body.String())
	return res
}

func TestTryOnJSONPollsUntilCompleted(t *testing.T) {
	stub := newFashnStub(t)
	stub.pending = 2
	app := newTestApp(t, stub.server.URL, map[string]string{"fashn": "fa-test"})

	body := `{"image_url":"https://cdn.example.com/shirt.jpg","category":"Tops"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/tryon", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	app.TryOn(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decodeResult(t, rec)
	assert.True(t, res.Success)
	assert.Equal(t, "https://cdn.fashn.ai/job-1/0.png", res.ResultImageURL)
	assert.EqualValues(t, 3, stub.statuses.Load())

	inputs := stub.lastRun(t)["inputs"].(map[string]any)
	assert.Equal(t, "https://cdn.example.com/shirt.jpg", inputs["garment_image"])
	assert.Equal(t, "https://cdn.example.com/stock.jpg", inputs["model_image"])
	assert.Equal(t, "tops", inputs["category"])
}

func TestTryOnMultipartInlinesUpload(t *testing.T) {
	stub := newFashnStub(t)
	app := newTestApp(t, stub.server.URL, map[string]string{"fashn": "fa-test"})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Disposition": {`form-data; name="garment_image"; filename="shirt.png"`},
		"Content-Type":        {"image/png"},
	})
	require.NoError(t, err)
	_, _ = part.Write([]byte("png-bytes"))
	require.NoError(t, mw.WriteField("category", "auto"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/tryon", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	app.TryOn(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	inputs := stub.lastRun(t)["inputs"].(map[string]any)
	assert.Equal(t, tryon.ToInline([]byte("png-bytes"), "image/png"), inputs["garment_image"])
}

func TestTryOnErrorStatuses(t *testing.T) {
	tests := []struct {
		name     string
		tokens   map[string]string
		query    string
		runCode  int
		pending  int32
		wantCode int
		wantRuns int
	}{
		{name: "missing credentials", tokens: nil, wantCode: http.StatusBadRequest},
		{name: "unknown provider", tokens: map[string]string{"fashn": "fa"}, query: "?provider=nope", wantCode: http.StatusBadRequest},
		{name: "provider rejects", tokens: map[string]string{"fashn": "fa"}, runCode: http.StatusUnauthorized, wantCode: http.StatusBadGateway, wantRuns: 1},
		{name: "poll timeout", tokens: map[string]string{"fashn": "fa"}, pending: 100, wantCode: http.StatusGatewayTimeout, wantRuns: 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			stub := newFashnStub(t)
			if tc.runCode != 0 {
				stub.runCode = tc.runCode
			}
			stub.pending = tc.pending
			app := newTestApp(t, stub.server.URL, tc.tokens)

			req := httptest.NewRequest(http.MethodPost, "/v1/tryon"+tc.query, strings.NewReader(`{"image_url":"https://cdn.example.com/a.jpg"}`))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			app.TryOn(rec, req)

			assert.Equal(t, tc.wantCode, rec.Code, rec.Body.String())
			res := decodeResult(t, rec)
			assert.False(t, res.Success)
			assert.NotEmpty(t, res.ErrorMessage)
			stub.mu.Lock()
			assert.Len(t, stub.runs, tc.wantRuns)
			stub.mu.Unlock()
		})
	}
}

func TestTryOnRejectsBadPayload(t *testing.T) {
	app := newTestApp(t, "http://127.0.0.1:0", map[string]string{"fashn": "fa"})

	for _, body := range []string{`{`, `{"category":"tops"}`} {
		req := httptest.NewRequest(http.MethodPost, "/v1/tryon", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		app.TryOn(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestCreditsEndpoint(t *testing.T) {
	stub := newFashnStub(t)
	app := newTestApp(t, stub.server.URL, map[string]string{"fashn": "fa-test"})

	r := chi.NewRouter()
	r.Get("/v1/providers/{provider}/credits", app.Credits)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/providers/FASHN/credits", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Provider string        `json:"provider"`
		Credits  tryon.Credits `json:"credits"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "fashn", body.Provider)
	assert.Equal(t, 120.0, body.Credits.Total)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/providers/acme/credits", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthListsProviders(t *testing.T) {
	app := newTestApp(t, "http://127.0.0.1:0", map[string]string{"fashn": "fa"})
	rec := httptest.NewRecorder()
	app.Health(rec, httptest.NewRequest(http.MethodGet, "/v1/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","providers":["fashn"],"configured":["fashn"]}`, rec.Body.String())
}

func TestHTTPStatusMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{&tryon.ConfigurationError{Reason: "x"}, http.StatusBadRequest},
		{&tryon.UnknownProvider{Name: "x"}, http.StatusBadRequest},
		{&tryon.ProviderError{Provider: "fashn", StatusCode: 500}, http.StatusBadGateway},
		{&tryon.TransportError{URL: "u"}, http.StatusBadGateway},
		{&tryon.RemoteJobFailed{JobID: "j"}, http.StatusBadGateway},
		{&tryon.PollTimeout{JobID: "j"}, http.StatusGatewayTimeout},
		{&tryon.Cancelled{Err: context.Canceled}, statusClientClosedRequest},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, httpStatus(tc.err), "%T", tc.err)
	}
}
