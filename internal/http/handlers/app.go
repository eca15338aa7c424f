package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"tryon/internal/infra"
	"tryon/internal/infra/credentials"
	"tryon/internal/metrics"
	"tryon/internal/tryon"
)

// statusClientClosedRequest is the nginx convention for a caller that went away.
const statusClientClosedRequest = 499

type App struct {
	Orchestrator    *tryon.Orchestrator
	Credentials     *credentials.Store
	Metrics         *metrics.Collector
	Logger          *infra.Logger
	DefaultProvider string
	MaxUploadBytes  int64
}

func NewApp(cfg *infra.Config, orch *tryon.Orchestrator, store *credentials.Store, collector *metrics.Collector, logger *infra.Logger) *App {
	if logger == nil {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}
	app := &App{
		Orchestrator:    orch,
		Credentials:     store,
		Metrics:         collector,
		Logger:          logger,
		DefaultProvider: tryon.ProviderFashn,
		MaxUploadBytes:  10 << 20,
	}
	if cfg != nil {
		if cfg.DefaultProvider != "" {
			app.DefaultProvider = cfg.DefaultProvider
		}
		if cfg.MaxUploadBytes > 0 {
			app.MaxUploadBytes = cfg.MaxUploadBytes
		}
	}
	return app
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]string{"error": errCode, "message": message})
}

// httpStatus maps an orchestration error onto the HTTP status of the answer.
func httpStatus(err error) int {
	var (
		cfgErr    *tryon.ConfigurationError
		unknown   *tryon.UnknownProvider
		timeout   *tryon.PollTimeout
		cancelErr *tryon.Cancelled
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &cfgErr), errors.As(err, &unknown):
		return http.StatusBadRequest
	case errors.As(err, &timeout):
		return http.StatusGatewayTimeout
	case errors.As(err, &cancelErr):
		return statusClientClosedRequest
	default:
		return http.StatusBadGateway
	}
}
