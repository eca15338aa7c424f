package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"tryon/internal/http/handlers"
	"tryon/internal/middleware"
)

// Options carries the middleware settings of the router.
type Options struct {
	CORSAllowedOrigins []string
	RateLimitPerMin    int
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	var recorder middleware.HTTPRecorder
	if app.Metrics != nil {
		recorder = app.Metrics
	}
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		middleware.Logger(*app.Logger, recorder),
		chimw.Recoverer,
		middleware.CORS(opts.CORSAllowedOrigins),
	)

	r.Get("/metrics", app.ServeMetrics)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/healthz", app.Health)
		r.Get("/providers/{provider}/credits", app.Credits)
		r.With(middleware.RateLimit(opts.RateLimitPerMin, time.Minute)).Post("/tryon", app.TryOn)
	})

	return r
}
