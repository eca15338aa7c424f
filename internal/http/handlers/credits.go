package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"tryon/internal/tryon"
)

// Credits checks the configured credential against the provider's balance
// endpoint.
func (a *App) Credits(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	adapter, err := a.Orchestrator.Registry().Lookup(provider)
	if err != nil {
		a.error(w, http.StatusNotFound, "unknown_provider", err.Error())
		return
	}
	checker, ok := adapter.(tryon.CreditsChecker)
	if !ok {
		a.error(w, http.StatusNotImplemented, "not_supported", "provider has no credits endpoint")
		return
	}
	credits, err := checker.Credits(r.Context(), a.Credentials.Token(adapter.Name()))
	if err != nil {
		res := tryon.FailureResult(err)
		a.error(w, httpStatus(err), "credits_failed", res.ErrorMessage)
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"provider": adapter.Name(),
		"credits":  credits,
	})
}
