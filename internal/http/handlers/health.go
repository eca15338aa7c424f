package handlers

import (
	"net/http"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok"}
	if a.Orchestrator != nil {
		resp["providers"] = a.Orchestrator.Registry().Names()
	}
	if configured := a.Credentials.Configured(); configured != nil {
		resp["configured"] = configured
	}
	a.json(w, http.StatusOK, resp)
}
