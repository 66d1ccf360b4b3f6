package handlers

import (
	"net/http"
)

// Health reports liveness along with the configured model and whether the
// composite ledger is enabled.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	model := ""
	if a.Compositor != nil {
		model = a.Compositor.Model()
	}
	a.json(w, http.StatusOK, map[string]any{
		"status": "ok",
		"model":  model,
		"ledger": a.Composites != nil,
	})
}
