package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"bouquet/internal/domain"
)

type compositeRecordResponse struct {
	ID             string    `json:"id"`
	Status         string    `json:"status"`
	Model          string    `json:"model"`
	StyleHint      string    `json:"style_hint"`
	SubjectSource  string    `json:"subject_source"`
	ObjectSource   string    `json:"object_source"`
	ResultName     string    `json:"result_name,omitempty"`
	ResultImageURL string    `json:"result_image_url,omitempty"`
	ErrorKind      string    `json:"error_kind,omitempty"`
	ErrorDetail    string    `json:"error_detail,omitempty"`
	DurationMS     int64     `json:"duration_ms"`
	CreatedAt      time.Time `json:"created_at"`
}

// GetComposite returns the ledger entry of a past run.
func (a *App) GetComposite(w http.ResponseWriter, r *http.Request) {
	if a.Composites == nil {
		a.error(w, http.StatusNotFound, "not_found", "composite ledger is disabled")
		return
	}
	id := chi.URLParam(r, "id")
	record, err := a.Composites.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "composite not found")
			return
		}
		a.logger(r).Error().Err(err).Str("id", id).Msg("load composite record")
		a.error(w, http.StatusInternalServerError, string(domain.KindInternal), "failed to load composite")
		return
	}
	a.json(w, http.StatusOK, compositeRecordResponse{
		ID:             record.ID,
		Status:         string(record.Status),
		Model:          record.Model,
		StyleHint:      record.StyleHint,
		SubjectSource:  record.SubjectSource,
		ObjectSource:   record.ObjectSource,
		ResultName:     record.ResultName,
		ResultImageURL: record.ResultURL,
		ErrorKind:      record.ErrorKind,
		ErrorDetail:    record.ErrorDetail,
		DurationMS:     record.DurationMS,
		CreatedAt:      record.CreatedAt,
	})
}
