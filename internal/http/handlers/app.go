package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"bouquet/internal/domain"
	"bouquet/internal/imagegen"
	"bouquet/internal/infra"
)

// Compositor is the pipeline entry point the HTTP surface depends on.
type Compositor interface {
	Composite(ctx context.Context, in imagegen.Input) (*imagegen.Outcome, error)
	Model() string
}

// App carries the dependencies shared by every handler. Composites is nil
// when no ledger database is configured.
type App struct {
	Config     *infra.Config
	Logger     *infra.Logger
	Compositor Compositor
	Composites domain.CompositeRepository
}

type errorResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, kind, detail string) {
	a.json(w, code, errorResponse{Status: "error", Error: kind, Detail: detail})
}

// fail renders err as the uniform error envelope. The status is derived from
// the error kind only.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.KindOf(err)
	status := domain.HTTPStatus(kind)
	detail := err.Error()
	if kind == domain.KindInternal {
		detail = "internal error"
	}
	var de *domain.Error
	if !errors.As(err, &de) {
		a.logger(r).Error().Err(err).Msg("unclassified handler error")
	}
	a.error(w, status, string(kind), detail)
}

// logger prefers the request-scoped logger installed by the RequestID
// middleware.
func (a *App) logger(r *http.Request) *zerolog.Logger {
	if l := zerolog.Ctx(r.Context()); l.GetLevel() != zerolog.Disabled {
		return l
	}
	if a.Logger != nil {
		return a.Logger
	}
	nop := zerolog.Nop()
	return &nop
}
