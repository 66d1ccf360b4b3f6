package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"bouquet/internal/http/handlers"
	"bouquet/internal/infra"
	"bouquet/internal/metrics"
	"bouquet/internal/middleware"
)

// NewRouter mounts the API, the result files and the operational endpoints.
// ctx bounds background work owned by the middleware chain.
func NewRouter(ctx context.Context, app *handlers.App, collector *metrics.Collector) http.Handler {
	r := chi.NewRouter()

	var recorder middleware.HTTPRecorder
	if collector != nil {
		recorder = collector
	}
	logger := infra.NopLogger()
	if app.Logger != nil {
		logger = *app.Logger
	}
	var origins []string
	prefix := "/static/results"
	resultDir := ""
	rateLimit := 0
	locale := ""
	if app.Config != nil {
		origins = app.Config.CORSAllowedOrigins
		if app.Config.ResultPathPrefix != "" {
			prefix = app.Config.ResultPathPrefix
		}
		resultDir = app.Config.ResultDir
		rateLimit = app.Config.RateLimitPerMin
		locale = app.Config.DefaultLocale
	}

	r.Use(
		chimw.RealIP,
		middleware.RequestID(logger),
		chimw.Recoverer,
		middleware.Logger(logger, recorder),
		middleware.CORS(origins),
		middleware.I18N(locale),
	)

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/openapi.json", app.OpenAPIJSON)
	r.Get("/v1/docs", app.OpenAPIDocs)
	if collector != nil {
		r.Method(http.MethodGet, "/metrics", collector.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.With(middleware.RateLimit(ctx, rateLimit)).Post("/composite-bouquet", app.CompositeBouquet)
		r.Get("/composites/{id}", app.GetComposite)
	})

	if resultDir != "" {
		files := http.StripPrefix(prefix, http.FileServer(http.Dir(resultDir)))
		serveResult := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if strings.HasSuffix(req.URL.Path, "/") {
				http.NotFound(w, req)
				return
			}
			files.ServeHTTP(w, req)
		})
		r.Method(http.MethodGet, prefix+"/*", serveResult)
		r.Method(http.MethodHead, prefix+"/*", serveResult)
	}

	return r
}
