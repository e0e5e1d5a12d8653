package httpapi

import (
	stdhttp "net/http"
	"time"

	"turbogen/internal/http/handlers"
	"turbogen/internal/infra"
	"turbogen/internal/middleware"
	"turbogen/internal/studio"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Options carries what the router needs besides the handlers.
type Options struct {
	Logger          infra.Logger
	Sessions        *middleware.Sessions
	CORSOrigins     []string
	DefaultLocale   string
	CountryLookup   middleware.CountryLookup
	GenerateLimit   int
	DevProxyPrefix  string
	DevProxyHandler stdhttp.Handler
	// TrustProxy enables chi's RealIP. Only set it behind a proxy that
	// overwrites X-Forwarded-For, or clients can pick their own address.
	TrustProxy bool
}

func NewRouter(app *handlers.App, opts Options) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if opts.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(chimw.Recoverer, middleware.Logger(opts.Logger))
	r.Use(middleware.CORS(opts.CORSOrigins))

	// Health
	r.Get("/v1/healthz", app.Health)

	if opts.DevProxyHandler != nil && opts.DevProxyPrefix != "" {
		r.Mount(opts.DevProxyPrefix, stdhttp.StripPrefix(opts.DevProxyPrefix, opts.DevProxyHandler))
	}

	r.Group(func(r chi.Router) {
		r.Use(opts.Sessions.Middleware)
		r.Use(middleware.I18N(opts.DefaultLocale, studio.Locales, opts.CountryLookup))

		// Both triggers share one per-IP budget.
		limit := middleware.RateLimit(opts.GenerateLimit, time.Minute)

		r.Get("/", app.Page)
		r.Route("/studio", func(r chi.Router) {
			r.Get("/state", app.StudioState)
			r.Post("/prompt", app.StudioPrompt)
			r.With(limit).Post("/generate", app.StudioGenerate)
			r.With(limit).Post("/keys", app.StudioKeys)
			r.Post("/cancel", app.StudioCancel)
			r.Get("/download", app.StudioDownload)
		})
	})

	return r
}
