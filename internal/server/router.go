package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/illarion/keevault/internal/config"
)

// NewRouter builds the HTTP surface. Requests are traced when
// OpenTelemetry is enabled.
func NewRouter(h *VaultHandler, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(RequestLogger)
	r.Use(chimiddleware.Recoverer)

	r.Route("/api/vaults", func(r chi.Router) {
		r.Get("/", h.ListVaults)
		r.Post("/demo", h.LoadDemo)
		r.Post("/buffer", h.LoadBuffer)
		r.Post("/open", h.LoadPath)
		r.Post("/create", h.Create)
		r.Get("/recent", h.Recent)
		r.Delete("/recent", h.ForgetRecent)

		r.Route("/{index}", func(r chi.Router) {
			r.Delete("/", h.Close)
			r.Post("/unlock", h.Unlock)
			r.Post("/lock", h.Lock)
			r.Post("/save", h.Save)
			r.Post("/save-as", h.SaveAs)
			r.Get("/changes", h.Changes)
			r.Get("/groups/{group}/entries", h.ListEntries)
			r.Put("/groups/{group}/name", h.RenameGroup)
			r.Get("/entries/{entry}/otp", h.OTP)
			r.Get("/entries/{entry}/fields/{field}", h.Reveal)
			r.Put("/entries/{entry}/fields/{field}", h.SetField)
		})
	})

	if cfg != nil && cfg.Otel.Enabled {
		return otelhttp.NewHandler(r, cfg.Otel.ServiceName)
	}
	return r
}
