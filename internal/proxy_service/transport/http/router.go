package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"
)

// Handlers groups the HTTP handlers mounted by NewRouter.
type Handlers struct {
	Webhooks      *WebhookHandler
	Confirmations *ConfirmationHandler
	Pool          *PoolHandler
	Clients       *ClientHandler
}

// NewRouter mounts the carrier webhooks and the /api/v1 resources.
func NewRouter(h Handlers, requestTimeout time.Duration) chi.Router {
	r := chi.NewRouter()
	r.Use(chi_middleware.RequestID)
	r.Use(chi_middleware.RealIP)
	r.Use(chi_middleware.Recoverer)
	r.Use(chi_middleware.Timeout(requestTimeout))
	r.Use(PrometheusMetricsMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Route("/webhooks", func(wr chi.Router) {
		wr.Post("/voice", h.Webhooks.HandleVoice)
		wr.Post("/sms", h.Webhooks.HandleSMS)
	})

	r.Route("/api/v1", func(v1 chi.Router) {
		v1.Route("/confirmations", func(cr chi.Router) {
			cr.Post("/", h.Confirmations.HandleIntake)
			cr.Post("/verify", h.Confirmations.HandleVerify)
			cr.Post("/expire", h.Confirmations.HandleExpire)
			cr.Post("/{pending_id}/start", h.Confirmations.HandleStart)
		})
		v1.Route("/pool", func(pr chi.Router) {
			pr.Get("/available", h.Pool.HandleAvailable)
			pr.Post("/provision", h.Pool.HandleProvision)
			pr.Post("/release", h.Pool.HandleRelease)
			pr.Post("/rewire", h.Pool.HandleRewire)
			pr.Delete("/numbers/{phone}", h.Pool.HandleRemove)
		})
		v1.Route("/clients", func(cr chi.Router) {
			cr.Post("/", h.Clients.HandleCreate)
			cr.Get("/{client_id}", h.Clients.HandleGet)
			cr.Patch("/{client_id}", h.Clients.HandleUpdate)
		})
	})

	return r
}
