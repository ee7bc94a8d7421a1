package httpapi

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewRouter builds the chi router for the external HTTP surface (§6):
// request id, real ip, request logging, and panic recovery on every route,
// plus an otelhttp wrapper for trace propagation.
func NewRouter(s *Server) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.HandleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/send", s.HandleSend)
		r.Post("/send-bulk", s.HandleSendBulk)
		r.Get("/stats", s.HandleStats)
	})

	return otelhttpWrap(r)
}

func otelhttpWrap(r chi.Router) chi.Router {
	// otelhttp.NewHandler wraps a plain http.Handler; chi.Router already
	// satisfies http.Handler, and wrapping it in another chi.Mux lets the
	// wrapped handler keep being routed through chi for any caller that
	// needs to inspect routes.
	wrapped := otelhttp.NewHandler(r, "retryq-api")
	m := chi.NewRouter()
	m.Mount("/", wrapped)
	return m
}
