package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MiriamFinn/cipher-trust-connect/internal/auth"
	"github.com/MiriamFinn/cipher-trust-connect/internal/events"
)

type Server struct {
	Router *chi.Mux
}

func NewServer(handler *Handler, jwt *auth.JWTManager, hub *events.Hub) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(cors)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/market", func(r chi.Router) {
		// Reads are public: every record field exposed here is already
		// public ledger state (score handles are opaque).
		r.Get("/matches", handler.FindMatches)
		r.Get("/stats", handler.Stats)
		r.Get("/requests/{requestId}", handler.GetRequest)
		r.Get("/requests/{requestId}/score-check", handler.GetComparison)
		r.Get("/offers/{offerId}", handler.GetOffer)
		r.Get("/loans/{loanId}", handler.GetLoan)

		// Mutations require an authenticated principal.
		r.Group(func(r chi.Router) {
			r.Use(auth.RequirePrincipal(jwt))
			r.Post("/requests", handler.SubmitRequest)
			r.Post("/requests/{requestId}/score-check", handler.CheckScore)
			r.Post("/offers", handler.SubmitOffer)
			r.Post("/offers/{offerId}/accept", handler.AcceptOffer)
		})
	})

	// Decrypt authorizes itself through the signed artifact in the body,
	// not the bearer token.
	r.Post("/fhe/decrypt", handler.Decrypt)

	if hub != nil {
		r.Get("/ws", hub.ServeHTTP)
	}

	return &Server{Router: r}
}
