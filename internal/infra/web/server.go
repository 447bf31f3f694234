package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"telegram-relay-subscription/internal/infra/api"
	"telegram-relay-subscription/internal/infra/logging"
	"telegram-relay-subscription/internal/usecase"
)

const (
	requestTimeout   = 30 * time.Second
	broadcastTimeout = 10 * time.Minute
)

// Server is the operator's HTTP console. Every protected route resolves the
// operator through AdminUseCase.Authorize, the same guard the bot uses.
type Server struct {
	admin      usecase.AdminUseCase
	operatorID int64
	payee      string
	apiKey     string
	auth       *AuthManager
	log        *zerolog.Logger
	router     *chi.Mux
	httpServer *http.Server
}

func NewServer(admin usecase.AdminUseCase, operatorID int64, payee, apiKey string, auth *AuthManager, logger *zerolog.Logger) *Server {
	s := &Server{
		admin:      admin,
		operatorID: operatorID,
		payee:      payee,
		apiKey:     apiKey,
		auth:       auth,
		log:        logging.Component(logger, "web"),
	}
	s.router = s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(api.TraceID(s.log), api.RequestLog(s.log), api.Recover(s.log))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/admin/auth/login", s.handleLogin)
		r.Post("/admin/auth/logout", s.handleLogout)

		// a broadcast waits for every delivery, so it gets its own deadline
		r.With(s.authMiddleware, api.Timeout(broadcastTimeout)).Post("/broadcast", s.handleBroadcast)

		r.Group(func(p chi.Router) {
			p.Use(s.authMiddleware, api.Timeout(requestTimeout))
			p.Get("/stats", s.handleStats)

			p.Route("/users", func(r chi.Router) {
				r.Get("/", s.handleListUsers)
				r.Get("/banned", s.handleListBanned)
				r.Get("/{id}", s.handleGetUser)
				r.Get("/{id}/messages", s.handleRelayLog)
				r.Post("/{id}/ban", s.handleBan)
				r.Post("/{id}/unban", s.handleUnban)
			})
			p.Route("/plans", func(r chi.Router) {
				r.Get("/", s.handleListPlans)
				r.Post("/", s.handleCreatePlan)
				r.Delete("/{id}", s.handleDeletePlan)
			})
			p.Route("/payments", func(r chi.Router) {
				r.Get("/pending", s.handleListPending)
				r.Get("/{id}", s.handleGetPayment)
				r.Post("/{id}/approve", s.handleApprove)
				r.Post("/{id}/reject", s.handleReject)
			})
			p.Route("/keys", func(r chi.Router) {
				r.Get("/", s.handleListKeys)
				r.Get("/{key}", s.handleGetKey)
				r.Post("/{key}/revoke", s.handleRevoke)
			})
			p.Get("/payment-info", s.handleGetPaymentInfo)
			p.Put("/payment-info", s.handleSetPaymentInfo)
			p.Get("/payment-info/qr.png", s.handlePaymentQR)
		})
	})
	return r
}

// authMiddleware requires a valid session token.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.auth == nil {
			writeError(w, http.StatusUnauthorized, "authentication is not configured")
			return
		}
		if _, err := s.auth.ParseFromRequest(r); err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Start serves on addr until Shutdown.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      broadcastTimeout + 5*time.Second,
	}
	s.log.Info().Str("addr", addr).Msg("admin api listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("admin api: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
