package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/liamashdown/arbwatch/internal/accounts"
	"github.com/liamashdown/arbwatch/internal/health"
	"github.com/liamashdown/arbwatch/internal/orchestrator"
	"github.com/liamashdown/arbwatch/internal/scanner"
	"github.com/liamashdown/arbwatch/internal/storage"
)

// Pinger checks backing store connectivity
type Pinger interface {
	Ping(ctx context.Context) error
}

// ProviderView exposes orchestrator state
type ProviderView interface {
	Providers() []orchestrator.ProviderInfo
	Primary() (string, bool)
	CompareLatency() health.LatencyComparison
}

// OpportunityView exposes the latest scan results
type OpportunityView interface {
	Latest(sport string) (scanner.Snapshot, bool)
	LatestAll() []scanner.Snapshot
}

// HistoryStore lists persisted opportunity snapshots
type HistoryStore interface {
	ListOpportunities(ctx context.Context, sport string, limit int) ([]storage.OpportunityRecord, error)
}

// AccountService reads and updates bookmaker account health
type AccountService interface {
	List(ctx context.Context) ([]accounts.Health, error)
	Lookup(ctx context.Context, bookmaker string) (accounts.Health, error)
	SetHealth(ctx context.Context, bookmaker, status string, stealthScore float64) (accounts.Health, error)
	Invalidate(ctx context.Context, bookmaker string) error
}

// Deps holds everything the HTTP handlers read from
type Deps struct {
	DB            Pinger
	Providers     ProviderView
	Opportunities OpportunityView
	History       HistoryStore
	Accounts      AccountService
	CORSOrigins   []string
}

// Server serves the health, metrics and read/admin API
type Server struct {
	deps Deps
	log  *logrus.Logger
}

// NewServer creates a server
func NewServer(deps Deps, log *logrus.Logger) *Server {
	return &Server{deps: deps, log: log}
}

// Router builds the chi router with all routes mounted
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(30 * time.Second))

	origins := s.deps.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/providers", s.handleProviders)

		r.Get("/opportunities", s.handleOpportunities)
		r.Get("/opportunities/history", s.handleHistory)

		r.Get("/accounts", s.handleListAccounts)
		r.Post("/accounts/cache/invalidate", s.handleInvalidateCache)
		r.Get("/accounts/{name}", s.handleGetAccount)
		r.Put("/accounts/{name}", s.handlePutAccount)
	})

	return r
}

// NewHTTPServer wraps the router in an http.Server with sane timeouts
func (s *Server) NewHTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start).String(),
			"request_id": chimiddleware.GetReqID(r.Context()),
		}).Debug("HTTP request")
	})
}
