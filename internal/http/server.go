// Package http exposes the classification and reporting API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"khata/internal/aggregate"
	"khata/internal/cache"
	"khata/internal/classify"
	"khata/internal/core"
	"khata/internal/ingest"
	"khata/internal/log"
)

// Store is the storage surface the server needs. Both the SQLite repository
// and the in-memory store satisfy it.
type Store interface {
	core.TransactionLister
	core.TransactionWriter
	core.TransactionEditor
}

type Server struct {
	http.Server
	classifier *classify.Classifier
	ingester   *ingest.Service
	aggregator *aggregate.Aggregator
	store      Store
	logger     *log.Logger
	structured *log.StructuredLogger

	rateLimiter *rateLimiter

	// Aggregate views keyed by view name and period window.
	viewCache *cache.LRUCache[any]
	cacheMgr  *cache.Manager

	shutdownOnce sync.Once
}

// NewServer wires routes and caches, returning a ready-to-run server.
func NewServer(addr string, classifier *classify.Classifier, ingester *ingest.Service, aggregator *aggregate.Aggregator, store Store, logger *log.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		classifier:  classifier,
		ingester:    ingester,
		aggregator:  aggregator,
		store:       store,
		logger:      logger.WithComponent(log.ComponentHTTP),
		structured:  log.NewStructuredLogger(logger),
		rateLimiter: newRateLimiter(),
		viewCache:   cache.NewLRUCache[any](200, 5*time.Minute),
		cacheMgr:    cache.NewManager(),
	}

	s.Handler = log.Middleware(s.logger)(mux)

	s.cacheMgr.Register(s.viewCache)
	s.cacheMgr.StartCleanup(10 * time.Minute)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("POST /api/classify", s.withMiddleware(s.handleClassify))
	mux.HandleFunc("POST /api/messages", s.withMiddleware(s.handleIngestMessages))

	mux.HandleFunc("GET /api/summary", s.withMiddleware(s.handleSummary))
	mux.HandleFunc("GET /api/breakdown/category", s.withMiddleware(s.handleCategoryBreakdown))
	mux.HandleFunc("GET /api/breakdown/mode", s.withMiddleware(s.handleModeBreakdown))
	mux.HandleFunc("GET /api/breakdown/bank", s.withMiddleware(s.handleBankBreakdown))
	mux.HandleFunc("GET /api/monthly", s.withMiddleware(s.handleMonthly))
	mux.HandleFunc("GET /api/trends", s.withMiddleware(s.handleTrends))
	mux.HandleFunc("GET /api/dashboard", s.withMiddleware(s.handleDashboard))

	mux.HandleFunc("GET /api/transactions", s.withMiddleware(s.handleListTransactions))
	mux.HandleFunc("PATCH /api/transactions/{id}", s.withMiddleware(s.handleUpdateTransaction))
	mux.HandleFunc("DELETE /api/transactions/{id}", s.withMiddleware(s.handleDeleteTransaction))

	return s
}

// Shutdown stops the cleanup goroutines and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.cacheMgr.Stop()
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// invalidateViews drops every cached aggregate view. Any write can shift any
// window, so invalidation is wholesale.
func (s *Server) invalidateViews() {
	s.viewCache.DeletePrefix("")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.List(r.Context(), core.ListFilter{Limit: 1}); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Readiness check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("storage unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// withMiddleware adds security headers, rate limiting, request IDs, and
// request logging.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		s.structured.LogHTTPStart(ctx, r, clientIP)

		// Writes are rate limited; reads are cheap and cached.
		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP) {
			s.logger.WarnContext(ctx, "Rate limit exceeded",
				log.FieldClientIP, clientIP, log.FieldMethod, r.Method, log.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		s.structured.LogHTTPEnd(ctx, r, rw.statusCode, time.Since(start).Milliseconds(), clientIP)
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
