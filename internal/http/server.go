// Package http serves the ledger as a JSON REST API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"mxmoney/internal/backend"
	applog "mxmoney/internal/log"
	"mxmoney/internal/middleware/ratelimit"
	"mxmoney/internal/middleware/security"
	"mxmoney/internal/middleware/trace"
)

// GenerateRequester queues a materialization pass for the recurring worker.
type GenerateRequester interface {
	PublishGenerateRequest(ctx context.Context, asOf string) error
}

// Options tunes the server. Zero values select defaults.
type Options struct {
	CORSOrigins []string
	// TrustedProxies lists CIDRs, besides private ranges, whose forwarding
	// headers are honoured.
	TrustedProxies    []string
	RequestsPerMinute int
	MaxUploadBytes    int64
	Logger            *applog.Logger
}

const defaultMaxUpload = 10 << 20

type Server struct {
	http.Server
	app       *backend.App
	generates GenerateRequester
	maxUpload int64

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server. Asynchronous generation is available when app has a broker.
func NewServer(addr string, app *backend.App, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.Config{Component: applog.ComponentHTTP})
	}
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUpload
	}

	limits := ratelimit.DefaultConfig()
	if opts.RequestsPerMinute > 0 {
		limits.RequestsPerMinute = opts.RequestsPerMinute
	}

	s := &Server{
		app:       app,
		maxUpload: maxUpload,
		limiter:   ratelimit.NewLimiter(limits),
		detector:  security.NewDetector(),
	}
	if app.AMQP != nil {
		s.generates = app.AMQP
	}
	for _, cidr := range opts.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", "cidr", cidr, "error", err)
		}
	}
	s.tracer = trace.NewMiddleware(logger, s.detector.ExtractClientIP)

	mux := http.NewServeMux()
	s.routes(mux)

	var h http.Handler = mux
	h = s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
			"client_ip", s.detector.ExtractClientIP(r), "method", r.Method, "path", r.URL.Path)
		writeError(w, r, http.StatusTooManyRequests, "rate limit exceeded, try again later")
	})(h)
	h = security.CORS(opts.CORSOrigins)(h)
	h = security.Headers(security.DefaultHeadersConfig())(h)
	h = s.detector.Middleware(h)
	h = s.tracer.Handler(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("GET /api/transactions/{id}", s.handleGetTransaction)
	mux.HandleFunc("PUT /api/transactions/{id}", s.handleUpdateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)

	mux.HandleFunc("GET /api/categories", s.handleListCategories)
	mux.HandleFunc("POST /api/categories", s.handleCreateCategory)
	mux.HandleFunc("GET /api/categories/{id}", s.handleGetCategory)
	mux.HandleFunc("PUT /api/categories/{id}", s.handleUpdateCategory)
	mux.HandleFunc("DELETE /api/categories/{id}", s.handleDeleteCategory)

	mux.HandleFunc("GET /api/balance", s.handleCurrentBalance)
	mux.HandleFunc("GET /api/balance/as-of", s.handleBalanceAsOf)
	mux.HandleFunc("GET /api/balance/projection", s.handleProjection)
	mux.HandleFunc("GET /api/balance/simulate", s.handleSimulate)

	mux.HandleFunc("POST /api/recurring/generate", s.handleGenerate)

	mux.HandleFunc("POST /api/csv/import", s.handleImportCSV)
	mux.HandleFunc("POST /api/csv/import/save", s.handleSaveImport)

	mux.HandleFunc("GET /api/reports/summary", s.handleReportSummary)
	mux.HandleFunc("GET /api/reports/analysis", s.handleReportAnalysis)

	mux.HandleFunc("GET /api/backup", s.withBackups(s.handleListBackups))
	mux.HandleFunc("POST /api/backup", s.withBackups(s.handleCreateBackup))
	mux.HandleFunc("GET /api/backup/export", s.withBackups(s.handleExportBackup))
	mux.HandleFunc("POST /api/backup/import", s.withBackups(s.handleImportBackup))
	mux.HandleFunc("GET /api/backup/settings", s.withBackups(s.handleBackupSettings))
	mux.HandleFunc("PUT /api/backup/settings", s.withBackups(s.handleUpdateBackupSettings))
	mux.HandleFunc("DELETE /api/backup/{name}", s.withBackups(s.handleDeleteBackup))
	mux.HandleFunc("POST /api/backup/{name}/restore", s.withBackups(s.handleRestoreBackup))
}

// Shutdown stops the rate limiter and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.app.Ready(ctx); err != nil {
		applog.FromContext(ctx).WarnContext(ctx, "Readiness check failed", "error", err)
		writeError(w, r, http.StatusServiceUnavailable, "storage unavailable")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// changed is called after every successful ledger write.
func (s *Server) changed() {
	s.app.Reports.Invalidate()
}
