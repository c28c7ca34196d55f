package http

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/jhonier182/lista-mercado/internal/auth"
	"github.com/jhonier182/lista-mercado/internal/cache"
	"github.com/jhonier182/lista-mercado/internal/core"
	"github.com/jhonier182/lista-mercado/internal/log"
	"github.com/jhonier182/lista-mercado/internal/middleware/ratelimit"
	"github.com/jhonier182/lista-mercado/internal/middleware/security"
	"github.com/jhonier182/lista-mercado/internal/middleware/trace"
	"github.com/jhonier182/lista-mercado/internal/services"
)

const (
	readTimeout     = 10 * time.Second
	writeTimeout    = 30 * time.Second
	idleTimeout     = 60 * time.Second
	requestTimeout  = 20 * time.Second
	cleanupInterval = 5 * time.Minute
)

// Services are the use cases the API exposes.
type Services struct {
	Auth       *auth.Service
	Categories *services.CategoryService
	Stores     *services.StoreService
	Products   *services.ProductService
	History    *services.PriceHistoryRecorder
	Expenses   *services.ExpenseService
	Comparison *services.ComparisonService
	Dashboard  *services.DashboardService
}

// Options tunes the server.
type Options struct {
	RateLimitPerMinute int
	CacheTTL           time.Duration
	CacheSize          int
	Logger             *log.Logger
	// Location cuts calendar months; defaults to UTC.
	Location *time.Location
	// Now defaults to time.Now.
	Now func() time.Time
	// Ready reports whether the storage backend can serve requests.
	Ready func(ctx context.Context) error
}

// Server is the JSON API over the grocery services.
type Server struct {
	http.Server
	svc      Services
	opts     Options
	validate *validator.Validate

	monthlyCache    *cache.LRUCache[core.MonthlyExpenses]
	comparisonCache *cache.LRUCache[[]core.PriceSummary]
	dashboardCache  *cache.LRUCache[core.DashboardSummary]
	cacheManager    *cache.Manager

	rateLimiter *ratelimit.Limiter
	detector    *security.Detector
	tracer      *trace.Middleware

	metrics      appMetrics
	shutdownOnce sync.Once
}

type appMetrics struct {
	started     time.Time
	cacheHits   int64
	cacheMisses int64
	priceWrites int64
}

// NewServer wires middleware and routes and returns a server ready for
// ListenAndServe. Shutdown also stops the background cleanup goroutines.
func NewServer(addr string, svc Services, opts Options) *Server {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}
	if opts.CacheSize < 1 {
		opts.CacheSize = 500
	}

	s := &Server{
		svc:             svc,
		opts:            opts,
		validate:        newValidator(),
		monthlyCache:    cache.NewLRUCache[core.MonthlyExpenses](opts.CacheSize, opts.CacheTTL),
		comparisonCache: cache.NewLRUCache[[]core.PriceSummary](opts.CacheSize, opts.CacheTTL),
		dashboardCache:  cache.NewLRUCache[core.DashboardSummary](opts.CacheSize, opts.CacheTTL),
		cacheManager:    cache.NewManager(),
		rateLimiter:     ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		detector:        security.NewDetector(),
		metrics:         appMetrics{started: opts.Now()},
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP)

	s.cacheManager.Register(s.monthlyCache)
	s.cacheManager.Register(s.comparisonCache)
	s.cacheManager.Register(s.dashboardCache)
	s.cacheManager.StartCleanup(cleanupInterval)

	s.Server = http.Server{
		Addr:         addr,
		Handler:      s.routes(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(log.Middleware(s.opts.Logger))
	r.Use(s.tracer.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(s.detector.Middleware)
	r.Use(s.rateLimiter.Middleware(s.detector.ExtractClientIP, writeRateLimited,
		http.MethodPost, http.MethodPut, http.MethodDelete))
	r.NotFound(writeNotFoundRoute)
	r.MethodNotAllowed(writeMethodNotAllowed)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", s.handleMetrics)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", s.handleRegister)
			r.Post("/login", s.handleLogin)
			r.With(s.requireSession).Post("/logout", s.handleLogout)
			r.With(s.requireSession).Get("/me", s.handleMe)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.requireSession)
			r.Use(s.invalidateOnWrite)

			r.Route("/categories", func(r chi.Router) {
				r.Get("/", s.handleListCategories)
				r.Post("/", s.handleCreateCategory)
				r.Get("/{id}", s.handleGetCategory)
				r.Put("/{id}", s.handleUpdateCategory)
				r.Delete("/{id}", s.handleDeleteCategory)
			})
			r.Route("/stores", func(r chi.Router) {
				r.Get("/", s.handleListStores)
				r.Post("/", s.handleCreateStore)
				r.Get("/{id}", s.handleGetStore)
				r.Put("/{id}", s.handleUpdateStore)
				r.Delete("/{id}", s.handleDeleteStore)
			})
			r.Route("/products", func(r chi.Router) {
				r.Get("/", s.handleListProducts)
				r.Post("/", s.handleCreateProduct)
				r.Get("/{id}", s.handleGetProduct)
				r.Put("/{id}", s.handleUpdateProduct)
				r.Delete("/{id}", s.handleDeleteProduct)
				r.Get("/{id}/history", s.handleListHistory)
				r.Post("/{id}/history", s.handleRecordPrice)
			})

			r.Get("/expenses/monthly", s.handleMonthlyExpenses)
			r.Post("/expenses/monthly/export", s.handleExportMonthly)
			r.Get("/prices/comparison", s.handlePriceComparison)
			r.Get("/dashboard", s.handleDashboard)
		})
	})
	return r
}

func (s *Server) now() time.Time {
	return s.opts.Now().In(s.opts.Location)
}

// Shutdown stops the background goroutines and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// Close releases the background goroutines of a server that never
// started listening, as in tests.
func (s *Server) Close() error {
	var err error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		err = s.Server.Close()
	})
	return err
}

func (s *Server) countCache(hit bool) {
	if hit {
		atomic.AddInt64(&s.metrics.cacheHits, 1)
	} else {
		atomic.AddInt64(&s.metrics.cacheMisses, 1)
	}
}
