package api

import (
	"credit-ledger/internal/api/handler"
	mw "credit-ledger/internal/api/middleware"
	"credit-ledger/internal/config"
	"credit-ledger/internal/domain/ledger"
	"credit-ledger/internal/domain/session"
	"log/slog"
	"net/http"
	"time"

	_ "credit-ledger/docs"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/traceid"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

func SetupRouter(ledgerService ledger.LedgerService, guard session.Guard, rateLimiter *mw.RateLimiterMiddleware, cfg *config.Config, logger *slog.Logger) *chi.Mux {
	router := chi.NewRouter()

	setupMiddleware(router, rateLimiter, logger)
	setupMetricsEndpoint(router, cfg, logger)
	setupAuthRoutes(router, guard, cfg, logger)
	setupCustomerRoutes(router, ledgerService, cfg, logger)
	setupLoanRoutes(router, ledgerService, cfg, logger)
	setupViewRoutes(router, ledgerService, cfg, logger)
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	setupSwaggerEndpoint(router, logger)

	return router
}

func setupMiddleware(router *chi.Mux, rateLimiter *mw.RateLimiterMiddleware, logger *slog.Logger) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(traceid.Middleware)
	router.Use(mw.StructuredLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	router.Use(middleware.Timeout(60 * time.Second))
	router.Use(rateLimiter.Middleware)
	router.Use(mw.MetricsMiddleware())
}

func setupMetricsEndpoint(router *chi.Mux, cfg *config.Config, logger *slog.Logger) {
	if !cfg.Metrics.Enabled {
		logger.Info("Prometheus metrics endpoint disabled")
		return
	}
	metricsPath := cfg.Metrics.Path
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	logger.Info("Setting up Prometheus metrics endpoint", "path", metricsPath)
	router.Handle(metricsPath, promhttp.Handler())
}

func setupSwaggerEndpoint(router *chi.Mux, logger *slog.Logger) {
	logger.Info("Setting up Swagger UI endpoint", "path", "/swagger/")
	router.Get("/swagger/*", httpSwagger.WrapHandler)
	router.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/swagger/index.html", http.StatusMovedPermanently)
	})
}

func setupAuthRoutes(router *chi.Mux, guard session.Guard, cfg *config.Config, logger *slog.Logger) {
	authHandler := handler.NewAuthHandler(guard, cfg.Server.Auth, logger)
	router.Route("/auth", func(r chi.Router) {
		r.Post("/login", authHandler.Login)
	})
}

func setupCustomerRoutes(router *chi.Mux, svc ledger.LedgerService, cfg *config.Config, logger *slog.Logger) {
	h := handler.NewCustomerHandler(svc, logger)
	loans := handler.NewLoanHandler(svc, logger)

	router.Route("/customers", func(r chi.Router) {
		r.Use(mw.AuthMiddleware(cfg.Server.Auth, logger))
		r.Get("/", h.ListCustomers)
		r.Post("/", h.CreateCustomer)
		r.Route("/{customerID}", func(r chi.Router) {
			r.Get("/", h.GetCustomer)
			r.Get("/statement.pdf", h.GetStatement)
			r.Post("/loans", loans.CreateLoan)
		})
	})
}

func setupLoanRoutes(router *chi.Mux, svc ledger.LedgerService, cfg *config.Config, logger *slog.Logger) {
	h := handler.NewLoanHandler(svc, logger)

	router.Route("/loans", func(r chi.Router) {
		r.Use(mw.AuthMiddleware(cfg.Server.Auth, logger))
		r.Get("/{loanID}", h.GetLoan)
		r.Post("/{loanID}/repayments", h.RecordRepayment)
	})
}

func setupViewRoutes(router *chi.Mux, svc ledger.LedgerService, cfg *config.Config, logger *slog.Logger) {
	h := handler.NewViewHandler(svc, logger)

	router.Route("/views", func(r chi.Router) {
		r.Use(mw.SessionMiddleware(cfg.Server.Auth, logger))
		r.Get("/{view}", h.GetView)
	})
}
