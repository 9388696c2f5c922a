package server

import (
	"fmt"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/BundleOS/backend/internal/api/http"
	"github.com/GriffinCanCode/BundleOS/backend/internal/api/middleware"
	"github.com/GriffinCanCode/BundleOS/backend/internal/domain/bundle"
	"github.com/GriffinCanCode/BundleOS/backend/internal/domain/installer"
	"github.com/GriffinCanCode/BundleOS/backend/internal/domain/state"
	"github.com/GriffinCanCode/BundleOS/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/BundleOS/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/BundleOS/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/BundleOS/backend/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/BundleOS/backend/internal/installd"
	"github.com/GriffinCanCode/BundleOS/backend/internal/profile"
	"github.com/GriffinCanCode/BundleOS/backend/internal/shared/paths"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router    *gin.Engine
	data      *bundle.DataMgr
	installer *installer.Installer
	daemon    *installd.Installd
	logger    *logging.Logger
	config    *config.Config
	metrics   *monitoring.Metrics
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Development)

	logger.Info("Initializing Bundle Manager Service",
		zap.String("port", cfg.Server.Port),
		zap.String("device_type", cfg.Device.Type),
		zap.Strings("abi_list", cfg.Device.AbiList),
	)

	// Initialize metrics first (needed by other components)
	metrics := monitoring.NewMetrics()
	logger.Info("Performance monitoring initialized")

	// Initialize request tracing
	tracer := tracing.New("bundle-manager", logger.Logger)

	// Open the persistent stores
	recordStore, err := state.NewRecordStore(filepath.Join(cfg.Storage.ServiceRoot, paths.BundleRecordFile))
	if err != nil {
		return nil, fmt.Errorf("open record store: %w", err)
	}
	stateStore, err := state.NewUserStateStore(filepath.Join(cfg.Storage.ServiceRoot, paths.UserStateFile))
	if err != nil {
		return nil, fmt.Errorf("open user state store: %w", err)
	}
	recordStore.WithMetrics(metrics)
	stateStore.WithMetrics(metrics)

	// Load the in-memory bundle data manager
	data := bundle.NewDataMgr(recordStore, stateStore, cfg.Storage.BaseUID, logger).WithMetrics(metrics)
	if err := data.LoadFromStores(); err != nil {
		return nil, fmt.Errorf("load bundle stores: %w", err)
	}
	logger.Info("Bundle data loaded", zap.Int("bundles", data.Count()))
	metrics.SetBundlesInstalled(data.Count())

	// Privileged daemon, parser, installer
	daemon := installd.New(installd.Config{
		CodeRoot:       cfg.Storage.CodeRoot,
		DataRoot:       cfg.Storage.DataRoot,
		DistRoot:       cfg.Storage.DistRoot,
		DistributedFS:  cfg.Device.DistributedFiles,
		DatabaseGID:    cfg.Storage.DatabaseGID,
		DistributedGID: cfg.Storage.DistributedGID,
	}, logger).WithMetrics(metrics)

	parser := profile.New(cfg.Device.Type, cfg.Device.AbiList, logger).WithMetrics(metrics)
	inst := installer.New(data, daemon, parser, cfg.Storage.CodeRoot, logger).WithMetrics(metrics)

	// Resolve installs interrupted by a crash before serving
	inst.Recover()

	// Seed preinstalled system bundles
	seeder := installer.NewSeeder(inst, cfg.Storage.PreinstallList)
	if seeded, err := seeder.Seed(); err != nil {
		logger.Warn("Preinstall seeding failed", zap.Error(err))
	} else if seeded > 0 {
		logger.Info("Preinstalled system bundles", zap.Int("count", seeded))
	}
	metrics.SetBundlesInstalled(data.Count())

	// Create router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	// Create handler metrics wrapper
	handlerMetrics := http.NewHandlerMetrics(metrics)

	// Create handlers
	handlers := http.NewHandlers(data, inst, daemon, handlerMetrics)
	metricsHandlers := http.NewMetricsHandlers(metrics)

	// Register routes
	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)

	// Install surface
	router.POST("/bundles/install", handlers.InstallBundle)
	router.DELETE("/bundles/:name", handlers.UninstallBundle)
	router.DELETE("/bundles/:name/modules/:module", handlers.UninstallModule)

	// Query surface
	router.GET("/bundles", handlers.ListBundles)
	router.GET("/bundles/:name", handlers.GetBundle)
	router.POST("/bundles/query/abilities", handlers.QueryAbilities)
	router.POST("/bundles/query/extensions", handlers.QueryExtensions)
	router.GET("/bundles/:name/modules/:module/dependencies", handlers.GetDependentModules)

	// Per-user state
	router.PUT("/bundles/:name/enabled", handlers.SetBundleEnabled)
	router.GET("/bundles/:name/enabled", handlers.GetBundleEnabled)
	router.PUT("/bundles/:name/abilities/:ability/enabled", handlers.SetAbilityEnabled)
	router.GET("/bundles/:name/abilities/:ability/enabled", handlers.GetAbilityEnabled)

	// Module upgrade flags
	router.PUT("/bundles/:name/modules/:module/upgrade-flag", handlers.SetUpgradeFlag)
	router.GET("/bundles/:name/modules/:module/upgrade-flag", handlers.GetUpgradeFlag)

	// Sandbox clones
	router.POST("/bundles/:name/sandboxes", handlers.AddSandbox)
	router.GET("/bundles/:name/sandboxes", handlers.ListSandboxes)
	router.DELETE("/bundles/:name/sandboxes/:index", handlers.RemoveSandbox)

	// Disk accounting
	router.GET("/bundles/:name/stats", handlers.GetBundleStats)
	router.POST("/bundles/:name/clean-cache", handlers.CleanBundleCache)

	// Metrics endpoints
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/metrics/json", metricsHandlers.GetMetricsSummary)

	logger.Info("Server initialized successfully")

	return &Server{
		router:    router,
		data:      data,
		installer: inst,
		daemon:    daemon,
		logger:    logger,
		config:    cfg,
		metrics:   metrics,
	}, nil
}

// Run starts the HTTP server
func (s *Server) Run() error {
	addr := s.config.Server.Host + ":" + s.config.Server.Port
	s.logger.Info("Starting HTTP server", zap.String("addr", addr))
	return s.router.Run(addr)
}

// Close gracefully shuts down the server
func (s *Server) Close() error {
	s.logger.Info("Shutting down server...")
	s.logger.Sync()
	return nil
}
