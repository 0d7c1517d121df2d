package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ovenfresh/labelpress/internal/api/handlers"
	"github.com/ovenfresh/labelpress/internal/api/middleware"
	"github.com/ovenfresh/labelpress/internal/batch"
	"github.com/ovenfresh/labelpress/internal/compile"
	"github.com/ovenfresh/labelpress/internal/config"
	"github.com/ovenfresh/labelpress/internal/db"
	"github.com/ovenfresh/labelpress/internal/logger"
	"github.com/ovenfresh/labelpress/internal/printer"
	"github.com/ovenfresh/labelpress/internal/queue"
	"github.com/ovenfresh/labelpress/internal/resolve"
	"github.com/ovenfresh/labelpress/internal/webhook"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "labelpress: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log, err := logger.New(cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}

	if err := db.Init(db.Config{Path: cfg.Database.Path}); err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	webhooks := webhook.NewSender(db.Webhooks, webhook.Config{}, log)
	webhooks.Start()
	defer webhooks.Stop()

	printers := printer.NewManager(&cfg.Printers, webhooks, log)
	if err := printers.Start(ctx); err != nil {
		return fmt.Errorf("failed to start printer manager: %w", err)
	}
	defer printers.Stop()

	dataResolver := resolve.NewDataResolver(db.Orders, db.Products, cfg.Server.PublicURL, log)
	profileResolver := resolve.NewProfileResolver(dataResolver, db.Orders, db.Products, db.Profiles, log)
	optimizer := batch.NewOptimizer(log)

	orchestrator := compile.NewOrchestrator(
		profileResolver,
		db.Printers,
		db.Templates,
		optimizer,
		compile.NewMemoryJobStore(),
		compile.Config{
			OutputDir:         cfg.Output.Dir,
			DownloadTTL:       cfg.Output.DownloadTTL,
			MaxLabelsPerBatch: cfg.Compile.MaxLabelsPerBatch,
			MaxBatchSizeBytes: cfg.Compile.MaxBatchSizeBytes,
			MaxPrintTime:      cfg.Compile.MaxPrintTime,
		},
		log,
	)

	dispatcher := queue.NewDispatcher(db.Jobs, dataResolver, db.Profiles, db.Templates, printers, webhooks, cfg.Queue, cfg.Output.Dir, log)
	dispatcher.Start()
	defer dispatcher.Stop()

	if cfg.Compile.JobMaxAgeHours > 0 {
		go compileJobJanitor(ctx, orchestrator, time.Duration(cfg.Compile.JobMaxAgeHours)*time.Hour, log)
	}

	auth, err := middleware.NewAuthMiddleware()
	if err != nil {
		return fmt.Errorf("failed to init auth: %w", err)
	}

	router := buildRouter(cfg, auth, handlerSet{
		printers:  handlers.NewPrinterHandler(printers),
		profiles:  handlers.NewProfileHandler(),
		templates: handlers.NewTemplateHandler(),
		jobs:      handlers.NewJobHandler(dispatcher, dataResolver, webhooks),
		compile:   handlers.NewCompileHandler(orchestrator, profileResolver),
		webhooks:  handlers.NewWebhookHandler(),
		settings:  handlers.NewSettingsHandler(cfg),
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", logger.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigCh:
		log.Info("shutting down", logger.String("signal", sig.String()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

type handlerSet struct {
	printers  *handlers.PrinterHandler
	profiles  *handlers.ProfileHandler
	templates *handlers.TemplateHandler
	jobs      *handlers.JobHandler
	compile   *handlers.CompileHandler
	webhooks  *handlers.WebhookHandler
	settings  *handlers.SettingsHandler
}

func buildRouter(cfg *config.Config, auth *middleware.AuthMiddleware, h handlerSet) *gin.Engine {
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authGroup := router.Group("/api/auth")
	{
		authGroup.POST("/login", auth.LoginHandler)
		authGroup.POST("/logout", auth.LogoutHandler)
		authGroup.GET("/status", auth.StatusHandler)
		authGroup.POST("/setup", auth.SetupHandler)
	}

	limiter := middleware.NewRateLimiter(cfg.Server.RateLimitPerMinute)

	api := router.Group("/api")
	api.Use(auth.RequireAuth(), limiter.Middleware())
	{
		h.printers.RegisterRoutes(api)
		h.profiles.RegisterRoutes(api)
		h.templates.RegisterRoutes(api)
		h.jobs.RegisterRoutes(api)
		h.compile.RegisterRoutes(api)

		api.POST("/auth/password", auth.ChangePasswordHandler)
	}

	admin := router.Group("/api")
	admin.Use(auth.RequireAuth(), auth.RequireAdmin())
	{
		h.webhooks.RegisterRoutes(admin)
		h.settings.RegisterRoutes(admin)
	}

	// Compiled batch files; links carry the compile job ID in the path.
	downloads := router.Group("/downloads")
	downloads.Use(auth.RequireAuth())
	downloads.Static("/", cfg.Output.Dir)

	return router
}

func compileJobJanitor(ctx context.Context, o *compile.Orchestrator, maxAge time.Duration, log logger.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := o.CleanupExpiredJobs(maxAge); removed > 0 {
				log.Info("cleaned up expired compile jobs", logger.Int("removed", removed))
			}
		}
	}
}
