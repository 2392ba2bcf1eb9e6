package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hc1200093-glitch/L-eclaireur/internal/analysis"
	"github.com/hc1200093-glitch/L-eclaireur/internal/api"
	"github.com/hc1200093-glitch/L-eclaireur/internal/config"
	"github.com/hc1200093-glitch/L-eclaireur/internal/export"
	"github.com/hc1200093-glitch/L-eclaireur/internal/logger"
	"github.com/hc1200093-glitch/L-eclaireur/internal/session"
	"github.com/hc1200093-glitch/L-eclaireur/internal/storage"
	"github.com/hc1200093-glitch/L-eclaireur/internal/upload"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const shutdownTimeout = 15 * time.Second

func main() {
	configPath := flag.String("config", "eclaireur.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create directories: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, *configPath, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.AppConfig, configPath string, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := analysis.NewClient(cfg.Analysis.BaseURL,
		analysis.WithTimeout(cfg.AnalysisTimeout()),
		analysis.WithHealthTimeout(time.Duration(cfg.Analysis.HealthTimeoutSeconds)*time.Second),
		analysis.WithLogger(log),
	)
	if err != nil {
		return fmt.Errorf("analysis client: %w", err)
	}

	savers, err := buildSavers(ctx, cfg)
	if err != nil {
		return err
	}

	manager := session.NewManager(session.Deps{
		Submitter: client,
		Exporter: export.NewExporter(
			export.WithProduct(cfg.Export.ProductName),
			export.WithLogger(log),
		),
		UploadOptions: []upload.Option{upload.WithLimits(cfg.Intake.MaxFiles, cfg.MaxFileSize())},
		Clock:         session.SystemClock{},
		Logger:        log,
	},
		session.WithMaxSessions(cfg.Sessions.MaxSessions),
		session.WithExpiry(
			time.Duration(cfg.Sessions.IdleTimeoutMinutes)*time.Minute,
			time.Duration(cfg.Sessions.CleanupIntervalMinutes)*time.Minute,
		),
	)
	defer manager.Close()

	e := newServer(cfg, log)
	api.RegisterRoutes(e, api.NewHandlers(&api.Dependencies{
		Registry: manager,
		Probe:    client,
		Savers:   savers,
		Logger:   log,
		Version:  Version,
	}))

	s := &http.Server{
		Addr:        cfg.GetServerAddr(),
		ReadTimeout: time.Duration(cfg.Server.ReadTimeout) * time.Second,
		// Zero keeps SSE and websocket streams open for the whole analysis.
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	log.Info("starting server",
		zap.String("version", Version),
		zap.String("buildTime", BuildTime),
		zap.String("config", configPath),
		zap.String("listen", cfg.GetServerAddr()),
		zap.String("analysisBackend", cfg.Analysis.BaseURL),
		zap.Int("saveTargets", len(savers)),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := e.StartServer(s); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down", zap.Int("busySessions", manager.Busy()))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// buildSavers wires the configured export destinations.
func buildSavers(ctx context.Context, cfg *config.AppConfig) (map[string]export.Saver, error) {
	savers := make(map[string]export.Saver)

	if cfg.Export.Directory != "" {
		local, err := storage.NewLocalStore(cfg.Export.Directory)
		if err != nil {
			return nil, fmt.Errorf("export directory: %w", err)
		}
		savers[api.TargetDirectory] = local
	}

	if b := cfg.Export.Bucket; b.Endpoint != "" {
		bucket, err := storage.NewBucketStore(ctx, storage.BucketOptions{
			Endpoint:  b.Endpoint,
			Region:    b.Region,
			Bucket:    b.BucketName,
			AccessKey: b.AccessKey,
			SecretKey: b.SecretKey,
			Prefix:    b.Prefix,
			UseSSL:    b.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("export bucket: %w", err)
		}
		savers[api.TargetBucket] = bucket
	}

	return savers, nil
}

func newServer(cfg *config.AppConfig, log *zap.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	api.SetupMiddleware(e, log, cfg.Logging.Level == "debug")

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			if !cfg.Logging.EnableRequestLogging {
				return true
			}
			path := c.Request().URL.Path
			return path == "/api/health" ||
				strings.HasSuffix(path, "/events") ||
				strings.HasSuffix(path, "/ws")
		},
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Info("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			)
			return nil
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
	}))

	e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	if cfg.Server.EnableCORS {
		origins := strings.Split(cfg.Server.AllowOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		if len(origins) == 0 || (len(origins) == 1 && origins[0] == "") {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		}))
	}

	return e
}
