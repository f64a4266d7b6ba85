package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"github.com/thermal-analyzer/backend/internal/analysis"
	"github.com/thermal-analyzer/backend/internal/api"
	"github.com/thermal-analyzer/backend/internal/config"
	"github.com/thermal-analyzer/backend/internal/history"
	"github.com/thermal-analyzer/backend/internal/models"
	"github.com/thermal-analyzer/backend/internal/session"
	"github.com/thermal-analyzer/backend/internal/storage"
	"github.com/thermal-analyzer/backend/internal/upload"
	"github.com/thermal-analyzer/backend/internal/web"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

var (
	configPath string
	verbose    bool
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "thermal-analyzer",
		Short: "Thermal image emission analysis server",
		Long: `thermal-analyzer serves the emission analysis web app.

It accepts a thermal image upload, runs a timed analysis over it and
reports the detected gas emissions, with JSON and CSV export.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path (default: "+config.FileName+" next to the executable)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("thermal-analyzer %s built %s\n", Version, BuildTime)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	return rootCmd
}

func resolveConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	exePath, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to get executable path: %w", err)
	}
	return filepath.Join(filepath.Dir(exePath), config.FileName), nil
}

func newLogger(level string) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if verbose || level == "debug" {
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else if lvl, err := zapcore.ParseLevel(level); err == nil {
		zcfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	return zcfg.Build()
}

func serve(ctx context.Context) error {
	path, err := resolveConfigPath()
	if err != nil {
		return err
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := newLogger(cfg.Advanced.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	embeddedMode := web.HasEmbeddedFiles()

	fileStore, err := storage.NewLocalStore(cfg.GetUploadDir())
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	profile, err := analysis.LoadProfile(cfg.Analysis.ProfilePath)
	if err != nil {
		return err
	}
	analyzer := analysis.NewMockAnalyzer(cfg.AnalysisDelay(), profile)

	sessionCfg := session.Config{
		Analyzer:    analyzer,
		Files:       fileStore,
		Logger:      logger,
		MaxSessions: cfg.Analysis.MaxSessions,
	}
	maxPreview, err := cfg.MaxPreviewBytes()
	if err != nil {
		return err
	}
	deps := &api.Dependencies{
		Store:              fileStore,
		Logger:             logger,
		Version:            Version,
		MaxPreviewBytes:    maxPreview,
		WSMaxMessageSizeKB: cfg.Advanced.WebSocketMaxMessageSize,
	}

	var historyStore *history.Store
	if cfg.Analysis.EnableHistory {
		historyStore, err = history.NewStore(logger)
		if err != nil {
			return err
		}
		sessionCfg.Recorder = historyStore
		deps.History = historyStore
	}

	sessionMgr := session.NewManager(sessionCfg)
	uploadMgr := upload.NewManager(fileStore, func(sessionID string, file *models.UploadedFile) error {
		_, err := sessionMgr.AttachFile(sessionID, file)
		return err
	}, logger)
	deps.SessionMgr = sessionMgr
	deps.UploadMgr = uploadMgr

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	configureMiddleware(e, cfg, logger, embeddedMode)

	api.SetupMiddleware(e)
	api.RegisterRoutes(e, api.NewHandlers(deps))

	if embeddedMode {
		if err := web.RegisterStaticRoutes(e); err != nil {
			logger.Warn("failed to register static routes", zap.Error(err))
		} else {
			logger.Info("serving embedded frontend from binary")
		}
	}

	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	printBanner(cfg, path, embeddedMode)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server listening", zap.String("addr", s.Addr))
		if err := e.StartServer(s); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server stopped: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(cfg.CleanupInterval())
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				sessionMgr.CleanupOldSessions(cfg.SessionTimeout())
				uploadMgr.CleanupOldJobs(cfg.SessionTimeout())
				if n, err := fileStore.CleanupStaleChunks(cfg.SessionTimeout()); err != nil {
					logger.Warn("failed to sweep stale chunks", zap.Error(err))
				} else if n > 0 {
					logger.Info("removed stale chunk uploads", zap.Int("count", n))
				}
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := e.Shutdown(shutdownCtx)

		sessionMgr.Shutdown()
		uploadMgr.Wait()
		if historyStore != nil {
			if cerr := historyStore.Close(); cerr != nil {
				logger.Warn("failed to close history store", zap.Error(cerr))
			}
		}
		return err
	})

	if err := g.Wait(); err != nil {
		logger.Error("server exited with error", zap.Error(err))
		return err
	}
	logger.Info("server stopped")
	return nil
}

func configureMiddleware(e *echo.Echo, cfg *config.AppConfig, logger *zap.Logger, embeddedMode bool) {
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			if !cfg.Advanced.EnableRequestLogging {
				return true
			}
			path := c.Request().URL.Path
			return strings.HasSuffix(path, "/progress") ||
				strings.HasSuffix(path, "/ws") ||
				path == "/api/health"
		},
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("remote_ip", v.RemoteIP),
			}
			if v.Error != nil {
				logger.Warn("request failed", append(fields, zap.Error(v.Error))...)
				return nil
			}
			logger.Info("request", fields...)
			return nil
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			logger.Error("handler panic", zap.Error(err), zap.ByteString("stack", stack))
			return err
		},
	}))

	e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout: time.Duration(cfg.Server.ReadTimeout) * time.Second,
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return strings.HasSuffix(path, "/progress") ||
				strings.HasSuffix(path, "/ws") ||
				strings.HasSuffix(path, "/file") ||
				strings.HasPrefix(path, "/api/uploads") ||
				c.Request().Header.Get("Accept") == "text/event-stream"
		},
		ErrorMessage: "Request timeout",
	}))

	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Skipper: func(c echo.Context) bool {
			return c.Request().Header.Get("Accept") == "text/event-stream" ||
				strings.HasSuffix(c.Request().URL.Path, "/ws")
		},
	}))

	e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	if !cfg.Server.EnableCORS {
		return
	}
	if embeddedMode {
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
		return
	}
	// Development mode - only allow the local frontend dev servers
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{
			"http://localhost:5173", "http://127.0.0.1:5173",
			"http://localhost:3000", "http://127.0.0.1:3000",
		},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))
}

func printBanner(cfg *config.AppConfig, path string, embeddedMode bool) {
	mode := "Development"
	if embeddedMode {
		mode = "Embedded"
	}

	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           Thermal Emission Analyzer                       ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("║  Mode:       %-45s║\n", mode)
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", path)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  Data Dir:  %-46s║\n", cfg.GetDataDir())
	fmt.Printf("║  Analysis:  %-46s║\n", cfg.AnalysisDelay().String())
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")

	if embeddedMode {
		fmt.Printf("Open http://localhost:%d in your browser\n\n", cfg.Server.Port)
	}
}
