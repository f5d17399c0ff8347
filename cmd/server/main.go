package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/RichardoC/lms-chat/internal/analytics"
	"github.com/RichardoC/lms-chat/internal/api"
	"github.com/RichardoC/lms-chat/internal/auth"
	"github.com/RichardoC/lms-chat/internal/canvas"
	"github.com/RichardoC/lms-chat/internal/chat"
	"github.com/RichardoC/lms-chat/internal/config"
	"github.com/RichardoC/lms-chat/internal/db"
	"github.com/RichardoC/lms-chat/internal/intent"
	"github.com/RichardoC/lms-chat/internal/llm"
	"github.com/RichardoC/lms-chat/internal/tools"
	"github.com/RichardoC/lms-chat/internal/usage"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "lms-chat",
	Short:         "Chat assistant for Canvas LMS",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.AddCommand(serveCmd, probeCmd)
}

func main() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// setup loads the configuration and builds a logger to match it.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	if cfg.Level != "" {
		level, err := zapcore.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		zc.Level = zap.NewAtomicLevelAt(level)
	}
	return zc.Build()
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.New(cfg.Storage.ConversationsDB)
	if err != nil {
		logger.Error("failed to initialize database",
			zap.Error(err),
			zap.String("dbPath", cfg.Storage.ConversationsDB))
		return err
	}
	store, err := usage.Open(cfg.Storage.UsageDB)
	if err != nil {
		database.Close()
		return fmt.Errorf("failed to open usage store: %w", err)
	}
	defer func() {
		if err := multierr.Combine(database.Close(), store.Close()); err != nil {
			logger.Warn("failed to close stores", zap.Error(err))
		}
	}()

	backend, err := llm.New(ctx, cfg.LLM)
	if err != nil {
		return fmt.Errorf("failed to initialize LLM backend: %w", err)
	}

	client := canvas.New(cfg.Canvas, logger)
	if !client.Configured() {
		logger.Warn("Canvas is not configured; tool calls will fail until CANVAS_URL and CANVAS_TOKEN are set")
	}
	catalog := tools.DefaultCatalog()
	dispatcher := tools.NewDispatcher(catalog, client, logger, tools.WithUploadDir(cfg.Server.UploadDir))

	var selector intent.Selector = intent.NewPatternSelector()
	if strings.EqualFold(cfg.Chat.Classifier, "llm") {
		selector = intent.WithFallback(
			intent.NewLLMSelector(backend, cfg.Chat.ClassifierTimeout, cfg.Chat.ConfidenceThreshold, logger),
			selector,
			logger)
	}

	insights := analytics.NewService(client, analytics.NewCache[*analytics.Snapshot](cfg.Analytics.TTL), logger)
	chatSvc := chat.NewService(chat.Deps{
		Orchestrator: chat.NewOrchestrator(selector, dispatcher, cfg.Chat.MaxIterations, logger),
		Formatter:    chat.NewFormatter(backend, catalog, cfg.LLM.Timeout, logger),
		DB:           database,
		Usage:        store,
		Analytics:    insights,
		HistoryLimit: cfg.Chat.HistoryLimit,
		Logger:       logger,
	})

	handler := api.NewHandler(api.Deps{
		Chat:           chatSvc,
		DB:             database,
		Usage:          store,
		Analytics:      insights,
		Canvas:         client,
		Dispatcher:     dispatcher,
		Issuer:         auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		Backend:        backend,
		UploadDir:      cfg.Server.UploadDir,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		AuthRequired:   cfg.Auth.Required,
		Logger:         logger,
	})

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Router(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server",
			zap.String("addr", cfg.Server.Addr),
			zap.String("inference_system", backend.Name()),
			zap.String("model", backend.Model()),
			zap.String("classifier", cfg.Chat.Classifier))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
