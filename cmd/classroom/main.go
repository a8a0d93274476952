package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/spec-kit/classroom-client/internal/config"
	"github.com/spec-kit/classroom-client/internal/events"
	"github.com/spec-kit/classroom-client/internal/observability"
	"github.com/spec-kit/classroom-client/internal/persistence"
	"github.com/spec-kit/classroom-client/internal/repository"
	"github.com/spec-kit/classroom-client/internal/service"
	"github.com/spec-kit/classroom-client/internal/session"
	"github.com/spec-kit/classroom-client/internal/worker"
	apperrors "github.com/spec-kit/classroom-client/pkg/util"
)

const expiredNotice = "session expired, please log in again"

// app holds the wired services a subcommand works with.
type app struct {
	cfg         *config.Config
	logger      *zap.Logger
	out         io.Writer
	client      *session.Client
	auth        *service.AuthService
	profile     *service.ProfileService
	courses     *service.CourseService
	assignments *service.AssignmentService
	feedback    *service.FeedbackService
	stats       *service.StatisticsService
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		usage(stderr)
		return 2
	}
	cmd, ok := lookupCommand(args[0])
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n", args[0])
		usage(stderr)
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		log.Printf("failed to load config: %v", err)
		return 1
	}
	if err := cfg.Validate(); err != nil {
		log.Printf("invalid config: %v", err)
		return 1
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App, "stderr")
	if err != nil {
		log.Printf("failed to init logger: %v", err)
		return 1
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, cleanup, err := newApp(ctx, cfg, logger, stdout, stderr)
	if err != nil {
		logger.Error("failed to start", zap.Error(err))
		fmt.Fprintln(stderr, apperrors.UserMessage(err))
		return 1
	}
	defer cleanup()

	if err := cmd.run(ctx, a, args[1:]); err != nil {
		logger.Debug("command failed", zap.String("command", cmd.name), zap.Error(err))
		// the expiry handler already told the user
		if !errors.Is(err, apperrors.ErrSessionExpired) {
			fmt.Fprintln(stderr, apperrors.UserMessage(err))
		}
		return 1
	}
	return 0
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, stdout, stderr io.Writer) (*app, func(), error) {
	store, closeStore, err := openTokenStore(ctx, cfg, logger)
	if err != nil {
		return nil, func() {}, err
	}

	dispatcher := events.NewInMemoryDispatcher()
	worker.StartSessionAudit(service.NewSessionAudit(dispatcher, logger))
	metrics := observability.NewMetrics()

	client, err := session.New(session.Options{
		BaseURL:    cfg.API.BaseURL,
		HTTPClient: &http.Client{Timeout: cfg.API.Timeout()},
		Store:      store,
		Detector:   session.ExpiryDetector{Code: cfg.API.ExpiryCode, Marker: cfg.API.ExpiryMarker},
		OnExpired:  func() { fmt.Fprintln(stderr, expiredNotice) },
		Logger:     logger,
		Metrics:    metrics,
		Events:     dispatcher,
		UserAgent:  cfg.API.UserAgent + "/" + cfg.App.Version,
	})
	if err != nil {
		closeStore()
		return nil, func() {}, err
	}

	cleanup := func() {
		snap := metrics.Snapshot()
		logger.Debug("client metrics",
			zap.Any("requests", snap.Requests),
			zap.Any("errors", snap.Errors),
			zap.Any("avg_latency", snap.AvgLatency))
		closeStore()
	}

	return &app{
		cfg:         cfg,
		logger:      logger,
		out:         stdout,
		client:      client,
		auth:        service.NewAuthService(client, dispatcher, logger),
		profile:     service.NewProfileService(client),
		courses:     service.NewCourseService(client),
		assignments: service.NewAssignmentService(client),
		feedback:    service.NewFeedbackService(client),
		stats:       service.NewStatisticsService(client),
	}, cleanup, nil
}

func openTokenStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (session.TokenStore, func(), error) {
	switch cfg.Storage.Driver {
	case config.StoreMemory:
		return repository.NewMemoryTokenStore(), func() {}, nil
	case config.StoreRedis:
		rdb := persistence.NewRedis(ctx, cfg.Redis, logger)
		return repository.NewRedisTokenStore(rdb.Client, "", cfg.Storage.TokenKey), rdb.Close, nil
	case config.StoreSQLite:
		db, err := persistence.NewSQLite(ctx, cfg.Storage.SQLitePath, logger)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewSQLiteTokenStore(db.DB, cfg.Storage.TokenKey), db.Close, nil
	default:
		return repository.NewFileTokenStore(cfg.Storage.TokenFile), func() {}, nil
	}
}
