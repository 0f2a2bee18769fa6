// Package bootstrap wires configuration, logging and the shared dependency
// graph for every entrypoint.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	shared "github.com/pulseline/pulseline-server/pkg"
	"github.com/pulseline/pulseline-server/pkg/features"
	"github.com/pulseline/pulseline-server/pkg/infrastructure/cache"
	"github.com/pulseline/pulseline-server/pkg/infrastructure/sqlite"
	"github.com/pulseline/pulseline-server/pkg/queue"
)

// Config holds standard configuration for all entrypoints
type Config struct {
	DBPath         string
	MaxAttempts    int
	WorkerBatch    int
	WorkerPoll     time.Duration
	WorkerLease    time.Duration
	BackoffBase    time.Duration
	BackoffCap     time.Duration
	MaxHeartRate   float64
	SegmentWindowS float64
}

// LoadConfig reads configuration from environment variables
func LoadConfig() *Config {
	cfg := &Config{
		DBPath:      shared.DefaultDBPath,
		MaxAttempts: 3,
		WorkerBatch: 10,
		WorkerPoll:  5 * time.Second,
		WorkerLease: 15 * time.Minute,
		BackoffBase: 30 * time.Second,
		BackoffCap:  time.Hour,
	}
	if v := os.Getenv("PULSELINE_DB"); v != "" {
		cfg.DBPath = v
	}
	if v, err := strconv.Atoi(os.Getenv("PULSELINE_MAX_ATTEMPTS")); err == nil && v > 0 {
		cfg.MaxAttempts = v
	}
	if v, err := strconv.Atoi(os.Getenv("PULSELINE_WORKER_BATCH")); err == nil && v > 0 {
		cfg.WorkerBatch = v
	}
	if v, err := time.ParseDuration(os.Getenv("PULSELINE_WORKER_POLL")); err == nil && v > 0 {
		cfg.WorkerPoll = v
	}
	if v, err := time.ParseDuration(os.Getenv("PULSELINE_WORKER_LEASE")); err == nil && v > 0 {
		cfg.WorkerLease = v
	}
	if v, err := strconv.ParseFloat(os.Getenv("PULSELINE_MAX_HR"), 64); err == nil && v > 0 {
		cfg.MaxHeartRate = v
	}
	if v, err := strconv.ParseFloat(os.Getenv("PULSELINE_SEGMENT_WINDOW_S"), 64); err == nil && v > 0 {
		cfg.SegmentWindowS = v
	}
	return cfg
}

// ComponentHandler wraps a slog.Handler to prepend [component] to the message
type ComponentHandler struct {
	slog.Handler
}

// Handle implements slog.Handler
func (h *ComponentHandler) Handle(ctx context.Context, r slog.Record) error {
	var component string

	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "component" {
			component = a.Value.String()
			return false
		}
		return true
	})

	if component != "" {
		newMsg := fmt.Sprintf("[%s] %s", component, r.Message)
		newRecord := slog.NewRecord(r.Time, r.Level, newMsg, r.PC)
		r.Attrs(func(a slog.Attr) bool {
			if a.Key != "component" {
				newRecord.AddAttrs(a)
			}
			return true
		})
		r = newRecord
	}

	return h.Handler.Handle(ctx, r)
}

func logLevel() slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// InitLogger configures the process-wide structured logger
func InitLogger() {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel()})
	slog.SetDefault(slog.New(&ComponentHandler{Handler: handler}))
}

// NewLogger creates a configured logger instance for one service
func NewLogger(serviceName string) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel()})
	return slog.New(&ComponentHandler{Handler: handler}).With("service", serviceName)
}

// Service holds the initialized dependency graph
type Service struct {
	Store  *sqlite.Store
	Cache  *cache.RecentCache
	Engine *features.Engine
	Config *Config
	Logger *slog.Logger
}

// NewService opens the store and wires the enrichment engine. Callers own
// Close.
func NewService(ctx context.Context, serviceName string) (*Service, error) {
	InitLogger()
	cfg := LoadConfig()
	logger := NewLogger(serviceName)

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		logger.Error("Store init failed", "db", cfg.DBPath, "error", err)
		return nil, fmt.Errorf("store init: %w", err)
	}

	params := features.Params{MaxHeartRate: cfg.MaxHeartRate}
	segmenter := &features.FixedWindowSegmenter{WindowS: cfg.SegmentWindowS}
	engine := features.NewEngine(store, segmenter, nil, params, logger.With("component", "engine"))

	logger.Info("Service initialized", "db", cfg.DBPath)
	return &Service{
		Store:  store,
		Cache:  cache.NewRecentCache(0, 0),
		Engine: engine,
		Config: cfg,
		Logger: logger,
	}, nil
}

// NewWorker builds the queue worker over the service's store and engine.
func (s *Service) NewWorker() *queue.Worker {
	return queue.NewWorker(s.Store, s.Engine, queue.WorkerConfig{
		BatchSize:    s.Config.WorkerBatch,
		PollEvery:    s.Config.WorkerPoll,
		LeaseTimeout: s.Config.WorkerLease,
		Backoff: queue.BackoffPolicy{
			Base: s.Config.BackoffBase,
			Cap:  s.Config.BackoffCap,
		},
	}, s.Logger.With("component", "worker"))
}

// Close releases held resources.
func (s *Service) Close() error {
	return s.Store.Close()
}
