// Package bootstrap builds the object graph shared by the binaries in cmd/.
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/joseph-ayodele/order-analyzer/internal/async"
	"github.com/joseph-ayodele/order-analyzer/internal/cache"
	"github.com/joseph-ayodele/order-analyzer/internal/common"
	"github.com/joseph-ayodele/order-analyzer/internal/events"
	"github.com/joseph-ayodele/order-analyzer/internal/extract"
	"github.com/joseph-ayodele/order-analyzer/internal/llm"
	"github.com/joseph-ayodele/order-analyzer/internal/llm/anthropic"
	"github.com/joseph-ayodele/order-analyzer/internal/llm/openai"
	"github.com/joseph-ayodele/order-analyzer/internal/llm/vertex"
	"github.com/joseph-ayodele/order-analyzer/internal/pipeline"
	"github.com/joseph-ayodele/order-analyzer/internal/repository"
)

// NewLogger builds the slog handler selected by LOG_LEVEL and LOG_FORMAT.
func NewLogger(cfg common.LogConfig, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// NewProvider returns the completion provider named by cfg.Provider.
func NewProvider(ctx context.Context, cfg common.LLMConfig, logger *slog.Logger) (llm.Provider, error) {
	switch cfg.Provider {
	case common.ProviderAnthropic:
		return anthropic.NewClient(anthropic.Config{
			APIKey:  cfg.AnthropicAPIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		}, logger), nil
	case common.ProviderOpenAI:
		return openai.NewClient(openai.Config{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		}, logger), nil
	case common.ProviderVertex:
		c, err := vertex.NewClient(ctx, vertex.Config{
			ProjectID:       cfg.VertexProject,
			Region:          cfg.VertexRegion,
			Model:           cfg.Model,
			CredentialsFile: cfg.VertexCredsFile,
		}, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, common.NewAppError(common.CodeConfig, "unknown LLM provider "+cfg.Provider, common.ErrInvalidInput)
	}
}

// App is the assembled pipeline plus everything that must be closed with it.
type App struct {
	Pipeline *pipeline.Pipeline
	Client   *llm.Client
	Runs     repository.AnalysisRunRepository // nil when the run log is disabled

	closers []func(context.Context) error
	logger  *slog.Logger
}

// Build wires provider, cache, run log and event queue from cfg. Optional
// components are skipped when their configuration is empty.
func Build(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*App, error) {
	app := &App{logger: logger}

	prov, err := NewProvider(ctx, cfg.LLM, logger)
	if err != nil {
		return nil, err
	}
	if c, ok := prov.(io.Closer); ok {
		app.onClose(func(context.Context) error { return c.Close() })
	}
	app.Client = llm.NewClient(prov, llm.Config{
		Model:          cfg.LLM.Model,
		MaxTokens:      cfg.LLM.MaxTokens,
		Temperature:    cfg.LLM.Temperature,
		Timeout:        cfg.LLM.Timeout,
		MaxRetries:     cfg.LLM.MaxRetries,
		InitialBackoff: cfg.LLM.InitialBackoff,
		MaxBackoff:     cfg.LLM.MaxBackoff,
	}, logger)

	var completer llm.Completer = app.Client
	if cfg.Cache.RedisAddr != "" {
		store, err := cache.NewRedisCompletionStore(cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB, cfg.Cache.TTL, "order-analyzer:completion")
		if err != nil {
			app.Close(ctx)
			return nil, fmt.Errorf("completion cache: %w", err)
		}
		app.onClose(func(context.Context) error { return store.Close() })
		completer = cache.NewCachedCompleter(app.Client, store, app.Client.Provider()+"/"+app.Client.Model(), logger)
		logger.Info("bootstrap.cache.enabled", "addr", cfg.Cache.RedisAddr, "ttl", cfg.Cache.TTL)
	}

	opts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithModelInfo(app.Client.Provider(), app.Client.Model()),
	}

	if cfg.RunLog.DBPath != "" {
		db, err := repository.Open(ctx, repository.Config{Path: cfg.RunLog.DBPath}, logger)
		if err != nil {
			app.Close(ctx)
			return nil, fmt.Errorf("run log: %w", err)
		}
		app.onClose(func(context.Context) error { return closeDB(db) })
		app.Runs = repository.NewAnalysisRunRepository(db, logger)
		opts = append(opts, pipeline.WithRunLog(app.Runs))
	}

	if len(cfg.Events.Brokers) > 0 {
		pub, err := events.NewKafkaPublisher(cfg.Events.Brokers, cfg.Events.Topic, logger)
		if err != nil {
			app.Close(ctx)
			return nil, fmt.Errorf("events: %w", err)
		}
		q := async.NewPublishQueue(pub, logger)
		// drain the queue before closing the writer
		app.onClose(func(context.Context) error { return pub.Close() })
		app.onClose(func(ctx context.Context) error { q.Shutdown(ctx); return nil })
		opts = append(opts, pipeline.WithEvents(q))
		logger.Info("bootstrap.events.enabled", "brokers", cfg.Events.Brokers, "topic", cfg.Events.Topic)
	}

	ex := extract.NewExtractor(extract.Config{
		Backend:   cfg.Extract.Backend,
		Pdftotext: cfg.Extract.Pdftotext,
	}, logger)
	app.Pipeline = pipeline.New(ex, completer, opts...)

	logger.Info("bootstrap.ready",
		"provider", app.Client.Provider(),
		"model", app.Client.Model(),
		"extractor", cfg.Extract.Backend,
		"run_log", cfg.RunLog.DBPath != "",
	)
	return app, nil
}

// Health reports the latched completion failure, if any.
func (a *App) Health() error {
	if t := a.Client.Terminal(); t != nil {
		return t
	}
	return nil
}

func (a *App) onClose(f func(context.Context) error) {
	a.closers = append(a.closers, f)
}

// Close releases components in reverse construction order.
func (a *App) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.logger.Warn("bootstrap.close_failed", "error", err)
		}
	}
	a.closers = nil
}

func closeDB(db *sql.DB) error {
	if err := db.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		return err
	}
	return nil
}

// ShutdownContext bounds graceful shutdown.
func ShutdownContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 15*time.Second)
}
