package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/yangwenmai/reviewer/internal/config"
	"github.com/yangwenmai/reviewer/internal/convert"
	"github.com/yangwenmai/reviewer/internal/counter"
	"github.com/yangwenmai/reviewer/internal/engine"
	"github.com/yangwenmai/reviewer/internal/logger"
	"github.com/yangwenmai/reviewer/internal/persist"
	"github.com/yangwenmai/reviewer/internal/service"
	"github.com/yangwenmai/reviewer/internal/store"
)

// app is the wired dependency graph shared by the commands.
type app struct {
	cfg     config.Config
	log     *logger.Logger
	db      *sql.DB
	rdb     *redis.Client
	service *service.Service
}

func loadConfig(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return config.Config{}, fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return cfg, nil
}

func newApp(ctx context.Context, cfg config.Config, log *logger.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}

	db, err := store.OpenSQLite(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	a.db = db

	s, err := store.New(db)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init store: %w", err)
	}

	var backend counter.Backend = s
	if cfg.CounterBackend == config.CounterBackendRedis {
		a.rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := a.rdb.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
		}
		backend = store.NewRedisCounters(a.rdb)
		log.Info("using redis counters", "addr", cfg.RedisAddr)
	}

	mc, err := newModelClient(ctx, cfg, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	reg, err := engine.NewRegistry(engine.RegistryOptions{
		VerifyAcronyms: cfg.AcronymVerifyStage,
		MaxTextLength:  cfg.MaxTextLength,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("load prompts: %w", err)
	}

	norm := engine.NewMarkdownNormalizer()
	html := convert.NewHTMLConverter(cfg.HTTPTimeout)
	a.service = service.New(service.Deps{
		Allocator: counter.New(backend),
		Pipeline: engine.NewPipeline(reg, mc, norm,
			engine.WithStageTimeout(cfg.StageTimeout),
			engine.WithLogger(log),
		),
		Records: persist.New(s),
		Converter: convert.NewRouter(convert.Options{
			PythonBin:  cfg.PythonBin,
			PandocBin:  cfg.PandocBin,
			ScriptsDir: cfg.ScriptsDir,
			HTML:       html,
			Logger:     log,
		}),
		Fetcher:      html,
		Normalizer:   norm,
		Logger:       log,
		MarkdownOnly: cfg.ReturnMarkdownOnly,
	})
	return a, nil
}

func newModelClient(ctx context.Context, cfg config.Config, log *logger.Logger) (engine.ModelClient, error) {
	if cfg.UseStubs() {
		log.Warn("no API key for provider, using stub model client", "provider", cfg.LLMProvider)
		return &engine.StubModelClient{}, nil
	}
	switch cfg.LLMProvider {
	case config.ProviderGemini:
		c, err := engine.NewGeminiClient(ctx, cfg.GeminiKey, engine.WithGeminiModel(cfg.GeminiModel))
		if err != nil {
			return nil, fmt.Errorf("gemini client: %w", err)
		}
		log.Info("using gemini model client", "model", cfg.GeminiModel)
		return c, nil
	default:
		opts := []engine.OpenAIOption{engine.WithModel(cfg.OpenAIModel)}
		if cfg.OpenAIBaseURL != "" {
			opts = append(opts, engine.WithBaseURL(cfg.OpenAIBaseURL))
		}
		c := engine.NewOpenAIClient(cfg.OpenAIKey, opts...)
		log.Info("using openai model client", "model", c.Model())
		return c, nil
	}
}

// Close releases the database and redis connections.
func (a *app) Close() {
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.log.Warn("close redis", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("close db", "error", err)
		}
	}
}
