// Package app wires configuration into a ready Auditor and its optional run
// store, classifier and cache. Binaries share it so they behave alike.
package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/theduckverse/refundhunter-backend/internal/cache"
	"github.com/theduckverse/refundhunter-backend/internal/common"
	"github.com/theduckverse/refundhunter-backend/internal/export"
	"github.com/theduckverse/refundhunter-backend/internal/llm"
	"github.com/theduckverse/refundhunter-backend/internal/llm/openai"
	"github.com/theduckverse/refundhunter-backend/internal/pipeline"
	repo "github.com/theduckverse/refundhunter-backend/internal/repository"
	"github.com/theduckverse/refundhunter-backend/internal/rules"
)

// Options select the optional collaborators.
type Options struct {
	// Persist opens the run store; without it runs are not recorded or deduped.
	Persist bool
	// MaxRows overrides the audit row cap, e.g. the tighter RPC ingress cap.
	MaxRows int
}

type App struct {
	Config   *common.Config
	Auditor  *pipeline.Auditor
	Runs     repo.AuditRunRepository
	Exporter *export.Service
	Rules    *rules.Rules

	db     *repo.DB
	redis  *cache.RedisStore
	logger *slog.Logger
}

// Build validates cfg and constructs the application graph.
func Build(ctx context.Context, cfg *common.Config, opts Options, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &App{Config: cfg, logger: logger}

	r := rules.Default()
	if cfg.Audit.RulesFile != "" {
		loaded, err := rules.Load(cfg.Audit.RulesFile)
		if err != nil {
			return nil, common.NewAppError(common.CodeConfig, "load rules "+cfg.Audit.RulesFile, err)
		}
		r = loaded
	}
	a.Rules = r
	logger.Info("rules loaded", "version", r.Version, "fields", len(r.Aliases), "keywords", len(r.Keywords))

	policy, err := pipeline.PolicyFromConfig(cfg.Audit)
	if err != nil {
		return nil, err
	}
	if opts.MaxRows > 0 {
		policy.MaxRows = opts.MaxRows
	}
	popts := []pipeline.Option{pipeline.WithRules(r)}

	if opts.Persist {
		db, err := repo.Open(ctx, repo.Config{
			DSN:              cfg.Database.DSN,
			InMemory:         cfg.Database.InMemory,
			MaxConns:         cfg.Database.MaxConns,
			MinConns:         cfg.Database.MinConns,
			MaxConnLifetime:  cfg.Database.MaxConnLifetime,
			MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
			DialTimeout:      cfg.Database.DialTimeout,
			StatementTimeout: cfg.Database.StatementTimeout,
		}, logger)
		if err != nil {
			return nil, common.NewAppError(common.CodeStorage, "open database", errors.Join(common.ErrDatabase, err))
		}
		a.db = db
		if err := repo.HealthCheck(ctx, db, 5*time.Second, logger); err != nil {
			a.Close()
			return nil, common.NewAppError(common.CodeStorage, "ping database", errors.Join(common.ErrDatabase, err))
		}
		a.Runs = repo.NewAuditRunRepository(db, logger)
		if err := a.Runs.Migrate(ctx); err != nil {
			a.Close()
			return nil, err
		}
		a.Exporter = export.NewService(a.Runs, logger)
		popts = append(popts, pipeline.WithStore(a.Runs))
	} else {
		a.Exporter = export.NewService(nil, logger)
	}

	if cfg.Audit.UseClassifier {
		classifier, err := a.classifier(ctx)
		if err != nil {
			a.Close()
			return nil, err
		}
		popts = append(popts, pipeline.WithClassifier(classifier))
	}

	auditor, err := pipeline.NewAuditor(policy, logger, popts...)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Auditor = auditor
	return a, nil
}

func (a *App) classifier(ctx context.Context) (llm.ClaimClassifier, error) {
	cfg := a.Config
	client := openai.NewClient(openai.Config{
		APIKey:            cfg.LLM.APIKey,
		BaseURL:           cfg.LLM.BaseURL,
		Model:             cfg.LLM.Model,
		Temperature:       cfg.LLM.Temperature,
		Timeout:           cfg.LLM.Timeout,
		RequestsPerSecond: cfg.LLM.RequestsPerSecond,
		MaxRetries:        2,
	}, a.logger)

	var store cache.Store = cache.NewInMemoryStore()
	if cfg.Cache.RedisURL != "" {
		rs, err := cache.NewRedisStore(cfg.Cache.RedisURL, "refundhunter:")
		if err != nil {
			return nil, common.NewAppError(common.CodeConfig, "parse REDIS_URL", err)
		}
		if err := rs.Ping(ctx); err != nil {
			a.logger.Warn("redis unreachable, classifier cache disabled", "err", err)
			_ = rs.Close()
			return client, nil
		}
		a.redis = rs
		store = rs
	}
	ns := llm.PromptVersion + ":" + cfg.LLM.Model
	return llm.NewCachedClassifier(client, store, cfg.Cache.TTL, ns, a.logger), nil
}

// HealthCheck pings the run store when one is open.
func (a *App) HealthCheck(ctx context.Context) error {
	if a.db == nil {
		return nil
	}
	return repo.HealthCheck(ctx, a.db, 3*time.Second, a.logger)
}

// Close releases the database and cache connections.
func (a *App) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("failed to close redis", "error", err)
		}
		a.redis = nil
	}
	if a.db != nil {
		repo.Close(a.db, a.logger)
		a.db = nil
	}
}
