package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/chainreactions/screener/internal/cache"
	"github.com/chainreactions/screener/internal/dataset"
	"github.com/chainreactions/screener/internal/lexicon"
	"github.com/chainreactions/screener/internal/match"
	"github.com/chainreactions/screener/internal/scorer"
)

// engineEnv holds the initialized store and engine shared by the match,
// cache, stats, and serve commands.
type engineEnv struct {
	Store  dataset.Store
	Engine *match.Engine
}

// Close releases the store connection.
func (e *engineEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens the configured reference store and runs migrations.
func initStore(ctx context.Context) (dataset.Store, error) {
	var (
		st  dataset.Store
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite":
		st, err = dataset.NewSQLite(cfg.Store.DSN)
	case "postgres":
		st, err = dataset.NewPostgres(ctx, cfg.Store.DSN, &dataset.PoolConfig{MaxConns: int32(cfg.Store.MaxConns)})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initLexicon loads the term tables, applying the optional overrides file.
func initLexicon() (*lexicon.Table, error) {
	if cfg.Terms.File == "" {
		return lexicon.Default(), nil
	}
	return lexicon.Load(cfg.Terms.File)
}

// engineConfig maps file/env configuration onto engine knobs.
func engineConfig() match.Config {
	params := scorer.DefaultParams()
	if cfg.Match.FuzzyThreshold > 0 {
		params.FuzzyThreshold = cfg.Match.FuzzyThreshold
	}
	return match.Config{
		MinConfidence:   cfg.Match.MinConfidence,
		MaxResults:      cfg.Match.MaxResults,
		CandidateLimit:  cfg.Match.CandidateLimit,
		Concurrency:     cfg.Match.Concurrency,
		Timeout:         cfg.Match.Timeout,
		AffiliatedBoost: cfg.Match.AffiliatedBoost,
		WarmupRate:      cfg.Cache.WarmupRate,
		Scoring:         params,
	}
}

// initEngine builds the engine against the configured store. The dataset
// is not loaded yet; callers reload explicitly or use initEngineLoaded.
func initEngine(ctx context.Context) (*engineEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	lex, err := initLexicon()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	var rc *cache.Cache
	if cfg.Cache.Enabled {
		rc = cache.New(cfg.Cache.MaxEntries, cfg.Cache.TTL)
	} else {
		rc = cache.Disabled()
	}

	eng := match.NewEngine(st, rc, lex, engineConfig())
	return &engineEnv{Store: st, Engine: eng}, nil
}

// initEngineLoaded builds the engine and loads the dataset, failing when
// the store is empty or unreachable.
func initEngineLoaded(ctx context.Context) (*engineEnv, error) {
	env, err := initEngine(ctx)
	if err != nil {
		return nil, err
	}
	info, err := env.Engine.ReloadDataset(ctx)
	if err != nil {
		env.Close()
		return nil, err
	}
	zap.L().Debug("dataset loaded",
		zap.Int64("version", info.Version),
		zap.Int("entities", info.Entities),
	)
	return env, nil
}
