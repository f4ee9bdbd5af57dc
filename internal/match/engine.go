// Package match orchestrates the full screening pipeline: normalize a
// query, retrieve candidates from the index snapshot, score and rank
// them, and serve repeats from the versioned result cache.
package match

import (
	"context"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/chainreactions/screener/internal/cache"
	"github.com/chainreactions/screener/internal/dataset"
	"github.com/chainreactions/screener/internal/index"
	"github.com/chainreactions/screener/internal/lexicon"
	"github.com/chainreactions/screener/internal/model"
	"github.com/chainreactions/screener/internal/normalize"
	"github.com/chainreactions/screener/internal/scorer"
)

const (
	maxQueryRunes = 512
	maxBatchSize  = 100
	maxResultsCap = 50
)

// Config carries the engine's matching knobs. Zero values are filled by
// DefaultConfig.
type Config struct {
	MinConfidence   float64       `yaml:"min_confidence" mapstructure:"min_confidence"`
	MaxResults      int           `yaml:"max_results" mapstructure:"max_results"`
	CandidateLimit  int           `yaml:"candidate_limit" mapstructure:"candidate_limit"`
	Concurrency     int           `yaml:"concurrency" mapstructure:"concurrency"`
	Timeout         time.Duration `yaml:"timeout" mapstructure:"timeout"`
	AffiliatedBoost float64       `yaml:"affiliated_boost" mapstructure:"affiliated_boost"`
	WarmupRate      float64       `yaml:"warmup_rate" mapstructure:"warmup_rate"`

	Scoring scorer.Params `yaml:"scoring" mapstructure:"scoring"`
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		MinConfidence:  0.25,
		MaxResults:     10,
		CandidateLimit: 200,
		Concurrency:    8,
		Timeout:        10 * time.Second,
		WarmupRate:     50,
		Scoring:        scorer.DefaultParams(),
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MinConfidence <= 0 {
		c.MinConfidence = d.MinConfidence
	}
	if c.MaxResults <= 0 {
		c.MaxResults = d.MaxResults
	}
	if c.CandidateLimit <= 0 {
		c.CandidateLimit = d.CandidateLimit
	}
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.WarmupRate <= 0 {
		c.WarmupRate = d.WarmupRate
	}
	if c.Scoring.FuzzyThreshold <= 0 {
		c.Scoring = d.Scoring
	}
	return c
}

// snapshot is one immutable view of the dataset. Concurrent matches keep
// using the snapshot they loaded even while a reload swaps the pointer.
type snapshot struct {
	index    *index.Index
	version  int64
	loadedAt time.Time
}

// Engine runs matches against the current dataset snapshot.
type Engine struct {
	cfg    Config
	lex    *lexicon.Table
	norm   *normalize.Normalizer
	scorer *scorer.Scorer
	cache  *cache.Cache
	reader dataset.Reader

	snap   atomic.Pointer[snapshot]
	warmup *rate.Limiter

	started    time.Time
	singles    atomic.Int64
	batchCalls atomic.Int64
	affiliated atomic.Int64
	errCount   atomic.Int64
}

// NewEngine wires an engine. The dataset is not loaded yet; call
// ReloadDataset before matching.
func NewEngine(reader dataset.Reader, c *cache.Cache, lex *lexicon.Table, cfg Config) *Engine {
	cfg = cfg.withDefaults()
	if lex == nil {
		lex = lexicon.Default()
	}
	if c == nil {
		c = cache.Disabled()
	}
	burst := int(cfg.WarmupRate)
	if burst < 1 {
		burst = 1
	}
	return &Engine{
		cfg:     cfg,
		lex:     lex,
		norm:    normalize.New(lex),
		scorer:  scorer.New(lex, cfg.Scoring),
		cache:   c,
		reader:  reader,
		warmup:  rate.NewLimiter(rate.Limit(cfg.WarmupRate), burst),
		started: time.Now().UTC(),
	}
}

// ReloadDataset loads the dataset through the Reader, builds a fresh
// index, and swaps it in. In-flight matches keep the old snapshot.
func (e *Engine) ReloadDataset(ctx context.Context) (*model.DatasetInfo, error) {
	loaded, err := dataset.Load(ctx, e.reader)
	if err != nil {
		return nil, &DatasetUnavailableError{Err: err}
	}
	if len(loaded.Entities) == 0 {
		return nil, &DatasetUnavailableError{Err: errEmptyDataset}
	}

	idx := index.Build(loaded.Entities, e.norm, loaded.Version)
	now := time.Now().UTC()
	e.snap.Store(&snapshot{index: idx, version: loaded.Version, loadedAt: now})

	info := &model.DatasetInfo{
		Version:  loaded.Version,
		Entities: idx.Size(),
		LoadedAt: now,
	}
	zap.L().Info("match: dataset loaded",
		zap.Int64("version", info.Version),
		zap.Int("entities", info.Entities),
	)
	return info, nil
}

// Dataset returns info about the loaded snapshot, or nil before the
// first load.
func (e *Engine) Dataset() *model.DatasetInfo {
	snap := e.snap.Load()
	if snap == nil {
		return nil
	}
	return &model.DatasetInfo{
		Version:  snap.version,
		Entities: snap.index.Size(),
		LoadedAt: snap.loadedAt,
	}
}

// MatchSingle screens one free-text organization name. The optional
// location hint feeds the geographic agreement check.
func (e *Engine) MatchSingle(ctx context.Context, query, location string, opts model.Options) (*model.MatchResult, error) {
	res, err := e.match(ctx, query, location, opts)
	if err != nil {
		e.errCount.Add(1)
		return nil, err
	}
	e.singles.Add(1)
	return res, nil
}

// match is the shared single-query pipeline behind every public entry
// point.
func (e *Engine) match(ctx context.Context, query, location string, opts model.Options) (*model.MatchResult, error) {
	start := time.Now()

	if err := validateOptions(opts); err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(query) > maxQueryRunes {
		return nil, NewInputError("query exceeds %d runes", maxQueryRunes)
	}
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}

	q := e.norm.Query(query, location)
	snap := e.snap.Load()

	// An empty or all-punctuation query matches nothing, by the
	// normalizer contract. Not an input error.
	if q.Empty() {
		return e.finish(&model.MatchResult{
			Query:           query,
			NormalizedQuery: q.Norm,
			DatasetVersion:  snapVersion(snap),
		}, start), nil
	}

	if snap == nil {
		return nil, &DatasetUnavailableError{}
	}

	minConf, maxResults := e.effective(opts)
	key := cache.Key(cacheQuery(q), opts.Canonical(), snap.version)

	if e.cache.Enabled() && !opts.ForceRefresh {
		if hit := e.cache.Get(key, snap.version); hit != nil {
			res := copyResult(hit)
			res.FromCache = true
			res.TookMS = time.Since(start).Milliseconds()
			return res, nil
		}
	}

	entries := snap.index.Candidates(q, e.cfg.CandidateLimit)
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	matches := e.scorer.Match(q, entries, minConf, maxResults)
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}

	res := e.finish(&model.MatchResult{
		Query:           query,
		NormalizedQuery: q.Norm,
		Matches:         matches,
		DatasetVersion:  snap.version,
	}, start)

	if e.cache.Enabled() {
		e.cache.Set(key, snap.version, res)
	}

	zap.L().Debug("match: single",
		zap.String("query", query),
		zap.Int("candidates", len(entries)),
		zap.Int("matches", len(matches)),
		zap.Int64("took_ms", res.TookMS),
	)
	return res, nil
}

func (e *Engine) finish(res *model.MatchResult, start time.Time) *model.MatchResult {
	res.TookMS = time.Since(start).Milliseconds()
	res.Timestamp = time.Now().UTC()
	return res
}

// effective resolves per-request options against configured defaults.
func (e *Engine) effective(opts model.Options) (minConf float64, maxResults int) {
	minConf = e.cfg.MinConfidence
	if opts.MinConfidence > 0 {
		minConf = opts.MinConfidence
	}
	maxResults = e.cfg.MaxResults
	if opts.MaxResults > 0 {
		maxResults = opts.MaxResults
	}
	if maxResults > maxResultsCap {
		maxResults = maxResultsCap
	}
	return minConf, maxResults
}

func validateOptions(opts model.Options) error {
	if opts.MinConfidence != 0 && (opts.MinConfidence < 0.05 || opts.MinConfidence > 0.95) {
		return NewInputError("min_confidence %v outside [0.05, 0.95]", opts.MinConfidence)
	}
	if opts.MaxResults < 0 {
		return NewInputError("max_results must not be negative")
	}
	if opts.AffiliatedBoost < 0 {
		return NewInputError("affiliated_boost must not be negative")
	}
	return nil
}

// cacheQuery is the query-side part of the cache key. Location changes
// scoring, so it participates.
func cacheQuery(q *normalize.Query) string {
	if q.Location == "" {
		return q.Norm
	}
	return q.Norm + "|" + q.Location
}

func snapVersion(s *snapshot) int64 {
	if s == nil {
		return 0
	}
	return s.version
}

func ctxErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return &TimeoutError{Err: err}
	}
	return nil
}

// copyResult clones a result so cached entries are never mutated by
// callers.
func copyResult(r *model.MatchResult) *model.MatchResult {
	out := *r
	if r.Matches != nil {
		out.Matches = append([]model.ScoredMatch(nil), r.Matches...)
	}
	return &out
}
