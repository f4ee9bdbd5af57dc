package match

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/chainreactions/screener/internal/cache"
	"github.com/chainreactions/screener/internal/index"
	"github.com/chainreactions/screener/internal/model"
)

// EngineStats is the operational snapshot served by the stats command
// and endpoint.
type EngineStats struct {
	Dataset         *model.DatasetInfo `json:"dataset,omitempty"`
	Index           *index.Stats       `json:"index,omitempty"`
	Cache           cache.Stats        `json:"cache"`
	SingleMatches   int64              `json:"single_matches"`
	BatchCalls      int64              `json:"batch_calls"`
	AffiliatedCalls int64              `json:"affiliated_calls"`
	Errors          int64              `json:"errors"`
	UptimeSeconds   int64              `json:"uptime_seconds"`
}

// Stats returns current counters plus dataset and cache state.
func (e *Engine) Stats() EngineStats {
	s := EngineStats{
		Cache:           e.cache.Stats(),
		SingleMatches:   e.singles.Load(),
		BatchCalls:      e.batchCalls.Load(),
		AffiliatedCalls: e.affiliated.Load(),
		Errors:          e.errCount.Load(),
		UptimeSeconds:   int64(time.Since(e.started).Seconds()),
	}
	if snap := e.snap.Load(); snap != nil {
		s.Dataset = &model.DatasetInfo{
			Version:  snap.version,
			Entities: snap.index.Size(),
			LoadedAt: snap.loadedAt,
		}
		ix := snap.index.Stats()
		s.Index = &ix
	}
	return s
}

// ClearCache drops every cached result.
func (e *Engine) ClearCache() {
	e.cache.Clear()
	zap.L().Info("match: cache cleared")
}

// Warmup primes the cache by running queries through the normal match
// path, paced by the warmup limiter so a large list cannot starve live
// traffic. Returns how many queries were warmed; stops early only when
// ctx expires. Queries that fail individually are skipped.
func (e *Engine) Warmup(ctx context.Context, queries []string) (int, error) {
	if e.snap.Load() == nil {
		return 0, &DatasetUnavailableError{}
	}

	warmed := 0
	for _, q := range queries {
		if err := e.warmup.Wait(ctx); err != nil {
			return warmed, &TimeoutError{Err: err}
		}
		if _, err := e.match(ctx, q, "", model.Options{}); err != nil {
			if IsTimeout(err) {
				return warmed, err
			}
			continue
		}
		warmed++
	}
	zap.L().Info("match: cache warmed",
		zap.Int("queries", len(queries)),
		zap.Int("warmed", warmed),
	)
	return warmed, nil
}

// SweepCache evicts expired entries plus entries stranded by dataset
// version bumps. Returns how many entries were removed.
func (e *Engine) SweepCache() int {
	removed := e.cache.Sweep()
	if snap := e.snap.Load(); snap != nil {
		removed += e.cache.Purge(snap.version)
	}
	if removed > 0 {
		zap.L().Debug("match: cache swept", zap.Int("removed", removed))
	}
	return removed
}
