// Package monitoring assembles engine, cache, and dataset gauges into a
// point-in-time snapshot, evaluates the snapshot against alert
// thresholds, and delivers breaches to a webhook.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/chainreactions/screener/internal/dataset"
	"github.com/chainreactions/screener/internal/match"
)

// syncListLimit bounds how much import history one collection reads.
const syncListLimit = 200

// MetricsSnapshot holds a point-in-time view of system health.
type MetricsSnapshot struct {
	// Matching activity since process start.
	SingleMatches   int64   `json:"single_matches"`
	BatchCalls      int64   `json:"batch_calls"`
	AffiliatedCalls int64   `json:"affiliated_calls"`
	MatchErrors     int64   `json:"match_errors"`
	ErrorRate       float64 `json:"error_rate"`

	// Result cache.
	CacheSize      int     `json:"cache_size"`
	CacheCapacity  int     `json:"cache_capacity"`
	CacheHitRate   float64 `json:"cache_hit_rate"`
	CacheEvictions int64   `json:"cache_evictions"`

	// Loaded dataset snapshot.
	DatasetLoaded   bool      `json:"dataset_loaded"`
	DatasetVersion  int64     `json:"dataset_version,omitempty"`
	DatasetEntities int       `json:"dataset_entities,omitempty"`
	DatasetLoadedAt time.Time `json:"dataset_loaded_at,omitempty"`

	// Import history (within lookback window).
	ImportsTotal   int        `json:"imports_total"`
	ImportsOK      int        `json:"imports_complete"`
	ImportsFailed  int        `json:"imports_failed"`
	ImportsRunning int        `json:"imports_running"`
	LastImportAt   *time.Time `json:"last_import_at,omitempty"`

	// Metadata.
	UptimeSeconds int64     `json:"uptime_seconds"`
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// StatsSource yields engine counters; satisfied by *match.Engine.
type StatsSource interface {
	Stats() match.EngineStats
}

// SyncLister yields recent import history; satisfied by dataset.Store.
// Nil is allowed for read-only deployments without a sync log.
type SyncLister interface {
	ListSyncs(ctx context.Context, limit int) ([]dataset.SyncRecord, error)
}

// Collector gathers metrics from the engine and the import log.
type Collector struct {
	engine StatsSource
	syncs  SyncLister
}

// NewCollector creates a new metrics collector.
func NewCollector(engine StatsSource, syncs SyncLister) *Collector {
	return &Collector{engine: engine, syncs: syncs}
}

// Collect gathers a snapshot of system metrics. Import history is
// restricted to the given lookback window; engine counters cover the
// whole process lifetime.
func (c *Collector) Collect(ctx context.Context, lookback time.Duration) (*MetricsSnapshot, error) {
	now := time.Now().UTC()
	snap := &MetricsSnapshot{
		LookbackHours: int(lookback.Hours()),
		CollectedAt:   now,
	}

	stats := c.engine.Stats()
	snap.SingleMatches = stats.SingleMatches
	snap.BatchCalls = stats.BatchCalls
	snap.AffiliatedCalls = stats.AffiliatedCalls
	snap.MatchErrors = stats.Errors
	snap.UptimeSeconds = stats.UptimeSeconds

	calls := stats.SingleMatches + stats.BatchCalls + stats.AffiliatedCalls + stats.Errors
	if calls > 0 {
		snap.ErrorRate = float64(stats.Errors) / float64(calls)
	}

	snap.CacheSize = stats.Cache.Size
	snap.CacheCapacity = stats.Cache.Capacity
	snap.CacheHitRate = stats.Cache.HitRate
	snap.CacheEvictions = stats.Cache.Evictions

	if stats.Dataset != nil {
		snap.DatasetLoaded = true
		snap.DatasetVersion = stats.Dataset.Version
		snap.DatasetEntities = stats.Dataset.Entities
		snap.DatasetLoadedAt = stats.Dataset.LoadedAt
	}

	if c.syncs != nil {
		records, err := c.syncs.ListSyncs(ctx, syncListLimit)
		if err != nil {
			return nil, eris.Wrap(err, "monitoring: list syncs")
		}
		cutoff := now.Add(-lookback)
		for _, rec := range records {
			if rec.Status == dataset.SyncComplete && rec.FinishedAt != nil {
				if snap.LastImportAt == nil || rec.FinishedAt.After(*snap.LastImportAt) {
					t := *rec.FinishedAt
					snap.LastImportAt = &t
				}
			}
			if rec.StartedAt.Before(cutoff) {
				continue
			}
			snap.ImportsTotal++
			switch rec.Status {
			case dataset.SyncComplete:
				snap.ImportsOK++
			case dataset.SyncFailed:
				snap.ImportsFailed++
			case dataset.SyncRunning:
				snap.ImportsRunning++
			}
		}
	}

	return snap, nil
}
