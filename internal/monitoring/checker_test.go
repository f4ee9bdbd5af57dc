package monitoring

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/chainreactions/screener/internal/config"
	"github.com/chainreactions/screener/internal/match"
)

// countingStats counts how often the checker polls the engine.
type countingStats struct {
	calls atomic.Int32
}

func (c *countingStats) Stats() match.EngineStats {
	c.calls.Add(1)
	return match.EngineStats{}
}

func TestChecker_ChecksImmediately(t *testing.T) {
	stats := &countingStats{}
	checker := NewChecker(
		NewCollector(stats, nil),
		NewAlerter(config.MonitoringConfig{}),
		// An hour between ticks: only the boot-time pass can fire.
		config.MonitoringConfig{CheckInterval: time.Hour},
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		checker.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return stats.calls.Load() >= 1 },
		2*time.Second, 10*time.Millisecond)
	cancel()
	<-done
}

func TestChecker_RunStopsOnCancel(t *testing.T) {
	collector := NewCollector(&fakeStats{}, nil)
	alerter := NewAlerter(config.MonitoringConfig{
		ErrorRateThreshold: 0.10,
	})
	checker := NewChecker(collector, alerter, config.MonitoringConfig{
		CheckInterval: 10 * time.Millisecond,
		Lookback:      24 * time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		checker.Run(ctx)
		close(done)
	}()

	// Let it tick a few times then cancel.
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
		// Good — Run returned.
	case <-time.After(5 * time.Second):
		t.Fatal("Checker.Run did not stop after context cancellation")
	}
}

func TestChecker_DefaultInterval(t *testing.T) {
	collector := NewCollector(&fakeStats{}, nil)
	alerter := NewAlerter(config.MonitoringConfig{})

	// Zero interval should fall back to DefaultCheckInterval.
	checker := NewChecker(collector, alerter, config.MonitoringConfig{
		CheckInterval: 0,
	})
	assert.NotNil(t, checker)

	// Start and immediately cancel to verify it doesn't panic.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	checker.Run(ctx)
}
