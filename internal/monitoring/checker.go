package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/chainreactions/screener/internal/config"
)

// DefaultCheckInterval paces the health loop when the config leaves the
// interval unset.
const DefaultCheckInterval = 5 * time.Minute

// Checker drives the collect-evaluate-send cycle on a timer.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	cfg       config.MonitoringConfig
}

// NewChecker wires a collector and alerter into a background health loop.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	return &Checker{
		collector: collector,
		alerter:   alerter,
		cfg:       cfg,
	}
}

// Run blocks until ctx ends, checking once right away and then on every
// interval tick. The immediate pass means a fresh process reports a stale
// dataset at boot instead of one interval later.
func (c *Checker) Run(ctx context.Context) {
	interval := c.cfg.CheckInterval
	if interval <= 0 {
		interval = DefaultCheckInterval
	}

	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("monitoring: checker running",
		zap.Duration("interval", interval),
		zap.Duration("lookback", c.cfg.Lookback),
	)

	c.check(ctx, log)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("monitoring: checker stopped")
			return
		case <-ticker.C:
			c.check(ctx, log)
		}
	}
}

func (c *Checker) check(ctx context.Context, log *zap.Logger) {
	snap, err := c.collector.Collect(ctx, c.cfg.Lookback)
	if err != nil {
		log.Error("monitoring: collect failed", zap.Error(err))
		return
	}

	alerts := c.alerter.Evaluate(snap)
	if len(alerts) == 0 {
		log.Debug("monitoring: healthy")
		return
	}

	sent := c.alerter.SendAlerts(ctx, alerts)
	log.Warn("monitoring: alerts raised",
		zap.Int("raised", len(alerts)),
		zap.Int("sent", sent),
	)
}
