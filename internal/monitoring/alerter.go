package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/chainreactions/screener/internal/config"
	"github.com/chainreactions/screener/internal/resilience"
)

// AlertType names the condition an alert reports.
type AlertType string

const (
	AlertMatchErrorRate AlertType = "match_error_rate"
	AlertImportFailure  AlertType = "import_failure"
	AlertStaleDataset   AlertType = "stale_dataset"
)

// minCallsForRateAlert suppresses the error-rate alert until enough
// calls have been seen to make the rate meaningful.
const minCallsForRateAlert = 20

// Alert is one webhook payload: a breached condition plus the numbers
// behind it.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter turns metric snapshots into webhook notifications. Thresholds
// come from the monitoring config.
type Alerter struct {
	cfg     config.MonitoringConfig
	client  *http.Client
	breaker *resilience.Breaker
}

// NewAlerter builds an Alerter. The webhook breaker opens after three
// consecutive delivery failures and resets after five minutes, so a dead
// endpoint is not hammered on every check.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:     cfg,
		client:  &http.Client{Timeout: 10 * time.Second},
		breaker: resilience.NewBreaker(3, 5*time.Minute),
	}
}

// Evaluate compares the snapshot to the configured thresholds and
// returns one alert per breach.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	calls := snap.SingleMatches + snap.BatchCalls + snap.AffiliatedCalls + snap.MatchErrors
	if calls >= minCallsForRateAlert && snap.ErrorRate > a.cfg.ErrorRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertMatchErrorRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Match error rate %.1f%% exceeds threshold %.1f%% (%d errors / %d calls)",
				snap.ErrorRate*100, a.cfg.ErrorRateThreshold*100,
				snap.MatchErrors, calls,
			),
			Details: map[string]any{
				"error_rate": snap.ErrorRate,
				"threshold":  a.cfg.ErrorRateThreshold,
				"errors":     snap.MatchErrors,
				"calls":      calls,
			},
			Timestamp: now,
		})
	}

	if snap.ImportsFailed > 0 {
		alerts = append(alerts, Alert{
			Type:     AlertImportFailure,
			Severity: "high",
			Message: fmt.Sprintf(
				"%d dataset import(s) failed in last %dh",
				snap.ImportsFailed, snap.LookbackHours,
			),
			Details: map[string]any{
				"failed_count":  snap.ImportsFailed,
				"total_imports": snap.ImportsTotal,
			},
			Timestamp: now,
		})
	}

	// Missing outranks stale: no dataset means every match request is
	// being refused right now.
	switch {
	case !snap.DatasetLoaded:
		alerts = append(alerts, Alert{
			Type:      AlertStaleDataset,
			Severity:  "high",
			Message:   "No dataset loaded; match requests are refused",
			Timestamp: now,
		})
	case a.cfg.MaxDatasetAge > 0 && snap.LastImportAt != nil && now.Sub(*snap.LastImportAt) > a.cfg.MaxDatasetAge:
		age := now.Sub(*snap.LastImportAt)
		alerts = append(alerts, Alert{
			Type:     AlertStaleDataset,
			Severity: "high",
			Message: fmt.Sprintf(
				"Dataset version %d last imported %.0fh ago, over the %.0fh limit",
				snap.DatasetVersion, age.Hours(), a.cfg.MaxDatasetAge.Hours(),
			),
			Details: map[string]any{
				"dataset_version": snap.DatasetVersion,
				"age_hours":       age.Hours(),
				"max_age_hours":   a.cfg.MaxDatasetAge.Hours(),
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts posts each alert to the webhook and reports how many got
// through. Once the breaker opens, the rest of the batch is skipped.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		err := a.breaker.Do(ctx, func(ctx context.Context) error {
			return a.sendWebhook(ctx, alert)
		})
		if errors.Is(err, resilience.ErrBreakerOpen) {
			zap.L().Warn("monitoring: webhook breaker open, skipping alerts",
				zap.Int("skipped", len(alerts)-sent),
			)
			break
		}
		if err != nil {
			zap.L().Error("monitoring: alert send failed",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

// sendWebhook delivers one alert as a JSON POST.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: encode alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: build webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: post webhook")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook status %d", resp.StatusCode)
	}
	return nil
}
