package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainreactions/screener/internal/config"
)

func TestAlerter_Evaluate_Healthy(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{
		ErrorRateThreshold: 0.10,
		MaxDatasetAge:      168 * time.Hour,
	})

	recent := time.Now().UTC().Add(-2 * time.Hour)
	snap := &MetricsSnapshot{
		SingleMatches: 95,
		MatchErrors:   5,
		ErrorRate:     0.05,
		DatasetLoaded: true,
		LastImportAt:  &recent,
		LookbackHours: 24,
	}

	alerts := a.Evaluate(snap)
	assert.Empty(t, alerts)
}

func TestAlerter_Evaluate_ErrorRate(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{
		ErrorRateThreshold: 0.10,
	})

	snap := &MetricsSnapshot{
		SingleMatches: 30,
		MatchErrors:   20,
		ErrorRate:     0.4, // 20/50 = 40%
		DatasetLoaded: true,
		LookbackHours: 24,
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertMatchErrorRate, alerts[0].Type)
	assert.Equal(t, "high", alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "40.0%")
}

func TestAlerter_Evaluate_ErrorRateMinimumCalls(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{
		ErrorRateThreshold: 0.10,
	})

	// Only 10 calls — below the 20-call minimum for the rate alert.
	snap := &MetricsSnapshot{
		SingleMatches: 5,
		MatchErrors:   5,
		ErrorRate:     0.5,
		DatasetLoaded: true,
		LookbackHours: 24,
	}

	alerts := a.Evaluate(snap)
	assert.Empty(t, alerts)
}

func TestAlerter_Evaluate_ImportFailure(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{
		ErrorRateThreshold: 0.10,
	})

	snap := &MetricsSnapshot{
		ImportsTotal:  5,
		ImportsFailed: 2,
		DatasetLoaded: true,
		LookbackHours: 24,
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertImportFailure, alerts[0].Type)
	assert.Contains(t, alerts[0].Message, "2 dataset import")
}

func TestAlerter_Evaluate_NoDataset(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{
		ErrorRateThreshold: 0.10,
	})

	snap := &MetricsSnapshot{
		DatasetLoaded: false,
		LookbackHours: 24,
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertStaleDataset, alerts[0].Type)
	assert.Contains(t, alerts[0].Message, "No dataset loaded")
}

func TestAlerter_Evaluate_StaleImport(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{
		ErrorRateThreshold: 0.10,
		MaxDatasetAge:      168 * time.Hour,
	})

	old := time.Now().UTC().Add(-200 * time.Hour)
	snap := &MetricsSnapshot{
		DatasetLoaded:  true,
		DatasetVersion: 3,
		LastImportAt:   &old,
		LookbackHours:  24,
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertStaleDataset, alerts[0].Type)
	assert.Contains(t, alerts[0].Message, "200h ago")
}

func TestAlerter_Evaluate_StalenessDisabled(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{
		MaxDatasetAge: 0, // disabled
	})

	old := time.Now().UTC().Add(-500 * time.Hour)
	snap := &MetricsSnapshot{
		DatasetLoaded: true,
		LastImportAt:  &old,
		LookbackHours: 24,
	}

	alerts := a.Evaluate(snap)
	assert.Empty(t, alerts)
}

func TestAlerter_Evaluate_MultipleAlerts(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{
		ErrorRateThreshold: 0.10,
	})

	snap := &MetricsSnapshot{
		SingleMatches: 30,
		MatchErrors:   20,
		ErrorRate:     0.4,
		ImportsTotal:  3,
		ImportsFailed: 1,
		DatasetLoaded: false,
		LookbackHours: 24,
	}

	alerts := a.Evaluate(snap)
	assert.Len(t, alerts, 3)

	types := make(map[AlertType]bool)
	for _, alert := range alerts {
		types[alert.Type] = true
	}
	assert.True(t, types[AlertMatchErrorRate])
	assert.True(t, types[AlertImportFailure])
	assert.True(t, types[AlertStaleDataset])
}

func TestAlerter_SendAlerts_Webhook(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var alert Alert
		err := json.NewDecoder(r.Body).Decode(&alert)
		require.NoError(t, err)
		assert.NotEmpty(t, alert.Type)
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	a := NewAlerter(config.MonitoringConfig{
		WebhookURL: ts.URL,
	})

	alerts := []Alert{
		{Type: AlertMatchErrorRate, Severity: "high", Message: "test alert 1"},
		{Type: AlertStaleDataset, Severity: "high", Message: "test alert 2"},
	}

	sent := a.SendAlerts(context.Background(), alerts)
	assert.Equal(t, 2, sent)
	assert.Equal(t, int32(2), received.Load())
}

func TestAlerter_SendAlerts_EmptyURL(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{
		WebhookURL: "",
	})

	sent := a.SendAlerts(context.Background(), []Alert{
		{Type: AlertMatchErrorRate, Message: "test"},
	})
	assert.Equal(t, 0, sent)
}

func TestAlerter_SendAlerts_EmptyAlerts(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{
		WebhookURL: "http://example.com",
	})

	sent := a.SendAlerts(context.Background(), nil)
	assert.Equal(t, 0, sent)
}

func TestAlerter_SendAlerts_WebhookError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	a := NewAlerter(config.MonitoringConfig{
		WebhookURL: ts.URL,
	})

	alerts := []Alert{
		{Type: AlertMatchErrorRate, Message: "test"},
	}

	sent := a.SendAlerts(context.Background(), alerts)
	assert.Equal(t, 0, sent)
}

func TestAlerter_SendAlerts_BreakerOpensOnRepeatedFailure(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	a := NewAlerter(config.MonitoringConfig{
		WebhookURL: ts.URL,
	})

	alerts := []Alert{
		{Type: AlertMatchErrorRate, Message: "one"},
		{Type: AlertImportFailure, Message: "two"},
		{Type: AlertStaleDataset, Message: "three"},
	}

	// First cycle trips the breaker after three failed sends; the second
	// cycle is skipped entirely.
	assert.Equal(t, 0, a.SendAlerts(context.Background(), alerts))
	assert.Equal(t, int32(3), hits.Load())

	assert.Equal(t, 0, a.SendAlerts(context.Background(), alerts))
	assert.Equal(t, int32(3), hits.Load())
}
