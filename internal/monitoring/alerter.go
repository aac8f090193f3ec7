package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fiscal-cli/internal/config"
	"github.com/sells-group/fiscal-cli/internal/resilience"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertCriticalCount AlertType = "critical_count"
	AlertHighRiskShare AlertType = "high_risk_share"
	AlertNewlyCritical AlertType = "newly_critical"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type       AlertType      `json:"type"`
	Severity   string         `json:"severity"`
	SnapshotID string         `json:"snapshot_id"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
	policy resilience.Policy
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	policy := resilience.DefaultPolicy()
	policy.OnRetry = resilience.LogRetry("monitoring")
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		policy: policy,
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	if a.cfg.CriticalThreshold > 0 && snap.CriticalCount >= a.cfg.CriticalThreshold {
		alerts = append(alerts, Alert{
			Type:       AlertCriticalCount,
			Severity:   "high",
			SnapshotID: snap.SnapshotID,
			Message: fmt.Sprintf(
				"%d of %d entities are Critical (threshold %d)",
				snap.CriticalCount, snap.EntityCount, a.cfg.CriticalThreshold,
			),
			Details: map[string]any{
				"critical":  snap.Critical,
				"threshold": a.cfg.CriticalThreshold,
			},
			Timestamp: now,
		})
	}

	if a.cfg.HighRiskShareThreshold > 0 && snap.HighRiskShare > a.cfg.HighRiskShareThreshold {
		alerts = append(alerts, Alert{
			Type:       AlertHighRiskShare,
			Severity:   "medium",
			SnapshotID: snap.SnapshotID,
			Message: fmt.Sprintf(
				"High fiscal risk share %.1f%% exceeds threshold %.1f%% (%d of %d entities)",
				snap.HighRiskShare*100, a.cfg.HighRiskShareThreshold*100,
				snap.HighRiskCount, snap.EntityCount,
			),
			Details: map[string]any{
				"high_risk_share": snap.HighRiskShare,
				"threshold":       a.cfg.HighRiskShareThreshold,
			},
			Timestamp: now,
		})
	}

	if len(snap.NewlyCritical) > 0 {
		alerts = append(alerts, Alert{
			Type:       AlertNewlyCritical,
			Severity:   "high",
			SnapshotID: snap.SnapshotID,
			Message:    "Newly Critical: " + strings.Join(snap.NewlyCritical, ", "),
			Details: map[string]any{
				"entities": snap.NewlyCritical,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		err := resilience.Do(ctx, a.policy, func(ctx context.Context) error {
			return a.sendWebhook(ctx, alert)
		})
		if err != nil {
			zap.L().Error("monitoring: failed to send alert",
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

// sendWebhook posts a single alert to the webhook URL. 429 and 5xx
// responses come back as transient errors.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		err := eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return resilience.NewTransientError(err, resp.StatusCode)
		}
		return err
	}
	return nil
}
