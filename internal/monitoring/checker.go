package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fiscal-cli/internal/aggregate"
	"github.com/sells-group/fiscal-cli/internal/config"
	"github.com/sells-group/fiscal-cli/internal/model"
	"github.com/sells-group/fiscal-cli/internal/scorer"
)

// Loader returns the current snapshot, e.g. store.Source.Load.
type Loader func(ctx context.Context) (*model.Snapshot, error)

// Checker polls for new snapshots and raises alerts for each one it sees.
type Checker struct {
	load    Loader
	engine  *scorer.Engine
	alerter *Alerter
	cfg     config.MonitoringConfig

	last *MetricsSnapshot
}

// NewChecker creates a background alert checker.
func NewChecker(load Loader, engine *scorer.Engine, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	return &Checker{
		load:    load,
		engine:  engine,
		alerter: alerter,
		cfg:     cfg,
	}
}

// Run checks once immediately and then on every interval. It blocks until
// ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting alert checker", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := c.Check(ctx); err != nil {
			log.Error("monitoring: check failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			log.Info("alert checker stopped")
			return
		case <-ticker.C:
		}
	}
}

// Check loads the current snapshot and, if it differs from the last one
// checked, evaluates and sends alerts. It returns the alerts raised.
func (c *Checker) Check(ctx context.Context) ([]Alert, error) {
	snap, err := c.load(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: load snapshot")
	}
	if c.last != nil && c.last.SnapshotID == snap.ID {
		zap.L().Debug("monitoring: snapshot unchanged", zap.String("snapshot", snap.ID))
		return nil, nil
	}

	agg, err := aggregate.New(c.engine, snap.Entities)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: score snapshot")
	}

	metrics := Collect(snap, agg, c.last)
	c.last = metrics

	alerts := c.alerter.Evaluate(metrics)
	if len(alerts) == 0 {
		zap.L().Debug("monitoring: no alerts triggered", zap.String("snapshot", snap.ID))
		return nil, nil
	}

	sent := c.alerter.SendAlerts(ctx, alerts)
	zap.L().Info("monitoring: alert check complete",
		zap.String("snapshot", snap.ID),
		zap.Int("alerts_triggered", len(alerts)),
		zap.Int("alerts_sent", sent),
	)
	return alerts, nil
}

// Last returns the metrics of the last snapshot checked, or nil.
func (c *Checker) Last() *MetricsSnapshot {
	return c.last
}
