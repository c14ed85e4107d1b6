package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/anthrasite/leadfactory-cli/internal/config"
	"github.com/anthrasite/leadfactory-cli/internal/dedupe"
)

// Checker runs periodic alert checks in the background.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	cfg       config.MonitoringConfig
}

// NewChecker creates a background alert checker.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	return &Checker{
		collector: collector,
		alerter:   alerter,
		cfg:       cfg,
	}
}

// Run starts the periodic check loop. It blocks until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting alert checker",
		zap.Duration("interval", interval),
		zap.Int("lookback_hours", c.cfg.LookbackWindowHours),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("alert checker stopped")
			return
		case <-ticker.C:
			c.check(ctx, log)
		}
	}
}

func (c *Checker) check(ctx context.Context, log *zap.Logger) {
	snap, err := c.collector.Collect(ctx, c.cfg.LookbackWindowHours)
	if err != nil {
		log.Error("monitoring: failed to collect metrics", zap.Error(err))
		return
	}

	alerts := c.alerter.Evaluate(snap)
	if len(alerts) == 0 {
		log.Debug("monitoring: no alerts triggered")
		return
	}

	sent := c.alerter.SendAlerts(ctx, alerts)
	log.Info("monitoring: alert check complete",
		zap.Int("alerts_triggered", len(alerts)),
		zap.Int("alerts_sent", sent),
	)
}

// Sink logs each completed dedupe run's stats so operators can watch
// merge throughput without a metrics backend.
type Sink struct{}

var _ dedupe.MetricsSink = Sink{}

func (Sink) ObserveRun(_ context.Context, stats dedupe.RunStats) {
	zap.L().Info("dedupe run complete",
		zap.Int("processed", stats.Processed),
		zap.Int("merged", stats.Merged),
		zap.Int("rejected", stats.Rejected),
		zap.Int("review", stats.Review),
		zap.Int("skipped", stats.Skipped),
		zap.Int("errors", stats.Errors),
	)
}
