package rollup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	activitydomain "github.com/smallbiznis/wadesk/internal/activity/domain"
	"github.com/smallbiznis/wadesk/internal/clock"
	"github.com/smallbiznis/wadesk/internal/config"
	obsmetrics "github.com/smallbiznis/wadesk/internal/observability/metrics"
	"github.com/smallbiznis/wadesk/internal/ratelimit"
	usagedomain "github.com/smallbiznis/wadesk/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// LockKey guards a rollup run across replicas.
const LockKey = "wadesk:usage:rollup"

type Params struct {
	fx.In

	Log      *zap.Logger
	Clock    clock.Clock
	Calendar usagedomain.Calendar
	Tenants  activitydomain.Repository
	Usage    usagedomain.Service
	Config   *config.UsageConfigHolder
	Locker   *ratelimit.Locker         `optional:"true"`
	Metrics  *obsmetrics.RollupMetrics `optional:"true"`
}

// Worker periodically re-aggregates today (and optionally yesterday) for
// every tenant. It is the scheduler that drives RecordDailyUsage.
type Worker struct {
	log      *zap.Logger
	clock    clock.Clock
	calendar usagedomain.Calendar
	tenants  activitydomain.Repository
	usage    usagedomain.Service
	cfg      *config.UsageConfigHolder
	locker   *ratelimit.Locker
	metrics  *obsmetrics.RollupMetrics
}

// Summary describes one rollup run.
type Summary struct {
	Skipped    bool
	Tenants    int
	Aggregated int
	Failed     int
}

func NewWorker(p Params) *Worker {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Worker{
		log:      p.Log.Named("usage.rollup"),
		clock:    clk,
		calendar: p.Calendar,
		tenants:  p.Tenants,
		usage:    p.Usage,
		cfg:      p.Config,
		locker:   p.Locker,
		metrics:  p.Metrics,
	}
}

// RunForever runs until ctx is cancelled. The poll interval is re-read after
// every run so config reloads take effect without a restart.
func (w *Worker) RunForever(ctx context.Context) {
	for {
		if _, err := w.RunOnce(ctx); err != nil {
			w.log.Warn("usage rollup run failed", zap.Error(err))
		}

		timer := time.NewTimer(w.cfg.Get().PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (w *Worker) RunOnce(parentCtx context.Context) (Summary, error) {
	cfg := w.cfg.Get()
	if !cfg.RollupEnabled {
		return Summary{Skipped: true}, nil
	}

	ctx, cancel := context.WithTimeout(parentCtx, cfg.RunTimeout)
	defer cancel()

	if w.locker == nil {
		return w.run(ctx, cfg)
	}

	var summary Summary
	err := w.locker.WithLock(ctx, LockKey, cfg.LockTTL, func(ctx context.Context) error {
		var runErr error
		summary, runErr = w.run(ctx, cfg)
		return runErr
	})
	if errors.Is(err, ratelimit.ErrLockHeld) {
		w.log.Debug("usage rollup skipped; another replica holds the lock")
		return Summary{Skipped: true}, nil
	}
	return summary, err
}

func (w *Worker) run(ctx context.Context, cfg config.UsageConfig) (Summary, error) {
	started := time.Now()
	defer func() { w.metrics.ObserveRun(time.Since(started)) }()

	now := w.clock.Now()
	days := []time.Time{now}
	if cfg.IncludePreviousDay {
		days = append(days, w.calendar.PreviousDay(now))
	}

	var (
		summary Summary
		errs    []error
		afterID snowflake.ID
	)
	for {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		ids, err := w.tenants.ListTenantIDs(ctx, afterID, cfg.BatchSize)
		if err != nil {
			w.log.Error("failed to list tenants", zap.Error(err))
			errs = append(errs, fmt.Errorf("list tenants: %w", err))
			break
		}

		for _, tenantID := range ids {
			summary.Tenants++
			if err := w.aggregateTenant(ctx, cfg, tenantID, days); err != nil {
				summary.Failed++
				w.metrics.ObserveTenant(obsmetrics.RollupResultFailure)
				errs = append(errs, err)
				continue
			}
			summary.Aggregated++
			w.metrics.ObserveTenant(obsmetrics.RollupResultSuccess)
		}

		if len(ids) < cfg.BatchSize {
			break
		}
		afterID = ids[len(ids)-1]
	}

	w.log.Info("usage rollup finished",
		zap.Int("tenants", summary.Tenants),
		zap.Int("aggregated", summary.Aggregated),
		zap.Int("failed", summary.Failed),
		zap.Duration("elapsed", time.Since(started)),
	)
	return summary, errors.Join(errs...)
}

func (w *Worker) aggregateTenant(ctx context.Context, cfg config.UsageConfig, tenantID snowflake.ID, days []time.Time) error {
	tenantCtx, cancel := context.WithTimeout(ctx, cfg.TenantTimeout)
	defer cancel()

	for _, day := range days {
		if _, err := w.usage.RecordDailyUsage(tenantCtx, tenantID, day); err != nil {
			w.log.Warn("tenant rollup failed",
				zap.String("tenant_id", tenantID.String()),
				zap.Time("day", day),
				zap.Error(err),
			)
			return fmt.Errorf("tenant %s: %w", tenantID, err)
		}
	}
	return nil
}
