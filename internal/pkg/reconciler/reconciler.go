// Package reconciler runs the periodic sweeps of the payment engine: expiring
// unpaid orders, downgrading lapsed members and starting new quota periods.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/robfig/cron/v3"

	"github.com/ManuelReschke/MemberPay/app/repository"
	"github.com/ManuelReschke/MemberPay/internal/pkg/membership"
	"github.com/ManuelReschke/MemberPay/internal/pkg/metrics"
	"github.com/ManuelReschke/MemberPay/internal/pkg/quota"
)

// Job names, also used as lock names and metric labels.
const (
	JobExpireOrders    = "expire_orders"
	JobDowngradeLapsed = "downgrade_lapsed"
	JobResetQuotas     = "reset_quotas"
)

const (
	resultSuccess = "success"
	resultError   = "error"
	resultSkipped = "skipped"
)

// Reconciler owns the cron scheduler of the sweeps.
type Reconciler struct {
	orders    repository.OrderRepository
	activator *membership.Activator
	quotas    *quota.Manager
	locker    Locker
	cfg       Config
	now       func() time.Time

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

func New(orders repository.OrderRepository, activator *membership.Activator, quotas *quota.Manager, locker Locker, cfg Config, now func() time.Time) *Reconciler {
	if now == nil {
		now = time.Now
	}
	if locker == nil {
		locker = NewLocalLocker()
	}
	return &Reconciler{
		orders:    orders,
		activator: activator,
		quotas:    quotas,
		locker:    locker,
		cfg:       cfg,
		now:       now,
	}
}

// ExpireOrders moves every pending order past its expiry to expired.
func (r *Reconciler) ExpireOrders(ctx context.Context) (int64, error) {
	n, err := r.orders.ExpirePending(ctx, r.now())
	if err != nil {
		return 0, fmt.Errorf("reconciler: expire orders: %w", err)
	}
	if n > 0 {
		metrics.OrdersExpiredTotal.Add(float64(n))
		log.Infof("[Reconciler] expired %d pending orders", n)
	}
	return n, nil
}

// DowngradeLapsed moves paid members whose term ended before today to free.
func (r *Reconciler) DowngradeLapsed(ctx context.Context) (int, error) {
	n, err := r.activator.DowngradeLapsed(ctx)
	if n > 0 {
		metrics.MembershipsDowngradedTotal.Add(float64(n))
		log.Infof("[Reconciler] downgraded %d lapsed memberships", n)
	}
	return n, err
}

// ResetQuotas starts a new quota period for users whose period ended.
func (r *Reconciler) ResetQuotas(ctx context.Context) (int, error) {
	n, err := r.quotas.ResetDue(ctx)
	if n > 0 {
		log.Infof("[Reconciler] reset quota of %d users", n)
	}
	return n, err
}

func (r *Reconciler) job(name string) (func(context.Context) error, bool) {
	switch name {
	case JobExpireOrders:
		return func(ctx context.Context) error {
			_, err := r.ExpireOrders(ctx)
			return err
		}, true
	case JobDowngradeLapsed:
		return func(ctx context.Context) error {
			_, err := r.DowngradeLapsed(ctx)
			return err
		}, true
	case JobResetQuotas:
		return func(ctx context.Context) error {
			_, err := r.ResetQuotas(ctx)
			return err
		}, true
	}
	return nil, false
}

// Run executes one job under its lock and the configured timeout. A run that
// finds the lock taken returns ErrLockHeld without doing any work.
func (r *Reconciler) Run(ctx context.Context, name string) error {
	fn, ok := r.job(name)
	if !ok {
		return fmt.Errorf("reconciler: unknown job %q", name)
	}

	release, err := r.locker.Acquire(ctx, name, r.cfg.LockTTL)
	if err != nil {
		metrics.ReconcilerRunsTotal.WithLabelValues(name, resultSkipped).Inc()
		if errors.Is(err, ErrLockHeld) {
			log.Debugf("[Reconciler] %s skipped: %v", name, err)
		} else {
			log.Warnf("[Reconciler] %s skipped, lock error: %v", name, err)
		}
		return err
	}
	defer release()

	timeout := r.cfg.JobTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().JobTimeout
	}
	jobCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	if err := fn(jobCtx); err != nil {
		metrics.ReconcilerRunsTotal.WithLabelValues(name, resultError).Inc()
		log.Errorf("[Reconciler] %s failed after %s: %v", name, time.Since(start), err)
		return err
	}
	metrics.ReconcilerRunsTotal.WithLabelValues(name, resultSuccess).Inc()
	return nil
}

// Start schedules the jobs. Calling Start on a running reconciler is a no-op.
func (r *Reconciler) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return nil
	}

	c := cron.New(
		cron.WithSeconds(),
		cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)),
	)
	schedules := []struct {
		name string
		spec string
	}{
		{JobExpireOrders, r.cfg.ExpireOrdersSchedule},
		{JobDowngradeLapsed, r.cfg.DowngradeSchedule},
		{JobResetQuotas, r.cfg.QuotaResetSchedule},
	}
	for _, s := range schedules {
		name := s.name
		if _, err := c.AddFunc(s.spec, func() {
			_ = r.Run(context.Background(), name)
		}); err != nil {
			return fmt.Errorf("reconciler: schedule %s: %w", name, err)
		}
	}

	c.Start()
	r.cron = c
	r.running = true
	log.Infof("[Reconciler] started (expire=%q downgrade=%q quota=%q)",
		r.cfg.ExpireOrdersSchedule, r.cfg.DowngradeSchedule, r.cfg.QuotaResetSchedule)
	return nil
}

// Stop stops scheduling and waits for running jobs until ctx is done.
func (r *Reconciler) Stop(ctx context.Context) {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	c := r.cron
	r.running = false
	r.cron = nil
	r.mu.Unlock()

	select {
	case <-c.Stop().Done():
		log.Info("[Reconciler] stopped")
	case <-ctx.Done():
		log.Warn("[Reconciler] stop timed out with jobs still running")
	}
}
