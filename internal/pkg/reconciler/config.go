package reconciler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ManuelReschke/MemberPay/internal/pkg/env"
)

// Config holds the cron schedules (with seconds field) of the sweeps.
type Config struct {
	ExpireOrdersSchedule string
	DowngradeSchedule    string
	QuotaResetSchedule   string
	JobTimeout           time.Duration
	LockTTL              time.Duration
}

// DefaultConfig expires orders every minute, downgrades lapsed members shortly
// after midnight and resets quotas every ten minutes.
func DefaultConfig() Config {
	return Config{
		ExpireOrdersSchedule: "0 * * * * *",
		DowngradeSchedule:    "0 5 0 * * *",
		QuotaResetSchedule:   "30 */10 * * * *",
		JobTimeout:           5 * time.Minute,
		LockTTL:              10 * time.Minute,
	}
}

// LoadConfig reads RECONCILER_* variables on top of DefaultConfig.
func LoadConfig() (Config, error) {
	def := DefaultConfig()
	cfg := Config{
		ExpireOrdersSchedule: env.GetEnv("RECONCILER_EXPIRE_ORDERS_SCHEDULE", def.ExpireOrdersSchedule),
		DowngradeSchedule:    env.GetEnv("RECONCILER_DOWNGRADE_SCHEDULE", def.DowngradeSchedule),
		QuotaResetSchedule:   env.GetEnv("RECONCILER_QUOTA_RESET_SCHEDULE", def.QuotaResetSchedule),
		JobTimeout:           env.GetEnvDuration("RECONCILER_JOB_TIMEOUT", def.JobTimeout),
		LockTTL:              env.GetEnvDuration("RECONCILER_LOCK_TTL", def.LockTTL),
	}
	return cfg, cfg.Validate()
}

// Validate parses every schedule and checks that a lock outlives a job.
func (c Config) Validate() error {
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	for name, spec := range map[string]string{
		"expire_orders":    c.ExpireOrdersSchedule,
		"downgrade_lapsed": c.DowngradeSchedule,
		"reset_quotas":     c.QuotaResetSchedule,
	} {
		if _, err := parser.Parse(spec); err != nil {
			return fmt.Errorf("reconciler: invalid %s schedule %q: %w", name, spec, err)
		}
	}
	if c.JobTimeout <= 0 {
		return fmt.Errorf("reconciler: job timeout must be positive")
	}
	if c.LockTTL < c.JobTimeout {
		return fmt.Errorf("reconciler: lock ttl %s shorter than job timeout %s", c.LockTTL, c.JobTimeout)
	}
	return nil
}
