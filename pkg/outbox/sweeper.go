package outbox

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adhocore/gronx"

	"parley/pkg/logger"
	"parley/pkg/store"
)

// SweepConfig controls the journal expiry scheduler.
type SweepConfig struct {
	Enabled bool
	// Cron is the schedule for sweep runs; empty means hourly.
	Cron string
	// TTL is how long records stay replayable. Zero means 24h.
	TTL time.Duration
}

// StartSweeper starts the journal expiry scheduler if enabled. Returns
// a cancel func.
func StartSweeper(ctx context.Context, cfg SweepConfig) (context.CancelFunc, error) {
	if !cfg.Enabled {
		logger.Info("outbox_sweep_disabled")
		return func() {}, nil
	}

	cronExpr := cfg.Cron
	if cronExpr == "" {
		cronExpr = "0 * * * *"
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("outbox_invalid_cron", "cron", cfg.Cron)
		return nil, fmt.Errorf("invalid outbox sweep cron expression: %s", cfg.Cron)
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	logger.Info("outbox_sweep_enabled", "cron", cronExpr, "ttl", ttl.String())
	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, cronExpr, ttl)
	return cancel, nil
}

// runScheduler computes the next tick for the configured cron expression
// via gronx and sleeps until then.
func runScheduler(ctx context.Context, cronExpr string, ttl time.Duration) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("outbox_sweep_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("outbox_nexttick_failed", "cron", cronExpr, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case <-time.After(time.Until(next)):
			if n, err := SweepOnce(ttl); err != nil {
				logger.Error("outbox_sweep_error", "error", err)
			} else if n > 0 {
				logger.Info("outbox_swept", "removed", n)
			}
		case <-ctx.Done():
			logger.Info("outbox_sweep_stopping")
			return
		}
	}
}

// SweepOnce deletes journal records older than ttl and returns how many
// were removed. Record keys embed the event timestamp, so expiry is a
// key scan with no value decoding.
func SweepOnce(ttl time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-ttl).UnixNano()
	removed := 0
	for _, route := range []string{RouteMessage, RouteNotification} {
		keys, err := store.ListKeys("outbox:" + route + ":")
		if err != nil {
			return removed, err
		}
		for _, k := range keys {
			ts, ok := recordTS(k)
			if !ok || ts >= cutoff {
				continue
			}
			if err := store.DeleteKey(k); err != nil {
				return removed, err
			}
			removed++
		}
	}
	return removed, nil
}

// recordTS extracts the embedded timestamp from an outbox key of the
// form outbox:<route>:<ts>-<seq>.
func recordTS(key string) (int64, bool) {
	i := strings.LastIndex(key, ":")
	if i < 0 || i+1 >= len(key) {
		return 0, false
	}
	part := key[i+1:]
	j := strings.IndexByte(part, '-')
	if j < 0 {
		return 0, false
	}
	ts, err := strconv.ParseInt(part[:j], 10, 64)
	if err != nil {
		return 0, false
	}
	return ts, true
}
