package api

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	database "github.com/Armour007/docproc-backend/internal"
)

// StartSessionSweeper schedules SweepExpiredSessions on schedule (five-field cron).
// The caller stops the returned scheduler on shutdown.
func StartSessionSweeper(schedule string, mem *MemoryRevocations) (*cron.Cron, error) {
	sched := cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)))
	_, err := sched.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := SweepExpiredSessions(ctx, mem, time.Now()); err != nil {
			zap.L().Warn("session sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return nil, err
	}
	sched.Start()
	return sched, nil
}

// SweepExpiredSessions deactivates sessions past their expiry and prunes
// expired entries from mem when it is set.
func SweepExpiredSessions(ctx context.Context, mem *MemoryRevocations, now time.Time) (int64, error) {
	if mem != nil {
		mem.Prune(now)
	}
	res, err := database.DB.ExecContext(ctx,
		`UPDATE user_sessions SET is_active = false WHERE is_active = true AND expires_at < $1`, now.UTC())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		sessionsExpiredTotal.Add(float64(n))
		zap.L().Info("expired sessions deactivated", zap.Int64("count", n))
	}
	return n, nil
}
