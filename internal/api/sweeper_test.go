package api

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sweepQuery = `UPDATE user_sessions SET is_active = false WHERE is_active = true AND expires_at < $1`

func TestSweepExpiredSessions(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	mem := NewMemoryRevocations()
	require.NoError(t, mem.Revoke(context.Background(), "old", now.Add(-time.Minute)))
	require.NoError(t, mem.Revoke(context.Background(), "live", now.Add(time.Hour)))

	env.mock.ExpectExec(regexp.QuoteMeta(sweepQuery)).WithArgs(now.UTC()).WillReturnResult(sqlmock.NewResult(0, 3))
	n, err := SweepExpiredSessions(context.Background(), mem, now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	revoked, _ := mem.IsRevoked(context.Background(), "live")
	assert.True(t, revoked)
	assert.Equal(t, 0, mem.Prune(now), "expired entry should already be gone")

	env.mock.ExpectExec(regexp.QuoteMeta(sweepQuery)).WillReturnError(errors.New("db down"))
	_, err = SweepExpiredSessions(context.Background(), nil, now)
	assert.Error(t, err)
	require.NoError(t, env.mock.ExpectationsWereMet())
}

func TestStartSessionSweeper(t *testing.T) {
	_, err := StartSessionSweeper("not a cron", nil)
	assert.Error(t, err)

	sched, err := StartSessionSweeper("*/15 * * * *", NewMemoryRevocations())
	require.NoError(t, err)
	assert.Len(t, sched.Entries(), 1)
	<-sched.Stop().Done()
}

func TestMemoryRevocations(t *testing.T) {
	m := NewMemoryRevocations()
	ok, err := m.IsRevoked(context.Background(), "x")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Revoke(context.Background(), "x", time.Now().Add(time.Minute)))
	ok, _ = m.IsRevoked(context.Background(), "x")
	assert.True(t, ok)

	// an entry past its expiry no longer counts and is pruned
	require.NoError(t, m.Revoke(context.Background(), "y", time.Now().Add(-time.Second)))
	ok, _ = m.IsRevoked(context.Background(), "y")
	assert.False(t, ok)
	assert.Equal(t, 1, m.Prune(time.Now()))
}
