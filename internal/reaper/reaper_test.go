package reaper

import (
	"context"
	"errors"
	"testing"
	"time"

	"fundingportal/internal/metrics"
	"fundingportal/internal/model"
	"fundingportal/internal/repository"
	"fundingportal/internal/testutil"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunOnce_DeletesOnlyStaleSessions(t *testing.T) {
	db := testutil.OpenTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	user := &model.User{PhoneNumber: "+33611111111", PINHash: "x", PINSetAt: now, Role: model.RoleUser, IsActive: true}
	require.NoError(t, repository.NewUserRepository(db).Create(ctx, user))

	sessions := repository.NewSessionRepository(db)
	longRevoked := now.Add(-30 * time.Hour)
	recentRevoked := now.Add(-time.Hour)
	for _, s := range []*model.Session{
		{UserID: user.ID, TokenHash: "live", ExpiresAt: now.Add(time.Hour)},
		{UserID: user.ID, TokenHash: "just-expired", ExpiresAt: now.Add(-time.Hour)},
		{UserID: user.ID, TokenHash: "long-expired", ExpiresAt: now.Add(-25 * time.Hour)},
		{UserID: user.ID, TokenHash: "long-revoked", ExpiresAt: now.Add(time.Hour), RevokedAt: &longRevoked},
		{UserID: user.ID, TokenHash: "recent-revoked", ExpiresAt: now.Add(time.Hour), RevokedAt: &recentRevoked},
	} {
		require.NoError(t, sessions.Create(ctx, s))
	}

	m := metrics.New()
	r := New(sessions, m, zerolog.Nop(), func() time.Time { return now })

	n, err := r.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 2.0, promtestutil.ToFloat64(m.SessionsPurged))

	for _, kept := range []string{"live", "just-expired", "recent-revoked"} {
		_, err := sessions.GetByTokenHash(ctx, kept)
		assert.NoError(t, err, kept)
	}

	n, err = r.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

type failingPurger struct{}

func (failingPurger) DeleteStale(context.Context, time.Time) (int64, error) {
	return 0, errors.New("db down")
}

func TestRunOnce_PropagatesErrors(t *testing.T) {
	m := metrics.New()
	_, err := New(failingPurger{}, m, zerolog.Nop(), nil).RunOnce(context.Background())
	assert.ErrorContains(t, err, "db down")
	assert.Zero(t, promtestutil.ToFloat64(m.SessionsPurged))
}

func TestStart_RejectsBadSchedule(t *testing.T) {
	r := New(failingPurger{}, nil, zerolog.Nop(), nil)
	assert.Error(t, r.Start("not a schedule"))

	require.NoError(t, r.Start("@hourly"))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	r.Stop(ctx)
}
