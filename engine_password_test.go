package authcore

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/conduitblog/authcore/internal/stores"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChangePassword(t *testing.T) {
	f := newTestEngine(t)
	ctx := context.Background()
	user := f.register(t, "jake", "jake@jake.jake", "jakejake")

	f.clock.Advance(time.Hour)
	require.NoError(t, f.engine.ChangePassword(ctx, user.ID, "jakejake", "new-password"))

	record, err := f.engine.store.GetByID(ctx, user.ID.String())
	require.NoError(t, err)
	assert.EqualValues(t, 2, record.Version)
	assert.Equal(t, testEpoch.Add(time.Hour).Unix(), record.UpdatedAt)

	_, err = f.engine.Login(ctx, LoginRequest{Email: "jake@jake.jake", Password: "jakejake"})
	require.ErrorIs(t, err, ErrInvalidCredentials)

	res, err := f.engine.Login(ctx, LoginRequest{Email: "jake@jake.jake", Password: "new-password"})
	require.NoError(t, err)
	require.NotNil(t, res.User.UpdatedAt)
	assert.Equal(t, testEpoch.Add(time.Hour), *res.User.UpdatedAt)

	assert.EqualValues(t, 1, f.engine.MetricsSnapshot().Counters[MetricPasswordChangeSuccess])
}

func TestChangePasswordWrongOldPassword(t *testing.T) {
	f := newTestEngine(t)
	ctx := context.Background()
	user := f.register(t, "jake", "jake@jake.jake", "jakejake")

	err := f.engine.ChangePassword(ctx, user.ID, "not-jakejake", "new-password")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	record, err := f.engine.store.GetByID(ctx, user.ID.String())
	require.NoError(t, err)
	assert.EqualValues(t, 1, record.Version)
	assert.EqualValues(t, 1, f.engine.MetricsSnapshot().Counters[MetricPasswordChangeInvalidOld])
}

func TestChangePasswordRejections(t *testing.T) {
	f := newTestEngine(t)
	ctx := context.Background()
	user := f.register(t, "jake", "jake@jake.jake", "jakejake")

	cases := []struct {
		name   string
		userID uuid.UUID
		old    string
		new    string
		want   error
	}{
		{"nil user", uuid.Nil, "jakejake", "new-password", ErrPasswordPolicy},
		{"empty old", user.ID, "", "new-password", ErrPasswordPolicy},
		{"short new", user.ID, "jakejake", "short", ErrPasswordPolicy},
		{"reuse", user.ID, "jakejake", "jakejake", ErrPasswordReuse},
		{"unknown user", uuid.New(), "jakejake", "new-password", ErrUserNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := f.engine.ChangePassword(ctx, tc.userID, tc.old, tc.new)
			require.ErrorIs(t, err, tc.want)
		})
	}

	record, err := f.engine.store.GetByID(ctx, user.ID.String())
	require.NoError(t, err)
	assert.EqualValues(t, 1, record.Version)
	assert.Zero(t, f.engine.MetricsSnapshot().Counters[MetricPasswordChangeSuccess])
}

func TestChangePasswordClearsLoginFailures(t *testing.T) {
	f := newTestEngine(t)
	ctx := context.Background()
	user := f.register(t, "jake", "jake@jake.jake", "jakejake")

	for i := 0; i < 3; i++ {
		_, err := f.engine.Login(ctx, LoginRequest{Email: "jake@jake.jake", Password: "wrong-password"})
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}

	require.NoError(t, f.engine.ChangePassword(ctx, user.ID, "jakejake", "new-password"))

	attempts, err := f.engine.rateLimiter.GetLoginAttempts(ctx, "jake@jake.jake")
	require.NoError(t, err)
	assert.Zero(t, attempts)
}

func TestChangePasswordBackendUnavailable(t *testing.T) {
	f := newTestEngine(t)
	ctx := context.Background()
	user := f.register(t, "jake", "jake@jake.jake", "jakejake")

	f.redis.Close()

	err := f.engine.ChangePassword(ctx, user.ID, "jakejake", "new-password")
	require.ErrorIs(t, err, ErrBackendUnavailable)
}

func TestMapStoreError(t *testing.T) {
	cases := []struct {
		in   error
		want error
	}{
		{stores.ErrCredentialNotFound, ErrUserNotFound},
		{stores.ErrCredentialEmailTaken, ErrAccountExists},
		{stores.ErrCredentialUsernameTaken, ErrAccountExists},
		{errors.Join(stores.ErrCredentialEmailTaken, stores.ErrCredentialUsernameTaken), ErrAccountExists},
		{stores.ErrCredentialVersionConflict, ErrCredentialConflict},
		{fmt.Errorf("%w: dial tcp", stores.ErrCredentialRedisUnavailable), ErrBackendUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.in.Error(), func(t *testing.T) {
			assert.ErrorIs(t, mapStoreError(tc.in), tc.want)
		})
	}

	taken := mapStoreError(stores.ErrCredentialEmailTaken)
	assert.ErrorIs(t, taken, stores.ErrCredentialEmailTaken)
}
