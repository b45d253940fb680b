package authcore

import (
	"context"
	"strings"
	"testing"

	"github.com/conduitblog/authcore/password"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterCreatesCredential(t *testing.T) {
	f := newTestEngine(t)
	ctx := context.Background()

	user := f.register(t, "jake", " Jake@Jake.jake ", "jakejake")

	assert.NotEqual(t, uuid.Nil, user.ID)
	assert.Equal(t, "jake", user.Username)
	assert.Equal(t, "Jake@Jake.jake", user.Email)
	assert.EqualValues(t, 1, user.Version)
	assert.Equal(t, testEpoch, user.CreatedAt)
	assert.Nil(t, user.UpdatedAt)

	record, err := f.engine.store.GetByID(ctx, user.ID.String())
	require.NoError(t, err)

	stored, err := password.Parse(record.PasswordHash)
	require.NoError(t, err)
	assert.Equal(t, password.Argon2id, stored.Algorithm())
	version, ok := stored.Version()
	assert.True(t, ok)
	assert.EqualValues(t, 0x13, version)
	params, err := password.Argon2ParamsFromHash(stored)
	require.NoError(t, err)
	assert.EqualValues(t, 8192, params.MemoryCost)
	assert.EqualValues(t, 1, params.IterationCost)
	assert.NotContains(t, record.PasswordHash, "jakejake")

	require.NoError(t, f.engine.hasher.VerifyPassword("jakejake", stored))
	assert.EqualValues(t, 1, f.engine.MetricsSnapshot().Counters[MetricRegisterSuccess])
}

func TestRegisterRejectsTakenEmailOrUsername(t *testing.T) {
	f := newTestEngine(t)
	ctx := context.Background()
	f.register(t, "jake", "jake@jake.jake", "jakejake")

	_, err := f.engine.Register(ctx, RegisterRequest{Username: "other", Email: "JAKE@jake.jake", Password: "password1"})
	require.ErrorIs(t, err, ErrAccountExists)
	assert.Contains(t, err.Error(), "email")

	_, err = f.engine.Register(ctx, RegisterRequest{Username: "jake", Email: "other@jake.jake", Password: "password1"})
	require.ErrorIs(t, err, ErrAccountExists)
	assert.Contains(t, err.Error(), "username")

	_, err = f.engine.Register(ctx, RegisterRequest{Username: "Jake", Email: "other@jake.jake", Password: "password1"})
	require.NoError(t, err, "usernames are case-sensitive")

	assert.EqualValues(t, 2, f.engine.MetricsSnapshot().Counters[MetricRegisterDuplicate])
}

func TestRegisterValidation(t *testing.T) {
	f := newTestEngine(t)
	ctx := context.Background()

	cases := []struct {
		name string
		req  RegisterRequest
		want error
	}{
		{"missing username", RegisterRequest{Email: "a@b.co", Password: "password1"}, ErrRegistrationInvalid},
		{"blank username", RegisterRequest{Username: "   ", Email: "a@b.co", Password: "password1"}, ErrRegistrationInvalid},
		{"spaced username", RegisterRequest{Username: "ja ke", Email: "a@b.co", Password: "password1"}, ErrRegistrationInvalid},
		{"long username", RegisterRequest{Username: strings.Repeat("j", 65), Email: "a@b.co", Password: "password1"}, ErrRegistrationInvalid},
		{"bad email", RegisterRequest{Username: "jake", Email: "not-an-email", Password: "password1"}, ErrRegistrationInvalid},
		{"missing password", RegisterRequest{Username: "jake", Email: "a@b.co"}, ErrRegistrationInvalid},
		{"short password", RegisterRequest{Username: "jake", Email: "a@b.co", Password: "short"}, ErrPasswordPolicy},
		{"long password", RegisterRequest{Username: "jake", Email: "a@b.co", Password: strings.Repeat("p", 4097)}, ErrPasswordPolicy},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.engine.Register(ctx, tc.req)
			require.ErrorIs(t, err, tc.want)
			assert.NotContains(t, err.Error(), "password1")
		})
	}

	assert.Empty(t, f.redis.Keys())
}

func TestRegisterUnicodeAndMaxLengthPasswords(t *testing.T) {
	f := newTestEngine(t)
	ctx := context.Background()

	for i, pw := range []string{"pässwörd-🔒-密码", strings.Repeat("x", 4096)} {
		username := []string{"unicode", "maxlen"}[i]
		f.register(t, username, username+"@jake.jake", pw)

		res, err := f.engine.Login(ctx, LoginRequest{Email: username + "@jake.jake", Password: pw})
		require.NoError(t, err)
		assert.Equal(t, username, res.User.Username)
	}
}
