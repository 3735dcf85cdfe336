package credential

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gauthierbraillon/subfeed/internal/state"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestStore(t *testing.T) (*Store, *clock, state.Store) {
	t.Helper()
	c := &clock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	backend := state.NewMemoryStore()
	return NewStore(backend, WithClock(c.now)), c, backend
}

func TestStore_NoTokenIsUnusable(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	assert.False(t, s.IsUsable(ctx))
	assert.ErrorIs(t, s.Check(ctx), ErrNoCredential)
	assert.Empty(t, s.AccessToken(ctx))
}

func TestStore_SaveComputesExpiry(t *testing.T) {
	s, c, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "tok", 7200))

	exp, ok := s.Expiry(ctx)
	require.True(t, ok)
	assert.True(t, exp.Equal(c.t.Add(2*time.Hour)), "expiry should be now + ttl, got %v", exp)
	assert.Equal(t, "tok", s.AccessToken(ctx))
	assert.True(t, s.IsUsable(ctx))
}

func TestStore_SaveDefaultsTTL(t *testing.T) {
	s, c, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "tok", 0))

	exp, ok := s.Expiry(ctx)
	require.True(t, ok)
	assert.True(t, exp.Equal(c.t.Add(time.Hour)), "missing expires_in should default to one hour, got %v", exp)
}

func TestStore_SaveRejectsEmptyToken(t *testing.T) {
	s, _, _ := newTestStore(t)
	assert.Error(t, s.Save(context.Background(), "", 3600))
}

func TestStore_ExpiryMargin(t *testing.T) {
	s, c, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, "tok", 3600))

	c.advance(54 * time.Minute)
	assert.True(t, s.IsUsable(ctx), "token with six minutes left should be usable")

	c.advance(time.Minute)
	assert.False(t, s.IsUsable(ctx), "token exactly at the five minute margin should be unusable")
	assert.ErrorIs(t, s.Check(ctx), ErrCredentialExpired)

	assert.Equal(t, "tok", s.AccessToken(ctx), "expiry alone must not erase the token")
}

func TestStore_NoExpiryFailsOpen(t *testing.T) {
	s, _, backend := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, backend.Write(ctx, state.KeyCredential, []byte(`{"access_token":"legacy"}`)))

	assert.True(t, s.IsUsable(ctx), "token without a recorded expiry is assumed usable")
	_, ok := s.Expiry(ctx)
	assert.False(t, ok)
}

func TestStore_InvalidateIsIdempotent(t *testing.T) {
	s, _, backend := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, "tok", 3600))
	require.NoError(t, backend.Write(ctx, state.KeySubscriptions, []byte(`{}`)))

	s.Invalidate(ctx)
	s.Invalidate(ctx)

	assert.False(t, s.IsUsable(ctx))
	_, ok := s.Expiry(ctx)
	assert.False(t, ok, "invalidate clears the expiry too")

	_, err := backend.Read(ctx, state.KeySubscriptions)
	assert.NoError(t, err, "invalidating the credential leaves the subscription cache alone")
}

func TestStore_CorruptRecordIsUnusable(t *testing.T) {
	s, _, backend := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, backend.Write(ctx, state.KeyCredential, []byte(`not json`)))

	assert.ErrorIs(t, s.Check(ctx), ErrNoCredential)
}

func TestStore_SharedBackendSeesUpdates(t *testing.T) {
	s, c, backend := newTestStore(t)
	other := NewStore(backend, WithClock(c.now))
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "tok", 3600))
	assert.True(t, other.IsUsable(ctx))

	other.Invalidate(ctx)
	assert.False(t, s.IsUsable(ctx), "every reader re-checks the persisted state")
}
