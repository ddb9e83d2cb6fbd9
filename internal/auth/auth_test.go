package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateKey(t *testing.T) {
	m := NewManager(NewMemoryStore())
	ctx := context.Background()

	raw, key, err := m.GenerateKey(ctx, "ten_1", "dashboard key")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(raw, "sk_"))
	assert.True(t, strings.HasPrefix(key.ID, "key_"))
	assert.Equal(t, "ten_1", key.TenantID)

	got, err := m.ValidateKey(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, key.ID, got.ID)

	// Bearer prefix is accepted
	got, err = m.ValidateKey(ctx, "Bearer "+raw)
	require.NoError(t, err)
	assert.Equal(t, key.ID, got.ID)
}

func TestValidateKeyRejectsGarbage(t *testing.T) {
	m := NewManager(NewMemoryStore())
	ctx := context.Background()

	_, err := m.ValidateKey(ctx, "")
	assert.ErrorIs(t, err, ErrNoAPIKey)

	_, err = m.ValidateKey(ctx, "not-a-key")
	assert.ErrorIs(t, err, ErrInvalidAPIKey)

	_, err = m.ValidateKey(ctx, "sk_deadbeefdeadbeefdeadbeef")
	assert.ErrorIs(t, err, ErrInvalidAPIKey)
}

func TestRevokedKeyRejected(t *testing.T) {
	m := NewManager(NewMemoryStore())
	ctx := context.Background()

	raw, key, err := m.GenerateKey(ctx, "ten_1", "to revoke")
	require.NoError(t, err)

	require.NoError(t, m.RevokeKey(ctx, key.ID, "ten_1"))

	_, err = m.ValidateKey(ctx, raw)
	assert.ErrorIs(t, err, ErrInvalidAPIKey)
}

func TestRevokeKeyWrongTenant(t *testing.T) {
	m := NewManager(NewMemoryStore())
	ctx := context.Background()

	_, key, err := m.GenerateKey(ctx, "ten_1", "k")
	require.NoError(t, err)

	err = m.RevokeKey(ctx, key.ID, "ten_other")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestExpiredKeyRejected(t *testing.T) {
	store := NewMemoryStore()
	m := NewManager(store)
	ctx := context.Background()

	raw, key, err := m.GenerateKey(ctx, "ten_1", "short lived")
	require.NoError(t, err)

	past := time.Now().Add(-time.Hour)
	key.ExpiresAt = &past
	require.NoError(t, store.Update(ctx, key))

	_, err = m.ValidateKey(ctx, raw)
	assert.ErrorIs(t, err, ErrInvalidAPIKey)
}

func TestListKeys(t *testing.T) {
	m := NewManager(NewMemoryStore())
	ctx := context.Background()

	_, _, err := m.GenerateKey(ctx, "ten_1", "a")
	require.NoError(t, err)
	_, _, err = m.GenerateKey(ctx, "ten_1", "b")
	require.NoError(t, err)
	_, _, err = m.GenerateKey(ctx, "ten_2", "c")
	require.NoError(t, err)

	keys, err := m.ListKeys(ctx, "ten_1")
	require.NoError(t, err)
	assert.Len(t, keys, 2)
}
