package localkeys_test

import (
	"context"
	"testing"

	"github.com/abearman/mindful-sub000/keys"
	"github.com/abearman/mindful-sub000/keys/localkeys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndUnwrap(t *testing.T) {
	svc := localkeys.NewRandom()
	ctx := context.Background()

	dk, err := svc.GenerateDataKey(ctx, "user-a")
	require.NoError(t, err)
	assert.Len(t, dk.Plaintext, 32)
	assert.NotEqual(t, dk.Plaintext, dk.Wrapped)

	got, err := svc.UnwrapKey(ctx, dk.Wrapped, "user-a")
	require.NoError(t, err)
	assert.Equal(t, dk.Plaintext, got)
}

func TestUnwrap_OtherUserFails(t *testing.T) {
	svc := localkeys.NewRandom()
	ctx := context.Background()

	dk, err := svc.GenerateDataKey(ctx, "user-a")
	require.NoError(t, err)

	_, err = svc.UnwrapKey(ctx, dk.Wrapped, "user-b")
	assert.ErrorIs(t, err, keys.ErrKeyUnwrapFailed)
}

func TestUnwrap_OtherMasterKeyFails(t *testing.T) {
	ctx := context.Background()
	dk, err := localkeys.NewRandom().GenerateDataKey(ctx, "user-a")
	require.NoError(t, err)

	_, err = localkeys.NewRandom().UnwrapKey(ctx, dk.Wrapped, "user-a")
	assert.ErrorIs(t, err, keys.ErrKeyUnwrapFailed)
}

func TestKeysAreNotReused(t *testing.T) {
	svc := localkeys.NewRandom()
	ctx := context.Background()

	a, err := svc.GenerateDataKey(ctx, "user-a")
	require.NoError(t, err)
	b, err := svc.GenerateDataKey(ctx, "user-a")
	require.NoError(t, err)
	assert.NotEqual(t, a.Plaintext, b.Plaintext)
}

func TestNew_RejectsBadMasterKey(t *testing.T) {
	_, err := localkeys.New([]byte("short"))
	assert.Error(t, err)
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := localkeys.NewRandom().GenerateDataKey(ctx, "user-a")
	assert.ErrorIs(t, err, keys.ErrKeyServiceUnavailable)
}
