package interaction

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xerrors "NeoX-Agent/internal/errors"
	"NeoX-Agent/internal/social"
)

func TestMemorySet(t *testing.T) {
	ctx := context.Background()
	set := NewMemorySet()

	ok, err := set.Has(ctx, "1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, set.Add(ctx, "1"))
	require.NoError(t, set.Add(ctx, "1"))

	ok, _ = set.Has(ctx, "1")
	assert.True(t, ok)
	n, _ := set.Len(ctx)
	assert.Equal(t, 1, n)
}

func TestNewRedisSetRequiresAddress(t *testing.T) {
	_, err := NewRedisSet(context.Background(), RedisSetConfig{})
	assert.Error(t, err)
}

func TestRedisSetSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	srv := miniredis.RunT(t)

	first, err := NewRedisSet(ctx, RedisSetConfig{Address: srv.Addr(), Key: "test:processed"})
	require.NoError(t, err)

	ok, err := first.Has(ctx, "42")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, first.Add(ctx, "42"))
	require.NoError(t, first.Add(ctx, "42"))
	require.NoError(t, first.Add(ctx, "43"))
	n, err := first.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.NoError(t, first.Close())

	second, err := NewRedisSet(ctx, RedisSetConfig{Address: srv.Addr(), Key: "test:processed"})
	require.NoError(t, err)
	defer second.Close()

	ok, err = second.Has(ctx, "42")
	require.NoError(t, err)
	assert.True(t, ok, "重启后已处理的 ID 仍应存在")

	members, err := srv.Members("test:processed")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"42", "43"}, members)
}

func TestRedisSetWithClientUsesDefaultKey(t *testing.T) {
	ctx := context.Background()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})

	set := NewRedisSetWithClient(client, "")
	defer set.Close()

	require.NoError(t, set.Add(ctx, "1"))
	assert.True(t, srv.Exists("neox:processed_mentions"))

	srv.SetError("ERR store unavailable")
	_, err := set.Has(ctx, "1")
	require.Error(t, err)
	assert.Equal(t, xerrors.CodeStorageFailure, xerrors.CodeOf(err))
	srv.SetError("")
}

func TestNewRedisSetFailsWhenUnreachable(t *testing.T) {
	srv := miniredis.RunT(t)
	addr := srv.Addr()
	srv.Close()

	_, err := NewRedisSet(context.Background(), RedisSetConfig{Address: addr})
	require.Error(t, err)
	assert.Equal(t, xerrors.CodeStorageFailure, xerrors.CodeOf(err))
}

func TestPollerDedupsAcrossRedisRestart(t *testing.T) {
	ctx := context.Background()
	srv := miniredis.RunT(t)
	platform := newPlatform([]social.Mention{{ID: "7", Text: "hello @bot", UserID: "other", Username: "alice"}})
	runtime := newRuntime("hi there")

	for i := 0; i < 2; i++ {
		set, err := NewRedisSet(ctx, RedisSetConfig{Address: srv.Addr(), Key: "test:dedup"})
		require.NoError(t, err)
		NewPoller(platform, runtime).CheckInteractions(ctx, NewState(time.Second, set))
		require.NoError(t, set.Close())
	}
	assert.Len(t, platform.replies, 1)
	assert.Equal(t, 2, platform.fetches)
}
