package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func newService(t *testing.T) (Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewService(client), mr
}

func TestService_SetGet(t *testing.T) {
	svc, mr := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, "k", payload{Name: "GA", Count: 2}, time.Minute))

	var got payload
	require.NoError(t, svc.Get(ctx, "k", &got))
	assert.Equal(t, payload{Name: "GA", Count: 2}, got)
	assert.True(t, svc.Exists(ctx, "k"))

	mr.FastForward(2 * time.Minute)
	assert.ErrorIs(t, svc.Get(ctx, "k", &got), ErrCacheMiss)
}

func TestService_DeleteAndPattern(t *testing.T) {
	svc, mr := newService(t)
	ctx := context.Background()

	for _, k := range []string{"eventbook:events:list:1", "eventbook:events:list:2", "eventbook:event:x"} {
		require.NoError(t, mr.Set(k, "{}"))
	}

	require.NoError(t, svc.Delete(ctx))
	require.NoError(t, svc.Delete(ctx, "eventbook:event:x", "missing"))
	assert.False(t, mr.Exists("eventbook:event:x"))

	require.NoError(t, svc.DeletePattern(ctx, "eventbook:events:list:*"))
	assert.Empty(t, mr.Keys())
}

func TestService_GetOrSet(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	calls := 0
	fetch := func() (interface{}, error) {
		calls++
		return payload{Name: "VIP", Count: calls}, nil
	}

	var first, second payload
	require.NoError(t, svc.GetOrSet(ctx, "k", time.Minute, fetch, &first))
	require.NoError(t, svc.GetOrSet(ctx, "k", time.Minute, fetch, &second))

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)

	boom := errors.New("boom")
	var out payload
	err := svc.GetOrSet(ctx, "other", time.Minute, func() (interface{}, error) { return nil, boom }, &out)
	assert.ErrorIs(t, err, boom)
	assert.False(t, svc.Exists(ctx, "other"))
}

func TestService_RedisDown(t *testing.T) {
	svc, mr := newService(t)
	ctx := context.Background()
	mr.Close()

	assert.Error(t, svc.Ping(ctx))

	var out payload
	err := svc.GetOrSet(ctx, "k", time.Minute, func() (interface{}, error) {
		return payload{Name: "fallback"}, nil
	}, &out)
	require.NoError(t, err, "a broken cache falls back to the source")
	assert.Equal(t, "fallback", out.Name)
}
