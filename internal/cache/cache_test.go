package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/and161185/car-registry/internal/model"
)

func TestKey(t *testing.T) {
	var a model.Address
	a[0] = 1
	k := Key(a)
	require.True(t, strings.HasPrefix(k, "vr:rec:"))
	require.Equal(t, a.String(), strings.TrimPrefix(k, "vr:rec:"))
}

func TestDial_EmptyURLDisables(t *testing.T) {
	c, err := Dial(context.Background(), "")
	require.NoError(t, err)
	require.Nil(t, c)

	_, err = Dial(context.Background(), "not a url")
	require.Error(t, err)
}

func TestRedis_UnreachableServerSurfacesErrors(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	c := NewRedis(client, time.Minute)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, model.Address{1})
	require.Error(t, err)
	require.False(t, ok)
	require.Error(t, c.Set(ctx, model.Address{1}, []byte("x")))
	require.NoError(t, c.Invalidate(ctx), "nothing to invalidate")
}

func TestNop(t *testing.T) {
	var c Cache = Nop{}
	_, ok, err := c.Get(context.Background(), model.Address{})
	require.NoError(t, err)
	require.False(t, ok)
}
