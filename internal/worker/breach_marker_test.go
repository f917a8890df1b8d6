package worker

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreachMarkers(t *testing.T) {
	due := time.Date(2024, 3, 1, 13, 0, 0, 0, time.UTC)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	markers := map[string]BreachMarker{
		"memory": NewMemoryBreachMarker(time.Hour),
		"redis":  NewRedisBreachMarker(client, time.Hour),
	}
	for name, marker := range markers {
		t.Run(name, func(t *testing.T) {
			first, err := marker.Mark(context.Background(), 7, due)
			require.NoError(t, err)
			assert.True(t, first)

			again, err := marker.Mark(context.Background(), 7, due)
			require.NoError(t, err)
			assert.False(t, again)

			moved, err := marker.Mark(context.Background(), 7, due.Add(time.Hour))
			require.NoError(t, err)
			assert.True(t, moved, "a new deadline is a new breach")
		})
	}

	assert.True(t, mr.Exists(breachKey(7, due)))
	assert.Equal(t, time.Hour, mr.TTL(breachKey(7, due)))
}

func TestMemoryBreachMarker_Expiry(t *testing.T) {
	now := time.Date(2024, 3, 1, 13, 0, 0, 0, time.UTC)
	marker := NewMemoryBreachMarker(time.Hour)
	marker.now = func() time.Time { return now }

	for id := int64(1); id <= 3; id++ {
		first, err := marker.Mark(context.Background(), id, now)
		require.NoError(t, err)
		require.True(t, first)
	}
	assert.Equal(t, 3, marker.size())

	now = now.Add(30 * time.Minute)
	again, err := marker.Mark(context.Background(), 1, time.Date(2024, 3, 1, 13, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.False(t, again, "still within ttl")

	now = now.Add(time.Hour)
	_, err = marker.Mark(context.Background(), 4, now)
	require.NoError(t, err)
	assert.Equal(t, 1, marker.size(), "expired marks are pruned")

	reported, err := marker.Mark(context.Background(), 1, time.Date(2024, 3, 1, 13, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, reported, "an expired mark reports again")
}

func TestRedisBreachMarker_ServerDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	_, err := NewRedisBreachMarker(client, 0).Mark(context.Background(), 1, time.Now())
	assert.Error(t, err)
}
