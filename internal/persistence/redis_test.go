package persistence

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/deskops/helpdesk-service/internal/config"
)

func TestNewRedis(t *testing.T) {
	t.Run("disabled without address", func(t *testing.T) {
		r := NewRedis(context.Background(), config.RedisConfig{}, zap.NewNop())
		assert.False(t, r.Enabled())
		assert.ErrorIs(t, r.Ping(context.Background()), ErrRedisDisabled)
		r.Close()
	})

	t.Run("connects to server", func(t *testing.T) {
		mr := miniredis.RunT(t)
		r := NewRedis(context.Background(), config.RedisConfig{Addr: mr.Addr()}, zap.NewNop())
		defer r.Close()
		assert.True(t, r.Enabled())
		assert.NoError(t, r.Ping(context.Background()))
	})
}
