package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/deskops/helpdesk-service/internal/config"
)

func TestNewPostgres_RequiresDSN(t *testing.T) {
	_, err := NewPostgres(context.Background(), config.PostgresConfig{}, zap.NewNop())
	assert.ErrorIs(t, err, ErrMissingDSN)
}

func TestApplyPoolLimits(t *testing.T) {
	poolCfg, err := pgxpool.ParseConfig("postgres://u:p@localhost:5432/helpdesk")
	require.NoError(t, err)

	applyPoolLimits(poolCfg, config.PostgresConfig{
		MaxConns:       8,
		MinConns:       20,
		ConnMaxIdleSec: 15,
		ConnMaxLifeSec: 120,
	})

	assert.Equal(t, int32(8), poolCfg.MaxConns)
	assert.NotEqual(t, int32(20), poolCfg.MinConns)
	assert.Equal(t, 15*time.Second, poolCfg.MaxConnIdleTime)
	assert.Equal(t, 2*time.Minute, poolCfg.MaxConnLifetime)
}
