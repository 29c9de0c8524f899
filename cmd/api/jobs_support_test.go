package main

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/todo-web/internal/config"
)

type noopPurger struct{}

func (noopPurger) PurgeCompleted(context.Context, uint) (int64, error) { return 0, nil }

func TestSetupJobsRejectsBadURL(t *testing.T) {
	_, err := setupJobs(&config.Config{QueueRedisURL: "://bad"}, noopPurger{}, testLogger)
	assert.Error(t, err)
}

func TestSetupJobsShutdownClosesConnections(t *testing.T) {
	mr := miniredis.RunT(t)
	manager, err := setupJobs(&config.Config{QueueRedisURL: "redis://" + mr.Addr()}, noopPurger{}, testLogger)
	require.NoError(t, err)

	record, err := manager.GetRecord(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, record)

	require.NoError(t, manager.Shutdown(context.Background()))

	_, err = manager.GetRecord(context.Background(), "missing")
	assert.ErrorIs(t, err, redis.ErrClosed)
}
