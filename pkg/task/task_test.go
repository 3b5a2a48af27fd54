package task

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewEnqueuerWithoutClient(t *testing.T) {
	require.Nil(t, NewEnqueuer(nil, zap.NewNop()))
}

func TestObserve(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	mw := Observe(zap.New(core))

	ok := mw(asynq.HandlerFunc(func(context.Context, *asynq.Task) error { return nil }))
	skip := mw(asynq.HandlerFunc(func(context.Context, *asynq.Task) error {
		return errors.Join(errors.New("bad payload"), asynq.SkipRetry)
	}))
	fail := mw(asynq.HandlerFunc(func(context.Context, *asynq.Task) error { return errors.New("boom") }))

	require.NoError(t, ok.ProcessTask(context.Background(), asynq.NewTask("test:observe", nil)))
	require.ErrorIs(t, skip.ProcessTask(context.Background(), asynq.NewTask("test:observe", nil)), asynq.SkipRetry)
	require.Error(t, fail.ProcessTask(context.Background(), asynq.NewTask("test:observe", nil)))

	require.Equal(t, 1, logs.FilterMessage("task done").Len())
	require.Equal(t, 1, logs.FilterMessage("task dropped").Len())
	require.Equal(t, 1, logs.FilterMessage("task failed").Len())
}

func TestServerConfigWeights(t *testing.T) {
	cfg := ServerConfig(zap.NewNop())
	require.Greater(t, cfg.Queues[QueueCritical], cfg.Queues[QueueDefault])
	require.Greater(t, cfg.Queues[QueueDefault], cfg.Queues[QueueLow])
	require.NotNil(t, cfg.Logger)
}
