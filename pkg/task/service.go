package task

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// ErrDuplicate reports that an equivalent unique task is already queued.
var ErrDuplicate = errors.New("task already queued")

type Enqueuer interface {
	Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type clientEnqueuer struct {
	client *asynq.Client
	tracer trace.Tracer
	log    *zap.Logger
}

// NewEnqueuer wraps client; a nil client produces a nil Enqueuer so callers
// can fall back to running the work inline.
func NewEnqueuer(client *asynq.Client, log *zap.Logger) Enqueuer {
	if client == nil {
		return nil
	}
	return &clientEnqueuer{
		client: client,
		tracer: otel.Tracer("jornada/task"),
		log:    log.Named("task"),
	}
}

func (e *clientEnqueuer) Enqueue(ctx context.Context, t *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	ctx, span := e.tracer.Start(ctx, "task.Enqueue", trace.WithAttributes(
		attribute.String("task.type", t.Type()),
	))
	defer span.End()

	info, err := e.client.EnqueueContext(ctx, t, opts...)
	switch {
	case errors.Is(err, asynq.ErrDuplicateTask), errors.Is(err, asynq.ErrTaskIDConflict):
		span.SetAttributes(attribute.Bool("task.duplicate", true))
		return nil, fmt.Errorf("%s: %w", t.Type(), ErrDuplicate)
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, "enqueue failed")
		return nil, fmt.Errorf("enqueue %s: %w", t.Type(), err)
	}

	span.SetAttributes(attribute.String("task.id", info.ID), attribute.String("task.queue", info.Queue))
	e.log.Debug("task enqueued",
		zap.String("type", t.Type()),
		zap.String("id", info.ID),
		zap.String("queue", info.Queue),
	)
	return info, nil
}
