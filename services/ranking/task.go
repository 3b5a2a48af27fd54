package ranking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"jornada/pkg/task"
	"jornada/pkg/taskname"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

type ReconcilePayload struct {
	ProjectID string `json:"project_id"`
}

func NewReconcileTask(projectID string) (*asynq.Task, error) {
	payload, err := json.Marshal(ReconcilePayload{ProjectID: projectID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskname.RankingReconcile, payload), nil
}

// EnqueueReconcile queues a recompute for projectID. Without a queue the
// recompute runs inline and its result is returned.
func (s *Service) EnqueueReconcile(ctx context.Context, projectID string) (*RecomputeResult, error) {
	if s.enqueuer == nil {
		return s.Recompute(ctx, projectID)
	}

	t, err := NewReconcileTask(projectID)
	if err != nil {
		return nil, err
	}

	info, err := s.enqueuer.Enqueue(ctx, t,
		asynq.Queue(task.QueueLow),
		asynq.MaxRetry(3),
		asynq.Timeout(5*time.Minute),
		asynq.Unique(time.Minute),
	)
	if errors.Is(err, task.ErrDuplicate) {
		zap.L().Debug("ranking reconcile already queued", zap.String("project_id", projectID))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	zap.L().Info("enqueued ranking reconcile",
		zap.String("project_id", projectID),
		zap.String("task_id", info.ID),
		zap.String("queue", info.Queue),
	)
	return nil, nil
}

// HandleReconcileTask is the asynq handler for taskname.RankingReconcile.
func (s *Service) HandleReconcileTask(ctx context.Context, t *asynq.Task) error {
	var payload ReconcilePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		zap.L().Error("invalid reconcile payload", zap.Error(err))
		return fmt.Errorf("decode reconcile payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.ProjectID == "" {
		return fmt.Errorf("reconcile payload without project_id: %w", asynq.SkipRetry)
	}

	_, err := s.Recompute(ctx, payload.ProjectID)
	return err
}
