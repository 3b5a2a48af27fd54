package scheduler

import (
	"context"
	"encoding/json"
	"time"

	"jornada/pkg/taskname"
	"jornada/services/project"
	"jornada/services/ranking"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const fanout = 4

type Service struct {
	db   *gorm.DB
	node *snowflake.Node
	now  func() time.Time

	projects *project.Service
	ranking  *ranking.Service
}

type Params struct {
	fx.In

	DB       *gorm.DB
	Node     *snowflake.Node
	Projects *project.Service
	Ranking  *ranking.Service
	Clock    func() time.Time `name:"clock" optional:"true"`
}

func NewService(p Params) *Service {
	now := p.Clock
	if now == nil {
		now = time.Now
	}

	return &Service{
		db:       p.DB,
		node:     p.Node,
		now:      now,
		projects: p.Projects,
		ranking:  p.Ranking,
	}
}

// EnqueueReconcile records a job and hands the ranking rebuild of projectID to
// the queue. Without a queue the rebuild runs inline and the job completes
// immediately.
func (s *Service) EnqueueReconcile(ctx context.Context, projectID string) (*ScheduledJob, error) {
	started := s.now()
	job := &ScheduledJob{
		ID:        s.node.Generate().String(),
		Name:      taskname.RankingReconcile,
		ProjectID: projectID,
		Status:    JobPending,
		StartedAt: &started,
	}
	if err := s.db.WithContext(ctx).Create(job).Error; err != nil {
		return nil, err
	}

	res, err := s.ranking.EnqueueReconcile(ctx, projectID)
	if err != nil {
		s.finish(ctx, job, JobFailed, err.Error(), nil)
		return job, err
	}

	if res == nil {
		s.finish(ctx, job, JobEnqueued, "", nil)
		return job, nil
	}

	meta, _ := json.Marshal(res)
	s.finish(ctx, job, JobSuccess, "", meta)
	return job, nil
}

func (s *Service) finish(ctx context.Context, job *ScheduledJob, status JobStatus, msg string, meta []byte) {
	done := s.now()
	updates := map[string]any{
		"status":       status,
		"error_msg":    msg,
		"completed_at": done,
	}
	if meta != nil {
		updates["metadata"] = datatypes.JSON(meta)
		job.Metadata = meta
	}

	if err := s.db.WithContext(ctx).Model(&ScheduledJob{}).Where("id = ?", job.ID).Updates(updates).Error; err != nil {
		zap.L().Error("failed to update scheduled job", zap.String("job_id", job.ID), zap.Error(err))
	}

	job.Status = status
	job.ErrorMsg = msg
	job.CompletedAt = &done
}

// EnqueueAllReconciles schedules a ranking rebuild for every active project.
// One failing project does not stop the others.
func (s *Service) EnqueueAllReconciles(ctx context.Context) (int, error) {
	projects, err := s.projects.ListActive(ctx)
	if err != nil {
		return 0, err
	}

	if len(projects) == 0 {
		zap.L().Info("no active projects to reconcile")
		return 0, nil
	}

	var g errgroup.Group
	g.SetLimit(fanout)
	for _, p := range projects {
		g.Go(func() error {
			if _, err := s.EnqueueReconcile(ctx, p.ID); err != nil {
				zap.L().Error("failed enqueue ranking reconcile", zap.String("project_id", p.ID), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	zap.L().Info("finished enqueue ranking reconciles", zap.Int("total_projects", len(projects)))
	return len(projects), nil
}
