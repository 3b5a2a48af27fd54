package ranking

import (
	"context"
	"errors"
	"time"

	"jornada/pkg/config"
	"jornada/pkg/db/option"
	"jornada/pkg/db/pagination"
	"jornada/pkg/repository"
	"jornada/pkg/task"
	"jornada/services/actionlog"
	"jornada/services/project"

	"github.com/bwmarrin/snowflake"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Service struct {
	db       *gorm.DB
	node     *snowflake.Node
	cache    *TopCache
	enqueuer task.Enqueuer
	rdb      *redis.Client

	summary repository.Repository[RankingSummary]
	project repository.Repository[project.Project]
}

type ServiceParams struct {
	fx.In

	DB       *gorm.DB
	Node     *snowflake.Node
	Config   *config.Config `optional:"true"`
	Enqueuer task.Enqueuer  `optional:"true"`
	Redis    *redis.Client  `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	ttl := 30 * time.Second
	if p.Config != nil && p.Config.Ranking.CacheTTL > 0 {
		ttl = p.Config.Ranking.CacheTTL
	}

	return &Service{
		db:       p.DB,
		node:     p.Node,
		cache:    NewTopCache(ttl),
		enqueuer: p.Enqueuer,
		rdb:      p.Redis,
		summary:  repository.ProvideStore[RankingSummary](p.DB),
		project:  repository.ProvideStore[project.Project](p.DB),
	}
}

func traceFields(ctx context.Context) []zap.Field {
	sc := trace.SpanFromContext(ctx).SpanContext()
	return []zap.Field{
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	}
}

// totalDays never fails the aggregation: a missing project counts as 21 days.
func (s *Service) totalDays(ctx context.Context, tx *gorm.DB, projectID string) int {
	p, err := s.project.WithTrx(tx).FindOne(ctx, &project.Project{ID: projectID})
	if err != nil {
		zap.L().Warn("failed to read project length, assuming default", zap.String("project_id", projectID), zap.Error(err))
		return project.DefaultTotalDays
	}
	return p.Days()
}

// ApplyDelta folds one scoring result into the participant's summary row. It
// must run inside the scoring transaction; callers invalidate the cache after
// commit.
func (s *Service) ApplyDelta(ctx context.Context, tx *gorm.DB, participantID, projectID string, delta int, isNewCompletion bool) (*RankingSummary, error) {
	zapLog := zap.L().With(traceFields(ctx)...).With(
		zap.String("participant_id", participantID),
		zap.String("project_id", projectID),
		zap.Int("delta", delta),
		zap.Bool("new_completion", isNewCompletion),
	)

	repo := s.summary.WithTrx(tx)

	existing, err := repo.FindOne(ctx, &RankingSummary{ParticipantID: participantID, ProjectID: projectID}, option.WithLockingUpdate())
	if err != nil {
		zapLog.Error("failed to query ranking summary", zap.Error(err))
		return nil, err
	}

	days := s.totalDays(ctx, tx, projectID)

	if existing == nil {
		completed := 0
		if isNewCompletion {
			completed = 1
		}
		row := &RankingSummary{
			ID:             s.node.Generate().String(),
			ParticipantID:  participantID,
			ProjectID:      projectID,
			TotalPoints:    max(0, delta),
			CompletedDays:  completed,
			CompletionRate: CompletionRate(completed, days),
		}
		if err := repo.Create(ctx, row); err != nil {
			zapLog.Error("failed to create ranking summary", zap.Error(err))
			return nil, err
		}
		return row, nil
	}

	increments := map[string]any{
		"total_points": gorm.Expr("total_points + ?", delta),
	}
	if isNewCompletion {
		increments["completed_days"] = gorm.Expr("completed_days + ?", 1)
	}
	if err := repo.Update(ctx, existing.ID, increments); err != nil {
		zapLog.Error("failed to increment ranking summary", zap.Error(err))
		return nil, err
	}

	updated, err := repo.FindOne(ctx, &RankingSummary{ID: existing.ID})
	if err != nil || updated == nil {
		zapLog.Error("failed to reload ranking summary", zap.Error(err))
		return nil, errors.Join(errors.New("reload ranking summary"), err)
	}

	updated.CompletionRate = CompletionRate(updated.CompletedDays, days)
	if err := repo.Update(ctx, updated.ID, map[string]any{"completion_rate": updated.CompletionRate}); err != nil {
		zapLog.Error("failed to update completion rate", zap.Error(err))
		return nil, err
	}

	return updated, nil
}

// Invalidate drops the cached top-10 of a project here and, when redis is
// configured, in every other process listening on the invalidation channel.
func (s *Service) Invalidate(ctx context.Context, projectID string) {
	s.cache.Invalidate(projectID)
	s.publishInvalidation(ctx, projectID)
}

func (s *Service) ordered(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Table("ranking_summaries AS r").
		Select("r.participant_id, p.name, p.municipality_id, r.total_points, r.completed_days, r.completion_rate").
		Joins("LEFT JOIN participants AS p ON p.id = r.participant_id").
		Order("r.total_points DESC").
		Order("r.completed_days DESC").
		Order("r.participant_id ASC")
}

// Top returns the ten best participants of a project and the caller's position.
func (s *Service) Top(ctx context.Context, projectID, participantID string) (*TopResult, error) {
	top, err := s.cache.Load(projectID, func() ([]Entry, error) {
		var entries []Entry
		err := s.ordered(ctx).
			Where("r.project_id = ?", projectID).
			Limit(TopSize).
			Scan(&entries).Error
		return entries, err
	})
	if err != nil {
		zap.L().With(traceFields(ctx)...).Error("failed to load top ranking", zap.String("project_id", projectID), zap.Error(err))
		return nil, err
	}
	if top == nil {
		top = []Entry{}
	}

	position, err := s.Position(ctx, projectID, participantID)
	if err != nil {
		return nil, err
	}

	return &TopResult{Top10: top, Position: position}, nil
}

// Position is the 1-based rank under the leaderboard ordering, 0 when the
// participant has no summary in the project.
func (s *Service) Position(ctx context.Context, projectID, participantID string) (int, error) {
	if participantID == "" {
		return 0, nil
	}

	mine, err := s.summary.FindOne(ctx, &RankingSummary{ParticipantID: participantID, ProjectID: projectID})
	if err != nil {
		return 0, err
	}
	if mine == nil {
		return 0, nil
	}

	var ahead int64
	err = s.db.WithContext(ctx).Model(&RankingSummary{}).
		Where("project_id = ?", projectID).
		Where(
			s.db.Where("total_points > ?", mine.TotalPoints).
				Or("total_points = ? AND completed_days > ?", mine.TotalPoints, mine.CompletedDays).
				Or("total_points = ? AND completed_days = ? AND participant_id < ?", mine.TotalPoints, mine.CompletedDays, mine.ParticipantID),
		).
		Count(&ahead).Error
	if err != nil {
		return 0, err
	}

	return int(ahead) + 1, nil
}

// List returns the full ordered ranking, optionally restricted to one
// municipality.
func (s *Service) List(ctx context.Context, projectID, municipalityID string, page pagination.Pagination) ([]Entry, pagination.PageInfo, error) {
	filter := func(db *gorm.DB) *gorm.DB {
		db = db.Where("r.project_id = ?", projectID)
		if municipalityID != "" {
			db = db.Where("p.municipality_id = ?", municipalityID)
		}
		return db
	}

	var total int64
	if err := s.db.WithContext(ctx).
		Table("ranking_summaries AS r").
		Joins("LEFT JOIN participants AS p ON p.id = r.participant_id").
		Scopes(filter).
		Count(&total).Error; err != nil {
		return nil, pagination.PageInfo{}, err
	}

	entries := []Entry{}
	if err := s.ordered(ctx).Scopes(filter, page.Scope()).Scan(&entries).Error; err != nil {
		zap.L().With(traceFields(ctx)...).Error("failed to list ranking", zap.String("project_id", projectID), zap.Error(err))
		return nil, pagination.PageInfo{}, err
	}

	return entries, pagination.BuildPageInfo(page, total), nil
}

type aggregate struct {
	ParticipantID string
	Points        int
	Days          int
}

// Recompute rebuilds every summary of a project from its completed action
// logs. Running it twice yields the same rows.
func (s *Service) Recompute(ctx context.Context, projectID string) (*RecomputeResult, error) {
	zapLog := zap.L().With(traceFields(ctx)...).With(zap.String("project_id", projectID))
	res := &RecomputeResult{ProjectID: projectID}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.summary.WithTrx(tx)

		current, err := repo.Find(ctx, &RankingSummary{ProjectID: projectID}, option.WithLockingUpdate())
		if err != nil {
			return err
		}

		var aggs []aggregate
		if err := tx.Model(&actionlog.ActionLog{}).
			Select("participant_id, SUM(points_awarded) AS points, COUNT(*) AS days").
			Where("project_id = ? AND status = ?", projectID, actionlog.StatusCompleted).
			Group("participant_id").
			Scan(&aggs).Error; err != nil {
			return err
		}

		days := s.totalDays(ctx, tx, projectID)
		seen := make(map[string]bool, len(aggs))
		rows := make([]*RankingSummary, 0, len(aggs))
		for _, a := range aggs {
			seen[a.ParticipantID] = true
			rows = append(rows, &RankingSummary{
				ID:             s.node.Generate().String(),
				ParticipantID:  a.ParticipantID,
				ProjectID:      projectID,
				TotalPoints:    a.Points,
				CompletedDays:  a.Days,
				CompletionRate: CompletionRate(a.Days, days),
			})
		}

		if len(rows) > 0 {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "participant_id"}, {Name: "project_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"total_points", "completed_days", "completion_rate", "updated_at"}),
			}).Create(&rows).Error; err != nil {
				return err
			}
		}

		for _, c := range current {
			if seen[c.ParticipantID] {
				continue
			}
			if err := repo.Update(ctx, c.ID, map[string]any{
				"total_points":    0,
				"completed_days":  0,
				"completion_rate": 0,
			}); err != nil {
				return err
			}
			res.Reset++
		}

		res.Participants = len(rows)
		return nil
	})
	if err != nil {
		zapLog.Error("failed to recompute ranking", zap.Error(err))
		return nil, err
	}

	s.Invalidate(ctx, projectID)
	zapLog.Info("ranking recomputed", zap.Int("participants", res.Participants), zap.Int("reset", res.Reset))
	return res, nil
}
