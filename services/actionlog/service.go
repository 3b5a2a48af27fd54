package actionlog

import (
	"context"
	"time"

	"jornada/pkg/db/option"
	"jornada/pkg/repository"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db   *gorm.DB
	node *snowflake.Node
	now  func() time.Time

	actionLog repository.Repository[ActionLog]
}

type ServiceParams struct {
	fx.In

	DB    *gorm.DB
	Node  *snowflake.Node
	Clock func() time.Time `name:"clock" optional:"true"`
}

func NewService(p ServiceParams) *Service {
	now := p.Clock
	if now == nil {
		now = time.Now
	}

	return &Service{
		db:        p.DB,
		node:      p.Node,
		now:       now,
		actionLog: repository.ProvideStore[ActionLog](p.DB),
	}
}

// Reconcile applies a submission to the participant's day record inside tx and
// reports the ranking delta it implies.
func (s *Service) Reconcile(ctx context.Context, tx *gorm.DB, sub Submission) (*Result, error) {
	zapLog := zap.L().With(
		zap.String("participant_id", sub.ParticipantID),
		zap.String("project_id", sub.ProjectID),
		zap.Int("day_number", sub.DayNumber),
	)

	repo := s.actionLog.WithTrx(tx)
	award := ComputeAward(sub.PhotoURL != "")
	now := s.now()

	existing, err := repo.FindOne(ctx, &ActionLog{
		ParticipantID: sub.ParticipantID,
		ProjectID:     sub.ProjectID,
		DayNumber:     sub.DayNumber,
	}, option.WithLockingUpdate())
	if err != nil {
		zapLog.Error("failed to query action log", zap.Error(err))
		return nil, err
	}

	if existing == nil {
		log := &ActionLog{
			ID:            s.node.Generate().String(),
			ParticipantID: sub.ParticipantID,
			ProjectID:     sub.ProjectID,
			DayNumber:     sub.DayNumber,
			Status:        StatusCompleted,
			PointsAwarded: award,
			PhotoURL:      optional(sub.PhotoURL),
			Notes:         optional(sub.Notes),
			CompletedAt:   &now,
		}
		if err := repo.Create(ctx, log); err != nil {
			zapLog.Error("failed to create action log", zap.Error(err))
			return nil, err
		}

		return &Result{
			Outcome:         OutcomeCreated,
			Log:             log,
			Award:           award,
			Delta:           award,
			IsNewCompletion: true,
			NewPhoto:        sub.PhotoURL != "",
		}, nil
	}

	previous := existing.PointsAwarded
	if existing.Status == StatusCompleted && previous == award {
		zapLog.Info("action log already concluded with same points", zap.Int("points", previous))
		return &Result{Outcome: OutcomeNoChange, Log: existing, Award: previous}, nil
	}

	updates := map[string]any{
		"status":         StatusCompleted,
		"points_awarded": award,
		"completed_at":   now,
	}
	newPhoto := sub.PhotoURL != "" && (existing.PhotoURL == nil || *existing.PhotoURL != sub.PhotoURL)
	if sub.PhotoURL != "" {
		updates["photo_url"] = sub.PhotoURL
		existing.PhotoURL = &sub.PhotoURL
	}
	if newPhoto {
		updates["photo_object_key"] = nil
		existing.PhotoObjectKey = nil
	}
	if sub.Notes != "" {
		updates["notes"] = sub.Notes
		existing.Notes = &sub.Notes
	}

	if err := repo.Update(ctx, existing.ID, updates); err != nil {
		zapLog.Error("failed to update action log", zap.Error(err))
		return nil, err
	}

	existing.Status = StatusCompleted
	existing.PointsAwarded = award
	existing.CompletedAt = &now

	return &Result{
		Outcome:  OutcomeUpdated,
		Log:      existing,
		Award:    award,
		Delta:    award - previous,
		NewPhoto: newPhoto,
	}, nil
}

func (s *Service) Get(ctx context.Context, id string) (*ActionLog, error) {
	return s.actionLog.FindOne(ctx, &ActionLog{ID: id})
}

// MarkArchived records where the photo proof was copied. It is a no-op when
// the photo URL changed since the archive was requested.
func (s *Service) MarkArchived(ctx context.Context, id, photoURL, objectKey string) error {
	return s.db.WithContext(ctx).
		Model(&ActionLog{}).
		Where("id = ? AND photo_url = ?", id, photoURL).
		Update("photo_object_key", objectKey).Error
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
