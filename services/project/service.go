package project

import (
	"context"
	"errors"
	"fmt"
	"time"

	"jornada/pkg/config"
	"jornada/pkg/db/option"
	"jornada/pkg/repository"
	"jornada/pkg/sequence"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrProjectNotFound       = errors.New("project not found")
	ErrNoActiveProject       = errors.New("no active project")
	ErrProjectRequired       = errors.New("project id required")
	ErrDayNotComputable      = errors.New("day number not computable")
	ErrDayBeforeStart        = fmt.Errorf("%w: event precedes the project start date", ErrDayNotComputable)
	ErrTemplateNotConfigured = errors.New("day template not configured")
)

type Service struct {
	db       *gorm.DB
	node     *snowflake.Node
	seq      sequence.Generator
	fallback string
	now      func() time.Time

	project  repository.Repository[Project]
	template repository.Repository[DayTemplate]
}

type ServiceParams struct {
	fx.In

	DB     *gorm.DB
	Node   *snowflake.Node
	Seq    sequence.Generator
	Config *config.Config
	Clock  func() time.Time `name:"clock" optional:"true"`
}

func NewService(p ServiceParams) *Service {
	fallback := config.FallbackEarliestActive
	if p.Config != nil && p.Config.Manychat.ProjectFallback != "" {
		fallback = p.Config.Manychat.ProjectFallback
	}

	now := p.Clock
	if now == nil {
		now = time.Now
	}

	return &Service{
		db:       p.DB,
		node:     p.Node,
		seq:      p.Seq,
		fallback: fallback,
		now:      now,
		project:  repository.ProvideStore[Project](p.DB),
		template: repository.ProvideStore[DayTemplate](p.DB),
	}
}

// ResolveProject returns the hinted project, or applies the fallback strategy
// when the event carries no hint.
func (s *Service) ResolveProject(ctx context.Context, hint string) (*Project, error) {
	if hint != "" {
		p, err := s.project.FindOne(ctx, &Project{ID: hint})
		if err != nil {
			zap.L().Error("failed to find project", zap.String("project_id", hint), zap.Error(err))
			return nil, err
		}
		if p == nil {
			return nil, ErrProjectNotFound
		}
		return p, nil
	}

	if s.fallback == config.FallbackNone {
		return nil, ErrProjectRequired
	}

	p, err := s.project.FindOne(ctx, nil,
		option.ApplyOperator(option.Condition{Field: "is_active", Value: true}),
		option.WithSortBy(
			option.QuerySortBy{SortBy: "created_at", OrderBy: "asc"},
			option.QuerySortBy{SortBy: "id", OrderBy: "asc"},
		),
	)
	if err != nil {
		zap.L().Error("failed to find active project", zap.Error(err))
		return nil, err
	}
	if p == nil {
		return nil, ErrNoActiveProject
	}

	zap.L().Info("projectId not provided, defaulting to active project", zap.String("project_id", p.ID))
	return p, nil
}

// ResolveDay returns the 1-based journey day. A positive hint is trusted as is;
// otherwise the day is derived from the project start date and clamped to its
// length.
func (s *Service) ResolveDay(p *Project, hint int) (int, error) {
	if hint > 0 {
		return hint, nil
	}

	if p.StartDate == nil {
		return 0, ErrDayNotComputable
	}

	return DayNumber(*p.StartDate, s.now(), p.Days())
}

// DayNumber is floor(elapsed / 24h) + 1, capped at totalDays.
func DayNumber(start, now time.Time, totalDays int) (int, error) {
	elapsed := now.Sub(start)
	if elapsed < 0 {
		return 0, ErrDayBeforeStart
	}

	day := int(elapsed/(24*time.Hour)) + 1
	if totalDays > 0 && day > totalDays {
		day = totalDays
	}
	return day, nil
}

func (s *Service) GetTemplate(ctx context.Context, projectID string, day int) (*DayTemplate, error) {
	t, err := s.template.FindOne(ctx, &DayTemplate{ProjectID: projectID, DayNumber: day})
	if err != nil {
		zap.L().Error("failed to find day template",
			zap.String("project_id", projectID),
			zap.Int("day_number", day),
			zap.Error(err),
		)
		return nil, err
	}
	if t == nil {
		return nil, ErrTemplateNotConfigured
	}
	return t, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Project, error) {
	p, err := s.project.FindOne(ctx, &Project{ID: id})
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrProjectNotFound
	}
	return p, nil
}

func (s *Service) ListActive(ctx context.Context) ([]*Project, error) {
	return s.project.Find(ctx, nil,
		option.ApplyOperator(option.Condition{Field: "is_active", Value: true}),
		option.WithSortBy(option.QuerySortBy{SortBy: "created_at", OrderBy: "asc"}),
	)
}

type TemplateInput struct {
	DayNumber     int
	Title         string
	Description   string
	Category      string
	Points        int
	RequiresPhoto bool
}

type CreateProjectRequest struct {
	Name      string
	StartDate *time.Time
	TotalDays int
	Inactive  bool
	Templates []TemplateInput
}

// Create stores a project together with its day templates.
func (s *Service) Create(ctx context.Context, req CreateProjectRequest) (*Project, error) {
	code, err := s.seq.NextProjectCode(ctx)
	if err != nil {
		return nil, err
	}

	p := &Project{
		ID:        s.node.Generate().String(),
		Code:      code,
		Name:      req.Name,
		Slug:      slug.Make(req.Name),
		StartDate: req.StartDate,
		TotalDays: req.TotalDays,
		IsActive:  !req.Inactive,
	}
	if p.TotalDays <= 0 {
		p.TotalDays = DefaultTotalDays
	}

	templates := make([]*DayTemplate, 0, len(req.Templates))
	for _, in := range req.Templates {
		if in.DayNumber < 1 || in.DayNumber > p.TotalDays {
			return nil, fmt.Errorf("template day %d outside 1..%d", in.DayNumber, p.TotalDays)
		}
		points := in.Points
		if points <= 0 {
			points = DefaultPoints
		}
		templates = append(templates, &DayTemplate{
			ID:            s.node.Generate().String(),
			ProjectID:     p.ID,
			DayNumber:     in.DayNumber,
			Title:         in.Title,
			Description:   in.Description,
			Category:      in.Category,
			Points:        points,
			RequiresPhoto: in.RequiresPhoto,
		})
	}

	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.project.WithTrx(tx).Create(ctx, p); err != nil {
			return err
		}
		// Create backfills the column default into p.IsActive, so branch on the request.
		if req.Inactive {
			if err := s.project.WithTrx(tx).Update(ctx, p.ID, map[string]any{"is_active": false}); err != nil {
				return err
			}
			p.IsActive = false
		}
		return s.template.WithTrx(tx).BatchCreate(ctx, templates)
	}); err != nil {
		zap.L().Error("failed to create project", zap.String("name", req.Name), zap.Error(err))
		return nil, err
	}

	zap.L().Info("project created",
		zap.String("project_id", p.ID),
		zap.String("code", p.Code),
		zap.Int("templates", len(templates)),
	)
	return p, nil
}
