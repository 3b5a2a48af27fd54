package manychat

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"jornada/pkg/config"
	"jornada/pkg/errutil"
	"jornada/pkg/lock"
	"jornada/pkg/rediskey"
	"jornada/pkg/task"
	"jornada/services/actionlog"
	"jornada/services/participant"
	"jornada/services/project"
	"jornada/services/proof"
	"jornada/services/ranking"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const defaultLockTTL = 10 * time.Second

// Result is the pipeline outcome returned to the webhook caller. Fields are
// set according to Status.
type Result struct {
	Status        actionlog.Outcome    `json:"status"`
	ActionLog     *actionlog.ActionLog `json:"actionLog,omitempty"`
	PointsAwarded *int                 `json:"pointsAwarded,omitempty"`
	Delta         *int                 `json:"delta,omitempty"`
	UserID        string               `json:"userId,omitempty"`
	ProjectID     string               `json:"projectId,omitempty"`
	DayNumber     int                  `json:"dayNumber,omitempty"`
}

type Service struct {
	db       *gorm.DB
	node     *snowflake.Node
	locker   lock.Locker
	lockTTL  time.Duration
	enqueuer task.Enqueuer
	tracer   trace.Tracer

	participants *participant.Service
	projects     *project.Service
	actionLogs   *actionlog.Service
	ranking      *ranking.Service
}

type ServiceParams struct {
	fx.In

	DB           *gorm.DB
	Node         *snowflake.Node
	Config       *config.Config `optional:"true"`
	Locker       lock.Locker
	Enqueuer     task.Enqueuer `optional:"true"`
	Participants *participant.Service
	Projects     *project.Service
	ActionLogs   *actionlog.Service
	Ranking      *ranking.Service
}

func NewService(p ServiceParams) *Service {
	ttl := defaultLockTTL
	if p.Config != nil && p.Config.Manychat.LockTTL > 0 {
		ttl = p.Config.Manychat.LockTTL
	}

	return &Service{
		db:           p.DB,
		node:         p.Node,
		locker:       p.Locker,
		lockTTL:      ttl,
		enqueuer:     p.Enqueuer,
		tracer:       otel.Tracer("jornada/manychat"),
		participants: p.Participants,
		projects:     p.Projects,
		actionLogs:   p.ActionLogs,
		ranking:      p.Ranking,
	}
}

// HandlePayload parses and processes one webhook body and records it in the
// inbound audit trail. Returned errors are errutil.BaseError values.
func (s *Service) HandlePayload(ctx context.Context, requestID string, body []byte) (*Result, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "manychat.HandlePayload")
	defer span.End()

	audit := &InboundEvent{ID: s.node.Generate().String(), RequestID: requestID}
	if json.Valid(body) {
		audit.Payload = datatypes.JSON(body)
	}

	res, err := s.parseAndHandle(ctx, body, audit)

	status := EventFailed
	switch {
	case err == nil:
		status = string(res.Status)
	case isRejection(err):
		status = EventRejected
	}
	audit.Status = status
	if err != nil {
		audit.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, status)
	}
	span.SetAttributes(
		attribute.String("manychat.status", status),
		attribute.String("participant.id", audit.ParticipantID),
		attribute.String("project.id", audit.ProjectID),
		attribute.Int("day.number", audit.DayNumber),
	)

	if werr := s.db.WithContext(ctx).Create(audit).Error; werr != nil {
		zap.L().Warn("failed to write inbound event audit", zap.String("request_id", requestID), zap.Error(werr))
	}

	eventsTotal.WithLabelValues(status).Inc()
	eventDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())

	if err != nil {
		return nil, mapError(err)
	}
	return res, nil
}

func (s *Service) parseAndHandle(ctx context.Context, body []byte, audit *InboundEvent) (*Result, error) {
	ev, err := Parse(body)
	if err != nil {
		return nil, err
	}
	audit.SubscriberID = ev.Identity.SubscriberID
	return s.handle(ctx, ev, audit)
}

// HandleEvent runs an already parsed event through the pipeline without
// auditing it.
func (s *Service) HandleEvent(ctx context.Context, ev *Event) (*Result, error) {
	res, err := s.handle(ctx, ev, &InboundEvent{})
	if err != nil {
		return nil, mapError(err)
	}
	return res, nil
}

func (s *Service) handle(ctx context.Context, ev *Event, audit *InboundEvent) (*Result, error) {
	zapLog := zap.L().With(
		zap.String("subscriber_id", ev.Identity.SubscriberID),
		zap.String("project_hint", ev.ProjectID),
		zap.Int("day_hint", ev.DayNumber),
	)

	who, err := s.participants.FindOrProvision(ctx, ev.Identity)
	if err != nil {
		return nil, err
	}
	audit.ParticipantID = who.ID

	proj, err := s.projects.ResolveProject(ctx, ev.ProjectID)
	if err != nil {
		return nil, err
	}
	audit.ProjectID = proj.ID

	day, err := s.projects.ResolveDay(proj, ev.DayNumber)
	if err != nil {
		return nil, err
	}
	audit.DayNumber = day

	if _, err := s.projects.GetTemplate(ctx, proj.ID, day); err != nil {
		return nil, err
	}

	zapLog = zapLog.With(
		zap.String("participant_id", who.ID),
		zap.String("project_id", proj.ID),
		zap.Int("day_number", day),
	)

	release, err := s.locker.Acquire(ctx, rediskey.BuildParticipantProjectLockKey(who.ID, proj.ID), s.lockTTL)
	if err != nil {
		zapLog.Warn("failed to acquire participant lock", zap.Error(err))
		return nil, err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			zapLog.Warn("failed to release participant lock", zap.Error(err))
		}
	}()

	sub := actionlog.Submission{
		ParticipantID: who.ID,
		ProjectID:     proj.ID,
		DayNumber:     day,
		PhotoURL:      actionlog.DetectPhoto(ev.Attachments),
		Notes:         ev.Notes,
	}

	var res *actionlog.Result
	rankingChanged := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := s.actionLogs.Reconcile(ctx, tx, sub)
		if err != nil {
			return err
		}
		res = r

		if r.Outcome == actionlog.OutcomeNoChange || (r.Outcome == actionlog.OutcomeUpdated && r.Delta == 0) {
			return nil
		}
		if _, err := s.ranking.ApplyDelta(ctx, tx, who.ID, proj.ID, r.Delta, r.IsNewCompletion); err != nil {
			return err
		}
		rankingChanged = true
		return nil
	})
	if err != nil {
		zapLog.Error("failed to apply completion", zap.Error(err))
		return nil, err
	}

	if rankingChanged {
		s.ranking.Invalidate(ctx, proj.ID)
	}
	if res.Delta > 0 {
		pointsAwarded.Add(float64(res.Delta))
	}
	if res.NewPhoto {
		s.enqueueArchive(ctx, res.Log)
	}

	zapLog.Info("completion processed",
		zap.String("outcome", string(res.Outcome)),
		zap.Int("award", res.Award),
		zap.Int("delta", res.Delta),
	)

	return buildResult(res), nil
}

func (s *Service) enqueueArchive(ctx context.Context, log *actionlog.ActionLog) {
	if s.enqueuer == nil || log.PhotoURL == nil {
		return
	}

	t, err := proof.NewArchiveTask(log.ID, *log.PhotoURL)
	if err != nil {
		zap.L().Error("failed to build proof archive task", zap.Error(err))
		return
	}
	if _, err := s.enqueuer.Enqueue(ctx, t, asynq.Queue(task.QueueDefault), asynq.MaxRetry(5)); err != nil {
		zap.L().Warn("failed to enqueue proof archive", zap.String("action_log_id", log.ID), zap.Error(err))
	}
}

func buildResult(r *actionlog.Result) *Result {
	switch r.Outcome {
	case actionlog.OutcomeCreated:
		return &Result{Status: r.Outcome, ActionLog: r.Log, PointsAwarded: intPtr(r.Award)}
	case actionlog.OutcomeUpdated:
		return &Result{Status: r.Outcome, ActionLog: r.Log, Delta: intPtr(r.Delta)}
	default:
		return &Result{
			Status:        r.Outcome,
			UserID:        r.Log.ParticipantID,
			ProjectID:     r.Log.ProjectID,
			DayNumber:     r.Log.DayNumber,
			PointsAwarded: intPtr(r.Award),
		}
	}
}

func intPtr(v int) *int {
	return &v
}

func isRejection(err error) bool {
	be, ok := mapError(err).(errutil.BaseError)
	return ok && be.Code != errutil.StatusInternal
}

func mapError(err error) error {
	if _, ok := errutil.As(err); ok {
		return err
	}

	switch {
	case errors.Is(err, ErrInvalidPayload):
		return errutil.BadRequest("Invalid JSON payload", err)
	case errors.Is(err, participant.ErrUnidentifiedSender):
		return errutil.BadRequest("User not identified in payload", err)
	case errors.Is(err, participant.ErrParticipantDisabled):
		return errutil.Forbidden("User is disabled", err)
	case errors.Is(err, project.ErrNoActiveProject):
		return errutil.BadRequest("No active project found and projectId not provided in payload.", err)
	case errors.Is(err, project.ErrProjectRequired):
		return errutil.BadRequest("projectId is required", err)
	case errors.Is(err, project.ErrProjectNotFound):
		return errutil.BadRequest("Project not found for given projectId", err)
	case errors.Is(err, project.ErrDayBeforeStart):
		return errutil.BadRequest("Project has not started yet; cannot compute dayNumber. Provide dayNumber in payload.", err)
	case errors.Is(err, project.ErrDayNotComputable):
		return errutil.BadRequest("Project does not have a startDate; cannot compute dayNumber. Provide dayNumber in payload.", err)
	case errors.Is(err, project.ErrTemplateNotConfigured):
		return errutil.BadRequest("Day template not configured for this project/day", err)
	case errors.Is(err, lock.ErrNotAcquired):
		return errutil.Conflict("Another event for this user is being processed", err)
	default:
		return errutil.Internal("unable to process event", err)
	}
}
