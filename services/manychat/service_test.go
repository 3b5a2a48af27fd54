package manychat

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"jornada/pkg/config"
	"jornada/pkg/errutil"
	"jornada/pkg/lock"
	"jornada/pkg/sequence"
	"jornada/pkg/taskname"
	"jornada/services/actionlog"
	"jornada/services/participant"
	"jornada/services/project"
	"jornada/services/ranking"
	"jornada/services/testutil"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeEnqueuer struct {
	mu    sync.Mutex
	tasks []*asynq.Task
}

func (f *fakeEnqueuer) Enqueue(ctx context.Context, t *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, t)
	return &asynq.TaskInfo{ID: "t1", Queue: "default", Type: t.Type()}, nil
}

type busyLocker struct{}

func (busyLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (lock.Release, error) {
	return nil, lock.ErrNotAcquired
}

type fixture struct {
	db       *gorm.DB
	svc      *Service
	ranking  *ranking.Service
	enqueuer *fakeEnqueuer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithFallback(t, config.FallbackEarliestActive)
}

func newFixtureWithFallback(t *testing.T, fallback string) *fixture {
	t.Helper()

	db := testutil.NewTestDB(t,
		&participant.Participant{},
		&project.Project{},
		&project.DayTemplate{},
		&actionlog.ActionLog{},
		&ranking.RankingSummary{},
		&InboundEvent{},
	)
	node := testutil.NewNode(t)
	clock := testutil.NewClock(now).Now
	cfg := &config.Config{}
	cfg.Manychat.ProjectFallback = fallback

	enq := &fakeEnqueuer{}
	rank := ranking.NewService(ranking.ServiceParams{DB: db, Node: node})

	svc := NewService(ServiceParams{
		DB:           db,
		Node:         node,
		Config:       cfg,
		Locker:       lock.NewLocal(),
		Enqueuer:     enq,
		Participants: participant.NewService(participant.ServiceParams{DB: db, Node: node}),
		Projects: project.NewService(project.ServiceParams{
			DB:     db,
			Node:   node,
			Seq:    sequence.NewLocalGenerator(),
			Config: cfg,
			Clock:  clock,
		}),
		ActionLogs: actionlog.NewService(actionlog.ServiceParams{DB: db, Node: node, Clock: clock}),
		Ranking:    rank,
	})

	return &fixture{db: db, svc: svc, ranking: rank, enqueuer: enq}
}

func (f *fixture) project(t *testing.T, id string, createdAt time.Time, start *time.Time, days ...int) {
	t.Helper()
	require.NoError(t, f.db.Create(&project.Project{
		ID:        id,
		Code:      "PRJ-" + id,
		Name:      id,
		StartDate: start,
		TotalDays: 21,
		IsActive:  true,
		CreatedAt: createdAt,
	}).Error)
	for _, d := range days {
		require.NoError(t, f.db.Create(&project.DayTemplate{
			ID:        fmt.Sprintf("%s-d%d", id, d),
			ProjectID: id,
			DayNumber: d,
			Title:     "day",
			Points:    1,
		}).Error)
	}
}

func (f *fixture) summary(t *testing.T, participantID, projectID string) *ranking.RankingSummary {
	t.Helper()
	var row ranking.RankingSummary
	require.NoError(t, f.db.Where("participant_id = ? AND project_id = ?", participantID, projectID).First(&row).Error)
	return &row
}

func payload(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func textEvent(projectID string, day int) map[string]any {
	return map[string]any{
		"subscriber": map[string]any{"id": "mc_1", "phone": "+55 11 98888-0001", "name": "Ana"},
		"message":    map[string]any{"text": "feito"},
		"meta":       map[string]any{"projectId": projectID, "dayNumber": day},
	}
}

func photoEvent(projectID string, day int) map[string]any {
	ev := textEvent(projectID, day)
	ev["message"] = map[string]any{
		"text":        "feito",
		"attachments": []any{map[string]any{"type": "image", "url": "https://cdn.example.com/p.jpg"}},
	}
	return ev
}

func TestIdempotentRedelivery(t *testing.T) {
	f := newFixture(t)
	f.project(t, "p1", now.Add(-time.Hour), nil, 1)
	ctx := context.Background()
	body := payload(t, textEvent("p1", 1))

	res, err := f.svc.HandlePayload(ctx, "r1", body)
	require.NoError(t, err)
	require.Equal(t, actionlog.OutcomeCreated, res.Status)
	require.Equal(t, 5, *res.PointsAwarded)
	require.NotNil(t, res.ActionLog)
	userID := res.ActionLog.ParticipantID

	res, err = f.svc.HandlePayload(ctx, "r2", body)
	require.NoError(t, err)
	require.Equal(t, actionlog.OutcomeNoChange, res.Status)
	require.Equal(t, userID, res.UserID)
	require.Equal(t, "p1", res.ProjectID)
	require.Equal(t, 1, res.DayNumber)
	require.Equal(t, 5, *res.PointsAwarded)
	require.Nil(t, res.ActionLog)

	row := f.summary(t, userID, "p1")
	require.Equal(t, 5, row.TotalPoints)
	require.Equal(t, 1, row.CompletedDays)

	var audits []InboundEvent
	require.NoError(t, f.db.Order("created_at, id").Find(&audits).Error)
	require.Len(t, audits, 2)
	require.Equal(t, "created", audits[0].Status)
	require.Equal(t, "no_change", audits[1].Status)
	require.Equal(t, "mc_1", audits[0].SubscriberID)
	require.Equal(t, userID, audits[1].ParticipantID)
}

func TestPhotoUpgrade(t *testing.T) {
	f := newFixture(t)
	f.project(t, "p1", now.Add(-time.Hour), nil, 3)
	ctx := context.Background()

	res, err := f.svc.HandlePayload(ctx, "r1", payload(t, textEvent("p1", 3)))
	require.NoError(t, err)
	require.Equal(t, actionlog.OutcomeCreated, res.Status)
	userID := res.ActionLog.ParticipantID
	require.Empty(t, f.enqueuer.tasks)

	res, err = f.svc.HandlePayload(ctx, "r2", payload(t, photoEvent("p1", 3)))
	require.NoError(t, err)
	require.Equal(t, actionlog.OutcomeUpdated, res.Status)
	require.Equal(t, 2, *res.Delta)
	require.Equal(t, 7, res.ActionLog.PointsAwarded)
	require.Equal(t, "https://cdn.example.com/p.jpg", *res.ActionLog.PhotoURL)

	row := f.summary(t, userID, "p1")
	require.Equal(t, 7, row.TotalPoints)
	require.Equal(t, 1, row.CompletedDays)

	require.Len(t, f.enqueuer.tasks, 1)
	require.Equal(t, taskname.ProofArchive, f.enqueuer.tasks[0].Type())

	// same photo again changes nothing and archives nothing
	res, err = f.svc.HandlePayload(ctx, "r3", payload(t, photoEvent("p1", 3)))
	require.NoError(t, err)
	require.Equal(t, actionlog.OutcomeNoChange, res.Status)
	require.Len(t, f.enqueuer.tasks, 1)
}

func TestDayClampedToProjectLength(t *testing.T) {
	f := newFixture(t)
	start := now.Add(-30 * 24 * time.Hour)
	f.project(t, "p1", now.Add(-31*24*time.Hour), &start, 21)

	ev := textEvent("p1", 0)
	ev["meta"] = map[string]any{"projectId": "p1"}

	res, err := f.svc.HandlePayload(context.Background(), "r1", payload(t, ev))
	require.NoError(t, err)
	require.Equal(t, 21, res.ActionLog.DayNumber)
}

func TestDefaultsToEarliestActiveProject(t *testing.T) {
	f := newFixture(t)
	f.project(t, "late", now.Add(-time.Hour), nil, 1)
	f.project(t, "early", now.Add(-2*time.Hour), nil, 1)

	ev := textEvent("", 1)
	ev["meta"] = map[string]any{"dayNumber": "1"}

	res, err := f.svc.HandlePayload(context.Background(), "r1", payload(t, ev))
	require.NoError(t, err)
	require.Equal(t, "early", res.ActionLog.ProjectID)
}

func TestNewUserBootstrap(t *testing.T) {
	f := newFixture(t)
	f.project(t, "p1", now.Add(-time.Hour), nil, 1)

	body := []byte(`{"user":{"phone_number":"+55 (21) 97777-1234","fullName":"Bia"},"text":"ok","projectId":"p1","dayNumber":1}`)
	res, err := f.svc.HandlePayload(context.Background(), "r1", body)
	require.NoError(t, err)
	require.Equal(t, actionlog.OutcomeCreated, res.Status)

	var participants []participant.Participant
	require.NoError(t, f.db.Find(&participants).Error)
	require.Len(t, participants, 1)
	require.Equal(t, "Bia", participants[0].Name)
	require.Equal(t, "5521977771234@noemail.local", participants[0].Email)

	var summaries []ranking.RankingSummary
	require.NoError(t, f.db.Find(&summaries).Error)
	require.Len(t, summaries, 1)
	require.Equal(t, 5, summaries[0].TotalPoints)
	require.Equal(t, participants[0].ID, summaries[0].ParticipantID)
}

func TestMissingTemplateWritesNothing(t *testing.T) {
	f := newFixture(t)
	f.project(t, "p1", now.Add(-time.Hour), nil, 1)

	_, err := f.svc.HandlePayload(context.Background(), "r1", payload(t, textEvent("p1", 2)))
	require.Error(t, err)
	be, ok := errutil.As(err)
	require.True(t, ok)
	require.Equal(t, errutil.StatusBadRequest, be.Code)
	require.Equal(t, "Day template not configured for this project/day", be.Message)

	var logs, summaries int64
	require.NoError(t, f.db.Model(&actionlog.ActionLog{}).Count(&logs).Error)
	require.NoError(t, f.db.Model(&ranking.RankingSummary{}).Count(&summaries).Error)
	require.Zero(t, logs)
	require.Zero(t, summaries)

	var audit InboundEvent
	require.NoError(t, f.db.First(&audit).Error)
	require.Equal(t, EventRejected, audit.Status)
	require.Equal(t, 2, audit.DayNumber)
}

func TestInputRejections(t *testing.T) {
	f := newFixture(t)
	f.project(t, "nostart", now.Add(-time.Hour), nil, 1)

	cases := []struct {
		name    string
		body    string
		message string
	}{
		{"unidentified", `{"message":{"text":"oi"}}`, "User not identified in payload"},
		{"unknown project", `{"subscriber":{"id":"mc_9","name":"Caio"},"projectId":"nope","dayNumber":1}`, "Project not found for given projectId"},
		{"no start date", `{"subscriber":{"id":"mc_9","name":"Caio"},"projectId":"nostart"}`, "Project does not have a startDate; cannot compute dayNumber. Provide dayNumber in payload."},
		{"malformed", `{"subscriber":`, "Invalid JSON payload"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.HandlePayload(context.Background(), "r", []byte(tc.body))
			be, ok := errutil.As(err)
			require.True(t, ok)
			require.Equal(t, errutil.StatusBadRequest, be.Code)
			require.Equal(t, tc.message, be.Message)
		})
	}
}

func TestNoActiveProject(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.HandlePayload(context.Background(), "r", payload(t, textEvent("", 1)))
	be, ok := errutil.As(err)
	require.True(t, ok)
	require.Equal(t, "No active project found and projectId not provided in payload.", be.Message)
}

func TestProjectRequiredWithoutFallback(t *testing.T) {
	f := newFixtureWithFallback(t, config.FallbackNone)
	f.project(t, "p1", now.Add(-time.Hour), nil, 1)

	_, err := f.svc.HandlePayload(context.Background(), "r", payload(t, textEvent("", 1)))
	be, ok := errutil.As(err)
	require.True(t, ok)
	require.Equal(t, errutil.StatusBadRequest, be.Code)
	require.Equal(t, "projectId is required", be.Message)
}

func TestLockContention(t *testing.T) {
	f := newFixture(t)
	f.project(t, "p1", now.Add(-time.Hour), nil, 1)
	f.svc.locker = busyLocker{}

	_, err := f.svc.HandlePayload(context.Background(), "r1", payload(t, textEvent("p1", 1)))
	be, ok := errutil.As(err)
	require.True(t, ok)
	require.Equal(t, errutil.StatusConflict, be.Code)

	var logs int64
	require.NoError(t, f.db.Model(&actionlog.ActionLog{}).Count(&logs).Error)
	require.Zero(t, logs)
}

func TestConcurrentDeliveriesScoreOnce(t *testing.T) {
	f := newFixture(t)
	f.project(t, "p1", now.Add(-time.Hour), nil, 1)
	body := payload(t, textEvent("p1", 1))

	const n = 6
	var wg sync.WaitGroup
	outcomes := make(chan actionlog.Outcome, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.svc.HandlePayload(context.Background(), "r", body)
			if err == nil {
				outcomes <- res.Status
			}
		}()
	}
	wg.Wait()
	close(outcomes)

	counts := map[actionlog.Outcome]int{}
	for o := range outcomes {
		counts[o]++
	}
	require.Equal(t, 1, counts[actionlog.OutcomeCreated])
	require.Equal(t, n-1, counts[actionlog.OutcomeNoChange])

	var summaries []ranking.RankingSummary
	require.NoError(t, f.db.Find(&summaries).Error)
	require.Len(t, summaries, 1)
	require.Equal(t, 5, summaries[0].TotalPoints)
	require.Equal(t, 1, summaries[0].CompletedDays)
}

func TestHandleEventInvalidatesTopCache(t *testing.T) {
	f := newFixture(t)
	f.project(t, "p1", now.Add(-time.Hour), nil, 1, 2)
	ctx := context.Background()

	res, err := f.svc.HandleEvent(ctx, &Event{
		Identity:  participant.Identity{SubscriberID: "mc_1", Name: "Ana"},
		ProjectID: "p1",
		DayNumber: 1,
	})
	require.NoError(t, err)
	userID := res.ActionLog.ParticipantID

	top, err := f.ranking.Top(ctx, "p1", userID)
	require.NoError(t, err)
	require.Len(t, top.Top10, 1)
	require.Equal(t, 5, top.Top10[0].TotalPoints)

	_, err = f.svc.HandleEvent(ctx, &Event{
		Identity:  participant.Identity{SubscriberID: "mc_1"},
		ProjectID: "p1",
		DayNumber: 2,
	})
	require.NoError(t, err)

	top, err = f.ranking.Top(ctx, "p1", userID)
	require.NoError(t, err)
	require.Equal(t, 10, top.Top10[0].TotalPoints)
	require.Equal(t, 1, top.Position)
}
