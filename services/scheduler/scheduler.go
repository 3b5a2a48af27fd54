package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	runHour   = 1
	runMinute = 0
)

type Scheduler struct {
	service *Service
	now     func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScheduler(svc *Service) *Scheduler {
	return &Scheduler{service: svc, now: time.Now}
}

func StartScheduler(lc fx.Lifecycle, s *Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			s.Start()
			return nil
		},
		OnStop: func(context.Context) error {
			s.Stop()
			return nil
		},
	})
}

// Start launches the daily loop. Stop must be called to release it.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	zap.L().Info("[Scheduler] started ranking reconcile scheduler")

	for {
		now := s.now()
		next := nextRunTime(now, runHour, runMinute)
		wait := next.Sub(now)
		zap.L().Info("[Scheduler] next run scheduled",
			zap.Time("next_run", next),
			zap.Duration("sleep_for", wait),
		)

		t := time.NewTimer(wait)
		select {
		case <-t.C:
			s.runDaily(ctx)
		case <-ctx.Done():
			t.Stop()
			zap.L().Info("[Scheduler] stopped")
			return
		}
	}
}

func (s *Scheduler) runDaily(ctx context.Context) {
	start := time.Now()

	n, err := s.service.EnqueueAllReconciles(ctx)
	if err != nil {
		zap.L().Error("[Scheduler] failed enqueue ranking reconciles", zap.Error(err))
		return
	}

	zap.L().Info("[Scheduler] daily reconcile done",
		zap.Int("projects", n),
		zap.Duration("duration", time.Since(start)),
	)
}

// nextRunTime is the next hour:minute strictly after now.
func nextRunTime(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
