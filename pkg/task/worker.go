package task

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

var (
	processedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jornada_tasks_processed_total",
		Help: "Background tasks handled by the worker, by type and result.",
	}, []string{"type", "result"})

	processDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "jornada_task_duration_seconds",
		Help:    "Background task handling latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})
)

func init() {
	prometheus.MustRegister(processedTotal, processDuration)
}

// Observe logs and counts every task that passes through the mux.
func Observe(log *zap.Logger) asynq.MiddlewareFunc {
	return func(next asynq.Handler) asynq.Handler {
		return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
			start := time.Now()
			err := next.ProcessTask(ctx, t)
			processDuration.WithLabelValues(t.Type()).Observe(time.Since(start).Seconds())

			id, _ := asynq.GetTaskID(ctx)
			retry, _ := asynq.GetRetryCount(ctx)
			fields := []zap.Field{
				zap.String("type", t.Type()),
				zap.String("id", id),
				zap.Int("retry", retry),
				zap.Duration("elapsed", time.Since(start)),
			}

			switch {
			case err == nil:
				processedTotal.WithLabelValues(t.Type(), "ok").Inc()
				log.Info("task done", fields...)
			case errors.Is(err, asynq.SkipRetry):
				processedTotal.WithLabelValues(t.Type(), "skipped").Inc()
				log.Warn("task dropped", append(fields, zap.Error(err))...)
			default:
				processedTotal.WithLabelValues(t.Type(), "error").Inc()
				log.Error("task failed", append(fields, zap.Error(err))...)
			}
			return err
		})
	}
}

// zapLogger adapts zap to asynq's logger so the server writes through the
// service logger.
type zapLogger struct {
	s *zap.SugaredLogger
}

func (l zapLogger) Debug(args ...interface{}) { l.s.Debug(args...) }
func (l zapLogger) Info(args ...interface{})  { l.s.Info(args...) }
func (l zapLogger) Warn(args ...interface{})  { l.s.Warn(args...) }
func (l zapLogger) Error(args ...interface{}) { l.s.Error(args...) }
func (l zapLogger) Fatal(args ...interface{}) { l.s.Fatal(args...) }
