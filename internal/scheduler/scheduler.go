// Package scheduler is the hour-keyed master dispatcher. An external cron
// hits it once per hour; it looks up the jobs mapped to the current hour and
// runs each as an isolated unit of work. No state survives between
// invocations, so double-triggering an hour is safe.
package scheduler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/motorly/fleet-alerts/internal/models"
)

const (
	JobExpiryScan    = "expiry-scan"
	JobDailyReminder = "daily-reminder"
)

// hourTable is the fixed hour-to-job mapping. Not configurable at runtime.
var hourTable = map[int][]string{
	9:  {JobExpiryScan},
	18: {JobDailyReminder},
	21: {JobDailyReminder},
}

// JobsForHour returns the jobs mapped to a wall-clock hour, possibly none.
func JobsForHour(hour int) []string {
	return hourTable[hour]
}

// JobFunc runs one job and returns an observability payload for the
// dispatcher's result record.
type JobFunc func(ctx context.Context) (interface{}, error)

type Scheduler struct {
	jobs map[string]JobFunc
	log  *zap.Logger
}

func NewScheduler(log *zap.Logger) *Scheduler {
	return &Scheduler{
		jobs: make(map[string]JobFunc),
		log:  log,
	}
}

// Register binds a job name from the hour table to its implementation.
func (s *Scheduler) Register(name string, fn JobFunc) {
	s.jobs[name] = fn
}

// Dispatch runs every job mapped to now's hour. One job's failure never
// prevents its siblings from running; each failure is converted into a
// result record. Overall success requires every invoked job to succeed,
// and an hour with no mapped jobs succeeds trivially.
func (s *Scheduler) Dispatch(ctx context.Context, now time.Time) models.DispatchReport {
	hour := now.Hour()
	report := models.DispatchReport{
		Success:   true,
		Hour:      hour,
		Results:   []models.JobResult{},
		Timestamp: now,
	}

	names := JobsForHour(hour)
	if len(names) == 0 {
		report.Message = fmt.Sprintf("no jobs scheduled for hour %d", hour)
		return report
	}

	for _, name := range names {
		result := s.run(ctx, name)
		report.Results = append(report.Results, result)
		report.JobsExecuted++
		if result.Status != "success" {
			report.Success = false
		}
	}
	return report
}

func (s *Scheduler) run(ctx context.Context, name string) (result models.JobResult) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("job panicked", zap.String("job", name), zap.Any("panic", r))
			result = models.JobResult{
				Job:        name,
				Status:     "failed",
				StatusCode: http.StatusInternalServerError,
				Data:       fmt.Sprintf("panic: %v", r),
			}
		}
	}()

	fn, ok := s.jobs[name]
	if !ok {
		s.log.Error("job not registered", zap.String("job", name))
		return models.JobResult{
			Job:        name,
			Status:     "failed",
			StatusCode: http.StatusInternalServerError,
			Data:       "job not registered",
		}
	}

	data, err := fn(ctx)
	if err != nil {
		s.log.Error("job failed", zap.String("job", name), zap.Error(err))
		return models.JobResult{
			Job:        name,
			Status:     "failed",
			StatusCode: http.StatusInternalServerError,
			Data:       err.Error(),
		}
	}

	s.log.Info("job completed", zap.String("job", name))
	return models.JobResult{
		Job:        name,
		Status:     "success",
		StatusCode: http.StatusOK,
		Data:       data,
	}
}
