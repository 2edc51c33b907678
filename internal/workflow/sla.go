package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// SLAScheduler runs the task SLA sweep on a cron schedule.
type SLAScheduler struct {
	cron   *cron.Cron
	tasks  *TaskService
	logger *slog.Logger
}

// NewSLAScheduler wires the sweep onto spec (a cron expression or an
// "@every 5m" descriptor).
func NewSLAScheduler(spec string, tasks *TaskService, logger *slog.Logger) (*SLAScheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &SLAScheduler{
		cron:   cron.New(),
		tasks:  tasks,
		logger: logger,
	}
	if _, err := s.cron.AddFunc(spec, s.sweep); err != nil {
		return nil, fmt.Errorf("schedule SLA sweep %q: %w", spec, err)
	}
	return s, nil
}

// Start begins scheduling. It returns immediately.
func (s *SLAScheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for a running sweep to finish.
func (s *SLAScheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *SLAScheduler) sweep() {
	ctx := context.Background()
	flagged, err := s.tasks.CheckSLAs(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "SLA sweep failed", "error", err)
		return
	}
	if flagged > 0 {
		s.logger.InfoContext(ctx, "SLA sweep flagged breaches", "count", flagged)
	}
}
