package scheduler

import (
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Maintenance runs recurring housekeeping tasks on cron schedules.
type Maintenance struct {
	cron   *cron.Cron
	logger *zap.Logger
}

// New constructs an idle scheduler.
func New(logger *zap.Logger) *Maintenance {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Maintenance{cron: cron.New(), logger: logger}
}

// Add registers a named task on the given cron spec. Panics in the task are
// contained by the cron runner; errors are the task's to log.
func (m *Maintenance) Add(spec, name string, task func()) error {
	_, err := m.cron.AddFunc(spec, func() {
		m.logger.Debug("maintenance task running", zap.String("task", name))
		task()
	})
	if err != nil {
		return err
	}
	m.logger.Info("maintenance task registered", zap.String("task", name), zap.String("schedule", spec))
	return nil
}

// Start launches the cron runner in its own goroutine.
func (m *Maintenance) Start() {
	m.cron.Start()
}

// Stop halts scheduling; running tasks complete.
func (m *Maintenance) Stop() {
	m.cron.Stop()
}
