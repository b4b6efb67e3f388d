// Package monitor watches running background jobs and turns their progress
// into events. Training jobs are polled from the store; export and
// calibration runs are tracked in memory, with their log files tailed so new
// output reaches subscribers in near real time.
package monitor

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/seantiz/foundry/internal/events"
	"github.com/seantiz/foundry/internal/model"
	"github.com/seantiz/foundry/internal/store"
)

// defaultInterval is how often the monitor polls job state.
const defaultInterval = 2 * time.Second

// ProcessChecker reports whether a spawned process is still running.
type ProcessChecker interface {
	IsRunning(pid int) bool
}

// trackedProcess is an export or calibration run not recorded in the database.
type trackedProcess struct {
	jobType string
	name    string
	logPath string
	logPos  int64
}

// Monitor polls job state and publishes completion and log events.
type Monitor struct {
	store    store.Store
	checker  ProcessChecker
	broker   *events.Broker
	logger   *slog.Logger
	interval time.Duration

	mu      sync.Mutex
	tracked map[int]*trackedProcess
}

// New creates a monitor with the default poll interval.
func New(s store.Store, checker ProcessChecker, broker *events.Broker, logger *slog.Logger) *Monitor {
	return &Monitor{
		store:    s,
		checker:  checker,
		broker:   broker,
		logger:   logger,
		interval: defaultInterval,
		tracked:  make(map[int]*trackedProcess),
	}
}

// SetInterval overrides the poll interval. Intended for tests.
func (m *Monitor) SetInterval(d time.Duration) {
	m.interval = d
}

// Track registers an export or calibration process that is not recorded in
// the database. Its log file is tailed and its exit produces a
// <jobType>_completed event.
func (m *Monitor) Track(pid int, jobType, name, logPath string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tracked[pid] = &trackedProcess{
		jobType: jobType,
		name:    name,
		logPath: logPath,
	}
}

// Run polls until ctx is cancelled. A fault inside one poll cycle is logged
// and never stops the loop.
func (m *Monitor) Run(ctx context.Context) {
	m.logger.Info("job monitor started", "interval", m.interval.String())
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("job monitor stopped")
			return
		case <-ticker.C:
			m.pollOnce(ctx)
		}
	}
}

// pollOnce runs a single poll cycle.
func (m *Monitor) pollOnce(ctx context.Context) {
	if err := m.checkTrainingJobs(ctx); err != nil {
		m.logger.Error("check training jobs", "error", err)
	}
	m.checkTrackedProcesses()
}

// checkTrainingJobs marks running database jobs whose process has exited as
// completed and broadcasts their completion.
func (m *Monitor) checkTrainingJobs(ctx context.Context) error {
	jobs, err := m.store.ListJobsByStatus(ctx, model.StatusRunning)
	if err != nil {
		return err
	}

	for _, j := range jobs {
		if j.PID == nil || m.checker.IsRunning(*j.PID) {
			continue
		}
		if err := m.store.UpdateJobStatus(ctx, j.ID, model.StatusCompleted); err != nil {
			m.logger.Error("mark job completed", "job_id", j.ID, "error", err)
			continue
		}
		m.logger.Info("training job completed", "job_id", j.ID, "name", j.Name)
		m.broker.Publish(model.NewCompletionEvent(model.EventJobCompleted, j.Name))
	}
	return nil
}

// checkTrackedProcesses tails the log files of tracked processes and emits
// completion events for those that have exited.
func (m *Monitor) checkTrackedProcesses() {
	m.mu.Lock()
	pids := make(map[int]*trackedProcess, len(m.tracked))
	for pid, tp := range m.tracked {
		pids[pid] = tp
	}
	m.mu.Unlock()

	for pid, tp := range pids {
		if lines := m.readNewLines(tp); len(lines) > 0 {
			m.broker.Publish(model.NewLogUpdateEvent(tp.name, lines))
		}

		if m.checker.IsRunning(pid) {
			continue
		}

		// Drain any output written between the last read and process exit.
		if lines := m.readNewLines(tp); len(lines) > 0 {
			m.broker.Publish(model.NewLogUpdateEvent(tp.name, lines))
		}

		m.logger.Info("background job completed", "type", tp.jobType, "name", tp.name, "pid", pid)
		switch tp.jobType {
		case model.JobTypeExport:
			m.broker.Publish(model.NewCompletionEvent(model.EventExportCompleted, tp.name))
		case model.JobTypeCalibration:
			m.broker.Publish(model.NewCompletionEvent(model.EventCalibrationCompleted, tp.name))
		}

		m.mu.Lock()
		delete(m.tracked, pid)
		m.mu.Unlock()
	}
}

// readNewLines reads complete lines appended to the process log file since
// the last poll. Read errors are logged and yield no lines.
func (m *Monitor) readNewLines(tp *trackedProcess) []string {
	f, err := os.Open(tp.logPath)
	if err != nil {
		if !os.IsNotExist(err) {
			m.logger.Error("open process log", "path", tp.logPath, "error", err)
		}
		return nil
	}
	defer f.Close()

	if _, err := f.Seek(tp.logPos, io.SeekStart); err != nil {
		m.logger.Error("seek process log", "path", tp.logPath, "error", err)
		return nil
	}

	var lines []string
	reader := bufio.NewReader(f)
	pos := tp.logPos
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			// A partial final line is left for the next poll.
			break
		}
		pos += int64(len(line))
		lines = append(lines, line[:len(line)-1])
	}
	tp.logPos = pos

	return lines
}
