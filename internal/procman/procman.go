// Package procman starts and supervises the external training, export and
// calibration processes. Each process writes its combined stdout and stderr
// to a log file; the job monitor tails those files to surface progress.
package procman

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"
)

// stopTimeout is how long StopProcess waits for a graceful exit before killing.
const stopTimeout = 5 * time.Second

type process struct {
	cmd  *exec.Cmd
	done chan struct{} // closed when the process has been reaped
}

// Manager tracks spawned processes by pid. It is safe for concurrent use.
type Manager struct {
	mu        sync.Mutex
	processes map[int]*process
	logger    *slog.Logger
}

// NewManager creates an empty process manager.
func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		processes: make(map[int]*process),
		logger:    logger,
	}
}

// StartProcess launches command with stdout and stderr redirected to
// logPath, creating parent directories as needed. It returns the pid.
// The process is reaped in the background when it exits.
func (m *Manager) StartProcess(command []string, logPath string) (int, error) {
	if len(command) == 0 {
		return 0, fmt.Errorf("empty command")
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return 0, fmt.Errorf("create log directory: %w", err)
	}
	logFile, err := os.Create(logPath)
	if err != nil {
		return 0, fmt.Errorf("create log file: %w", err)
	}

	cmd := exec.Command(command[0], command[1:]...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	if err := cmd.Start(); err != nil {
		logFile.Close()
		return 0, fmt.Errorf("start process: %w", err)
	}

	p := &process{cmd: cmd, done: make(chan struct{})}
	pid := cmd.Process.Pid

	m.mu.Lock()
	m.processes[pid] = p
	m.mu.Unlock()

	go func() {
		err := cmd.Wait()
		logFile.Close()
		close(p.done)
		if err != nil {
			m.logger.Info("process exited with error", "pid", pid, "error", err)
		} else {
			m.logger.Info("process exited", "pid", pid)
		}
	}()

	m.logger.Info("started process", "pid", pid, "command", command[0], "log_path", logPath)
	return pid, nil
}

// StopProcess terminates a tracked process, escalating to SIGKILL if it does
// not exit within the stop timeout. It reports whether the pid was tracked.
func (m *Manager) StopProcess(pid int) bool {
	m.mu.Lock()
	p, ok := m.processes[pid]
	if ok {
		delete(m.processes, pid)
	}
	m.mu.Unlock()
	if !ok {
		return false
	}

	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		m.logger.Warn("signal process", "pid", pid, "error", err)
	}

	select {
	case <-p.done:
	case <-time.After(stopTimeout):
		if err := p.cmd.Process.Kill(); err != nil {
			m.logger.Warn("kill process", "pid", pid, "error", err)
		}
		<-p.done
	}

	m.logger.Info("stopped process", "pid", pid)
	return true
}

// IsRunning reports whether a tracked process is still running.
// Untracked pids report not running.
func (m *Manager) IsRunning(pid int) bool {
	m.mu.Lock()
	p, ok := m.processes[pid]
	m.mu.Unlock()
	if !ok {
		return false
	}

	select {
	case <-p.done:
		return false
	default:
		return true
	}
}
