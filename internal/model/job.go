package model

import "time"

// Training job status constants.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusStopped   = "stopped"
)

// Job type constants for background operations tracked outside the database.
const (
	JobTypeTraining    = "training"
	JobTypeExport      = "export"
	JobTypeCalibration = "calibration"
)

// validTransitions maps each status to the set of statuses it may transition to.
var validTransitions = map[string]map[string]bool{
	StatusRunning: {
		StatusCompleted: true,
		StatusFailed:    true,
		StatusStopped:   true,
	},
}

// ValidTransition reports whether transitioning from one status to another is allowed.
func ValidTransition(from, to string) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// TrainingJob represents a long-running training run tracked in the database.
// Export and calibration runs are shorter-lived and tracked in memory by the
// job monitor instead.
type TrainingJob struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Version   string     `json:"version"`
	Status    string     `json:"status"`
	Config    string     `json:"config"`
	PID       *int       `json:"pid,omitempty"`
	LogPath   string     `json:"log_path,omitempty"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
}
