package store

import (
	"context"
	"errors"

	"github.com/seantiz/foundry/internal/model"
)

// ErrInvalidTransition is returned when a job status transition is not allowed.
var ErrInvalidTransition = errors.New("invalid status transition")

// ErrNotFound is returned when a training job is not found.
var ErrNotFound = errors.New("training job not found")

// Store defines the persistence operations for training jobs.
type Store interface {
	CreateJob(ctx context.Context, j *model.TrainingJob) error
	GetJob(ctx context.Context, id string) (*model.TrainingJob, error)
	ListJobs(ctx context.Context) ([]*model.TrainingJob, error)
	ListJobsByStatus(ctx context.Context, status string) ([]*model.TrainingJob, error)
	SetJobProcess(ctx context.Context, id string, pid int, logPath string) error
	UpdateJobStatus(ctx context.Context, id, status string) error
	Close() error
}
