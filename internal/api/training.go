package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/foundry/internal/model"
	"github.com/seantiz/foundry/internal/store"
)

const maxBodySize = 1 << 20 // 1 MB

// trainRequest is the JSON body for POST /v1/train.
type trainRequest struct {
	Name          string `json:"name"`
	DatasetConfig string `json:"dataset_config"`
	ModelSize     string `json:"model_size"`
	ModelType     string `json:"model_type"`
	Epochs        int    `json:"epochs"`
	BatchSize     int    `json:"batch_size"`
	ImgSize       int    `json:"imgsz"`
}

func (r *trainRequest) applyDefaults() {
	if r.ModelSize == "" {
		r.ModelSize = "s"
	}
	if r.ModelType == "" {
		r.ModelType = "YOLO"
	}
	if r.Epochs <= 0 {
		r.Epochs = 100
	}
	if r.BatchSize <= 0 {
		r.BatchSize = 16
	}
	if r.ImgSize <= 0 {
		r.ImgSize = 640
	}
}

func (s *Server) handleStartTraining(w http.ResponseWriter, r *http.Request) {
	var req trainRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Name == "" {
		s.writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.DatasetConfig == "" {
		s.writeError(w, http.StatusBadRequest, "dataset_config is required")
		return
	}
	req.applyDefaults()

	cfgJSON, err := json.Marshal(req)
	if err != nil {
		s.logger.Error("marshal training config", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to record config")
		return
	}

	job := &model.TrainingJob{
		ID:        model.NewID(),
		Name:      req.Name,
		Version:   "v1",
		Status:    model.StatusRunning,
		Config:    string(cfgJSON),
		StartTime: time.Now().UTC(),
	}

	if err := s.store.CreateJob(r.Context(), job); err != nil {
		s.logger.Error("create training job", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to create job")
		return
	}

	command := []string{
		"python", "training/scripts/train.py",
		"--data", filepath.Join("training/configs/datasets", req.DatasetConfig),
		"--name", req.Name,
		"--size", req.ModelSize,
		"--epochs", fmt.Sprint(req.Epochs),
		"--batch", fmt.Sprint(req.BatchSize),
		"--imgsz", fmt.Sprint(req.ImgSize),
		"--output", s.cfg.TrainedDir,
	}
	logPath := filepath.Join(s.cfg.LogsDir, job.ID+"_"+req.Name+".log")

	pid, err := s.proc.StartProcess(command, logPath)
	if err != nil {
		s.logger.Error("start training process", "job_id", job.ID, "error", err)
		if uerr := s.store.UpdateJobStatus(r.Context(), job.ID, model.StatusFailed); uerr != nil {
			s.logger.Error("mark job failed", "job_id", job.ID, "error", uerr)
		}
		s.writeError(w, http.StatusInternalServerError, "failed to start training")
		return
	}

	if err := s.store.SetJobProcess(r.Context(), job.ID, pid, logPath); err != nil {
		s.logger.Error("record job process", "job_id", job.ID, "error", err)
	}
	job.PID = &pid
	job.LogPath = logPath

	s.writeJSON(w, http.StatusCreated, job)
}

// listJobsResponse wraps the job list response.
type listJobsResponse struct {
	Jobs []*model.TrainingJob `json:"jobs"`
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.store.ListJobs(r.Context())
	if err != nil {
		s.logger.Error("list training jobs", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}

	// Refresh stale running entries whose process has already exited. The job
	// monitor does the same on its own cadence; this keeps the list fresh
	// when queried between polls.
	for _, j := range jobs {
		if j.Status == model.StatusRunning && j.PID != nil && !s.proc.IsRunning(*j.PID) {
			if err := s.store.UpdateJobStatus(r.Context(), j.ID, model.StatusCompleted); err != nil {
				s.logger.Error("refresh job status", "job_id", j.ID, "error", err)
				continue
			}
			j.Status = model.StatusCompleted
		}
	}

	s.writeJSON(w, http.StatusOK, listJobsResponse{Jobs: jobs})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	job, err := s.store.GetJob(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		s.logger.Error("get training job", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get job")
		return
	}

	if job.Status == model.StatusRunning && job.PID != nil && !s.proc.IsRunning(*job.PID) {
		if err := s.store.UpdateJobStatus(r.Context(), job.ID, model.StatusCompleted); err != nil {
			s.logger.Error("refresh job status", "job_id", job.ID, "error", err)
		} else {
			job.Status = model.StatusCompleted
		}
	}

	s.writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleStopJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	job, err := s.store.GetJob(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		s.logger.Error("get training job", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get job")
		return
	}

	if job.Status != model.StatusRunning || job.PID == nil {
		s.writeJSON(w, http.StatusOK, map[string]string{"message": "job is not running"})
		return
	}

	if !s.proc.StopProcess(*job.PID) {
		s.writeError(w, http.StatusInternalServerError, "failed to stop process")
		return
	}
	if err := s.store.UpdateJobStatus(r.Context(), job.ID, model.StatusStopped); err != nil {
		s.logger.Error("mark job stopped", "job_id", job.ID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to update job")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"message": "job stopped"})
}

func (s *Server) handleGetJobLogs(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	job, err := s.store.GetJob(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		s.logger.Error("get training job", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get job")
		return
	}

	if job.LogPath == "" {
		s.writeJSON(w, http.StatusOK, map[string]string{"logs": ""})
		return
	}
	content, err := os.ReadFile(job.LogPath)
	if err != nil {
		if os.IsNotExist(err) {
			s.writeJSON(w, http.StatusOK, map[string]string{"logs": ""})
			return
		}
		s.logger.Error("read job log", "path", job.LogPath, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to read logs")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"logs": string(content)})
}
