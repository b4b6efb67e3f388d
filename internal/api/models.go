package api

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"gopkg.in/yaml.v3"

	"github.com/seantiz/foundry/internal/model"
)

// modelEntry describes one file in the models listing.
type modelEntry struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Type string `json:"type"`
}

// listModelsResponse groups model artifacts by stage.
type listModelsResponse struct {
	Trained     []modelEntry `json:"trained"`
	Onnx        []modelEntry `json:"onnx"`
	Calibration []modelEntry `json:"calibration"`
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	resp := listModelsResponse{
		Trained:     []modelEntry{},
		Onnx:        []modelEntry{},
		Calibration: []modelEntry{},
	}

	if entries, err := os.ReadDir(s.cfg.TrainedDir); err == nil {
		for _, e := range entries {
			weights := filepath.Join(s.cfg.TrainedDir, e.Name(), "weights", "best.pt")
			if _, err := os.Stat(weights); err == nil {
				resp.Trained = append(resp.Trained, modelEntry{Name: e.Name(), Path: weights, Type: "pt"})
			}
		}
	}

	if entries, err := os.ReadDir(s.cfg.OnnxDir); err == nil {
		for _, e := range entries {
			if strings.HasSuffix(e.Name(), ".onnx") {
				resp.Onnx = append(resp.Onnx, modelEntry{
					Name: e.Name(),
					Path: filepath.Join(s.cfg.OnnxDir, e.Name()),
					Type: "onnx",
				})
			}
		}
	}

	if entries, err := os.ReadDir(s.cfg.CalibDir); err == nil {
		for _, e := range entries {
			if strings.HasSuffix(e.Name(), ".cache") {
				resp.Calibration = append(resp.Calibration, modelEntry{
					Name: e.Name(),
					Path: filepath.Join(s.cfg.CalibDir, e.Name()),
					Type: "cache",
				})
			}
		}
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDownloadModel(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if strings.Contains(name, "/") || strings.Contains(name, "..") {
		s.writeError(w, http.StatusBadRequest, "invalid name")
		return
	}

	var path string
	switch r.URL.Query().Get("type") {
	case "", "onnx":
		path = filepath.Join(s.cfg.OnnxDir, name)
	case "pt":
		path = filepath.Join(s.cfg.TrainedDir, name, "weights", "best.pt")
	case "calibration":
		path = filepath.Join(s.cfg.CalibDir, name)
	default:
		s.writeError(w, http.StatusBadRequest, "invalid type")
		return
	}

	if _, err := os.Stat(path); err != nil {
		s.writeError(w, http.StatusNotFound, "file not found")
		return
	}

	w.Header().Set("Content-Disposition", "attachment; filename="+filepath.Base(path))
	http.ServeFile(w, r, path)
}

// startedResponse acknowledges a spawned background run.
type startedResponse struct {
	Message string `json:"message"`
	PID     int    `json:"pid"`
}

func (s *Server) handleExportModel(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	modelPath := filepath.Join(s.cfg.TrainedDir, name, "weights", "best.pt")
	if _, err := os.Stat(modelPath); err != nil {
		s.writeError(w, http.StatusNotFound, "model "+name+" not found")
		return
	}

	command := []string{
		"python", "training/scripts/export_onnx.py",
		"--model", modelPath,
		"--output", s.cfg.OnnxDir,
		"--opset", "12",
	}
	logPath := filepath.Join(s.cfg.LogsDir, "export_"+name+".log")

	pid, err := s.proc.StartProcess(command, logPath)
	if err != nil {
		s.logger.Error("start export process", "model", name, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to start export")
		return
	}
	s.tracker.Track(pid, model.JobTypeExport, name, logPath)

	s.writeJSON(w, http.StatusAccepted, startedResponse{
		Message: "Export started for " + name,
		PID:     pid,
	})
}

func (s *Server) handleCalibrateModel(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	modelPath := filepath.Join(s.cfg.TrainedDir, name, "weights", "best.pt")
	if _, err := os.Stat(modelPath); err != nil {
		s.writeError(w, http.StatusNotFound, "model "+name+" not found")
		return
	}

	configName := r.URL.Query().Get("config")
	if configName == "" {
		s.writeError(w, http.StatusBadRequest, "config is required")
		return
	}

	var configPath string
	if configName == "auto" {
		path, err := s.autoCalibConfig(name)
		if err != nil {
			s.logger.Error("derive calibration config", "model", name, "error", err)
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		configPath = path
	} else {
		configPath = filepath.Join(s.cfg.CalibDir, configName)
		if _, err := os.Stat(configPath); err != nil {
			s.writeError(w, http.StatusNotFound, "calibration config "+configName+" not found")
			return
		}
	}

	command := []string{
		"python", "training/scripts/generate_calibration.py",
		"--model", modelPath,
		"--data", configPath,
		"--output", s.cfg.CalibDir,
	}
	logPath := filepath.Join(s.cfg.LogsDir, "calibrate_"+name+".log")

	pid, err := s.proc.StartProcess(command, logPath)
	if err != nil {
		s.logger.Error("start calibration process", "model", name, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to start calibration")
		return
	}
	s.tracker.Track(pid, model.JobTypeCalibration, name, logPath)

	s.writeJSON(w, http.StatusAccepted, startedResponse{
		Message: "Calibration started for " + name,
		PID:     pid,
	})
}

// calibDataset is the subset of a dataset config needed for calibration.
// Calibration reuses the validation split so the cache reflects data the
// model was not trained on.
type calibDataset struct {
	Path  string `yaml:"path"`
	Train string `yaml:"train"`
	Val   string `yaml:"val"`
	NC    int    `yaml:"nc"`
	Names any    `yaml:"names"`
}

// autoCalibConfig derives a calibration dataset config from the training
// run's recorded arguments and writes it next to the calibration caches.
func (s *Server) autoCalibConfig(name string) (string, error) {
	argsPath := filepath.Join(s.cfg.TrainedDir, name, "args.yaml")
	argsData, err := os.ReadFile(argsPath)
	if err != nil {
		return "", fmt.Errorf("cannot auto-calibrate %s: args.yaml not found", name)
	}

	var args struct {
		Data string `yaml:"data"`
	}
	if err := yaml.Unmarshal(argsData, &args); err != nil {
		return "", fmt.Errorf("parse args.yaml: %w", err)
	}
	if args.Data == "" {
		return "", fmt.Errorf("no dataset path recorded in args.yaml for %s", name)
	}

	dataBytes, err := os.ReadFile(args.Data)
	if err != nil {
		return "", fmt.Errorf("dataset config not found: %s", args.Data)
	}

	var dataset calibDataset
	if err := yaml.Unmarshal(dataBytes, &dataset); err != nil {
		return "", fmt.Errorf("parse dataset config: %w", err)
	}
	dataset.Train = dataset.Val

	out, err := yaml.Marshal(dataset)
	if err != nil {
		return "", fmt.Errorf("marshal calibration config: %w", err)
	}

	if err := os.MkdirAll(s.cfg.CalibDir, 0o755); err != nil {
		return "", fmt.Errorf("create calibration directory: %w", err)
	}
	configPath := filepath.Join(s.cfg.CalibDir, "auto_calib_"+name+".yaml")
	if err := os.WriteFile(configPath, out, 0o644); err != nil {
		return "", fmt.Errorf("write calibration config: %w", err)
	}

	return configPath, nil
}
