package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/seantiz/foundry/internal/model"
)

func writeTrainedModel(t *testing.T, trainedDir, name string) string {
	t.Helper()
	weightsDir := filepath.Join(trainedDir, name, "weights")
	if err := os.MkdirAll(weightsDir, 0o755); err != nil {
		t.Fatalf("mkdir weights: %v", err)
	}
	path := filepath.Join(weightsDir, "best.pt")
	if err := os.WriteFile(path, []byte("weights"), 0o644); err != nil {
		t.Fatalf("write best.pt: %v", err)
	}
	return path
}

func TestListModels(t *testing.T) {
	ts := newTestServer(t)
	writeTrainedModel(t, ts.cfg.TrainedDir, "ppe_v1")
	if err := os.WriteFile(filepath.Join(ts.cfg.OnnxDir, "ppe_v1_best.onnx"), []byte("onnx"), 0o644); err != nil {
		t.Fatalf("write onnx: %v", err)
	}
	if err := os.WriteFile(filepath.Join(ts.cfg.CalibDir, "ppe_v1.cache"), []byte("cache"), 0o644); err != nil {
		t.Fatalf("write cache: %v", err)
	}
	// Files that should not be listed.
	if err := os.WriteFile(filepath.Join(ts.cfg.OnnxDir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write notes: %v", err)
	}

	rec := httptest.NewRecorder()
	ts.srv.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/v1/models/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp listModelsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Trained) != 1 || resp.Trained[0].Name != "ppe_v1" {
		t.Errorf("trained = %+v", resp.Trained)
	}
	if len(resp.Onnx) != 1 || resp.Onnx[0].Name != "ppe_v1_best.onnx" {
		t.Errorf("onnx = %+v", resp.Onnx)
	}
	if len(resp.Calibration) != 1 || resp.Calibration[0].Name != "ppe_v1.cache" {
		t.Errorf("calibration = %+v", resp.Calibration)
	}
}

func TestExportModel(t *testing.T) {
	ts := newTestServer(t)
	modelPath := writeTrainedModel(t, ts.cfg.TrainedDir, "ppe_v1")

	rec := httptest.NewRecorder()
	ts.srv.Router().ServeHTTP(rec, httptest.NewRequest("POST", "/v1/models/ppe_v1/export", nil))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	if len(ts.proc.started) != 1 {
		t.Fatalf("started %d processes, want 1", len(ts.proc.started))
	}
	cmd := strings.Join(ts.proc.started[0], " ")
	if !strings.Contains(cmd, "--model "+modelPath) {
		t.Errorf("command missing model path: %s", cmd)
	}

	// The run is registered with the monitor for log tailing and completion.
	if len(ts.tracker.tracked) != 1 {
		t.Fatalf("tracked %d processes, want 1", len(ts.tracker.tracked))
	}
	tracked := ts.tracker.tracked[0]
	if tracked.jobType != model.JobTypeExport || tracked.name != "ppe_v1" {
		t.Errorf("tracked = %+v", tracked)
	}
}

func TestExportModelNotFound(t *testing.T) {
	ts := newTestServer(t)

	rec := httptest.NewRecorder()
	ts.srv.Router().ServeHTTP(rec, httptest.NewRequest("POST", "/v1/models/nope/export", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if len(ts.proc.started) != 0 {
		t.Errorf("no process should be started, got %v", ts.proc.started)
	}
}

func TestCalibrateModelRequiresConfig(t *testing.T) {
	ts := newTestServer(t)
	writeTrainedModel(t, ts.cfg.TrainedDir, "ppe_v1")

	rec := httptest.NewRecorder()
	ts.srv.Router().ServeHTTP(rec, httptest.NewRequest("POST", "/v1/models/ppe_v1/calibrate", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestCalibrateModelExplicitConfig(t *testing.T) {
	ts := newTestServer(t)
	writeTrainedModel(t, ts.cfg.TrainedDir, "ppe_v1")
	configPath := filepath.Join(ts.cfg.CalibDir, "ppe_calib.yaml")
	if err := os.WriteFile(configPath, []byte("val: images/val\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	rec := httptest.NewRecorder()
	ts.srv.Router().ServeHTTP(rec, httptest.NewRequest("POST", "/v1/models/ppe_v1/calibrate?config=ppe_calib.yaml", nil))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	if len(ts.tracker.tracked) != 1 || ts.tracker.tracked[0].jobType != model.JobTypeCalibration {
		t.Errorf("tracked = %+v", ts.tracker.tracked)
	}
	cmd := strings.Join(ts.proc.started[0], " ")
	if !strings.Contains(cmd, "--data "+configPath) {
		t.Errorf("command missing config path: %s", cmd)
	}
}

func TestCalibrateModelAutoConfig(t *testing.T) {
	ts := newTestServer(t)
	writeTrainedModel(t, ts.cfg.TrainedDir, "ppe_v1")

	// Dataset config referenced by the training run's args.yaml.
	datasetPath := filepath.Join(t.TempDir(), "ppe.yaml")
	dataset := map[string]any{
		"path":  "/data/ppe",
		"train": "images/train",
		"val":   "images/val",
		"nc":    3,
		"names": []string{"helmet", "vest", "person"},
	}
	raw, err := yaml.Marshal(dataset)
	if err != nil {
		t.Fatalf("marshal dataset: %v", err)
	}
	if err := os.WriteFile(datasetPath, raw, 0o644); err != nil {
		t.Fatalf("write dataset: %v", err)
	}

	argsPath := filepath.Join(ts.cfg.TrainedDir, "ppe_v1", "args.yaml")
	if err := os.WriteFile(argsPath, []byte("data: "+datasetPath+"\n"), 0o644); err != nil {
		t.Fatalf("write args.yaml: %v", err)
	}

	rec := httptest.NewRecorder()
	ts.srv.Router().ServeHTTP(rec, httptest.NewRequest("POST", "/v1/models/ppe_v1/calibrate?config=auto", nil))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	// The derived config reuses the validation split for calibration.
	derived, err := os.ReadFile(filepath.Join(ts.cfg.CalibDir, "auto_calib_ppe_v1.yaml"))
	if err != nil {
		t.Fatalf("read derived config: %v", err)
	}
	var calib struct {
		Train string `yaml:"train"`
		Val   string `yaml:"val"`
		NC    int    `yaml:"nc"`
	}
	if err := yaml.Unmarshal(derived, &calib); err != nil {
		t.Fatalf("parse derived config: %v", err)
	}
	if calib.Train != "images/val" || calib.Val != "images/val" {
		t.Errorf("derived config = %+v, want train=val split", calib)
	}
	if calib.NC != 3 {
		t.Errorf("nc = %d, want 3", calib.NC)
	}
}

func TestCalibrateModelAutoWithoutArgs(t *testing.T) {
	ts := newTestServer(t)
	writeTrainedModel(t, ts.cfg.TrainedDir, "ppe_v1")

	rec := httptest.NewRecorder()
	ts.srv.Router().ServeHTTP(rec, httptest.NewRequest("POST", "/v1/models/ppe_v1/calibrate?config=auto", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestDownloadModel(t *testing.T) {
	ts := newTestServer(t)
	if err := os.WriteFile(filepath.Join(ts.cfg.OnnxDir, "ppe_v1.onnx"), []byte("onnx-bytes"), 0o644); err != nil {
		t.Fatalf("write onnx: %v", err)
	}

	server := httptest.NewServer(ts.srv.Router())
	defer server.Close()

	resp, err := http.Get(server.URL + "/v1/models/ppe_v1.onnx/download?type=onnx")
	if err != nil {
		t.Fatalf("GET download: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestDownloadModelRejectsTraversal(t *testing.T) {
	ts := newTestServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/models/"+"%2e%2e%2fsecret"+"/download", nil)
	ts.srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest && rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 400 or 404", rec.Code)
	}
}
