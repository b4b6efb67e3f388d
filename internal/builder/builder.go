// Package builder turns a directory of ONNX models into TensorRT engines.
// The build is idempotent: a model whose engine file already exists is
// skipped, so re-running after a partial failure builds only the remainder.
// Each invocation of the external compiler is isolated; one model failing
// never aborts the batch.
package builder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/seantiz/foundry/internal/config"
)

const (
	sourceExt = ".onnx"

	// engineSuffix names engines for the deployment target: Jetson Orin,
	// INT8 precision.
	engineSuffix = "_orin_int8.engine"

	// calibCacheName is the conventional calibration cache file name.
	calibCacheName = "calibration.cache"
)

// Runner invokes the external engine compiler, writing all of its output to
// logW. A non-nil error means the compiler exited unsuccessfully.
type Runner interface {
	Run(ctx context.Context, logW io.Writer, name string, args ...string) error
}

// Result records the outcome for one source model.
type Result struct {
	Model   string
	Engine  string
	Skipped bool
	Err     error
}

// Summary is the outcome of a full orchestrator run.
type Summary struct {
	Results []Result
	Outputs []string // engine files present in the destination dir afterwards
}

// Orchestrator builds missing engines for a directory of ONNX models.
type Orchestrator struct {
	cfg    config.BuildConfig
	runner Runner
	logger *slog.Logger
}

// New creates an orchestrator. A nil runner defaults to invoking trtexec.
func New(cfg config.BuildConfig, runner Runner, logger *slog.Logger) *Orchestrator {
	if runner == nil {
		runner = &execRunner{}
	}
	return &Orchestrator{
		cfg:    cfg,
		runner: runner,
		logger: logger,
	}
}

// EngineName derives the canonical engine file name for a model base name.
func EngineName(base string) string {
	return base + engineSuffix
}

// Build processes every ONNX model in the source directory. The returned
// error covers orchestrator-level failures only (unreadable directories);
// per-model build failures are recorded in the summary and the batch
// continues.
func (o *Orchestrator) Build(ctx context.Context) (*Summary, error) {
	if err := os.MkdirAll(o.cfg.EnginesDir, 0o755); err != nil {
		return nil, fmt.Errorf("create engines directory: %w", err)
	}

	models, err := o.listModels()
	if err != nil {
		return nil, err
	}
	o.logger.Info("engine build starting",
		"models", len(models),
		"models_dir", o.cfg.ModelsDir,
		"engines_dir", o.cfg.EnginesDir,
		"workspace_mb", o.cfg.WorkspaceMB,
	)

	summary := &Summary{}
	for _, m := range models {
		summary.Results = append(summary.Results, o.buildOne(ctx, m))
	}

	outputs, err := o.listEngines()
	if err != nil {
		return nil, err
	}
	summary.Outputs = outputs

	o.logger.Info("engine build finished", "engines", len(outputs))
	return summary, nil
}

// buildOne builds the engine for a single model, writing the compiler output
// to <base>_build.log next to the engine regardless of outcome.
func (o *Orchestrator) buildOne(ctx context.Context, modelFile string) Result {
	base := strings.TrimSuffix(modelFile, sourceExt)
	engine := EngineName(base)
	enginePath := filepath.Join(o.cfg.EnginesDir, engine)
	res := Result{Model: modelFile, Engine: engine}

	if _, err := os.Stat(enginePath); err == nil {
		o.logger.Info("engine already built, skipping", "model", modelFile, "engine", engine)
		res.Skipped = true
		return res
	}

	logPath := filepath.Join(o.cfg.EnginesDir, base+"_build.log")
	logFile, err := os.Create(logPath)
	if err != nil {
		res.Err = fmt.Errorf("create build log: %w", err)
		o.logger.Error("build failed", "model", modelFile, "error", res.Err)
		return res
	}
	defer logFile.Close()

	args := o.compileArgs(modelFile, enginePath, logFile)

	o.logger.Info("building engine", "model", modelFile, "engine", engine)
	if err := o.runner.Run(ctx, logFile, "trtexec", args...); err != nil {
		res.Err = fmt.Errorf("compile %s: %w", modelFile, err)
		fmt.Fprintf(logFile, "BUILD FAILED: %v\n", err)
		// The partial engine file, if any, is left in place for inspection.
		o.logger.Error("build failed", "model", modelFile, "error", err)
		return res
	}

	if info, err := os.Stat(enginePath); err == nil {
		fmt.Fprintf(logFile, "BUILD OK: %s (%d bytes)\n", engine, info.Size())
		o.logger.Info("engine built", "engine", engine, "size_bytes", info.Size())
	} else {
		o.logger.Info("engine built", "engine", engine)
	}
	return res
}

// compileArgs assembles the trtexec invocation: INT8 as the primary precision
// with an FP16 fallback requested simultaneously, bounded by the configured
// workspace. A calibration cache is passed when present by convention;
// otherwise the build proceeds unguided with a warning in the build log.
func (o *Orchestrator) compileArgs(modelFile, enginePath string, logW io.Writer) []string {
	args := []string{
		"--onnx=" + filepath.Join(o.cfg.ModelsDir, modelFile),
		"--saveEngine=" + enginePath,
		"--int8",
		"--fp16",
		fmt.Sprintf("--memPoolSize=workspace:%dM", o.cfg.WorkspaceMB),
	}

	calibPath := filepath.Join(o.cfg.CalibDir, calibCacheName)
	if _, err := os.Stat(calibPath); err == nil {
		args = append(args, "--calib="+calibPath)
	} else {
		fmt.Fprintf(logW, "WARNING: no calibration cache at %s, INT8 quantization will be unguided and may be less accurate\n", calibPath)
		o.logger.Warn("no calibration cache, building unguided", "path", calibPath)
	}

	return args
}

// listModels returns the ONNX file names in the source directory in a stable
// order.
func (o *Orchestrator) listModels() ([]string, error) {
	entries, err := os.ReadDir(o.cfg.ModelsDir)
	if err != nil {
		return nil, fmt.Errorf("read models directory: %w", err)
	}

	var models []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), sourceExt) {
			models = append(models, e.Name())
		}
	}
	sort.Strings(models)
	return models, nil
}

// listEngines returns the engine file names now present in the destination.
func (o *Orchestrator) listEngines() ([]string, error) {
	entries, err := os.ReadDir(o.cfg.EnginesDir)
	if err != nil {
		return nil, fmt.Errorf("read engines directory: %w", err)
	}

	var engines []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".engine") {
			engines = append(engines, e.Name())
		}
	}
	sort.Strings(engines)
	return engines, nil
}
