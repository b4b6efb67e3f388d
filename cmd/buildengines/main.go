// Command buildengines builds TensorRT engines for every ONNX model that does
// not already have one. It exits 0 when the batch ran to completion, even if
// individual models failed to build; per-model outcomes are in the build logs
// and the printed summary.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/seantiz/foundry/internal/builder"
	"github.com/seantiz/foundry/internal/config"
)

func main() {
	cfg := config.LoadBuild()
	logger := config.NewLogger(os.Stderr, slog.LevelInfo)

	orch := builder.New(cfg, nil, logger)
	summary, err := orch.Build(context.Background())
	if err != nil {
		log.Fatalf("engine build failed: %v", err)
	}

	for _, r := range summary.Results {
		switch {
		case r.Skipped:
			fmt.Printf("skipped  %s (already built)\n", r.Model)
		case r.Err != nil:
			fmt.Printf("failed   %s: %v\n", r.Model, r.Err)
		default:
			fmt.Printf("built    %s -> %s\n", r.Model, r.Engine)
		}
	}

	fmt.Printf("\nengines in %s:\n", cfg.EnginesDir)
	for _, e := range summary.Outputs {
		fmt.Printf("  %s\n", e)
	}
}
