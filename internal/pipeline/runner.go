package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"sumika/internal/config"
	"sumika/internal/enrich"
)

// StageRunner executes one stage against its file contract. The production
// runner spawns a subprocess; tests substitute in-process runners.
type StageRunner interface {
	RunStage(ctx context.Context, stage string, req enrich.Request) error
}

// ExecRunner spawns each stage as `<binary> stage <name> ...` so a stage
// crash, leak, or hang stays contained in its own process.
type ExecRunner struct {
	cfg    *config.Config
	logger *slog.Logger
}

// NewExecRunner builds the subprocess stage runner.
func NewExecRunner(cfg *config.Config, logger *slog.Logger) *ExecRunner {
	return &ExecRunner{cfg: cfg, logger: logger}
}

// RunStage invokes the hidden stage subcommand and waits for it to exit.
// The context deadline kills the subprocess.
func (r *ExecRunner) RunStage(ctx context.Context, stage string, req enrich.Request) error {
	binary := r.cfg.Pipeline.StageBinary
	if binary == "" {
		self, err := os.Executable()
		if err != nil {
			return fmt.Errorf("resolve stage binary: %w", err)
		}
		binary = self
	}

	args := []string{"stage", stage, "--category", req.Category, "--output", req.Output}
	if req.Input != "" {
		args = append(args, "--input", req.Input)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if len(detail) > 512 {
			detail = detail[len(detail)-512:]
		}
		if detail != "" {
			return fmt.Errorf("stage %s: %w: %s", stage, err, detail)
		}
		return fmt.Errorf("stage %s: %w", stage, err)
	}
	return nil
}

// LocalRunner executes stages in-process. Used by tests and by the hidden
// stage subcommand itself.
type LocalRunner struct {
	cfg    *config.Config
	logger *slog.Logger
}

// NewLocalRunner builds the in-process stage runner.
func NewLocalRunner(cfg *config.Config, logger *slog.Logger) *LocalRunner {
	return &LocalRunner{cfg: cfg, logger: logger}
}

// RunStage builds the stage handler and runs it in this process.
func (r *LocalRunner) RunStage(ctx context.Context, stage string, req enrich.Request) error {
	handler, err := enrich.NewHandler(stage, r.cfg, r.logger)
	if err != nil {
		return err
	}
	return handler.Run(ctx, req)
}
