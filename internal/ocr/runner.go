package ocr

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// stderr kept in logs per failed command
const maxLoggedStderr = 8 << 10

// Runner executes one external OCR tool. Tests replace it with a fake.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type commandRunner struct {
	logger *slog.Logger
}

func (r commandRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout, cmd.Stderr = &stdout, &stderr

	start := time.Now()
	err := cmd.Run()

	attrs := []any{
		"bin", name,
		"args", strings.Join(args, " "),
		"elapsed_ms", time.Since(start).Milliseconds(),
	}
	if err != nil {
		msg := stderr.String()
		if len(msg) > maxLoggedStderr {
			msg = msg[:maxLoggedStderr] + "...(truncated)"
		}
		r.logger.Error("ocr.exec.failed", append(attrs, "error", err, "stderr", msg)...)
	} else {
		r.logger.Debug("ocr.exec.ok", append(attrs, "stdout_bytes", stdout.Len())...)
	}
	return stdout.Bytes(), stderr.Bytes(), err
}
