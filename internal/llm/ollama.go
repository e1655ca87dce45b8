package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"
)

const defaultMaxOutputBytes = 64 * 1024

// OllamaClient invokes a local Ollama runtime as a subprocess. The call is
// bounded both in wall time (context deadline) and output size; exceeding
// either bound is reported as an error so callers fall back.
type OllamaClient struct {
	binary         string
	model          string
	maxOutputBytes int
	timeout        time.Duration
}

// NewOllamaClient creates a client for a local model runtime.
func NewOllamaClient(binary, model string, maxOutputBytes int, timeout time.Duration) *OllamaClient {
	if binary == "" {
		binary = "ollama"
	}
	if maxOutputBytes <= 0 {
		maxOutputBytes = defaultMaxOutputBytes
	}
	return &OllamaClient{
		binary:         binary,
		model:          model,
		maxOutputBytes: maxOutputBytes,
		timeout:        timeout,
	}
}

// Generate runs the model on the given prompt and returns its output.
func (o *OllamaClient) Generate(ctx context.Context, prompt string) (string, error) {
	if _, err := exec.LookPath(o.binary); err != nil {
		return "", fmt.Errorf("ollama runtime not available: %w", err)
	}

	cmd := exec.CommandContext(ctx, o.binary, "run", o.model)
	cmd.Stdin = strings.NewReader(prompt)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	// One extra byte past the cap so an overrun is detectable.
	cmd.Stdout = &boundedWriter{w: &stdout, remaining: o.maxOutputBytes + 1}
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("ollama call timed out: %w", ctx.Err())
		}
		return "", fmt.Errorf("ollama run failed: %w (stderr: %s)", err, strings.TrimSpace(stderr.String()))
	}

	if stdout.Len() > o.maxOutputBytes {
		return "", fmt.Errorf("ollama output exceeded %d bytes", o.maxOutputBytes)
	}

	return stdout.String(), nil
}

// boundedWriter discards bytes past its budget so a runaway model cannot
// grow the buffer without bound.
type boundedWriter struct {
	w         io.Writer
	remaining int
}

func (b *boundedWriter) Write(p []byte) (int, error) {
	if b.remaining <= 0 {
		return len(p), nil
	}
	n := len(p)
	if n > b.remaining {
		n = b.remaining
	}
	if _, err := b.w.Write(p[:n]); err != nil {
		return 0, err
	}
	b.remaining -= n
	return len(p), nil
}
