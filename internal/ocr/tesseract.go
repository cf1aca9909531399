package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"
)

const tesseractInstallURL = "https://tesseract-ocr.github.io/tessdoc/Installation.html"

// Tesseract runs the tesseract binary over stdin/stdout. PSM 7 treats the
// input as a single text line, which matches a one-line timestamp overlay.
type Tesseract struct {
	logger  zerolog.Logger
	binPath string
	psm     string
}

// NewTesseract locates the tesseract binary. A missing binary is reported as
// ErrEngineUnavailable so callers can surface install guidance up front
// instead of failing mid-search.
func NewTesseract(logger zerolog.Logger) (*Tesseract, error) {
	binPath, err := exec.LookPath("tesseract")
	if err != nil {
		return nil, fmt.Errorf("%w: tesseract not found in PATH, install from %s", ErrEngineUnavailable, tesseractInstallURL)
	}

	return &Tesseract{
		logger:  logger.With().Str("component", "tesseract").Logger(),
		binPath: binPath,
		psm:     "7",
	}, nil
}

// Recognize feeds the PNG region to tesseract and returns the recognized
// text. A nonzero exit on a readable image is a per-frame miss, not a fatal
// condition; only failures to run the engine at all map to
// ErrEngineUnavailable.
func (t *Tesseract) Recognize(ctx context.Context, png []byte) (string, error) {
	cmd := exec.CommandContext(ctx, t.binPath, "stdin", "stdout", "--psm", t.psm)
	cmd.Stdin = bytes.NewReader(png)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return "", fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
		}

		t.logger.Debug().
			Err(err).
			Str("stderr", strings.TrimSpace(stderr.String())).
			Msg("tesseract failed on frame region")
		return "", nil
	}

	return stdout.String(), nil
}

// Close is a no-op; each recognition is a standalone process.
func (t *Tesseract) Close() error {
	return nil
}

// CheckTesseract reports whether the tesseract binary is reachable, with
// install guidance when it is not.
func CheckTesseract() error {
	if _, err := exec.LookPath("tesseract"); err != nil {
		return fmt.Errorf("tesseract not found. Install from: %s", tesseractInstallURL)
	}
	return nil
}
