package pipeline

import (
	"time"

	"github.com/marlefranco/VidExtract/internal/ocr"
	"github.com/marlefranco/VidExtract/internal/timestamp"
)

// Progress receives orchestration progress as a 0-100 percentage plus a
// human-readable stage message. Implementations must not block.
type Progress func(percent int, message string)

// Request describes a single snippet extraction.
type Request struct {
	VideoPath  string
	OutputPath string
	Start      time.Time
	End        time.Time

	// Region selects where in the frame the overlay timestamp lives.
	// Zero value means the default top-right placement.
	Region ocr.Region

	// Patterns are tried in order against OCR output. Empty means the
	// default set.
	Patterns []timestamp.Pattern

	// BaseStep is the coarse sampling interval in frames.
	BaseStep int

	// Timeout bounds each timestamp search by wall clock.
	Timeout time.Duration

	// ChunkSize bounds extraction memory; zero means the extractor default.
	ChunkSize int

	// FourCC selects the output codec; empty means mp4v.
	FourCC string

	// TimeOnly compares timestamps by time of day, ignoring the date.
	// This is the default behavior at the CLI because overlay timestamps
	// frequently omit or garble the date portion.
	TimeOnly bool

	Progress Progress
}

// Result summarizes a completed extraction.
type Result struct {
	OutputPath    string
	StartFrame    int
	EndFrame      int // -1 when the end timestamp was never located
	EndFound      bool
	FramesWritten int
	Elapsed       time.Duration
}
