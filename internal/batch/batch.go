// Package batch drives snippet extraction across a directory tree of
// rangetime.txt files, each declaring start/end ranges to pull from a single
// source video.
package batch

import (
	"context"
	"encoding/csv"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/marlefranco/VidExtract/internal/pipeline"
	"github.com/marlefranco/VidExtract/internal/timestamp"
)

// rangeBuffer widens every declared range on both sides. Recording rigs and
// overlay clocks drift, so the declared range alone can clip the event.
const rangeBuffer = time.Minute

const outputName = "video.avi"

// Segment is one extraction parsed from a rangetime.txt row.
type Segment struct {
	Start      time.Time
	End        time.Time
	OutputPath string
}

// Options configures a batch run. Request acts as a template: its tuning
// fields (region, patterns, step, timeout) carry into every segment while
// the paths and range come from the rangetime files.
type Options struct {
	VideoPath string
	ParentDir string
	Request   pipeline.Request
	Progress  pipeline.Progress
}

// Runner walks a parent directory and extracts every declared segment.
type Runner struct {
	logger  zerolog.Logger
	extract func(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// New builds a runner on top of a pipeline.
func New(logger zerolog.Logger, p *pipeline.Pipeline) *Runner {
	return &Runner{
		logger:  logger.With().Str("component", "batch").Logger(),
		extract: p.ExtractSnippet,
	}
}

// Run processes every rangetime.txt under opts.ParentDir. Per-segment
// failures are logged and skipped; the batch keeps going. Returns the number
// of segments extracted successfully and the number attempted.
func (r *Runner) Run(ctx context.Context, opts Options) (processed, total int, err error) {
	files, err := findRangetimeFiles(opts.ParentDir)
	if err != nil {
		return 0, 0, fmt.Errorf("scan %s: %w", opts.ParentDir, err)
	}
	if len(files) == 0 {
		return 0, 0, fmt.Errorf("no rangetime.txt files found under %s", opts.ParentDir)
	}
	r.logger.Info().Int("files", len(files)).Str("dir", opts.ParentDir).Msg("found rangetime files")

	var segments []Segment
	for _, path := range files {
		segs, rerr := readSegments(path)
		if rerr != nil {
			r.logger.Warn().Err(rerr).Str("file", path).Msg("skipping unreadable rangetime file")
			continue
		}
		segments = append(segments, segs...)
	}
	total = len(segments)
	if total == 0 {
		return 0, 0, fmt.Errorf("no valid segments found under %s", opts.ParentDir)
	}

	for i, seg := range segments {
		if cerr := ctx.Err(); cerr != nil {
			return processed, total, cerr
		}

		req := opts.Request
		req.VideoPath = opts.VideoPath
		req.OutputPath = seg.OutputPath
		req.Start = seg.Start.Add(-rangeBuffer)
		req.End = seg.End.Add(rangeBuffer)
		if opts.Progress != nil {
			i := i
			req.Progress = func(pct int, msg string) {
				opts.Progress((i*100+pct)/total, fmt.Sprintf("Segment %d/%d: %s", i+1, total, msg))
			}
		}

		r.logger.Info().
			Int("segment", i+1).
			Int("total", total).
			Str("output", seg.OutputPath).
			Msg("extracting segment")

		if _, eerr := r.extract(ctx, req); eerr != nil {
			r.logger.Warn().Err(eerr).Str("output", seg.OutputPath).Msg("segment failed")
			continue
		}
		processed++
	}

	r.logger.Info().Int("processed", processed).Int("total", total).Msg("batch complete")
	return processed, total, nil
}

// findRangetimeFiles walks the tree collecting every rangetime.txt,
// case-insensitively.
func findRangetimeFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(d.Name(), "rangetime.txt") {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// readSegments parses one rangetime.txt: a CSV with a header row followed by
// start,end rows in 20060102_150405.000 format. Malformed rows are dropped,
// not fatal. The output lands next to the rangetime file.
func readSegments(path string) ([]Segment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rd := csv.NewReader(f)
	rd.FieldsPerRecord = -1

	rows, err := rd.ReadAll()
	if err != nil {
		return nil, err
	}

	outputPath := filepath.Join(filepath.Dir(path), outputName)

	var segments []Segment
	for i, row := range rows {
		if i == 0 || len(row) < 2 {
			continue
		}
		start, serr := timestamp.ParseRangetime(strings.TrimSpace(row[0]))
		end, eerr := timestamp.ParseRangetime(strings.TrimSpace(row[1]))
		if serr != nil || eerr != nil {
			continue
		}
		segments = append(segments, Segment{Start: start, End: end, OutputPath: outputPath})
	}
	return segments, nil
}
