// Package pipeline orchestrates the full snippet extraction workflow: seed a
// reference timestamp, locate the start and end instants in the frame index,
// then stream the range into the output file.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/marlefranco/VidExtract/internal/extract"
	"github.com/marlefranco/VidExtract/internal/ocr"
	"github.com/marlefranco/VidExtract/internal/search"
	"github.com/marlefranco/VidExtract/internal/timestamp"
	"github.com/marlefranco/VidExtract/internal/video"
)

var (
	// ErrStartNotFound means no frame with a timestamp at or past the
	// requested start could be located. Without a start frame there is
	// nothing to extract.
	ErrStartNotFound = errors.New("start timestamp not found in video")

	// ErrNoFramesExtracted means the located range produced zero frames.
	ErrNoFramesExtracted = errors.New("no frames extracted")
)

const (
	defaultBaseStep = 10
	defaultTimeout  = 60 * time.Second
)

// Pipeline wires the video, OCR, search and extraction collaborators
// together. The constructor binds the real gocv and tesseract
// implementations; tests swap the factories for fakes.
type Pipeline struct {
	logger zerolog.Logger

	openSource    func(path string) (video.Source, error)
	createWriter  func(path string, fps float64, width, height int, fourcc string) (video.Writer, error)
	newRecognizer func() (ocr.Recognizer, error)
}

// New creates a pipeline backed by gocv video IO and the tesseract binary.
func New(logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		logger: logger.With().Str("component", "pipeline").Logger(),
		openSource: func(path string) (video.Source, error) {
			return video.OpenSource(logger, path)
		},
		createWriter: func(path string, fps float64, width, height int, fourcc string) (video.Writer, error) {
			return video.CreateWriter(logger, path, fps, width, height, fourcc)
		},
		newRecognizer: func() (ocr.Recognizer, error) {
			return ocr.NewTesseract(logger)
		},
	}
}

// ExtractSnippet locates the frames bracketing [req.Start, req.End] and
// writes them to req.OutputPath. A missing end timestamp degrades to
// extracting through the end of the file; a missing start timestamp is fatal.
func (p *Pipeline) ExtractSnippet(ctx context.Context, req Request) (*Result, error) {
	began := time.Now()

	if req.VideoPath == "" {
		return nil, fmt.Errorf("video path cannot be empty")
	}
	if req.OutputPath == "" {
		return nil, fmt.Errorf("output path cannot be empty")
	}
	if timestamp.Compare(req.Start, req.End, req.TimeOnly) >= 0 {
		return nil, fmt.Errorf("start timestamp must precede end timestamp")
	}
	if req.BaseStep <= 0 {
		req.BaseStep = defaultBaseStep
	}
	if req.Timeout <= 0 {
		req.Timeout = defaultTimeout
	}
	region := req.Region
	if region.Width <= 0 || region.Height <= 0 {
		region = ocr.DefaultRegion()
	}
	patterns := req.Patterns
	if len(patterns) == 0 {
		patterns = timestamp.DefaultPatterns()
	}

	progress := &reporter{fn: req.Progress}

	src, err := p.openSource(req.VideoPath)
	if err != nil {
		return nil, fmt.Errorf("open video %s: %w", req.VideoPath, err)
	}
	defer src.Close()

	total := src.FrameCount()
	fps := src.FPS()
	width, height := src.Dimensions()
	if total <= 0 || fps <= 0 {
		return nil, fmt.Errorf("video %s reports no frames or zero fps", req.VideoPath)
	}

	p.logger.Info().
		Str("video", req.VideoPath).
		Int("frames", total).
		Float64("fps", fps).
		Str("start", timestamp.Format(req.Start, "15:04:05:000")).
		Str("end", timestamp.Format(req.End, "15:04:05:000")).
		Msg("starting snippet extraction")

	rec, err := p.newRecognizer()
	if err != nil {
		return nil, err
	}
	defer rec.Close()

	reader := search.NewFrameReader(p.logger, src, rec, ocr.NewCache(), search.ReaderConfig{
		Region:              region,
		Patterns:            patterns,
		ReferenceDate:       req.Start,
		PrioritizeTimeOfDay: req.TimeOnly,
	})
	locCfg := search.LocatorConfig{
		FPS:         fps,
		TotalFrames: total,
		BaseStep:    req.BaseStep,
		Timeout:     req.Timeout,
		TimeOnly:    req.TimeOnly,
	}

	// Seed a reference a tenth of the way in. A single readable timestamp
	// lets the locator extrapolate instead of scanning from frame zero.
	progress.report(0, "Reading reference timestamp...")
	ref := p.seedReference(ctx, reader, total/10)
	progress.report(10, "Searching for start timestamp...")

	startLoc := search.NewLocator(p.logger, reader, locCfg)
	startFrame, found, err := startLoc.Locate(ctx, req.Start, ref)
	if err != nil {
		return nil, fmt.Errorf("locate start: %w", err)
	}
	if !found {
		return nil, ErrStartNotFound
	}
	p.logger.Info().Int("frame", startFrame).Msg("start frame located")
	progress.report(30, "Searching for end timestamp...")

	// The timestamp at the start frame is already cached and makes a far
	// tighter reference for the end search than the initial seed.
	endRef := ref
	if ts, ok, rerr := reader.ReadTimestamp(ctx, startFrame); rerr == nil && ok {
		endRef = &search.Ref{Frame: startFrame, Time: ts}
	}

	// Fresh locator so the adaptive step starts wide again.
	endLoc := search.NewLocator(p.logger, reader, locCfg)
	endFrame, endFound, err := endLoc.Locate(ctx, req.End, endRef)
	if err != nil {
		return nil, fmt.Errorf("locate end: %w", err)
	}
	if !endFound {
		endFrame, endFound, err = p.linearScan(ctx, reader, endLoc, startFrame, total, req.BaseStep, req.End, req.TimeOnly)
		if err != nil {
			return nil, fmt.Errorf("locate end: %w", err)
		}
	}
	if endFound {
		p.logger.Info().Int("frame", endFrame).Msg("end frame located")
	} else {
		p.logger.Warn().Msg("end timestamp not found, extracting to end of video")
	}
	progress.report(50, "Extracting frames...")

	dst, err := p.createWriter(req.OutputPath, fps, width, height, req.FourCC)
	if err != nil {
		return nil, fmt.Errorf("create output %s: %w", req.OutputPath, err)
	}
	defer dst.Close()

	var end *int
	if endFound {
		end = &endFrame
	}
	written, err := extract.New(p.logger).Run(ctx, src, dst, extract.Options{
		Start:     startFrame,
		End:       end,
		ChunkSize: req.ChunkSize,
		Progress: func(pct int, msg string) {
			progress.report(50+pct/2, msg)
		},
	})
	if errors.Is(err, extract.ErrNoFrames) {
		return nil, ErrNoFramesExtracted
	}
	if err != nil {
		return nil, fmt.Errorf("extract range: %w", err)
	}
	progress.report(100, "Done")

	res := &Result{
		OutputPath:    req.OutputPath,
		StartFrame:    startFrame,
		EndFrame:      endFrame,
		EndFound:      endFound,
		FramesWritten: written,
		Elapsed:       time.Since(began),
	}
	if !endFound {
		res.EndFrame = -1
	}

	p.logger.Info().
		Int("frames", written).
		Dur("elapsed", res.Elapsed).
		Str("output", req.OutputPath).
		Msg("snippet extraction complete")
	return res, nil
}

// seedReference reads one frame and returns it as a locator reference, or nil
// when the frame is unreadable. Seeding is best effort; engine failures
// surface later on the first real probe.
func (p *Pipeline) seedReference(ctx context.Context, reader search.Reader, frame int) *search.Ref {
	ts, ok, err := reader.ReadTimestamp(ctx, frame)
	if err != nil || !ok {
		p.logger.Debug().Int("frame", frame).Msg("reference frame unreadable, searching without a seed")
		return nil
	}
	p.logger.Debug().
		Int("frame", frame).
		Str("timestamp", timestamp.Format(ts, "15:04:05:000")).
		Msg("reference timestamp seeded")
	return &search.Ref{Frame: frame, Time: ts}
}

// linearScan is the plain fallback when the optimized end search comes up
// empty: walk forward from the start frame at the base step until a timestamp
// at or past the target appears, then bisect the bracket.
func (p *Pipeline) linearScan(ctx context.Context, reader search.Reader, loc *search.Locator, from, total, step int, target time.Time, timeOnly bool) (int, bool, error) {
	prev := from
	for cur := from; cur < total; cur += step {
		if err := ctx.Err(); err != nil {
			return 0, false, err
		}
		ts, ok, err := reader.ReadTimestamp(ctx, cur)
		if err != nil {
			return 0, false, err
		}
		if !ok {
			continue
		}
		if timestamp.Compare(ts, target, timeOnly) >= 0 {
			frame, err := loc.Refine(ctx, prev, cur, target)
			if err != nil {
				return 0, false, err
			}
			return frame, true, nil
		}
		prev = cur
	}
	return 0, false, nil
}

// reporter keeps reported progress monotone non-decreasing regardless of how
// the stages interleave.
type reporter struct {
	fn   Progress
	last int
}

func (r *reporter) report(pct int, msg string) {
	if r.fn == nil {
		return
	}
	if pct < r.last {
		pct = r.last
	}
	r.last = pct
	r.fn(pct, msg)
}
