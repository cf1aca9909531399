// Package search locates wall-clock instants inside a video by probing
// frames for their burned-in overlay timestamp.
package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/marlefranco/VidExtract/internal/ocr"
	"github.com/marlefranco/VidExtract/internal/timestamp"
	"github.com/marlefranco/VidExtract/internal/video"
)

// Reader resolves a frame index to its recognized overlay timestamp. The
// boolean reports whether a timestamp was readable; errors are reserved for
// fatal conditions such as an unavailable OCR engine.
type Reader interface {
	ReadTimestamp(ctx context.Context, frame int) (time.Time, bool, error)
}

// ReaderConfig bundles the recognition settings shared by every probe in a
// session.
type ReaderConfig struct {
	Region              ocr.Region
	Patterns            []timestamp.Pattern
	ReferenceDate       time.Time
	PrioritizeTimeOfDay bool
}

// FrameReader reads frames from a video source and runs the region crop,
// OCR and parse chain, memoizing results in the session cache so no frame is
// recognized twice.
type FrameReader struct {
	logger zerolog.Logger
	src    video.Source
	rec    ocr.Recognizer
	cache  *ocr.Cache
	cfg    ReaderConfig
}

// NewFrameReader wires a reader over one exclusive video source cursor.
func NewFrameReader(logger zerolog.Logger, src video.Source, rec ocr.Recognizer, cache *ocr.Cache, cfg ReaderConfig) *FrameReader {
	if len(cfg.Patterns) == 0 {
		cfg.Patterns = timestamp.DefaultPatterns()
	}
	return &FrameReader{
		logger: logger.With().Str("component", "frame-reader").Logger(),
		src:    src,
		rec:    rec,
		cache:  cache,
		cfg:    cfg,
	}
}

// ReadTimestamp seeks to the frame, crops the overlay region and recognizes
// its timestamp. Unreadable frames are misses, cached as such; only engine
// and I/O failures surface as errors.
func (r *FrameReader) ReadTimestamp(ctx context.Context, frame int) (time.Time, bool, error) {
	return r.cache.GetOrCompute(frame, func() (time.Time, bool, error) {
		if err := r.src.Seek(frame); err != nil {
			return time.Time{}, false, fmt.Errorf("seek frame %d: %w", frame, err)
		}

		f, err := r.src.ReadNext()
		if errors.Is(err, video.ErrEndOfStream) {
			// Probing past the last decodable frame is a miss, not a fault.
			return time.Time{}, false, nil
		}
		if err != nil {
			return time.Time{}, false, fmt.Errorf("read frame %d: %w", frame, err)
		}
		defer f.Close()

		w, h := r.src.Dimensions()
		png, err := f.RegionPNG(r.cfg.Region.Coords(w, h))
		if err != nil {
			r.logger.Debug().Err(err).Int("frame", frame).Msg("region crop failed")
			return time.Time{}, false, nil
		}

		text, err := r.rec.Recognize(ctx, png)
		if err != nil {
			return time.Time{}, false, err
		}

		ts, ok := timestamp.Parse(text, r.cfg.Patterns, r.cfg.ReferenceDate, r.cfg.PrioritizeTimeOfDay)
		if !ok {
			r.logger.Debug().Int("frame", frame).Msg("no timestamp recognized")
		}
		return ts, ok, nil
	})
}
