// Package extract streams a frame range from a video source into an output
// writer without ever holding more than one chunk of frames in memory.
package extract

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/marlefranco/VidExtract/internal/video"
)

// ErrNoFrames is returned when the requested range yields zero frames, for
// example when the start and end indices are malformed.
var ErrNoFrames = errors.New("no frames extracted")

// DefaultChunkSize bounds how many decoded frames are held in memory at once.
// Chunks trade throughput for a flat memory ceiling independent of clip
// length.
const DefaultChunkSize = 100

// Progress receives extraction progress as a 0-100 percentage. Fire and
// forget; the extractor never blocks on it.
type Progress func(percent int, message string)

// Options selects the frame range. End is exclusive; nil means drain the
// source to its last decodable frame.
type Options struct {
	Start     int
	End       *int
	ChunkSize int
	Progress  Progress
}

// Extractor copies frame ranges between an exclusive source cursor and a
// writer.
type Extractor struct {
	logger zerolog.Logger
}

// New builds an extractor.
func New(logger zerolog.Logger) *Extractor {
	return &Extractor{logger: logger.With().Str("component", "extractor").Logger()}
}

// Run seeks once to the start frame and then reads strictly sequentially:
// per-frame seeking costs far more than sequential decode. Returns the
// number of frames written; zero frames is ErrNoFrames.
func (e *Extractor) Run(ctx context.Context, src video.Source, dst video.Writer, opts Options) (int, error) {
	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	// The progress denominator: the requested end, or the whole file when
	// extracting to the end of stream.
	limit := src.FrameCount()
	if opts.End != nil && *opts.End < limit {
		limit = *opts.End
	}

	if err := src.Seek(opts.Start); err != nil {
		return 0, fmt.Errorf("seek to start frame %d: %w", opts.Start, err)
	}

	e.logger.Debug().
		Int("start", opts.Start).
		Int("limit", limit).
		Int("chunk_size", chunkSize).
		Bool("to_eof", opts.End == nil).
		Msg("starting extraction")

	written := 0
	chunk := make([]video.Frame, 0, chunkSize)

	flush := func() error {
		for _, f := range chunk {
			err := dst.Write(f)
			f.Close()
			if err != nil {
				return fmt.Errorf("write frame: %w", err)
			}
			written++
		}
		chunk = chunk[:0]

		if opts.Progress != nil && limit > opts.Start {
			pct := 100 * written / (limit - opts.Start)
			opts.Progress(min(pct, 100), "Extracting frames...")
		}
		return nil
	}

	for cur := opts.Start; opts.End == nil || cur < *opts.End; cur++ {
		if err := ctx.Err(); err != nil {
			closeAll(chunk)
			return written, err
		}

		f, err := src.ReadNext()
		if errors.Is(err, video.ErrEndOfStream) {
			break
		}
		if err != nil {
			closeAll(chunk)
			return written, fmt.Errorf("read frame %d: %w", cur, err)
		}

		chunk = append(chunk, f)
		if len(chunk) >= chunkSize {
			if err := flush(); err != nil {
				closeAll(chunk)
				return written, err
			}
		}
	}

	if err := flush(); err != nil {
		closeAll(chunk)
		return written, err
	}

	if written == 0 {
		return 0, ErrNoFrames
	}

	e.logger.Info().Int("frames", written).Msg("extraction complete")
	return written, nil
}

func closeAll(frames []video.Frame) {
	for _, f := range frames {
		f.Close()
	}
}
