package search

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/marlefranco/VidExtract/internal/timestamp"
)

// ErrTimeout marks a locate or refine pass that exceeded its wall-clock
// budget. It is fatal for the pass but distinguishable, so a caller can
// suggest retrying with a larger timeout.
var ErrTimeout = errors.New("search timed out")

// Consecutive unreadable probes before the sampling step is halved. Short
// bursts of OCR misses (blur, motion, compression artifacts) must not let the
// scan skip over a short-lived overlay.
const missLimit = 5

// Step-distance thresholds: within nearThreshold of the target the step
// shrinks to half the base step, within farThreshold to the base step.
// Steps only ever shrink as proximity improves.
const (
	nearThreshold = time.Minute
	farThreshold  = 5 * time.Minute
)

// Ref is a known (frame index, timestamp) pair used to extrapolate the
// target position through the frame rate instead of scanning from zero.
type Ref struct {
	Frame int
	Time  time.Time
}

// LocatorConfig tunes one locate pass.
type LocatorConfig struct {
	FPS         float64
	TotalFrames int
	BaseStep    int
	Timeout     time.Duration
	TimeOnly    bool
}

// Locator finds the first frame whose overlay timestamp is at or after a
// target instant, using an estimate-and-refine scan with adaptive sampling.
type Locator struct {
	logger zerolog.Logger
	reader Reader
	cfg    LocatorConfig
}

// NewLocator builds a locator over a timestamp reader.
func NewLocator(logger zerolog.Logger, reader Reader, cfg LocatorConfig) *Locator {
	if cfg.BaseStep < 1 {
		cfg.BaseStep = 1
	}
	return &Locator{
		logger: logger.With().Str("component", "locator").Logger(),
		reader: reader,
		cfg:    cfg,
	}
}

// Locate scans for the first frame at or after target. With a reference pair
// the scan starts at the extrapolated position with a tight step; without
// one it starts at frame zero with a wide step. The boolean is false when
// the scan exhausts the video without reaching the target; the frame then
// carries the last readable index as a best-effort hint, or -1 when nothing
// was readable at all.
func (l *Locator) Locate(ctx context.Context, target time.Time, ref *Ref) (int, bool, error) {
	deadline := time.Now().Add(l.cfg.Timeout)

	cur, step := l.seed(target, ref)
	l.logger.Debug().
		Time("target", target).
		Int("start_frame", cur).
		Int("step", step).
		Bool("seeded", ref != nil).
		Msg("starting locate scan")

	lastValidFrame := -1
	var lastValidTime time.Time
	misses := 0

	for cur < l.cfg.TotalFrames {
		if err := l.checkBudget(ctx, deadline); err != nil {
			return 0, false, err
		}

		ts, ok, err := l.reader.ReadTimestamp(ctx, cur)
		if err != nil {
			return 0, false, err
		}

		if !ok {
			misses++
			if misses >= missLimit {
				step = max(1, step/2)
				misses = 0
				l.logger.Debug().Int("frame", cur).Int("step", step).Msg("miss streak, halving step")
			}
			cur += step
			continue
		}
		misses = 0

		if timestamp.Compare(ts, target, l.cfg.TimeOnly) >= 0 {
			if lastValidFrame >= 0 && timestamp.Compare(lastValidTime, target, l.cfg.TimeOnly) < 0 {
				frame, err := l.refine(ctx, lastValidFrame, cur, target, deadline)
				return frame, true, err
			}
			// Target reached with no usable lower bracket, e.g. on the
			// very first sample.
			return cur, true, nil
		}

		lastValidFrame, lastValidTime = cur, ts
		step = l.shrinkStep(step, ts, target)
		cur += step
	}

	l.logger.Debug().Int("last_valid", lastValidFrame).Msg("scan exhausted without reaching target")
	return lastValidFrame, false, nil
}

// Refine bisects a bracketing interval on its own timeout budget. Locate
// uses the shared per-pass deadline instead.
func (l *Locator) Refine(ctx context.Context, low, high int, target time.Time) (int, error) {
	return l.refine(ctx, low, high, target, time.Now().Add(l.cfg.Timeout))
}

// refine runs integer bisection over the three-way time-of-day comparison.
// A miss at the midpoint advances the lower bound: with no information the
// search must not risk skipping the target, even if that can land one
// sampled frame late.
func (l *Locator) refine(ctx context.Context, low, high int, target time.Time, deadline time.Time) (int, error) {
	for low <= high {
		if err := l.checkBudget(ctx, deadline); err != nil {
			return 0, err
		}

		mid := (low + high) / 2
		ts, ok, err := l.reader.ReadTimestamp(ctx, mid)
		if err != nil {
			return 0, err
		}
		if !ok {
			low = mid + 1
			continue
		}

		switch timestamp.Compare(ts, target, l.cfg.TimeOnly) {
		case -1:
			low = mid + 1
		case 1:
			high = mid - 1
		default:
			return mid, nil
		}
	}
	return low, nil
}

// seed picks the scan's starting frame and step. A reference pair plus the
// frame rate turns the time distance to the target into a frame estimate.
func (l *Locator) seed(target time.Time, ref *Ref) (start, step int) {
	if ref == nil || l.cfg.FPS <= 0 {
		return 0, min(l.cfg.BaseStep*3, 30)
	}

	dt := absDuration(timestamp.TimeOfDay(target) - timestamp.TimeOfDay(ref.Time))
	estimated := ref.Frame + int(math.Round(dt.Seconds()*l.cfg.FPS))
	estimated = max(0, min(estimated, l.cfg.TotalFrames-1))

	return estimated, max(1, min(l.cfg.BaseStep, 5))
}

// shrinkStep tightens the sampling step as the last readable timestamp
// approaches the target. Steps never grow back.
func (l *Locator) shrinkStep(step int, ts, target time.Time) int {
	dist := absDuration(timestamp.TimeOfDay(target) - timestamp.TimeOfDay(ts))
	switch {
	case dist < nearThreshold:
		return max(1, min(step, l.cfg.BaseStep/2))
	case dist < farThreshold:
		return max(1, min(step, l.cfg.BaseStep))
	default:
		return step
	}
}

func (l *Locator) checkBudget(ctx context.Context, deadline time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if time.Now().After(deadline) {
		return ErrTimeout
	}
	return nil
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
