package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/marlefranco/VidExtract/internal/ocr"
)

var testBase = time.Date(2025, time.June, 13, 13, 0, 0, 0, time.UTC)

// syntheticReader simulates a video whose overlay timestamp advances
// monotonically with the frame index: base + frame/fps seconds.
type syntheticReader struct {
	base   time.Time
	fps    float64
	total  int
	missAt func(frame int) bool
	err    error
	calls  int
}

func (r *syntheticReader) ReadTimestamp(_ context.Context, frame int) (time.Time, bool, error) {
	r.calls++
	if r.err != nil {
		return time.Time{}, false, r.err
	}
	if frame >= r.total {
		return time.Time{}, false, nil
	}
	if r.missAt != nil && r.missAt(frame) {
		return time.Time{}, false, nil
	}
	secs := float64(frame) / r.fps
	return r.base.Add(time.Duration(secs * float64(time.Second))), true, nil
}

func newTestLocator(r Reader, total int) *Locator {
	return NewLocator(zerolog.Nop(), r, LocatorConfig{
		FPS:         30,
		TotalFrames: total,
		BaseStep:    15,
		Timeout:     10 * time.Second,
		TimeOnly:    true,
	})
}

func TestLocateWithReference(t *testing.T) {
	reader := &syntheticReader{base: testBase, fps: 30, total: 1000}
	loc := newTestLocator(reader, 1000)

	// Target 5s in at 30fps: frame 150. Reference pair 1s in at frame 30.
	target := testBase.Add(5 * time.Second)
	ref := &Ref{Frame: 30, Time: testBase.Add(time.Second)}

	frame, found, err := loc.Locate(context.Background(), target, ref)
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if !found {
		t.Fatal("expected target to be found")
	}
	if frame != 150 {
		t.Errorf("got frame %d, want 150", frame)
	}
}

func TestLocateReferenceLimitsProbes(t *testing.T) {
	reader := &syntheticReader{base: testBase, fps: 30, total: 100000}
	loc := newTestLocator(reader, 100000)

	// Nearly an hour into the recording. A seeded scan must stay local to
	// the extrapolated position instead of walking up from frame zero.
	target := testBase.Add(55 * time.Minute)
	ref := &Ref{Frame: 0, Time: testBase}

	frame, found, err := loc.Locate(context.Background(), target, ref)
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if !found || frame != 99000 {
		t.Fatalf("got (%d, %v), want (99000, true)", frame, found)
	}
	if reader.calls > 100 {
		t.Errorf("seeded scan used %d probes, expected a local search", reader.calls)
	}
}

func TestLocateUnseeded(t *testing.T) {
	reader := &syntheticReader{base: testBase, fps: 30, total: 1000}
	loc := newTestLocator(reader, 1000)

	target := testBase.Add(10 * time.Second) // frame 300

	frame, found, err := loc.Locate(context.Background(), target, nil)
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if !found || frame != 300 {
		t.Errorf("got (%d, %v), want (300, true)", frame, found)
	}
}

func TestLocateTargetBeyondVideo(t *testing.T) {
	reader := &syntheticReader{base: testBase, fps: 30, total: 300}
	loc := newTestLocator(reader, 300)

	// Last overlay is just under 10s; ask for a minute past the end.
	target := testBase.Add(time.Minute)

	frame, found, err := loc.Locate(context.Background(), target, nil)
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if found {
		t.Errorf("expected not found, got frame %d", frame)
	}
	if frame < 0 {
		t.Error("expected the last readable frame as a hint")
	}
}

func TestLocateNothingReadable(t *testing.T) {
	reader := &syntheticReader{base: testBase, fps: 30, total: 300,
		missAt: func(int) bool { return true }}
	loc := newTestLocator(reader, 300)

	frame, found, err := loc.Locate(context.Background(), testBase.Add(time.Second), nil)
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if found || frame != -1 {
		t.Errorf("got (%d, %v), want (-1, false)", frame, found)
	}
}

func TestLocateToleratesMissStreaks(t *testing.T) {
	// Frames 140-160 are unreadable; the miss counter must tighten the
	// step instead of skipping the target zone.
	reader := &syntheticReader{base: testBase, fps: 30, total: 1000,
		missAt: func(f int) bool { return f >= 140 && f <= 160 }}
	loc := newTestLocator(reader, 1000)

	target := testBase.Add(5 * time.Second) // frame 150, inside the dead zone

	frame, found, err := loc.Locate(context.Background(), target, nil)
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if !found {
		t.Fatal("expected target to be found")
	}
	// The first readable frame at/after the target is 161.
	if frame < 150 || frame > 161 {
		t.Errorf("got frame %d, want within [150, 161]", frame)
	}
}

func TestLocatePropagatesEngineFailure(t *testing.T) {
	reader := &syntheticReader{base: testBase, fps: 30, total: 1000, err: ocr.ErrEngineUnavailable}
	loc := newTestLocator(reader, 1000)

	_, _, err := loc.Locate(context.Background(), testBase.Add(time.Second), nil)
	if !errors.Is(err, ocr.ErrEngineUnavailable) {
		t.Fatalf("expected ErrEngineUnavailable, got %v", err)
	}
	if reader.calls != 1 {
		t.Errorf("engine failure should abort immediately, got %d probes", reader.calls)
	}
}

func TestLocateTimeout(t *testing.T) {
	reader := &syntheticReader{base: testBase, fps: 30, total: 1000}
	loc := NewLocator(zerolog.Nop(), reader, LocatorConfig{
		FPS:         30,
		TotalFrames: 1000,
		BaseStep:    15,
		Timeout:     -time.Second, // already expired
		TimeOnly:    true,
	})

	_, _, err := loc.Locate(context.Background(), testBase.Add(time.Second), nil)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestRefineBracket(t *testing.T) {
	reader := &syntheticReader{base: testBase, fps: 30, total: 1000}
	loc := newTestLocator(reader, 1000)

	target := testBase.Add(5 * time.Second) // frame 150

	frame, err := loc.Refine(context.Background(), 100, 200, target)
	if err != nil {
		t.Fatalf("Refine failed: %v", err)
	}
	if frame != 150 {
		t.Errorf("got frame %d, want 150", frame)
	}
}

func TestRefineAllInteriorMisses(t *testing.T) {
	// Every interior probe misses: the bisection advances low past high and
	// returns high+1... the refiner biases toward not skipping the target.
	reader := &syntheticReader{base: testBase, fps: 30, total: 1000,
		missAt: func(f int) bool { return f > 100 && f < 200 }}
	loc := newTestLocator(reader, 1000)

	target := testBase.Add(5 * time.Second)

	frame, err := loc.Refine(context.Background(), 101, 199, target)
	if err != nil {
		t.Fatalf("Refine failed: %v", err)
	}
	if frame != 200 {
		t.Errorf("got frame %d, want 200", frame)
	}
}

func TestRefineSubSecondPrecision(t *testing.T) {
	reader := &syntheticReader{base: testBase, fps: 30, total: 1000}
	loc := newTestLocator(reader, 1000)

	// A target between two frame instants lands on the first frame at or
	// after it.
	target := testBase.Add(5*time.Second + 10*time.Millisecond)

	frame, err := loc.Refine(context.Background(), 100, 200, target)
	if err != nil {
		t.Fatalf("Refine failed: %v", err)
	}
	if frame != 151 {
		t.Errorf("got frame %d, want 151", frame)
	}
}
