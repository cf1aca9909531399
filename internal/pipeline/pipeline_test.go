package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/marlefranco/VidExtract/internal/ocr"
	"github.com/marlefranco/VidExtract/internal/timestamp"
	"github.com/marlefranco/VidExtract/internal/video"
)

var overlayBase = time.Date(2025, time.June, 13, 13, 0, 0, 0, time.UTC)

// overlayFrame carries its burned-in timestamp as the fake PNG payload so
// the echo recognizer can hand it straight back.
type overlayFrame struct {
	index int
	text  string
}

func (f *overlayFrame) RegionPNG(image.Rectangle) ([]byte, error) { return []byte(f.text), nil }
func (f *overlayFrame) Close() error                              { return nil }

type overlaySource struct {
	total  int
	fps    float64
	cursor int
}

func (s *overlaySource) FrameCount() int        { return s.total }
func (s *overlaySource) FPS() float64           { return s.fps }
func (s *overlaySource) Dimensions() (int, int) { return 1920, 1080 }
func (s *overlaySource) Seek(frame int) error   { s.cursor = frame; return nil }
func (s *overlaySource) Close() error           { return nil }

func (s *overlaySource) ReadNext() (video.Frame, error) {
	if s.cursor >= s.total {
		return nil, video.ErrEndOfStream
	}
	ts := overlayBase.Add(time.Duration(s.cursor) * time.Second / time.Duration(s.fps))
	f := &overlayFrame{
		index: s.cursor,
		text:  timestamp.Format(ts, "02/01/2006 15:04:05:000"),
	}
	s.cursor++
	return f, nil
}

type echoRecognizer struct {
	err error
}

func (r *echoRecognizer) Recognize(_ context.Context, png []byte) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return string(png), nil
}

func (r *echoRecognizer) Close() error { return nil }

type captureWriter struct {
	indices []int
}

func (w *captureWriter) Write(f video.Frame) error {
	w.indices = append(w.indices, f.(*overlayFrame).index)
	return nil
}

func (w *captureWriter) Close() error { return nil }

func newTestPipeline(src *overlaySource, dst *captureWriter, rec ocr.Recognizer) *Pipeline {
	return &Pipeline{
		logger: zerolog.Nop(),
		openSource: func(string) (video.Source, error) {
			return src, nil
		},
		createWriter: func(string, float64, int, int, string) (video.Writer, error) {
			return dst, nil
		},
		newRecognizer: func() (ocr.Recognizer, error) {
			return rec, nil
		},
	}
}

func baseRequest() Request {
	return Request{
		VideoPath:  "input.avi",
		OutputPath: "output.avi",
		Start:      overlayBase.Add(5 * time.Second),
		End:        overlayBase.Add(10 * time.Second),
		TimeOnly:   true,
	}
}

func TestExtractSnippetEndToEnd(t *testing.T) {
	src := &overlaySource{total: 1000, fps: 30}
	dst := &captureWriter{}
	p := newTestPipeline(src, dst, &echoRecognizer{})

	res, err := p.ExtractSnippet(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("ExtractSnippet: %v", err)
	}
	if res.StartFrame != 150 {
		t.Errorf("StartFrame = %d, want 150", res.StartFrame)
	}
	if !res.EndFound || res.EndFrame != 300 {
		t.Errorf("EndFrame = %d (found=%v), want 300", res.EndFrame, res.EndFound)
	}
	if res.FramesWritten != 150 {
		t.Errorf("FramesWritten = %d, want 150", res.FramesWritten)
	}
	for i, idx := range dst.indices {
		if idx != 150+i {
			t.Fatalf("output frame %d has index %d, want %d", i, idx, 150+i)
		}
	}
}

func TestExtractSnippetEndMissingExtractsToEOF(t *testing.T) {
	src := &overlaySource{total: 1000, fps: 30}
	dst := &captureWriter{}
	p := newTestPipeline(src, dst, &echoRecognizer{})

	req := baseRequest()
	req.End = overlayBase.Add(10 * time.Minute) // past the last frame

	res, err := p.ExtractSnippet(context.Background(), req)
	if err != nil {
		t.Fatalf("ExtractSnippet: %v", err)
	}
	if res.EndFound {
		t.Error("EndFound = true, want false")
	}
	if res.EndFrame != -1 {
		t.Errorf("EndFrame = %d, want -1", res.EndFrame)
	}
	if res.FramesWritten != 850 {
		t.Errorf("FramesWritten = %d, want 850", res.FramesWritten)
	}
	if last := dst.indices[len(dst.indices)-1]; last != 999 {
		t.Errorf("last frame index = %d, want 999", last)
	}
}

func TestExtractSnippetStartNotFound(t *testing.T) {
	src := &overlaySource{total: 1000, fps: 30}
	p := newTestPipeline(src, &captureWriter{}, &echoRecognizer{})

	req := baseRequest()
	req.Start = overlayBase.Add(10 * time.Minute)
	req.End = overlayBase.Add(11 * time.Minute)

	_, err := p.ExtractSnippet(context.Background(), req)
	if !errors.Is(err, ErrStartNotFound) {
		t.Fatalf("err = %v, want ErrStartNotFound", err)
	}
}

func TestExtractSnippetRejectsReversedRange(t *testing.T) {
	src := &overlaySource{total: 1000, fps: 30}
	p := newTestPipeline(src, &captureWriter{}, &echoRecognizer{})

	req := baseRequest()
	req.Start, req.End = req.End, req.Start

	if _, err := p.ExtractSnippet(context.Background(), req); err == nil {
		t.Fatal("expected an error for start after end")
	}
}

func TestExtractSnippetSurfacesEngineFailure(t *testing.T) {
	src := &overlaySource{total: 1000, fps: 30}
	rec := &echoRecognizer{err: fmt.Errorf("%w: tesseract not installed", ocr.ErrEngineUnavailable)}
	p := newTestPipeline(src, &captureWriter{}, rec)

	_, err := p.ExtractSnippet(context.Background(), baseRequest())
	if !errors.Is(err, ocr.ErrEngineUnavailable) {
		t.Fatalf("err = %v, want ErrEngineUnavailable", err)
	}
}

func TestExtractSnippetProgressMonotone(t *testing.T) {
	src := &overlaySource{total: 1000, fps: 30}
	dst := &captureWriter{}
	p := newTestPipeline(src, dst, &echoRecognizer{})

	var reports []int
	req := baseRequest()
	req.Progress = func(pct int, _ string) { reports = append(reports, pct) }

	if _, err := p.ExtractSnippet(context.Background(), req); err != nil {
		t.Fatalf("ExtractSnippet: %v", err)
	}
	if len(reports) == 0 {
		t.Fatal("no progress reported")
	}
	for i := 1; i < len(reports); i++ {
		if reports[i] < reports[i-1] {
			t.Fatalf("progress went backwards: %v", reports)
		}
	}
	if final := reports[len(reports)-1]; final != 100 {
		t.Errorf("final progress = %d, want 100", final)
	}
}
