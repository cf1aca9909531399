package video

import (
	"fmt"
	"image"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"
)

// DefaultFourCC is the output codec used when none is configured.
const DefaultFourCC = "mp4v"

// FileSource reads a video file through OpenCV's VideoCapture, which gives
// frame-accurate seeking by index.
type FileSource struct {
	logger zerolog.Logger
	cap    *gocv.VideoCapture
	path   string
}

// OpenSource opens a video file for reading. Failures cover missing files,
// corrupt containers and unsupported codecs alike; there is nothing to retry.
func OpenSource(logger zerolog.Logger, path string) (*FileSource, error) {
	cap, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open video source %q: %w", path, err)
	}
	if !cap.IsOpened() {
		cap.Close()
		return nil, fmt.Errorf("cannot open video source %q: no decodable stream", path)
	}

	s := &FileSource{
		logger: logger.With().Str("component", "video-source").Logger(),
		cap:    cap,
		path:   path,
	}

	w, h := s.Dimensions()
	s.logger.Debug().
		Str("path", path).
		Int("frames", s.FrameCount()).
		Float64("fps", s.FPS()).
		Int("width", w).
		Int("height", h).
		Msg("opened video source")

	return s, nil
}

func (s *FileSource) FrameCount() int {
	return int(s.cap.Get(gocv.VideoCaptureFrameCount))
}

func (s *FileSource) FPS() float64 {
	return s.cap.Get(gocv.VideoCaptureFPS)
}

func (s *FileSource) Dimensions() (int, int) {
	return int(s.cap.Get(gocv.VideoCaptureFrameWidth)),
		int(s.cap.Get(gocv.VideoCaptureFrameHeight))
}

// Seek positions the read cursor at an absolute frame index.
func (s *FileSource) Seek(frame int) error {
	if frame < 0 {
		return fmt.Errorf("seek to negative frame %d", frame)
	}
	s.cap.Set(gocv.VideoCapturePosFrames, float64(frame))
	return nil
}

// ReadNext decodes the frame under the cursor and advances it.
func (s *FileSource) ReadNext() (Frame, error) {
	mat := gocv.NewMat()
	if ok := s.cap.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return nil, ErrEndOfStream
	}
	return &MatFrame{mat: mat}, nil
}

func (s *FileSource) Close() error {
	return s.cap.Close()
}

// MatFrame wraps a decoded OpenCV matrix.
type MatFrame struct {
	mat gocv.Mat
}

// RegionPNG crops the rectangle out of the frame, converts it to grayscale
// and PNG-encodes it. Grayscale input is what tesseract reads best for
// burned-in overlay text.
func (f *MatFrame) RegionPNG(r image.Rectangle) ([]byte, error) {
	region := f.mat.Region(r)
	defer region.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(region, &gray, gocv.ColorBGRToGray)

	buf, err := gocv.IMEncode(gocv.PNGFileExt, gray)
	if err != nil {
		return nil, fmt.Errorf("encode region: %w", err)
	}
	defer buf.Close()

	data := make([]byte, len(buf.GetBytes()))
	copy(data, buf.GetBytes())
	return data, nil
}

func (f *MatFrame) Close() error {
	return f.mat.Close()
}

// FileWriter writes frames to an output container through OpenCV's
// VideoWriter. Frame rate and dimensions are fixed at creation to match the
// source.
type FileWriter struct {
	logger zerolog.Logger
	writer *gocv.VideoWriter
	path   string
}

// CreateWriter opens an output file for the given geometry. An empty fourcc
// selects the default codec.
func CreateWriter(logger zerolog.Logger, path string, fps float64, width, height int, fourcc string) (*FileWriter, error) {
	if fourcc == "" {
		fourcc = DefaultFourCC
	}

	writer, err := gocv.VideoWriterFile(path, fourcc, fps, width, height, true)
	if err != nil {
		return nil, fmt.Errorf("create video writer %q: %w", path, err)
	}
	if !writer.IsOpened() {
		writer.Close()
		return nil, fmt.Errorf("create video writer %q: codec %q not available", path, fourcc)
	}

	return &FileWriter{
		logger: logger.With().Str("component", "video-writer").Logger(),
		writer: writer,
		path:   path,
	}, nil
}

func (w *FileWriter) Write(f Frame) error {
	mf, ok := f.(*MatFrame)
	if !ok {
		return fmt.Errorf("unsupported frame type %T", f)
	}
	return w.writer.Write(mf.mat)
}

func (w *FileWriter) Close() error {
	return w.writer.Close()
}
