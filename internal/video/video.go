// Package video abstracts decode, seek and encode behind small interfaces so
// the search and extraction logic never touches a codec directly.
package video

import (
	"errors"
	"image"
)

// ErrEndOfStream is returned by ReadNext when the source has no more
// decodable frames.
var ErrEndOfStream = errors.New("end of stream")

// Frame is one decoded frame. RegionPNG renders a sub-rectangle as a
// PNG-encoded grayscale image, which is what the OCR engine consumes. Frames
// hold native resources and must be closed.
type Frame interface {
	RegionPNG(r image.Rectangle) ([]byte, error)
	Close() error
}

// Source is an open video file with one exclusive read cursor. Seek
// positions the cursor at an absolute frame index; ReadNext decodes the frame
// under the cursor and advances it. A Source must not be shared by two
// readers at once.
type Source interface {
	FrameCount() int
	FPS() float64
	Dimensions() (width, height int)
	Seek(frame int) error
	ReadNext() (Frame, error)
	Close() error
}

// Writer appends frames to an output container in call order.
type Writer interface {
	Write(f Frame) error
	Close() error
}
