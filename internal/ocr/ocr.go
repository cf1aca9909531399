// Package ocr wraps the text-recognition engine behind a small interface and
// keeps the per-session recognition memo and overlay region policy beside it.
package ocr

import (
	"context"
	"errors"
)

// ErrEngineUnavailable marks a missing or broken OCR engine. It is fatal for
// the whole session and is distinct from an ordinary recognition miss, which
// is normal noise the search tolerates frame by frame.
var ErrEngineUnavailable = errors.New("ocr engine unavailable")

// Recognizer extracts text from an image region. The image is a PNG-encoded
// grayscale crop of the overlay region. An empty string with a nil error is a
// recognition miss; errors matching ErrEngineUnavailable abort the session.
type Recognizer interface {
	Recognize(ctx context.Context, png []byte) (string, error)
	Close() error
}
