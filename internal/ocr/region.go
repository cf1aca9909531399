package ocr

import (
	"fmt"
	"image"
)

// Placement anchors the overlay region to a frame corner, or marks it as a
// fully custom rectangle.
type Placement int

const (
	TopRight Placement = iota
	TopLeft
	BottomRight
	BottomLeft
	Custom
)

var placementNames = map[Placement]string{
	TopRight:    "top-right",
	TopLeft:     "top-left",
	BottomRight: "bottom-right",
	BottomLeft:  "bottom-left",
	Custom:      "custom",
}

func (p Placement) String() string {
	if name, ok := placementNames[p]; ok {
		return name
	}
	return fmt.Sprintf("placement(%d)", int(p))
}

// ParsePlacement converts a config string to a Placement.
func ParsePlacement(s string) (Placement, error) {
	for p, name := range placementNames {
		if name == s {
			return p, nil
		}
	}
	return TopRight, fmt.Errorf("unknown region placement %q", s)
}

// Region describes where the timestamp overlay is expected inside a frame.
// Width and Height size the region for every placement; X and Y position it
// when the placement is Custom.
type Region struct {
	Placement Placement
	Width     int
	Height    int
	X         int
	Y         int
}

// DefaultRegion matches the recordings this tool was written for: a 300x50
// overlay in the top-right corner.
func DefaultRegion() Region {
	return Region{Placement: TopRight, Width: 300, Height: 50}
}

// Coords computes the region rectangle for a frame of the given dimensions.
// Corner anchors clamp to the frame so small frames still yield a valid
// region; custom rectangles are intersected with the frame bounds.
func (r Region) Coords(frameW, frameH int) image.Rectangle {
	x, y := 0, 0
	switch r.Placement {
	case TopRight:
		x = max(0, frameW-r.Width)
	case TopLeft:
		// origin
	case BottomRight:
		x = max(0, frameW-r.Width)
		y = max(0, frameH-r.Height)
	case BottomLeft:
		y = max(0, frameH-r.Height)
	case Custom:
		x, y = r.X, r.Y
	}

	rect := image.Rect(x, y, x+r.Width, y+r.Height)
	return rect.Intersect(image.Rect(0, 0, frameW, frameH))
}
