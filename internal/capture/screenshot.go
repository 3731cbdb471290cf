// Package capture provides the portable FrameSource implementation.
package capture

import (
	"fmt"
	"time"

	"github.com/kbinani/screenshot"

	"deskrelay/internal/types"
)

// Screen captures one display via the OS screenshot facility. The display
// bounds are looked up on every capture so resolution changes surface as new
// buffer dimensions.
type Screen struct {
	display int
}

// NewScreen creates a capturer for the given display index (0 = primary).
func NewScreen(display int) (*Screen, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return nil, fmt.Errorf("no active displays")
	}
	if display < 0 || display >= n {
		return nil, fmt.Errorf("display %d out of range (have %d)", display, n)
	}
	return &Screen{display: display}, nil
}

func (s *Screen) Capture() (*types.RawBuffer, error) {
	bounds := screenshot.GetDisplayBounds(s.display)
	img, err := screenshot.CaptureRect(bounds)
	if err != nil {
		return nil, fmt.Errorf("capture display %d: %w", s.display, err)
	}
	return &types.RawBuffer{
		Data:      img.Pix,
		Width:     bounds.Dx(),
		Height:    bounds.Dy(),
		Stride:    img.Stride,
		PixFmt:    types.PixFmtRGBA,
		Timestamp: time.Now(),
	}, nil
}

func (s *Screen) Close() {}
