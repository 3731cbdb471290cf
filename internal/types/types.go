package types

import "time"

// PixelFormat identifies the byte layout of raw pixel data.
type PixelFormat uint8

const (
	PixFmtRGBA PixelFormat = iota
	PixFmtBGRA
)

func (p PixelFormat) String() string {
	switch p {
	case PixFmtBGRA:
		return "bgra8"
	default:
		return "rgba8"
	}
}

// RawBuffer is one captured screen frame as produced by a FrameSource.
// Data holds 4 bytes per pixel, rows separated by Stride bytes.
type RawBuffer struct {
	Data      []byte
	Width     int
	Height    int
	Stride    int
	PixFmt    PixelFormat
	Timestamp time.Time
}

// Rect is a changed region within a frame, in pixels.
type Rect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Payload encodings carried in a frame message.
const (
	EncodingRaw  = "raw"
	EncodingJPEG = "jpeg"
)

// Frame is a wire-ready frame. A keyframe carries the full screen and no
// rects; a delta carries one payload segment per rect, concatenated in order.
type Frame struct {
	Sequence   uint64
	IsKeyframe bool
	Width      int
	Height     int
	PixFmt     PixelFormat
	Encoding   string
	Rects      []Rect
	Payload    []byte
}

// EventType identifies the kind of a normalized input event.
type EventType string

const (
	EventMouseMove   EventType = "mouse_move"
	EventMouseButton EventType = "mouse_button"
	EventKey         EventType = "key"
	EventScroll      EventType = "scroll"
	EventPaste       EventType = "paste"
)

// MouseButton identifies a mouse button.
type MouseButton int

const (
	MouseButtonLeft   MouseButton = 0
	MouseButtonRight  MouseButton = 1
	MouseButtonMiddle MouseButton = 2
)

// InputEvent is a normalized input event ready for injection. Coordinates
// are in the last-advertised frame's coordinate space.
type InputEvent struct {
	Type    EventType
	X       int
	Y       int
	Button  MouseButton
	Pressed bool
	Code    string
	DX      float64
	DY      float64
	Text    string
}

// FrameSource produces raw screen buffers for one display. Capture returns
// the current full screen with its true current dimensions.
type FrameSource interface {
	Capture() (*RawBuffer, error)
	Close()
}

// SingleViewer is optionally implemented by a FrameSource whose underlying
// display handle cannot be shared between concurrent sessions.
type SingleViewer interface {
	ExclusiveDisplay() bool
}

// InputInjector synthesizes OS input from normalized events.
type InputInjector interface {
	Inject(ev InputEvent) error
	Close()
}
