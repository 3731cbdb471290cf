// Package protocol defines the JSON wire messages exchanged with a viewer.
// Two logical channels share one connection: control (hello, resize, resync,
// ping/pong, bye) and data (frames outbound, input events inbound). Every
// message is tagged by its "type" field.
package protocol

import (
	"encoding/json"
	"fmt"

	"deskrelay/internal/types"
)

// Message type tags.
const (
	TypeHello       = "hello"
	TypeHelloAck    = "hello_ack"
	TypeMouseMove   = "mouse_move"
	TypeMouseButton = "mouse_button"
	TypeKey         = "key"
	TypeScroll      = "scroll"
	TypePaste       = "paste"
	TypeResync      = "resync"
	TypePing        = "ping"
	TypePong        = "pong"
	TypeResize      = "resize"
	TypeFrame       = "frame"
	TypeError       = "error"
	TypeBye         = "bye"
)

// Modes a client may request in hello.
const (
	ModeDesktop = "desktop"
)

// Message is the envelope for control and input traffic. Fields are a union
// over all message types; unused fields are omitted on the wire.
type Message struct {
	Type        string  `json:"type"`
	Mode        string  `json:"mode,omitempty"`
	QualityHint int     `json:"quality_hint,omitempty"`
	OK          bool    `json:"ok,omitempty"`
	Width       int     `json:"width,omitempty"`
	Height      int     `json:"height,omitempty"`
	X           int     `json:"x,omitempty"`
	Y           int     `json:"y,omitempty"`
	Button      int     `json:"button,omitempty"`
	Pressed     bool    `json:"pressed,omitempty"`
	Code        string  `json:"code,omitempty"`
	DX          float64 `json:"dx,omitempty"`
	DY          float64 `json:"dy,omitempty"`
	Text        string  `json:"text,omitempty"`
	Reason      string  `json:"reason,omitempty"`
	Message     string  `json:"message,omitempty"`
}

// FrameMessage is the server-to-client frame payload. Rects is empty for
// keyframes, which always cover the full advertised dimensions.
type FrameMessage struct {
	Type        string       `json:"type"`
	Sequence    uint64       `json:"sequence"`
	IsKeyframe  bool         `json:"is_keyframe"`
	Width       int          `json:"width"`
	Height      int          `json:"height"`
	PixelFormat string       `json:"pixel_format"`
	Encoding    string       `json:"encoding"`
	Rects       []types.Rect `json:"rects"`
	Payload     []byte       `json:"payload"`
}

// DecodeMessage parses an inbound message. A payload that is not valid JSON
// or carries no type tag is rejected.
func DecodeMessage(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	if m.Type == "" {
		return nil, fmt.Errorf("decode message: missing type tag")
	}
	return &m, nil
}

// Encode marshals m for the wire.
func (m *Message) Encode() []byte {
	data, _ := json.Marshal(m)
	return data
}

// EncodeFrame marshals a frame for the wire.
func EncodeFrame(f *types.Frame) ([]byte, error) {
	rects := f.Rects
	if rects == nil {
		rects = []types.Rect{}
	}
	msg := FrameMessage{
		Type:        TypeFrame,
		Sequence:    f.Sequence,
		IsKeyframe:  f.IsKeyframe,
		Width:       f.Width,
		Height:      f.Height,
		PixelFormat: f.PixFmt.String(),
		Encoding:    f.Encoding,
		Rects:       rects,
		Payload:     f.Payload,
	}
	data, err := json.Marshal(&msg)
	if err != nil {
		return nil, fmt.Errorf("encode frame %d: %w", f.Sequence, err)
	}
	return data, nil
}

// InputEvent maps an inbound input message to a normalized event. The second
// return value is false for non-input messages.
func (m *Message) InputEvent() (types.InputEvent, bool) {
	switch m.Type {
	case TypeMouseMove:
		return types.InputEvent{Type: types.EventMouseMove, X: m.X, Y: m.Y}, true
	case TypeMouseButton:
		return types.InputEvent{
			Type:    types.EventMouseButton,
			X:       m.X,
			Y:       m.Y,
			Button:  types.MouseButton(m.Button),
			Pressed: m.Pressed,
		}, true
	case TypeKey:
		return types.InputEvent{Type: types.EventKey, Code: m.Code, Pressed: m.Pressed}, true
	case TypeScroll:
		return types.InputEvent{Type: types.EventScroll, DX: m.DX, DY: m.DY}, true
	case TypePaste:
		return types.InputEvent{Type: types.EventPaste, Text: m.Text}, true
	}
	return types.InputEvent{}, false
}
