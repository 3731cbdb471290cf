package protocol

import (
	"bytes"
	"encoding/json"
	"testing"

	"deskrelay/internal/types"
)

func TestDecodeHello(t *testing.T) {
	m, err := DecodeMessage([]byte(`{"type":"hello","mode":"desktop","quality_hint":70}`))
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	if m.Type != TypeHello {
		t.Errorf("type = %q, want %q", m.Type, TypeHello)
	}
	if m.Mode != ModeDesktop {
		t.Errorf("mode = %q, want %q", m.Mode, ModeDesktop)
	}
	if m.QualityHint != 70 {
		t.Errorf("quality_hint = %d, want 70", m.QualityHint)
	}
}

func TestDecodeRejectsMalformedPayload(t *testing.T) {
	if _, err := DecodeMessage([]byte(`{"type":`)); err == nil {
		t.Error("truncated JSON accepted")
	}
	if _, err := DecodeMessage([]byte(`{"mode":"desktop"}`)); err == nil {
		t.Error("message without type tag accepted")
	}
}

func TestInputEventMapping(t *testing.T) {
	cases := []struct {
		name string
		in   Message
		want types.InputEvent
	}{
		{
			name: "mouse move",
			in:   Message{Type: TypeMouseMove, X: 10, Y: 20},
			want: types.InputEvent{Type: types.EventMouseMove, X: 10, Y: 20},
		},
		{
			name: "mouse button",
			in:   Message{Type: TypeMouseButton, X: 3, Y: 4, Button: 1, Pressed: true},
			want: types.InputEvent{Type: types.EventMouseButton, X: 3, Y: 4, Button: types.MouseButtonRight, Pressed: true},
		},
		{
			name: "key",
			in:   Message{Type: TypeKey, Code: "Enter", Pressed: true},
			want: types.InputEvent{Type: types.EventKey, Code: "Enter", Pressed: true},
		},
		{
			name: "scroll",
			in:   Message{Type: TypeScroll, DX: -1, DY: 3},
			want: types.InputEvent{Type: types.EventScroll, DX: -1, DY: 3},
		},
		{
			name: "paste",
			in:   Message{Type: TypePaste, Text: "hi"},
			want: types.InputEvent{Type: types.EventPaste, Text: "hi"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := tc.in.InputEvent()
			if !ok {
				t.Fatal("not recognized as input")
			}
			if got != tc.want {
				t.Errorf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestControlMessagesAreNotInput(t *testing.T) {
	for _, typ := range []string{TypeHello, TypePing, TypeResync, TypeBye} {
		if _, ok := (&Message{Type: typ}).InputEvent(); ok {
			t.Errorf("%q treated as input", typ)
		}
	}
}

func TestEncodeFrame(t *testing.T) {
	f := &types.Frame{
		Sequence:   7,
		IsKeyframe: true,
		Width:      100,
		Height:     80,
		PixFmt:     types.PixFmtRGBA,
		Encoding:   types.EncodingRaw,
		Payload:    []byte{1, 2, 3, 4},
	}
	data, err := EncodeFrame(f)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	var m FrameMessage
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m.Type != TypeFrame {
		t.Errorf("type = %q, want %q", m.Type, TypeFrame)
	}
	if m.Sequence != 7 || !m.IsKeyframe {
		t.Errorf("sequence/keyframe = %d/%v, want 7/true", m.Sequence, m.IsKeyframe)
	}
	if m.Width != 100 || m.Height != 80 {
		t.Errorf("dims = %dx%d, want 100x80", m.Width, m.Height)
	}
	if m.PixelFormat != "rgba8" {
		t.Errorf("pixel_format = %q, want rgba8", m.PixelFormat)
	}
	if m.Rects == nil || len(m.Rects) != 0 {
		t.Errorf("keyframe rects = %v, want empty array", m.Rects)
	}
	if !bytes.Equal(m.Payload, f.Payload) {
		t.Errorf("payload = %v, want %v", m.Payload, f.Payload)
	}
}
