package codec

import (
	"bytes"
	"image/jpeg"
	"testing"

	"deskrelay/internal/types"
)

func newBuf(w, h int, fill byte) *types.RawBuffer {
	data := make([]byte, w*h*4)
	for i := range data {
		data[i] = fill
	}
	return &types.RawBuffer{Data: data, Width: w, Height: h, Stride: w * 4, PixFmt: types.PixFmtRGBA}
}

// fillRect sets every byte of the pixels inside the rect.
func fillRect(buf *types.RawBuffer, r types.Rect, v byte) {
	for y := r.Y; y < r.Y+r.H; y++ {
		off := y*buf.Stride + r.X*4
		for i := 0; i < r.W*4; i++ {
			buf.Data[off+i] = v
		}
	}
}

func TestFirstFrameIsKeyframe(t *testing.T) {
	c := New(100, 0.7)
	f, err := c.Encode(newBuf(100, 100, 0), false)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !f.IsKeyframe {
		t.Error("first frame is not a keyframe")
	}
	if len(f.Rects) != 0 {
		t.Errorf("keyframe has %d rects, want 0", len(f.Rects))
	}
	if len(f.Payload) != 100*100*4 {
		t.Errorf("payload = %d bytes, want %d", len(f.Payload), 100*100*4)
	}
	if f.Encoding != types.EncodingRaw {
		t.Errorf("encoding = %q, want %q", f.Encoding, types.EncodingRaw)
	}
}

func TestIdenticalBuffersYieldEmptyDelta(t *testing.T) {
	c := New(100, 0.7)
	if _, err := c.Encode(newBuf(100, 100, 0), false); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	f, err := c.Encode(newBuf(100, 100, 0), false)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if f.IsKeyframe {
		t.Error("unchanged screen produced a keyframe")
	}
	if len(f.Rects) != 0 {
		t.Errorf("unchanged screen produced %d rects, want 0", len(f.Rects))
	}
	if len(f.Payload) != 0 {
		t.Errorf("unchanged screen produced %d payload bytes, want 0", len(f.Payload))
	}
}

func TestForcedKeyframe(t *testing.T) {
	c := New(100, 0.7)
	if _, err := c.Encode(newBuf(64, 64, 0), false); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	f, err := c.Encode(newBuf(64, 64, 0), true)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !f.IsKeyframe {
		t.Error("forced encode is not a keyframe")
	}
}

func TestDeltaRectCoversChange(t *testing.T) {
	c := New(100, 0.7)
	if _, err := c.Encode(newBuf(100, 100, 0), false); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	next := newBuf(100, 100, 0)
	want := types.Rect{X: 5, Y: 10, W: 10, H: 10}
	fillRect(next, want, 0xff)

	f, err := c.Encode(next, false)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if f.IsKeyframe {
		t.Fatal("small change produced a keyframe")
	}
	if len(f.Rects) != 1 {
		t.Fatalf("got %d rects, want 1", len(f.Rects))
	}
	if f.Rects[0] != want {
		t.Errorf("rect = %+v, want %+v", f.Rects[0], want)
	}
	if len(f.Payload) != want.W*want.H*4 {
		t.Errorf("payload = %d bytes, want %d", len(f.Payload), want.W*want.H*4)
	}
	for i, b := range f.Payload {
		if b != 0xff {
			t.Fatalf("payload[%d] = %#x, want 0xff", i, b)
		}
	}
}

func TestSeparateBandsProduceSeparateRects(t *testing.T) {
	c := New(100, 0.7)
	if _, err := c.Encode(newBuf(50, 50, 0), false); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	next := newBuf(50, 50, 0)
	fillRect(next, types.Rect{X: 0, Y: 2, W: 5, H: 2}, 1)
	fillRect(next, types.Rect{X: 40, Y: 30, W: 5, H: 3}, 2)

	f, err := c.Encode(next, false)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(f.Rects) != 2 {
		t.Fatalf("got %d rects, want 2: %+v", len(f.Rects), f.Rects)
	}
	if f.Rects[0].Y != 2 || f.Rects[1].Y != 30 {
		t.Errorf("rect rows = %d, %d, want 2, 30", f.Rects[0].Y, f.Rects[1].Y)
	}
}

func TestLargeChangeFallsBackToFullFrame(t *testing.T) {
	c := New(100, 0.7)
	if _, err := c.Encode(newBuf(100, 100, 0), false); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	// 80% of rows changed, above the 0.7 threshold.
	next := newBuf(100, 100, 0)
	fillRect(next, types.Rect{X: 0, Y: 0, W: 100, H: 80}, 0xff)

	f, err := c.Encode(next, false)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !f.IsKeyframe {
		t.Error("large change did not produce a full frame")
	}
	if len(f.Rects) != 0 {
		t.Errorf("full frame has %d rects, want 0", len(f.Rects))
	}
	if len(f.Payload) != 100*100*4 {
		t.Errorf("payload = %d bytes, want %d", len(f.Payload), 100*100*4)
	}
}

func TestResizeForcesKeyframe(t *testing.T) {
	c := New(100, 0.7)
	if _, err := c.Encode(newBuf(100, 100, 0), false); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	f, err := c.Encode(newBuf(120, 90, 0), false)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !f.IsKeyframe {
		t.Error("dimension change did not produce a keyframe")
	}
	if f.Width != 120 || f.Height != 90 {
		t.Errorf("frame is %dx%d, want 120x90", f.Width, f.Height)
	}
}

func TestJPEGPayloadDecodes(t *testing.T) {
	c := New(60, 0.7)
	f, err := c.Encode(newBuf(64, 48, 0x42), false)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if f.Encoding != types.EncodingJPEG {
		t.Fatalf("encoding = %q, want %q", f.Encoding, types.EncodingJPEG)
	}
	img, err := jpeg.Decode(bytes.NewReader(f.Payload))
	if err != nil {
		t.Fatalf("payload is not valid JPEG: %v", err)
	}
	b := img.Bounds()
	if b.Dx() != 64 || b.Dy() != 48 {
		t.Errorf("decoded %dx%d, want 64x48", b.Dx(), b.Dy())
	}
}
