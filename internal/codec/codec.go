// Package codec turns raw capture buffers into wire-ready frames: full
// keyframes or dirty-rectangle deltas against the previously encoded buffer.
package codec

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"deskrelay/internal/types"
)

// DefaultDeltaThreshold is the changed-area fraction above which a delta is
// abandoned in favor of a full frame.
const DefaultDeltaThreshold = 0.7

const bytesPerPixel = 4

// Codec encodes a session's outbound frame stream. It retains the last
// encoded buffer for diffing and is not safe for concurrent use; each
// session owns one.
type Codec struct {
	quality   int // 1-99 selects JPEG payloads, otherwise raw
	threshold float64
	prev      *types.RawBuffer
}

// New creates a codec. quality outside 1-99 means uncompressed payloads;
// threshold outside (0,1] falls back to DefaultDeltaThreshold.
func New(quality int, threshold float64) *Codec {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultDeltaThreshold
	}
	return &Codec{quality: quality, threshold: threshold}
}

// Encoding reports the payload encoding this codec produces.
func (c *Codec) Encoding() string {
	if c.quality >= 1 && c.quality <= 99 {
		return types.EncodingJPEG
	}
	return types.EncodingRaw
}

// Encode produces the next frame for cur. The first frame, a forced resync,
// or a dimension/format change yields a keyframe. Otherwise the changed
// rectangles versus the previous buffer are computed by exact byte equality;
// if they cover more than the threshold fraction of the screen a full frame
// is emitted instead. An unchanged screen yields a delta with zero rects.
// The caller must not mutate cur after Encode returns.
func (c *Codec) Encode(cur *types.RawBuffer, forceKey bool) (*types.Frame, error) {
	prev := c.prev
	key := forceKey || prev == nil ||
		prev.Width != cur.Width || prev.Height != cur.Height || prev.PixFmt != cur.PixFmt

	var rects []types.Rect
	if !key {
		rects = diff(prev, cur)
		if len(rects) == 0 {
			c.prev = cur
			return &types.Frame{
				Width:    cur.Width,
				Height:   cur.Height,
				PixFmt:   cur.PixFmt,
				Encoding: c.Encoding(),
			}, nil
		}
		changed := 0
		for _, r := range rects {
			changed += r.W * r.H
		}
		if float64(changed) > c.threshold*float64(cur.Width*cur.Height) {
			key = true
		}
	}

	f := &types.Frame{
		IsKeyframe: key,
		Width:      cur.Width,
		Height:     cur.Height,
		PixFmt:     cur.PixFmt,
		Encoding:   c.Encoding(),
	}

	if key {
		payload, err := c.pack(cur, types.Rect{X: 0, Y: 0, W: cur.Width, H: cur.Height})
		if err != nil {
			return nil, err
		}
		f.Payload = payload
	} else {
		f.Rects = rects
		for _, r := range rects {
			seg, err := c.pack(cur, r)
			if err != nil {
				return nil, err
			}
			f.Payload = append(f.Payload, seg...)
		}
	}

	c.prev = cur
	return f, nil
}

// Reset drops the retained previous buffer; the next Encode is a keyframe.
func (c *Codec) Reset() {
	c.prev = nil
}

// diff returns one rect per contiguous band of changed rows, with the column
// range tightened to the outermost changed pixels in the band.
func diff(prev, cur *types.RawBuffer) []types.Rect {
	rowBytes := cur.Width * bytesPerPixel
	var rects []types.Rect
	y := 0
	for y < cur.Height {
		pRow := prev.Data[y*prev.Stride : y*prev.Stride+rowBytes]
		cRow := cur.Data[y*cur.Stride : y*cur.Stride+rowBytes]
		if bytes.Equal(pRow, cRow) {
			y++
			continue
		}
		start := y
		minCol, maxCol := cur.Width, -1
		for y < cur.Height {
			pRow = prev.Data[y*prev.Stride : y*prev.Stride+rowBytes]
			cRow = cur.Data[y*cur.Stride : y*cur.Stride+rowBytes]
			lo, hi := span(pRow, cRow)
			if lo < 0 {
				break
			}
			if lo/bytesPerPixel < minCol {
				minCol = lo / bytesPerPixel
			}
			if hi/bytesPerPixel > maxCol {
				maxCol = hi / bytesPerPixel
			}
			y++
		}
		rects = append(rects, types.Rect{
			X: minCol,
			Y: start,
			W: maxCol - minCol + 1,
			H: y - start,
		})
	}
	return rects
}

// span returns the first and last differing byte offsets, or (-1, -1) for
// equal rows.
func span(a, b []byte) (int, int) {
	n := len(a)
	lo := -1
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			lo = i
			break
		}
	}
	if lo < 0 {
		return -1, -1
	}
	hi := lo
	for i := n - 1; i > lo; i-- {
		if a[i] != b[i] {
			hi = i
			break
		}
	}
	return lo, hi
}

func (c *Codec) pack(buf *types.RawBuffer, r types.Rect) ([]byte, error) {
	if c.Encoding() == types.EncodingJPEG {
		return c.packJPEG(buf, r)
	}
	out := make([]byte, 0, r.W*r.H*bytesPerPixel)
	for y := r.Y; y < r.Y+r.H; y++ {
		off := y*buf.Stride + r.X*bytesPerPixel
		out = append(out, buf.Data[off:off+r.W*bytesPerPixel]...)
	}
	return out, nil
}

func (c *Codec) packJPEG(buf *types.RawBuffer, r types.Rect) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, r.W, r.H))
	for y := 0; y < r.H; y++ {
		src := (r.Y+y)*buf.Stride + r.X*bytesPerPixel
		dst := y * img.Stride
		row := buf.Data[src : src+r.W*bytesPerPixel]
		if buf.PixFmt == types.PixFmtBGRA {
			for x := 0; x < r.W; x++ {
				img.Pix[dst+x*4+0] = row[x*4+2]
				img.Pix[dst+x*4+1] = row[x*4+1]
				img.Pix[dst+x*4+2] = row[x*4+0]
				img.Pix[dst+x*4+3] = row[x*4+3]
			}
		} else {
			copy(img.Pix[dst:dst+r.W*bytesPerPixel], row)
		}
	}
	var out bytes.Buffer
	out.Grow(64 * 1024)
	if err := jpeg.Encode(&out, img, &jpeg.Options{Quality: c.quality}); err != nil {
		return nil, fmt.Errorf("jpeg encode: %w", err)
	}
	return out.Bytes(), nil
}
