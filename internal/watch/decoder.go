// Package watch implements the streaming watch session: a frame decoder for
// the server's chunked event stream and a state machine that keeps one live
// connection per session across reconnects.
package watch

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/fivetwenty-io/okapi/pkg/okapi"
)

// Decoder assembles complete JSON frames from an arbitrarily-chunked byte
// stream. Bytes that do not yet form a complete value stay buffered; a chunk
// boundary never splits or drops a frame.
type Decoder struct {
	buf      []byte
	maxBytes int
}

// NewDecoder creates a decoder that errors once more than maxBytes are
// buffered without completing a frame. Input that never parses would
// otherwise accumulate silently forever.
func NewDecoder(maxBytes int) *Decoder {
	return &Decoder{maxBytes: maxBytes}
}

// Feed appends data and returns every complete frame now available, in
// order. The returned error reports a buffer overrun; frames decoded before
// the overrun are still returned.
func (d *Decoder) Feed(data []byte) ([][]byte, error) {
	d.buf = append(d.buf, data...)

	var frames [][]byte

	for {
		frame, ok := d.next()
		if !ok {
			break
		}

		frames = append(frames, frame)
	}

	if len(d.buf) > d.maxBytes {
		return frames, fmt.Errorf("%w: %d bytes pending", okapi.ErrFrameTooLarge, len(d.buf))
	}

	return frames, nil
}

// Buffered returns how many bytes await completion of the next frame.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Reset discards any pending bytes.
func (d *Decoder) Reset() {
	d.buf = nil
}

// next attempts to slice one complete JSON value off the front of the
// buffer. Incomplete or malformed input leaves the buffer untouched apart
// from leading whitespace.
func (d *Decoder) next() ([]byte, bool) {
	d.buf = bytes.TrimLeft(d.buf, " \t\r\n")
	if len(d.buf) == 0 {
		return nil, false
	}

	decoder := json.NewDecoder(bytes.NewReader(d.buf))

	var frame json.RawMessage
	if err := decoder.Decode(&frame); err != nil {
		return nil, false
	}

	d.buf = d.buf[decoder.InputOffset():]

	return frame, true
}
