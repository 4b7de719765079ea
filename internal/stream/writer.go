// Package stream delivers large point-sets as newline-delimited JSON
// chunks, flushing each chunk as soon as it is full instead of buffering
// the whole result. Chunk boundaries carry no semantic meaning.
package stream

import (
	"encoding/json"
	"net/http"

	"github.com/yourorg/map-api/internal/geo"
)

// chunkSize is points per NDJSON line. Transport-level only; consumers
// must not depend on it.
const chunkSize = 500

// Writer accumulates points and writes them as JSON-array lines over a
// single long-lived response.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
	buf     []geo.Point
	sent    int
}

// NewWriter prepares the response for NDJSON streaming. The underlying
// ResponseWriter is expected to support flushing; when it does not, chunks
// still go out but the transport buffers them.
func NewWriter(w http.ResponseWriter) *Writer {
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	flusher, _ := w.(http.Flusher)
	return &Writer{w: w, flusher: flusher, buf: make([]geo.Point, 0, chunkSize)}
}

// Append buffers one point, emitting a chunk when the buffer fills.
func (cw *Writer) Append(p geo.Point) error {
	cw.buf = append(cw.buf, p)
	if len(cw.buf) >= chunkSize {
		return cw.flush()
	}
	return nil
}

// Close emits any buffered remainder. Call once after the last Append.
func (cw *Writer) Close() error {
	if len(cw.buf) == 0 {
		return nil
	}
	return cw.flush()
}

// Sent reports how many points have gone out so far.
func (cw *Writer) Sent() int { return cw.sent }

func (cw *Writer) flush() error {
	line, err := json.Marshal(cw.buf)
	if err != nil {
		return err
	}
	line = append(line, '\n')
	if _, err := cw.w.Write(line); err != nil {
		return err
	}
	if cw.flusher != nil {
		cw.flusher.Flush()
	}
	cw.sent += len(cw.buf)
	cw.buf = cw.buf[:0]
	return nil
}
