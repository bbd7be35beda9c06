// Package detect adapts the external detector/tracker's output into the
// pipeline's frame stream. The detector itself (model, tracker) is an
// external collaborator; this package only speaks its wire format: one JSON
// frame object per line.
package detect

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/cafesense/occupancy.report/internal/vision"
)

// maxLineBytes bounds a single frame line. Crowded frames with full pose
// arrays stay well under this.
const maxLineBytes = 4 * 1024 * 1024

// rawFrame mirrors the wire format. Timestamp is optional: feeds recorded
// without clocks omit it and the reader derives video time from the frame
// index at the assumed rate.
type rawFrame struct {
	Index      int                `json:"frame"`
	Timestamp  *float64           `json:"timestamp,omitempty"`
	Detections []vision.Detection `json:"detections"`
}

// Reader streams frames from a JSONL detection feed.
type Reader struct {
	scanner    *bufio.Scanner
	assumedFPS float64
	derived    bool // true once any timestamp has been derived from index
	line       int
}

// NewReader wraps r. assumedFPS is the fallback rate for feeds without
// timestamps; it must be positive.
func NewReader(r io.Reader, assumedFPS float64) (*Reader, error) {
	if assumedFPS <= 0 {
		return nil, fmt.Errorf("assumed fps must be positive, got %f", assumedFPS)
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	return &Reader{scanner: scanner, assumedFPS: assumedFPS}, nil
}

// Next returns the next frame, or io.EOF when the feed is exhausted.
// Detections with out-of-range confidences or degenerate boxes are kept
// (the pipeline absorbs them via the anchor fallback), but a frame that does
// not parse is a feed error.
func (r *Reader) Next() (vision.Frame, error) {
	for r.scanner.Scan() {
		r.line++
		raw := r.scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var rf rawFrame
		if err := json.Unmarshal(raw, &rf); err != nil {
			return vision.Frame{}, fmt.Errorf("feed line %d: %w", r.line, err)
		}

		f := vision.Frame{
			Index:      rf.Index,
			Detections: rf.Detections,
		}
		if rf.Timestamp != nil {
			f.Timestamp = *rf.Timestamp
		} else {
			f.Timestamp = float64(rf.Index) / r.assumedFPS
			r.derived = true
		}
		return f, nil
	}
	if err := r.scanner.Err(); err != nil {
		return vision.Frame{}, fmt.Errorf("feed read failed: %w", err)
	}
	return vision.Frame{}, io.EOF
}

// DerivedTimestamps reports whether any frame time was computed from the
// frame index at the assumed rate rather than read from the feed. Recorded
// in the run metadata so duration figures can be interpreted correctly.
func (r *Reader) DerivedTimestamps() bool { return r.derived }
