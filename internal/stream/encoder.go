// Package stream frames protocol events as server-sent events. Each event
// is one `data: <json>` frame whose JSON carries a "type" discriminator;
// frames are flushed as they are written so the client sees progress while
// the turn is still blocked on the model or the renderer.
package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"legaldocgo/internal/models"
)

// ErrStreamingUnsupported reports a response writer without flush support.
var ErrStreamingUnsupported = errors.New("streaming not supported by this connection")

// Encoder writes the ordered event stream of one turn. It performs no
// reordering or buffering beyond the transport's own frame.
type Encoder struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewEncoder prepares the response for SSE and returns the encoder.
func NewEncoder(w http.ResponseWriter) (*Encoder, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	return &Encoder{w: w, flusher: flusher}, nil
}

// Emit frames and flushes one event. A write error means the consumer is
// gone; the caller stops emitting but keeps committing state.
func (e *Encoder) Emit(ev models.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if _, err := fmt.Fprintf(e.w, "data: %s\n\n", data); err != nil {
		return err
	}
	e.flusher.Flush()
	return nil
}
