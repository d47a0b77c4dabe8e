package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"ai-chat-backend/internal/usecase"
)

// doneSentinel is the literal end-of-stream unit clients key on.
const doneSentinel = "[DONE]"

// streamUnit is one wire unit of the streaming protocol.
type streamUnit struct {
	DeltaContent string `json:"delta_content"`
	IsFinal      bool   `json:"is_final"`
	Error        string `json:"error,omitempty"`
}

var _ usecase.FragmentSink = (*SSEEncoder)(nil)

// SSEEncoder converts fragments into server-sent-event units. Every unit is
// flushed as soon as it is written; the whole point of the streaming path is
// time to first token.
type SSEEncoder struct {
	w        http.ResponseWriter
	f        http.Flusher
	rc       *http.ResponseController
	perWrite time.Duration
}

// NewSSEEncoder sets the streaming headers and returns the encoder, or an
// error when the response writer cannot flush incrementally. perWrite
// replaces the server-wide write timeout on this response: each unit extends
// the deadline, so a slow but live stream is never cut by a timeout sized
// for the batch path. perWrite <= 0 clears the deadline entirely. Writers
// without deadline support (test recorders) are served best-effort.
func NewSSEEncoder(w http.ResponseWriter, perWrite time.Duration) (*SSEEncoder, error) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("response writer does not support flushing")
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	rc := http.NewResponseController(w)
	if perWrite <= 0 {
		_ = rc.SetWriteDeadline(time.Time{})
	}
	return &SSEEncoder{w: w, f: f, rc: rc, perWrite: perWrite}, nil
}

func (e *SSEEncoder) extendDeadline() {
	if e.perWrite > 0 {
		_ = e.rc.SetWriteDeadline(time.Now().Add(e.perWrite))
	}
}

func (e *SSEEncoder) Fragment(delta string) error {
	return e.writeUnit(streamUnit{DeltaContent: delta})
}

func (e *SSEEncoder) Done() error {
	if err := e.writeUnit(streamUnit{IsFinal: true}); err != nil {
		return err
	}
	return e.writeSentinel()
}

func (e *SSEEncoder) ErrorMarker(kind, detail string) error {
	if err := e.writeUnit(streamUnit{IsFinal: true, Error: fmt.Sprintf("%s: %s", kind, detail)}); err != nil {
		return err
	}
	return e.writeSentinel()
}

func (e *SSEEncoder) writeUnit(u streamUnit) error {
	b, err := json.Marshal(u)
	if err != nil {
		return err
	}
	e.extendDeadline()
	if _, err := fmt.Fprintf(e.w, "data: %s\n\n", b); err != nil {
		return err
	}
	e.f.Flush()
	return nil
}

func (e *SSEEncoder) writeSentinel() error {
	e.extendDeadline()
	if _, err := fmt.Fprintf(e.w, "data: %s\n\n", doneSentinel); err != nil {
		return err
	}
	e.f.Flush()
	return nil
}
