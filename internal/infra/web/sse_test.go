package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSSEEncoderFragmentFrames(t *testing.T) {
	rec := httptest.NewRecorder()
	enc, err := NewSSEEncoder(rec, 0)
	if err != nil {
		t.Fatalf("NewSSEEncoder: %v", err)
	}

	if err := enc.Fragment("Hel"); err != nil {
		t.Fatal(err)
	}
	if err := enc.Fragment("lo"); err != nil {
		t.Fatal(err)
	}
	if err := enc.Done(); err != nil {
		t.Fatal(err)
	}

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	want := "data: {\"delta_content\":\"Hel\",\"is_final\":false}\n\n" +
		"data: {\"delta_content\":\"lo\",\"is_final\":false}\n\n" +
		"data: {\"delta_content\":\"\",\"is_final\":true}\n\n" +
		"data: [DONE]\n\n"
	if got := rec.Body.String(); got != want {
		t.Fatalf("body =\n%q\nwant\n%q", got, want)
	}
}

func TestSSEEncoderErrorMarker(t *testing.T) {
	rec := httptest.NewRecorder()
	enc, err := NewSSEEncoder(rec, 0)
	if err != nil {
		t.Fatal(err)
	}

	if err := enc.ErrorMarker("generation_failed", "provider hiccup"); err != nil {
		t.Fatal(err)
	}

	body := rec.Body.String()
	wantUnit := "data: {\"delta_content\":\"\",\"is_final\":true,\"error\":\"generation_failed: provider hiccup\"}\n\n"
	if !strings.HasPrefix(body, wantUnit) {
		t.Fatalf("error unit missing, body = %q", body)
	}
	if !strings.HasSuffix(body, "data: [DONE]\n\n") {
		t.Fatalf("sentinel missing, body = %q", body)
	}
}

func TestSSEEncoderRejectsNonFlushableWriter(t *testing.T) {
	if _, err := NewSSEEncoder(nonFlushable{rec: httptest.NewRecorder()}, 0); err == nil {
		t.Fatal("expected error for writer without Flush")
	}
}

// Writers without deadline support (like the recorder) must still stream;
// the per-unit deadline is best-effort.
func TestSSEEncoderPerWriteDeadlineTolerated(t *testing.T) {
	rec := httptest.NewRecorder()
	enc, err := NewSSEEncoder(rec, 50*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}

	if err := enc.Fragment("Hel"); err != nil {
		t.Fatal(err)
	}
	if err := enc.Done(); err != nil {
		t.Fatal(err)
	}

	body := rec.Body.String()
	if !strings.Contains(body, `data: {"delta_content":"Hel","is_final":false}`) {
		t.Fatalf("fragment missing: %q", body)
	}
	if !strings.HasSuffix(body, "data: [DONE]\n\n") {
		t.Fatalf("sentinel missing: %q", body)
	}
}

// nonFlushable exposes only the ResponseWriter surface of the recorder.
type nonFlushable struct{ rec *httptest.ResponseRecorder }

func (n nonFlushable) Header() http.Header         { return n.rec.Header() }
func (n nonFlushable) Write(b []byte) (int, error) { return n.rec.Write(b) }
func (n nonFlushable) WriteHeader(code int)        { n.rec.WriteHeader(code) }
