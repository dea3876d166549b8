package stomp

import (
	"bytes"
	"errors"
	"testing"
)

func TestFrameBytesRoundTrip(t *testing.T) {
	f := NewFrame(CmdSend, []byte("hello broker"),
		Header{HeaderDestination, "/queue/orders"},
		Header{"custom", "value with spaces"},
	)

	data, err := f.Bytes()
	if err != nil {
		t.Fatal(err)
	}

	fb := NewFrameBuffer()
	fb.Append(data)
	parsed, ok, err := fb.Next()
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expect one complete frame")
	}

	if parsed.Command != CmdSend {
		t.Fatal("command mismatch:", parsed.Command)
	}
	if v, _ := parsed.Headers.Get(HeaderDestination); v != "/queue/orders" {
		t.Fatal("destination mismatch:", v)
	}
	if v, _ := parsed.Headers.Get("custom"); v != "value with spaces" {
		t.Fatal("custom header mismatch:", v)
	}
	if !bytes.Equal(parsed.Body, []byte("hello broker")) {
		t.Fatal("body mismatch:", string(parsed.Body))
	}
}

func TestFrameBytesNoInjectedContentLength(t *testing.T) {
	f := NewFrame(CmdMessage, []byte("payload"), Header{HeaderDestination, "/queue/a"})

	data, err := f.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(data, []byte(HeaderContentLength)) {
		t.Fatal("content-length must not be injected:", string(data))
	}
}

func TestFrameBytesRejectsDelimiterInHeader(t *testing.T) {
	f := NewFrame(CmdMessage, nil, Header{"bad", "line1\nline2"})

	_, err := f.Bytes()
	if !errors.Is(err, ErrEncoding) {
		t.Fatal("expect encoding error, got:", err)
	}

	f = NewFrame("BAD\nCOMMAND", nil)
	_, err = f.Bytes()
	if !errors.Is(err, ErrEncoding) {
		t.Fatal("expect encoding error, got:", err)
	}
}

func TestContentLengthHeader(t *testing.T) {
	f := NewFrame(CmdSend, nil)
	if _, present, err := f.ContentLength(); present || err != nil {
		t.Fatal("expect absent content-length:", present, err)
	}

	f.Headers.Set(HeaderContentLength, "17")
	n, present, err := f.ContentLength()
	if err != nil || !present || n != 17 {
		t.Fatal("expect 17:", n, present, err)
	}

	f.Headers.Set(HeaderContentLength, "abc")
	if _, _, err := f.ContentLength(); !errors.Is(err, ErrProtocol) {
		t.Fatal("expect protocol error for non-integer, got:", err)
	}

	f.Headers.Set(HeaderContentLength, "-3")
	if _, _, err := f.ContentLength(); !errors.Is(err, ErrProtocol) {
		t.Fatal("expect protocol error for negative, got:", err)
	}
}

func TestHeadersSetKeepsPosition(t *testing.T) {
	h := Headers{{"a", "1"}, {"b", "2"}, {"c", "3"}}
	h.Set("b", "20")

	if len(h) != 3 {
		t.Fatal("no new entry expected:", len(h))
	}
	if h[1].Name != "b" || h[1].Value != "20" {
		t.Fatal("value not replaced in place:", h[1])
	}
}

func TestHeartbeatFrame(t *testing.T) {
	if !(&Frame{}).IsHeartbeat() {
		t.Fatal("empty frame must be a heartbeat")
	}
	if (&Frame{Command: CmdSend}).IsHeartbeat() {
		t.Fatal("SEND is not a heartbeat")
	}
	if (&Frame{Body: []byte("x")}).IsHeartbeat() {
		t.Fatal("frame with body is not a heartbeat")
	}
}

func TestErrorFrameCountsBody(t *testing.T) {
	f := newErrorFrame("protocol error", "detail text")

	if f.Command != CmdError {
		t.Fatal("command mismatch:", f.Command)
	}
	if v, _ := f.Headers.Get(HeaderMessage); v != "protocol error" {
		t.Fatal("message header mismatch:", v)
	}
	if v, _ := f.Headers.Get(HeaderContentLength); v != "11" {
		t.Fatal("content-length mismatch:", v)
	}
}
