package stomp

import (
	"bytes"
	"fmt"
)

type bufferState int

const (
	awaitingCommand bufferState = iota
	readingHeaders
	readingBody
)

// FrameBuffer assembles frames from arbitrarily chunked input. Append only
// accumulates bytes; Next and Drain advance an explicit state machine over the
// residual buffer, so a frame may arrive one byte at a time and parsing
// resumes exactly where the previous call stopped. The yielded frame sequence
// is the same for any chunking of the same byte stream.
//
// A parse failure is sticky: every later call reports the same error. The
// buffer never closes the connection; that is the caller's decision.
type FrameBuffer struct {
	buf     []byte
	state   bufferState
	pending *Frame

	// expected body length from content-length, -1 = scan for the terminator
	bodyLen int

	// newline bytes after a consumed terminator are inter-frame padding
	skipPadding bool

	err error
}

func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{bodyLen: -1}
}

// Append adds raw bytes to the residual buffer. No parsing happens here.
func (fb *FrameBuffer) Append(data []byte) {
	fb.buf = append(fb.buf, data...)
}

// Next extracts at most one complete frame. ok is false when the residual
// bytes do not yet form a complete frame.
func (fb *FrameBuffer) Next() (f *Frame, ok bool, err error) {
	if fb.err != nil {
		return nil, false, fb.err
	}
	for {
		switch fb.state {
		case awaitingCommand:
			if fb.skipPadding {
				fb.buf = trimLeadingNewlines(fb.buf)
				if len(fb.buf) == 0 {
					return nil, false, nil
				}
				fb.skipPadding = false
			}
			line, rest, found := cutLine(fb.buf)
			if !found {
				return nil, false, nil
			}
			fb.buf = rest
			fb.pending = &Frame{Command: string(line)}
			fb.state = readingHeaders

		case readingHeaders:
			line, rest, found := cutLine(fb.buf)
			if !found {
				return nil, false, nil
			}
			fb.buf = rest
			if len(line) == 0 {
				n, present, lenErr := fb.pending.ContentLength()
				if lenErr != nil {
					return nil, false, fb.fail(lenErr)
				}
				if present {
					fb.bodyLen = n
				}
				fb.state = readingBody
				continue
			}
			colon := bytes.IndexByte(line, ':')
			if colon < 0 {
				return nil, false, fb.fail(fmt.Errorf("%w: header line missing colon: %q", ErrProtocol, line))
			}
			// repeated header names keep the first value
			name := string(line[:colon])
			if !fb.pending.Headers.Contains(name) {
				fb.pending.Headers = append(fb.pending.Headers, Header{Name: name, Value: string(line[colon+1:])})
			}

		case readingBody:
			body, consumed, done, bodyErr := fb.extractBody()
			if bodyErr != nil {
				return nil, false, fb.fail(bodyErr)
			}
			if !done {
				return nil, false, nil
			}
			fb.buf = fb.buf[consumed:]
			completed := fb.pending
			completed.Body = body
			fb.pending = nil
			fb.bodyLen = -1
			fb.skipPadding = true
			fb.state = awaitingCommand
			return completed, true, nil
		}
	}
}

// Drain extracts every complete frame currently in the buffer.
func (fb *FrameBuffer) Drain() ([]*Frame, error) {
	var frames []*Frame
	for {
		f, ok, err := fb.Next()
		if err != nil {
			return frames, err
		}
		if !ok {
			return frames, nil
		}
		frames = append(frames, f)
	}
}

func (fb *FrameBuffer) extractBody() (body []byte, consumed int, done bool, err error) {
	if fb.bodyLen >= 0 {
		// counted body plus the required terminator
		if len(fb.buf) < fb.bodyLen+1 {
			return nil, 0, false, nil
		}
		if fb.buf[fb.bodyLen] != frameTerminator {
			return nil, 0, false, fmt.Errorf("%w: missing terminator after %d counted body bytes", ErrProtocol, fb.bodyLen)
		}
		return copyBody(fb.buf[:fb.bodyLen]), fb.bodyLen + 1, true, nil
	}
	idx := bytes.IndexByte(fb.buf, frameTerminator)
	if idx < 0 {
		return nil, 0, false, nil
	}
	return copyBody(fb.buf[:idx]), idx + 1, true, nil
}

func (fb *FrameBuffer) fail(err error) error {
	fb.err = err
	return err
}

func trimLeadingNewlines(buf []byte) []byte {
	i := 0
	for i < len(buf) && buf[i] == '\n' {
		i++
	}
	return buf[i:]
}

func cutLine(buf []byte) (line []byte, rest []byte, found bool) {
	idx := bytes.IndexByte(buf, '\n')
	if idx < 0 {
		return nil, buf, false
	}
	return buf[:idx], buf[idx+1:], true
}

func copyBody(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return append([]byte(nil), b...)
}
