package stompclient

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
)

// Client side commands.
const (
	CmdConnect     = "CONNECT"
	CmdSend        = "SEND"
	CmdSubscribe   = "SUBSCRIBE"
	CmdUnsubscribe = "UNSUBSCRIBE"
	CmdAck         = "ACK"
	CmdDisconnect  = "DISCONNECT"
)

// Server side commands.
const (
	CmdConnected = "CONNECTED"
	CmdMessage   = "MESSAGE"
	CmdReceipt   = "RECEIPT"
	CmdError     = "ERROR"
)

const (
	HeaderDestination   = "destination"
	HeaderContentLength = "content-length"
	HeaderAck           = "ack"
	HeaderMessageId     = "message-id"
	HeaderReceipt       = "receipt"
	HeaderReceiptId     = "receipt-id"
	HeaderSession       = "session"
	HeaderMessage       = "message"
	HeaderLogin         = "login"
	HeaderPasscode      = "passcode"
)

const (
	AckAuto   = "auto"
	AckClient = "client"
)

type Header struct {
	Name  string
	Value string
}

// Frame is one protocol message as seen by the client.
type Frame struct {
	Command string
	Headers []Header
	Body    []byte
}

func NewFrame(command string, body []byte, headers ...Header) *Frame {
	return &Frame{Command: command, Headers: headers, Body: body}
}

// Header returns the first value of the named header.
func (f *Frame) Header(name string) (string, bool) {
	for _, h := range f.Headers {
		if h.Name == name {
			return h.Value, true
		}
	}
	return "", false
}

func (f *Frame) pack() []byte {
	var buf bytes.Buffer
	buf.WriteString(f.Command)
	buf.WriteByte('\n')
	for _, h := range f.Headers {
		buf.WriteString(h.Name)
		buf.WriteByte(':')
		buf.WriteString(h.Value)
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')
	buf.Write(f.Body)
	buf.WriteByte(0x00)
	return buf.Bytes()
}

// frameScanner assembles frames from the raw byte stream of the connection.
type frameScanner struct {
	buf []byte
}

func (s *frameScanner) append(data []byte) {
	s.buf = append(s.buf, data...)
}

// next extracts one complete frame, reporting false while the buffered bytes
// are still short of one.
func (s *frameScanner) next() (*Frame, bool, error) {
	start := 0
	for start < len(s.buf) && s.buf[start] == '\n' {
		start++
	}
	data := s.buf[start:]

	headEnd := bytes.Index(data, []byte("\n\n"))
	if headEnd < 0 {
		return nil, false, nil
	}
	lines := bytes.Split(data[:headEnd], []byte("\n"))
	f := &Frame{Command: string(lines[0])}
	bodyLen := -1
	for _, line := range lines[1:] {
		colon := bytes.IndexByte(line, ':')
		if colon < 0 {
			return nil, false, fmt.Errorf("malformed header line: %q", line)
		}
		h := Header{Name: string(line[:colon]), Value: string(line[colon+1:])}
		f.Headers = append(f.Headers, h)
		if h.Name == HeaderContentLength && bodyLen < 0 {
			n, err := strconv.Atoi(h.Value)
			if err != nil || n < 0 {
				return nil, false, fmt.Errorf("malformed content-length: %s", h.Value)
			}
			bodyLen = n
		}
	}

	rest := data[headEnd+2:]
	var body []byte
	var consumed int
	if bodyLen >= 0 {
		if len(rest) < bodyLen+1 {
			return nil, false, nil
		}
		if rest[bodyLen] != 0x00 {
			return nil, false, errors.New("missing frame terminator after counted body")
		}
		body = rest[:bodyLen]
		consumed = bodyLen + 1
	} else {
		idx := bytes.IndexByte(rest, 0x00)
		if idx < 0 {
			return nil, false, nil
		}
		body = rest[:idx]
		consumed = idx + 1
	}
	if len(body) > 0 {
		f.Body = append([]byte(nil), body...)
	}

	s.buf = s.buf[start+headEnd+2+consumed:]
	return f, true, nil
}
