package stomp

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Client commands.
const (
	CmdConnect     = "CONNECT"
	CmdSend        = "SEND"
	CmdSubscribe   = "SUBSCRIBE"
	CmdUnsubscribe = "UNSUBSCRIBE"
	CmdAck         = "ACK"
	CmdDisconnect  = "DISCONNECT"
)

// Server commands.
const (
	CmdConnected = "CONNECTED"
	CmdMessage   = "MESSAGE"
	CmdReceipt   = "RECEIPT"
	CmdError     = "ERROR"
)

// Well known headers.
const (
	HeaderDestination   = "destination"
	HeaderContentLength = "content-length"
	HeaderAck           = "ack"
	HeaderMessageId     = "message-id"
	HeaderReceipt       = "receipt"
	HeaderReceiptId     = "receipt-id"
	HeaderMessage       = "message"
	HeaderSession       = "session"
	HeaderLogin         = "login"
	HeaderPasscode      = "passcode"
)

// Ack modes carried by the SUBSCRIBE ack header.
const (
	AckModeAuto   = "auto"
	AckModeClient = "client"
)

const frameTerminator byte = 0x00

type Header struct {
	Name  string
	Value string
}

// Headers keeps frame headers in wire order. Names are unique within a frame;
// Set replaces an existing value in place so the position is stable.
type Headers []Header

func (h Headers) Get(name string) (string, bool) {
	for _, hd := range h {
		if hd.Name == name {
			return hd.Value, true
		}
	}
	return "", false
}

func (h Headers) Contains(name string) bool {
	_, ok := h.Get(name)
	return ok
}

func (h *Headers) Set(name, value string) {
	for i := range *h {
		if (*h)[i].Name == name {
			(*h)[i].Value = value
			return
		}
	}
	*h = append(*h, Header{Name: name, Value: value})
}

func (h Headers) clone() Headers {
	if h == nil {
		return nil
	}
	c := make(Headers, len(h))
	copy(c, h)
	return c
}

// Frame is one protocol message. It is treated as immutable once handed to
// another component.
type Frame struct {
	Command string
	Headers Headers
	Body    []byte
}

func NewFrame(command string, body []byte, headers ...Header) *Frame {
	f := &Frame{Command: command, Body: body}
	for _, hd := range headers {
		f.Headers.Set(hd.Name, hd.Value)
	}
	return f
}

// IsHeartbeat reports whether the frame is a bare keep-alive: empty command,
// no headers, empty body. The parser yields these instead of dropping them so
// consumers ignore them deliberately.
func (f *Frame) IsHeartbeat() bool {
	return f.Command == "" && len(f.Headers) == 0 && len(f.Body) == 0
}

// ContentLength returns the parsed content-length header. ok is false when
// the header is absent. A non-integer or negative value is a protocol error.
func (f *Frame) ContentLength() (n int, ok bool, err error) {
	v, present := f.Headers.Get(HeaderContentLength)
	if !present {
		return 0, false, nil
	}
	n, convErr := strconv.Atoi(v)
	if convErr != nil || n < 0 {
		return 0, true, fmt.Errorf("%w: malformed content-length header: %s", ErrProtocol, v)
	}
	return n, true, nil
}

// Bytes returns the wire form: command line, header lines, blank line, body,
// NUL terminator. Headers are written exactly as carried; in particular no
// content-length is injected. Header content is not escaped, so a name or
// value holding the line delimiter fails with ErrEncoding.
func (f *Frame) Bytes() ([]byte, error) {
	if strings.ContainsRune(f.Command, '\n') {
		return nil, fmt.Errorf("%w: command contains line delimiter", ErrEncoding)
	}
	size := len(f.Command) + len(f.Body) + 3
	for _, hd := range f.Headers {
		size += len(hd.Name) + len(hd.Value) + 2
	}
	buf := bytes.NewBuffer(make([]byte, 0, size))
	buf.WriteString(f.Command)
	buf.WriteByte('\n')
	for _, hd := range f.Headers {
		if strings.ContainsRune(hd.Name, '\n') || strings.ContainsRune(hd.Value, '\n') {
			return nil, fmt.Errorf("%w: header %q contains line delimiter", ErrEncoding, hd.Name)
		}
		buf.WriteString(hd.Name)
		buf.WriteByte(':')
		buf.WriteString(hd.Value)
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')
	buf.Write(f.Body)
	buf.WriteByte(frameTerminator)
	return buf.Bytes(), nil
}

// WriteTo writes the wire form of the frame to w.
func (f *Frame) WriteTo(w io.Writer) (int64, error) {
	data, err := f.Bytes()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(data)
	return int64(n), err
}

func newErrorFrame(message string, detail string) *Frame {
	body := []byte(detail)
	f := NewFrame(CmdError, body, Header{HeaderMessage, message})
	f.Headers.Set(HeaderContentLength, strconv.Itoa(len(body)))
	return f
}

func newReceiptFrame(receiptId string) *Frame {
	return NewFrame(CmdReceipt, nil, Header{HeaderReceiptId, receiptId})
}
