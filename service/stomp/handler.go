package stomp

import (
	"errors"
	"io"
	"net"
	"sync"
	"time"
)

// outboundWriteTimeout bounds one frame write so a dead peer cannot hold the
// write loop forever.
const outboundWriteTimeout = 30 * time.Second

// connHandler drives one client connection over any net.Conn: a read loop
// feeding the frame parser and a write loop draining the outbound channel.
// The managers only ever touch the handler through Connection, whose
// SendFrame never blocks.
type connHandler struct {
	server *Server
	conn   net.Conn

	session  string
	outbound chan *Frame

	closeCh   chan struct{}
	closeOnce sync.Once

	// connected flips on a successful CONNECT; only the read loop touches it
	connected bool
}

var _ Connection = new(connHandler)

func newConnHandler(server *Server, conn net.Conn) *connHandler {
	return &connHandler{
		server:   server,
		conn:     conn,
		session:  newSessionId(),
		outbound: make(chan *Frame, server.cfg.Broker.SendChannelSize),
		closeCh:  make(chan struct{}),
	}
}

func (h *connHandler) Session() string {
	return h.session
}

// SendFrame implements Connection. A closing connection or a full outbound
// channel rejects the frame.
func (h *connHandler) SendFrame(frame *Frame) bool {
	select {
	case <-h.closeCh:
		return false
	default:
	}
	select {
	case h.outbound <- frame:
		return true
	default:
		return false
	}
}

// shutdown makes SendFrame reject new frames and lets the write loop flush
// what is already queued and close the socket.
func (h *connHandler) shutdown() {
	h.closeOnce.Do(func() {
		close(h.closeCh)
	})
}

// serve drives the connection until the client leaves, a protocol violation
// closes it or the server shuts down. It blocks and must run on its own
// goroutine.
func (h *connHandler) serve() {
	defer h.teardown()
	go h.writeLoop()

	_handlerLogger.Infof("session [%s] opened from [%s]", h.session, h.conn.RemoteAddr())

	buffer := NewFrameBuffer()
	chunk := make([]byte, 8192)
	for {
		n, err := h.conn.Read(chunk)
		if n > 0 {
			buffer.Append(chunk[:n])
			frames, parseErr := buffer.Drain()
			for _, frame := range frames {
				if !h.dispatchFrame(frame) {
					return
				}
			}
			if parseErr != nil {
				_handlerLogger.Warnf("session [%s]: %s", h.session, parseErr)
				h.replyError("protocol error", parseErr)
				return
			}
		}
		if err != nil {
			if err != io.EOF && !errors.Is(err, net.ErrClosed) {
				_handlerLogger.Warnf("read on session [%s] failed: %s", h.session, err)
			}
			return
		}
	}
}

func (h *connHandler) teardown() {
	h.shutdown()
	if err := h.server.queues.Disconnect(h); err != nil {
		_handlerLogger.Errorf("queue cleanup of session [%s] failed: %s", h.session, err)
	}
	if err := h.server.topics.Disconnect(h); err != nil {
		_handlerLogger.Errorf("topic cleanup of session [%s] failed: %s", h.session, err)
	}
	h.server.removeHandler(h)
	_handlerLogger.Infof("session [%s] closed", h.session)
}

// writeLoop owns the socket writes and the socket close. On shutdown it
// flushes the frames already queued, so an ERROR pushed right before a close
// still reaches the client.
func (h *connHandler) writeLoop() {
	defer func() {
		h.shutdown()
		_ = h.conn.Close()
	}()

	for {
		select {
		case frame := <-h.outbound:
			if !h.writeFrame(frame) {
				return
			}
		case <-h.closeCh:
			for {
				select {
				case frame := <-h.outbound:
					if !h.writeFrame(frame) {
						return
					}
				default:
					return
				}
			}
		}
	}
}

// writeFrame puts one frame on the wire. An unencodable frame is dropped and
// only that frame is lost; a write failure ends the connection.
func (h *connHandler) writeFrame(frame *Frame) bool {
	data, err := frame.Bytes()
	if err != nil {
		h.server.metrics.IncMessagesDropped(DropReasonEncoding)
		_handlerLogger.Errorf("drop unencodable frame on session [%s]: %s", h.session, err)
		return true
	}
	if err := h.conn.SetWriteDeadline(time.Now().Add(outboundWriteTimeout)); err != nil {
		return false
	}
	if _, err := h.conn.Write(data); err != nil {
		_handlerLogger.Warnf("write on session [%s] failed: %s", h.session, err)
		return false
	}
	h.server.metrics.IncFramesWritten()
	return true
}
