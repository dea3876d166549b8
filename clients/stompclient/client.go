// Package stompclient is a small client for the coilmq broker. It speaks the
// frame protocol over plain TCP and hands inbound frames to the caller
// through a channel.
package stompclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
)

var (
	ErrClosed        = errors.New("stomp client closed")
	ErrConnectFailed = errors.New("stomp connect failed")
)

// Option carries optional CONNECT credentials.
type Option struct {
	Login    string
	Passcode string
}

type Client struct {
	addrs []string
}

// NewClient prepares a client for the given broker addresses. Connect tries
// them in order.
func NewClient(addrs ...string) *Client {
	return &Client{addrs: addrs}
}

// Connect dials the broker and performs the CONNECT handshake, returning an
// established session.
func (c *Client) Connect(ctx context.Context, option Option) (*Session, error) {
	if len(c.addrs) == 0 {
		return nil, fmt.Errorf("%w: no broker address", ErrConnectFailed)
	}

	var conn net.Conn
	var err error
	dialer := net.Dialer{}
	for _, addr := range c.addrs {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			break
		}
	}
	if conn == nil {
		return nil, err
	}
	ch := newChannel(conn)

	connect := &Frame{Command: CmdConnect}
	if option.Login != "" || option.Passcode != "" {
		connect.Headers = append(connect.Headers,
			Header{HeaderLogin, option.Login},
			Header{HeaderPasscode, option.Passcode})
	}
	if err := ch.send(connect); err != nil {
		return nil, err
	}

	select {
	case f, ok := <-ch.frameCh:
		if !ok {
			return nil, ch.failure()
		}
		switch f.Command {
		case CmdConnected:
			session, _ := f.Header(HeaderSession)
			return &Session{channel: ch, sessionId: session}, nil
		case CmdError:
			ch.shutdown(nil)
			msg, _ := f.Header(HeaderMessage)
			return nil, fmt.Errorf("%w: %s", ErrConnectFailed, msg)
		default:
			ch.shutdown(nil)
			return nil, fmt.Errorf("%w: unexpected %s frame", ErrConnectFailed, f.Command)
		}
	case <-ctx.Done():
		ch.shutdown(nil)
		return nil, ctx.Err()
	}
}

// Session is an established broker connection.
type Session struct {
	channel   *channel
	sessionId string
}

func (s *Session) SessionId() string {
	return s.sessionId
}

// Received streams MESSAGE, RECEIPT and ERROR frames from the broker. The
// channel closes when the connection goes down.
func (s *Session) Received() <-chan *Frame {
	return s.channel.frameCh
}

// Send publishes a message body to a destination. A content-length header is
// set unless the caller supplied one, so binary bodies survive intact.
func (s *Session) Send(destination string, body []byte, headers ...Header) error {
	f := &Frame{Command: CmdSend, Body: body}
	f.Headers = append(f.Headers, Header{HeaderDestination, destination})
	f.Headers = append(f.Headers, headers...)
	if _, ok := f.Header(HeaderContentLength); !ok {
		f.Headers = append(f.Headers, Header{HeaderContentLength, strconv.Itoa(len(body))})
	}
	return s.channel.send(f)
}

// Subscribe registers this session on a destination with the given ack mode,
// AckAuto or AckClient.
func (s *Session) Subscribe(destination, ackMode string, headers ...Header) error {
	f := &Frame{Command: CmdSubscribe, Headers: []Header{
		{HeaderDestination, destination},
		{HeaderAck, ackMode},
	}}
	f.Headers = append(f.Headers, headers...)
	return s.channel.send(f)
}

func (s *Session) Unsubscribe(destination string) error {
	return s.channel.send(&Frame{Command: CmdUnsubscribe, Headers: []Header{
		{HeaderDestination, destination},
	}})
}

// Ack confirms a client mode delivery and releases the next message.
func (s *Session) Ack(messageId string) error {
	return s.channel.send(&Frame{Command: CmdAck, Headers: []Header{
		{HeaderMessageId, messageId},
	}})
}

// Disconnect asks the broker to flush pending frames and close the session.
func (s *Session) Disconnect(headers ...Header) error {
	return s.channel.send(&Frame{Command: CmdDisconnect, Headers: headers})
}

// SendFrame writes a raw frame for cases the typed helpers do not cover.
func (s *Session) SendFrame(f *Frame) error {
	return s.channel.send(f)
}

// Close tears the connection down without the DISCONNECT handshake.
func (s *Session) Close() error {
	s.channel.shutdown(nil)
	return nil
}
