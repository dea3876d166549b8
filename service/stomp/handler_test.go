package stomp

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/woutdenolf/coilmq/config"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := (&config.CoilConfig{}).MergeDefault()
	s, err := NewServer(cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return s
}

// testClient speaks the wire protocol over one side of a net.Pipe or a real
// socket.
type testClient struct {
	conn net.Conn
	fb   *FrameBuffer
}

func dialPipe(t *testing.T, s *Server) *testClient {
	t.Helper()
	clientSide, serverSide := net.Pipe()
	go s.serveConn(serverSide)
	t.Cleanup(func() {
		_ = clientSide.Close()
	})
	return &testClient{conn: clientSide, fb: NewFrameBuffer()}
}

func (c *testClient) send(t *testing.T, f *Frame) {
	t.Helper()
	if _, err := f.WriteTo(c.conn); err != nil {
		t.Fatal(err)
	}
}

func (c *testClient) sendRaw(t *testing.T, data []byte) {
	t.Helper()
	if _, err := c.conn.Write(data); err != nil {
		t.Fatal(err)
	}
}

func (c *testClient) recv(t *testing.T) *Frame {
	t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	chunk := make([]byte, 4096)
	for {
		f, ok, err := c.fb.Next()
		if err != nil {
			t.Fatal(err)
		}
		if ok {
			return f
		}
		n, err := c.conn.Read(chunk)
		if err != nil {
			t.Fatal("read failed while waiting for a frame:", err)
		}
		c.fb.Append(chunk[:n])
	}
}

// expectSilence asserts no complete frame arrives for a short while.
func (c *testClient) expectSilence(t *testing.T) {
	t.Helper()
	if f, ok, err := c.fb.Next(); err == nil && ok {
		t.Fatal("unexpected frame:", f.Command)
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	chunk := make([]byte, 4096)
	n, err := c.conn.Read(chunk)
	if err == nil {
		c.fb.Append(chunk[:n])
		if f, ok, _ := c.fb.Next(); ok {
			t.Fatal("unexpected frame:", f.Command)
		}
		return
	}
	var netErr net.Error
	if !errors.As(err, &netErr) || !netErr.Timeout() {
		t.Fatal("expect a read timeout, got:", err)
	}
}

// expectClosed drains remaining frames and asserts the peer closed.
func (c *testClient) expectClosed(t *testing.T) {
	t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	chunk := make([]byte, 4096)
	for {
		_, err := c.conn.Read(chunk)
		if err == nil {
			continue
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			t.Fatal("connection is still open")
		}
		return
	}
}

func (c *testClient) connect(t *testing.T) {
	t.Helper()
	c.send(t, NewFrame(CmdConnect, nil))
	f := c.recv(t)
	if f.Command != CmdConnected {
		t.Fatal("expect CONNECTED, got:", f.Command)
	}
	if !f.Headers.Contains(HeaderSession) {
		t.Fatal("CONNECTED must carry a session header")
	}
}

func TestHandlerConnectAndDisconnect(t *testing.T) {
	s := newTestServer(t)
	c := dialPipe(t, s)

	c.connect(t)

	c.send(t, NewFrame(CmdDisconnect, nil, Header{HeaderReceipt, "bye-1"}))
	f := c.recv(t)
	if f.Command != CmdReceipt {
		t.Fatal("expect RECEIPT, got:", f.Command)
	}
	if v, _ := f.Headers.Get(HeaderReceiptId); v != "bye-1" {
		t.Fatal("receipt-id mismatch:", v)
	}
	c.expectClosed(t)
}

func TestHandlerRepeatedConnectKeepsSession(t *testing.T) {
	s := newTestServer(t)
	c := dialPipe(t, s)

	c.send(t, NewFrame(CmdConnect, nil))
	first := c.recv(t)
	c.send(t, NewFrame(CmdConnect, nil))
	second := c.recv(t)

	s1, _ := first.Headers.Get(HeaderSession)
	s2, _ := second.Headers.Get(HeaderSession)
	if first.Command != CmdConnected || second.Command != CmdConnected || s1 != s2 {
		t.Fatal("repeated CONNECT must answer with the same session:", s1, s2)
	}
}

func TestHandlerRejectsFramesBeforeConnect(t *testing.T) {
	s := newTestServer(t)
	c := dialPipe(t, s)

	c.send(t, NewFrame(CmdSend, []byte("too early"), Header{HeaderDestination, "/queue/a"}))
	f := c.recv(t)
	if f.Command != CmdError {
		t.Fatal("expect ERROR, got:", f.Command)
	}
	c.expectClosed(t)
}

func TestHandlerHeartbeatBeforeConnect(t *testing.T) {
	s := newTestServer(t)
	c := dialPipe(t, s)

	c.sendRaw(t, []byte("\n\n\x00"))
	c.connect(t)
}

func TestHandlerUnknownCommandCloses(t *testing.T) {
	s := newTestServer(t)
	c := dialPipe(t, s)

	c.connect(t)
	c.send(t, NewFrame("NOSUCHCOMMAND", nil))
	f := c.recv(t)
	if f.Command != CmdError {
		t.Fatal("expect ERROR, got:", f.Command)
	}
	c.expectClosed(t)
}

func TestHandlerParseErrorCloses(t *testing.T) {
	s := newTestServer(t)
	c := dialPipe(t, s)

	c.connect(t)
	c.sendRaw(t, []byte("SEND\nno colon in this line\n\n\x00"))
	f := c.recv(t)
	if f.Command != CmdError {
		t.Fatal("expect ERROR, got:", f.Command)
	}
	c.expectClosed(t)
}

func TestHandlerRoutingErrorKeepsConnectionOpen(t *testing.T) {
	s := newTestServer(t)
	c := dialPipe(t, s)

	c.connect(t)
	c.send(t, NewFrame(CmdSend, []byte("x"), Header{HeaderDestination, "/nowhere/else"}))
	f := c.recv(t)
	if f.Command != CmdError {
		t.Fatal("expect ERROR, got:", f.Command)
	}

	// the session survives a routing error
	c.send(t, NewFrame(CmdSend, []byte("y"),
		Header{HeaderDestination, "/queue/ok"},
		Header{HeaderReceipt, "r-1"},
	))
	f = c.recv(t)
	if f.Command != CmdReceipt {
		t.Fatal("expect RECEIPT after routing error, got:", f.Command)
	}
}

func TestHandlerMissingDestinationCloses(t *testing.T) {
	s := newTestServer(t)
	c := dialPipe(t, s)

	c.connect(t)
	c.send(t, NewFrame(CmdSubscribe, nil))
	f := c.recv(t)
	if f.Command != CmdError {
		t.Fatal("expect ERROR, got:", f.Command)
	}
	c.expectClosed(t)
}

func TestHandlerQueueDeliveryAutoAck(t *testing.T) {
	s := newTestServer(t)
	c := dialPipe(t, s)

	c.connect(t)
	c.send(t, NewFrame(CmdSubscribe, nil,
		Header{HeaderDestination, "/queue/loop"},
		Header{HeaderReceipt, "sub-1"},
	))
	if f := c.recv(t); f.Command != CmdReceipt {
		t.Fatal("expect RECEIPT, got:", f.Command)
	}

	c.send(t, NewFrame(CmdSend, []byte("hello"),
		Header{HeaderDestination, "/queue/loop"},
		Header{HeaderReceipt, "send-1"},
	))

	// the delivery is pushed before the receipt is queued
	f := c.recv(t)
	if f.Command != CmdMessage || string(f.Body) != "hello" {
		t.Fatal("expect the MESSAGE first, got:", f.Command, string(f.Body))
	}
	if v, _ := f.Headers.Get(HeaderDestination); v != "/queue/loop" {
		t.Fatal("destination mismatch:", v)
	}
	if f := c.recv(t); f.Command != CmdReceipt {
		t.Fatal("expect RECEIPT, got:", f.Command)
	}
}

func TestHandlerClientAckFlow(t *testing.T) {
	s := newTestServer(t)
	c := dialPipe(t, s)

	c.connect(t)
	c.send(t, NewFrame(CmdSubscribe, nil,
		Header{HeaderDestination, "/queue/work"},
		Header{HeaderAck, AckModeClient},
	))
	c.send(t, NewFrame(CmdSend, []byte("one"), Header{HeaderDestination, "/queue/work"}))
	c.send(t, NewFrame(CmdSend, []byte("two"), Header{HeaderDestination, "/queue/work"}))

	first := c.recv(t)
	if first.Command != CmdMessage || string(first.Body) != "one" {
		t.Fatal("expect the first message, got:", first.Command, string(first.Body))
	}

	// the second delivery waits for the ACK
	c.expectSilence(t)

	messageId, _ := first.Headers.Get(HeaderMessageId)
	c.send(t, NewFrame(CmdAck, nil, Header{HeaderMessageId, messageId}))
	second := c.recv(t)
	if second.Command != CmdMessage || string(second.Body) != "two" {
		t.Fatal("expect the second message after ack, got:", second.Command, string(second.Body))
	}
}

func TestHandlerTopicDelivery(t *testing.T) {
	s := newTestServer(t)
	subscriber := dialPipe(t, s)
	publisher := dialPipe(t, s)

	subscriber.connect(t)
	publisher.connect(t)

	subscriber.send(t, NewFrame(CmdSubscribe, nil,
		Header{HeaderDestination, "/topic/events"},
		Header{HeaderReceipt, "sub-1"},
	))
	if f := subscriber.recv(t); f.Command != CmdReceipt {
		t.Fatal("expect RECEIPT, got:", f.Command)
	}

	publisher.send(t, NewFrame(CmdSend, []byte("tick"), Header{HeaderDestination, "/topic/events"}))

	f := subscriber.recv(t)
	if f.Command != CmdMessage || string(f.Body) != "tick" {
		t.Fatal("expect the topic message, got:", f.Command, string(f.Body))
	}
	// the publisher is not subscribed and receives nothing
	publisher.expectSilence(t)
}

func TestHandlerDisconnectRedelivers(t *testing.T) {
	s := newTestServer(t)
	first := dialPipe(t, s)

	first.connect(t)
	first.send(t, NewFrame(CmdSubscribe, nil,
		Header{HeaderDestination, "/queue/takeover"},
		Header{HeaderAck, AckModeClient},
	))
	first.send(t, NewFrame(CmdSend, []byte("pending"), Header{HeaderDestination, "/queue/takeover"}))

	delivered := first.recv(t)
	if string(delivered.Body) != "pending" {
		t.Fatal("expect the delivery:", string(delivered.Body))
	}
	deliveredId, _ := delivered.Headers.Get(HeaderMessageId)

	// leave without acking
	first.send(t, NewFrame(CmdDisconnect, nil))
	first.expectClosed(t)

	second := dialPipe(t, s)
	second.connect(t)
	second.send(t, NewFrame(CmdSubscribe, nil, Header{HeaderDestination, "/queue/takeover"}))

	f := second.recv(t)
	if string(f.Body) != "pending" {
		t.Fatal("expect the redelivery:", string(f.Body))
	}
	if redeliveredId, _ := f.Headers.Get(HeaderMessageId); redeliveredId != deliveredId {
		t.Fatal("redelivery must keep the message-id:", deliveredId, redeliveredId)
	}
}
