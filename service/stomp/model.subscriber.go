package stomp

import "time"

// Connection is the surface the managers deliver frames through. Handlers for
// the TCP and WebSocket transports both implement it.
type Connection interface {
	// Session returns the identifier assigned on CONNECT.
	Session() string

	// SendFrame hands the frame to the connection's outbound channel without
	// blocking. It reports false when the frame was not accepted, either
	// because the channel is full or the connection is closing.
	SendFrame(frame *Frame) bool
}

// Subscription is one connection's registration on one destination.
// The inflight field is guarded by the owning manager's mutex.
type Subscription struct {
	conn        Connection
	destination string
	ackMode     string

	inflight *PendingMessage
}

func newSubscription(conn Connection, destination, ackMode string) *Subscription {
	return &Subscription{
		conn:        conn,
		destination: destination,
		ackMode:     ackMode,
	}
}

func (s *Subscription) Connection() Connection { return s.conn }

func (s *Subscription) Destination() string { return s.destination }

func (s *Subscription) AckMode() string { return s.ackMode }

// Busy reports whether a delivery on this subscription still waits for its
// ACK. Always false for auto ack subscriptions.
func (s *Subscription) Busy() bool { return s.inflight != nil }

// PendingMessage is a delivered frame waiting for acknowledgment. It is
// created by the dispatch cycle and destroyed by Ack, or handed back to the
// store when the subscriber goes away first.
type PendingMessage struct {
	Frame       *Frame
	Destination string
	MessageId   string
	DeliveredTo string
	DeliveredAt time.Time
}
