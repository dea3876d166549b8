package stompclient

import (
	"net"
	"sync"
)

// channel owns the connection: a single read loop parses inbound frames into
// frameCh, writes are serialized by writeLock.
type channel struct {
	conn net.Conn

	frameCh   chan *Frame
	writeLock sync.Mutex

	closeCh   chan struct{}
	closeOnce sync.Once

	errLock sync.Mutex
	err     error
}

func newChannel(conn net.Conn) *channel {
	ch := &channel{
		conn:    conn,
		frameCh: make(chan *Frame, 64),
		closeCh: make(chan struct{}),
	}
	go ch.readLoop()
	return ch
}

func (ch *channel) readLoop() {
	defer close(ch.frameCh)
	var scanner frameScanner
	buf := make([]byte, 4096)
	for {
		for {
			f, ok, err := scanner.next()
			if err != nil {
				ch.shutdown(err)
				return
			}
			if !ok {
				break
			}
			select {
			case ch.frameCh <- f:
			case <-ch.closeCh:
				return
			}
		}
		n, err := ch.conn.Read(buf)
		if n > 0 {
			scanner.append(buf[:n])
		}
		if err != nil {
			ch.shutdown(err)
			return
		}
	}
}

func (ch *channel) send(f *Frame) error {
	select {
	case <-ch.closeCh:
		return ch.failure()
	default:
	}
	ch.writeLock.Lock()
	defer ch.writeLock.Unlock()
	if _, err := ch.conn.Write(f.pack()); err != nil {
		ch.shutdown(err)
		return err
	}
	return nil
}

func (ch *channel) shutdown(err error) {
	ch.errLock.Lock()
	if ch.err == nil && err != nil {
		ch.err = err
	}
	ch.errLock.Unlock()
	ch.closeOnce.Do(func() {
		close(ch.closeCh)
		_ = ch.conn.Close()
	})
}

// failure reports why the channel went down.
func (ch *channel) failure() error {
	ch.errLock.Lock()
	defer ch.errLock.Unlock()
	if ch.err != nil {
		return ch.err
	}
	return ErrClosed
}
