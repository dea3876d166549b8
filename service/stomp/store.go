package stomp

import (
	"fmt"

	"github.com/woutdenolf/coilmq/config"

	"github.com/fxamacker/cbor/v2"
	"github.com/golang/snappy"
)

// Store holds pending frames per queue destination. Implementations are not
// required to be independently thread safe: QueueManager serializes every
// call behind its own mutex. Implementations that happen to be safe anyway
// (the durable ones) say so on their constructor.
type Store interface {
	// Enqueue appends the frame to the destination's pending sequence.
	Enqueue(destination string, frame *Frame) error

	// Dequeue removes and returns the next frame available for delivery.
	// Requeued frames come out before newer ones; everything else is FIFO.
	// Returns nil when the destination has no pending frames.
	Dequeue(destination string) (*Frame, error)

	// Requeue returns a delivered but unacknowledged frame to the front of
	// the destination's pending sequence.
	Requeue(destination string, frame *Frame) error

	HasFrames(destination string) (bool, error)
	Size(destination string) (int, error)

	// Destinations lists destinations currently holding at least one frame.
	Destinations() ([]string, error)

	Close() error
}

// NewStore builds the Store selected by the configuration.
func NewStore(cfg config.StoreConfig) (Store, error) {
	switch cfg.Type {
	case "memory":
		_storeLogger.Infof("using memory store, frames will not survive a restart")
		return NewMemoryStore(), nil
	case "badger":
		_storeLogger.Infof("using badger store at [%s]", cfg.Badger.Path)
		return NewBadgerStore(cfg.Badger.Path, cfg.Badger.InMemory)
	case "postgres":
		_storeLogger.Infof("using postgres store with [%d] sources", len(cfg.Postgres.Sources))
		return NewPostgresStore(cfg.Postgres.Sources, cfg.Postgres.Replicas)
	default:
		return nil, fmt.Errorf("%w: %s", ErrStoreTypeUnknown, cfg.Type)
	}
}

// frameRecord is the stored form of a frame used by the durable stores.
type frameRecord struct {
	Command string      `json:"command"`
	Headers [][2]string `json:"headers"`
	// Body holds the frame body in snappy block format.
	Body []byte `json:"body"`
}

func encodeFrameRecord(frame *Frame) ([]byte, error) {
	rec := frameRecord{
		Command: frame.Command,
		Body:    snappy.Encode(nil, frame.Body),
	}
	for _, hd := range frame.Headers {
		rec.Headers = append(rec.Headers, [2]string{hd.Name, hd.Value})
	}
	return cbor.Marshal(rec)
}

func decodeFrameRecord(data []byte) (*Frame, error) {
	var rec frameRecord
	if err := cbor.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	body, err := snappy.Decode(nil, rec.Body)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		body = nil
	}
	f := &Frame{Command: rec.Command, Body: body}
	for _, hd := range rec.Headers {
		f.Headers = append(f.Headers, Header{Name: hd[0], Value: hd[1]})
	}
	return f, nil
}
