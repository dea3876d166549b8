package stomp

import (
	"encoding/binary"
	"fmt"

	storage "github.com/woutdenolf/coilmq/shared/storage/badger"

	"github.com/dgraph-io/badger/v3"
)

const _badgerKeyPrefix = "frame:"

// _badgerSeqBase sits in the middle of the uint64 range so requeued frames
// can keep taking smaller sequence numbers without wrapping.
const _badgerSeqBase = uint64(1) << 62

// BadgerStore persists per destination frame backlogs in a badger database.
// Keys order frames by an unsigned sequence number so the oldest frame of a
// destination is always the first key under its prefix.
type BadgerStore struct {
	db *badger.DB
}

var _ Store = new(BadgerStore)

func NewBadgerStore(path string, inMemory bool) (*BadgerStore, error) {
	if inMemory {
		path = ""
	}
	db, err := storage.NewDB(path, inMemory)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// frameKey is _badgerKeyPrefix + destination + 0x00 + 8 byte big endian seq.
func frameKey(destination string, seq uint64) []byte {
	key := make([]byte, 0, len(_badgerKeyPrefix)+len(destination)+9)
	key = append(key, _badgerKeyPrefix...)
	key = append(key, destination...)
	key = append(key, 0x00)
	key = binary.BigEndian.AppendUint64(key, seq)
	return key
}

func destinationPrefix(destination string) []byte {
	key := make([]byte, 0, len(_badgerKeyPrefix)+len(destination)+1)
	key = append(key, _badgerKeyPrefix...)
	key = append(key, destination...)
	key = append(key, 0x00)
	return key
}

func seqOfKey(key []byte) uint64 {
	return binary.BigEndian.Uint64(key[len(key)-8:])
}

func destinationOfKey(key []byte) string {
	return string(key[len(_badgerKeyPrefix) : len(key)-9])
}

// firstSeq returns the smallest sequence stored for the destination.
func firstSeq(txn *badger.Txn, destination string) (uint64, bool) {
	prefix := destinationPrefix(destination)
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	it.Seek(prefix)
	if !it.ValidForPrefix(prefix) {
		return 0, false
	}
	return seqOfKey(it.Item().Key()), true
}

// lastSeq returns the largest sequence stored for the destination.
func lastSeq(txn *badger.Txn, destination string) (uint64, bool) {
	prefix := destinationPrefix(destination)
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	opts.Reverse = true
	it := txn.NewIterator(opts)
	defer it.Close()

	// seek to the highest possible key of the destination
	it.Seek(frameKey(destination, ^uint64(0)))
	if !it.ValidForPrefix(prefix) {
		return 0, false
	}
	return seqOfKey(it.Item().Key()), true
}

func (s *BadgerStore) Enqueue(destination string, frame *Frame) error {
	data, err := encodeFrameRecord(frame)
	if err != nil {
		return fmt.Errorf("encode frame for destination %s: %w", destination, err)
	}
	return storage.RunInTxn(s.db, true, func(txn *badger.Txn) error {
		seq := _badgerSeqBase
		if last, ok := lastSeq(txn, destination); ok {
			seq = last + 1
		}
		return txn.Set(frameKey(destination, seq), data)
	})
}

func (s *BadgerStore) Dequeue(destination string) (*Frame, error) {
	var frame *Frame
	err := storage.RunInTxn(s.db, true, func(txn *badger.Txn) error {
		frame = nil
		seq, ok := firstSeq(txn, destination)
		if !ok {
			return nil
		}
		key := frameKey(destination, seq)
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		data, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		f, err := decodeFrameRecord(data)
		if err != nil {
			return err
		}
		if err := txn.Delete(key); err != nil {
			return err
		}
		frame = f
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("dequeue from destination %s: %w", destination, err)
	}
	return frame, nil
}

func (s *BadgerStore) Requeue(destination string, frame *Frame) error {
	data, err := encodeFrameRecord(frame)
	if err != nil {
		return fmt.Errorf("encode frame for destination %s: %w", destination, err)
	}
	return storage.RunInTxn(s.db, true, func(txn *badger.Txn) error {
		seq := _badgerSeqBase
		if first, ok := firstSeq(txn, destination); ok {
			seq = first - 1
		}
		return txn.Set(frameKey(destination, seq), data)
	})
}

func (s *BadgerStore) HasFrames(destination string) (bool, error) {
	var has bool
	err := storage.RunInTxn(s.db, false, func(txn *badger.Txn) error {
		_, has = firstSeq(txn, destination)
		return nil
	})
	return has, err
}

func (s *BadgerStore) Size(destination string) (int, error) {
	var count int
	err := storage.RunInTxn(s.db, false, func(txn *badger.Txn) error {
		count = 0
		prefix := destinationPrefix(destination)
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

func (s *BadgerStore) Destinations() ([]string, error) {
	var destinations []string
	err := storage.RunInTxn(s.db, false, func(txn *badger.Txn) error {
		destinations = nil
		prefix := []byte(_badgerKeyPrefix)
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		seen := make(map[string]struct{})
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			dest := destinationOfKey(it.Item().Key())
			if _, ok := seen[dest]; ok {
				continue
			}
			seen[dest] = struct{}{}
			destinations = append(destinations, dest)
		}
		return nil
	})
	return destinations, err
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
