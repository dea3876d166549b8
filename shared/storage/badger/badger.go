package badger

import (
	"time"

	"github.com/woutdenolf/coilmq/shared/logging"

	"github.com/dgraph-io/badger/v3"
)

var _badgerStorageLogger = logging.NewLogger("BadgerStorage")

// NewDB opens a badger database and starts its maintenance loop: discard
// version bumping, value log GC and periodic sync. With inMemory set the
// path must be empty and nothing touches disk. The loop stops once the
// database is closed.
func NewDB(path string, inMemory bool) (*badger.DB, error) {
	opt := badger.DefaultOptions(path).WithInMemory(inMemory)
	db, err := badger.Open(opt)
	if err != nil {
		return nil, err
	}

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			if db.IsClosed() {
				return
			}
			// handling discard data
			db.SetDiscardTs(db.MaxVersion())
			// This gc handling comes from official document
			if !inMemory {
			again:
				err := db.RunValueLogGC(0.7)
				if err == nil {
					goto again
				}
			}
			// handling sync
			if err := db.Sync(); err != nil {
				_badgerStorageLogger.Errorf("invoke sync failed:[%s]", err)
			}
		}
	}()

	return db, nil
}

// RunInTxn runs fn inside a transaction and retries until the commit does
// not conflict. Read-only transactions never conflict and run once.
func RunInTxn(db *badger.DB, update bool, fn func(txn *badger.Txn) error) error {
	for {
		err := func() error {
			txn := db.NewTransaction(update)
			defer txn.Discard()

			if err := fn(txn); err != nil {
				return err
			}
			if update {
				return txn.Commit()
			}
			return nil
		}()
		if err == badger.ErrConflict {
			continue
		}
		return err
	}
}
