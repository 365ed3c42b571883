// Package store is the durable keyed persistence layer, a thin wrapper
// around a single Pebble database. Key namespaces:
//
//	user:<id>                          user record
//	username:<name>                    user id index
//	email:<addr>                       user id index
//	room:<id>:meta                     room record (including member set)
//	userroom:<userID>:<roomID>         membership index ("rooms of a user")
//	pair:<a>|<b>                       private-room id per sorted user pair
//	room:<id>:msg:<ts>-<seq>           room order index -> message id
//	msg:<id>                           latest message state
//	reaction:<msgID>:<userID>          reaction record
//	pin:<roomID>:<msgID>               pin record
//	read:<roomID>:<userID>             per-user read watermark (order key)
//	outbox:<routingKey>:<ts>-<seq>     durable notification copy
package store

import (
	"bytes"
	"fmt"
	"sync/atomic"

	"github.com/cockroachdb/pebble"

	"parley/pkg/logger"
)

var db *pebble.DB
var dbPath string

// seq reduces key collisions when multiple messages share the same
// nanosecond timestamp.
var seq uint64

// Open opens (or creates) a Pebble database at the given path and keeps
// a global handle for simple usage in this package.
func Open(path string) error {
	var err error
	logger.Info("opening_pebble_db", "path", path)
	db, err = pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return err
	}
	dbPath = path
	return nil
}

// Close closes the opened pebble DB if present.
func Close() error {
	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return err
	}
	db = nil
	logger.Info("pebble_closed")
	return nil
}

// Ready reports whether the store is opened and ready.
func Ready() bool {
	return db != nil
}

func errNotOpen() error {
	return fmt.Errorf("pebble not opened; call store.Open first")
}

// NextSeq returns a process-monotonic sequence for sortable keys.
func NextSeq() uint64 { return atomic.AddUint64(&seq, 1) }

// NewBatch returns a write batch; commit it with ApplyBatch.
func NewBatch() *pebble.Batch { return new(pebble.Batch) }

// ApplyBatch applies a prepared batch atomically. All entries land or
// none do.
func ApplyBatch(b *pebble.Batch, sync bool) error {
	if db == nil {
		return errNotOpen()
	}
	opt := pebble.NoSync
	if sync {
		opt = pebble.Sync
	}
	return db.Apply(b, opt)
}

// GetKey returns the raw value for the given key.
func GetKey(key string) ([]byte, error) {
	if db == nil {
		return nil, errNotOpen()
	}
	v, closer, err := db.Get([]byte(key))
	if err != nil {
		return nil, err
	}
	out := append([]byte(nil), v...)
	if closer != nil {
		_ = closer.Close()
	}
	return out, nil
}

// SaveKey stores an arbitrary key/value pair. Callers should choose a
// safe namespace (e.g. "outbox:").
func SaveKey(key string, value []byte) error {
	if db == nil {
		return errNotOpen()
	}
	if err := db.Set([]byte(key), value, pebble.Sync); err != nil {
		logger.Error("save_key_failed", "key", key, "error", err)
		return err
	}
	return nil
}

// DeleteKey removes a key; deleting an absent key is not an error.
func DeleteKey(key string) error {
	if db == nil {
		return errNotOpen()
	}
	return db.Delete([]byte(key), pebble.Sync)
}

// HasKey reports whether the key exists.
func HasKey(key string) (bool, error) {
	if db == nil {
		return false, errNotOpen()
	}
	_, closer, err := db.Get([]byte(key))
	if err == pebble.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if closer != nil {
		_ = closer.Close()
	}
	return true, nil
}

// ListKeys returns all keys that start with the given prefix.
func ListKeys(prefix string) ([]string, error) {
	if db == nil {
		return nil, errNotOpen()
	}
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	pfx := []byte(prefix)
	var out []string
	for iter.SeekGE(pfx); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), pfx) {
			break
		}
		out = append(out, string(append([]byte(nil), iter.Key()...)))
	}
	return out, iter.Error()
}

// ScanValues collects all values under a prefix in key order.
func ScanValues(prefix string) ([][]byte, error) {
	if db == nil {
		return nil, errNotOpen()
	}
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	pfx := []byte(prefix)
	var out [][]byte
	for iter.SeekGE(pfx); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), pfx) {
			break
		}
		out = append(out, append([]byte(nil), iter.Value()...))
	}
	return out, iter.Error()
}

// DBIter returns a raw Pebble iterator for low-level tooling. Caller
// must close the iterator when done.
func DBIter() (*pebble.Iterator, error) {
	if db == nil {
		return nil, errNotOpen()
	}
	return db.NewIter(&pebble.IterOptions{})
}
