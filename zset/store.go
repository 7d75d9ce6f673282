package zset

import "context"

// Store is the persistent key/value backend a PersistDict pages
// records through (spec.md C8, the Go analogue of rocksdb_dict.h's
// rocksdb::DB dependency). Keys and values are opaque byte strings;
// ordering must be lexicographic on the raw key bytes, since Iterator
// walks keys in that order.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	WriteBatch(ctx context.Context, b Batch) error
	NewBatch() Batch
	NewIterator(ctx context.Context) (Iterator, error)
	Close(ctx context.Context) error
}

// Batch accumulates a set of puts/deletes applied atomically by
// Store.WriteBatch, mirroring the bulk-flush path of the LRU write
// buffer (spec.md C4/C5).
type Batch interface {
	Put(key string, value []byte)
	Delete(key string)
}

// Iterator walks a Store in ascending key order starting at Seek's
// argument (or the first key, if Seek is never called).
type Iterator interface {
	Seek(key string)
	Valid() bool
	Key() string
	Value() []byte
	Next()
	Release()
}
