package zset

import (
	"context"
	"sort"

	"github.com/nutsdb/nutsdb"
	"github.com/pkg/errors"
)

// nutsStore is the durable Store backend (spec.md C8), the Go
// analogue of rocksdb_dict.h's embedded RocksDB dependency: a
// single-file, pure-Go, transactional KV engine. All records for one
// ZSet live in one bucket so multiple ZSets can share a directory.
type nutsStore struct {
	db     *nutsdb.DB
	bucket string
}

// OpenNutsStore opens (creating if absent) a nutsdb database rooted at
// dir and returns a Store that keeps all records in bucket.
func OpenNutsStore(dir, bucket string) (Store, error) {
	db, err := nutsdb.Open(nutsdb.DefaultOptions, nutsdb.WithDir(dir))
	if err != nil {
		return nil, wrapf(err, "zset: open nutsdb at %q", dir)
	}
	if bucket == "" {
		bucket = "zset"
	}
	return &nutsStore{db: db, bucket: bucket}, nil
}

func (s *nutsStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.View(func(tx *nutsdb.Tx) error {
		v, terr := tx.Get(s.bucket, []byte(key))
		if terr != nil {
			if errors.Is(terr, nutsdb.ErrKeyNotFound) || errors.Is(terr, nutsdb.ErrBucketNotFound) {
				return nil
			}
			return terr
		}
		value = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, false, wrapf(err, "zset: nutsdb get %q", key)
	}
	return value, value != nil, nil
}

func (s *nutsStore) Put(_ context.Context, key string, value []byte) error {
	err := s.db.Update(func(tx *nutsdb.Tx) error {
		return tx.Put(s.bucket, []byte(key), value, 0)
	})
	return wrapf(err, "zset: nutsdb put %q", key)
}

func (s *nutsStore) Delete(_ context.Context, key string) error {
	err := s.db.Update(func(tx *nutsdb.Tx) error {
		derr := tx.Delete(s.bucket, []byte(key))
		if errors.Is(derr, nutsdb.ErrKeyNotFound) {
			return nil
		}
		return derr
	})
	return wrapf(err, "zset: nutsdb delete %q", key)
}

func (s *nutsStore) NewBatch() Batch { return &nutsBatch{} }

// WriteBatch applies every staged op inside a single nutsdb
// transaction, so a flush of the LRU write buffer either lands
// entirely or not at all.
func (s *nutsStore) WriteBatch(_ context.Context, b Batch) error {
	nb, ok := b.(*nutsBatch)
	if !ok {
		return wrapf(ErrIncompatible, "nutsStore.WriteBatch: foreign batch type")
	}
	err := s.db.Update(func(tx *nutsdb.Tx) error {
		for _, op := range nb.ops {
			if op.del {
				if derr := tx.Delete(s.bucket, []byte(op.key)); derr != nil && !errors.Is(derr, nutsdb.ErrKeyNotFound) {
					return derr
				}
				continue
			}
			if perr := tx.Put(s.bucket, []byte(op.key), op.value, 0); perr != nil {
				return perr
			}
		}
		return nil
	})
	return wrapf(err, "zset: nutsdb batch flush")
}

// NewIterator snapshots the bucket into a sorted in-memory key list.
// nutsdb's own scan primitives are prefix/range oriented rather than a
// cursor that survives across transactions, so the iterator takes one
// consistent read-transaction snapshot and walks it in Go.
func (s *nutsStore) NewIterator(_ context.Context) (Iterator, error) {
	entries := make(map[string][]byte)
	err := s.db.View(func(tx *nutsdb.Tx) error {
		all, terr := tx.GetAll(s.bucket)
		if terr != nil {
			if errors.Is(terr, nutsdb.ErrBucketNotFound) || errors.Is(terr, nutsdb.ErrBucketEmpty) {
				return nil
			}
			return terr
		}
		for _, e := range all {
			entries[string(e.Key)] = append([]byte(nil), e.Value...)
		}
		return nil
	})
	if err != nil {
		return nil, wrapf(err, "zset: nutsdb snapshot scan")
	}
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return &nutsIterator{entries: entries, keys: keys}, nil
}

func (s *nutsStore) Close(context.Context) error {
	return wrapf(s.db.Close(), "zset: close nutsdb")
}

type nutsBatchOp struct {
	key   string
	value []byte
	del   bool
}

type nutsBatch struct {
	ops []nutsBatchOp
}

func (b *nutsBatch) Put(key string, value []byte) {
	b.ops = append(b.ops, nutsBatchOp{key: key, value: value})
}

func (b *nutsBatch) Delete(key string) {
	b.ops = append(b.ops, nutsBatchOp{key: key, del: true})
}

type nutsIterator struct {
	entries map[string][]byte
	keys    []string
	pos     int
}

func (it *nutsIterator) Seek(key string) {
	it.pos = sort.SearchStrings(it.keys, key)
}

func (it *nutsIterator) Valid() bool { return it.pos < len(it.keys) }

func (it *nutsIterator) Key() string {
	if !it.Valid() {
		return ""
	}
	return it.keys[it.pos]
}

func (it *nutsIterator) Value() []byte {
	if !it.Valid() {
		return nil
	}
	return it.entries[it.keys[it.pos]]
}

func (it *nutsIterator) Next() { it.pos++ }

func (it *nutsIterator) Release() {}
