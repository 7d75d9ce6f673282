package zset

import (
	"context"
	"sort"
)

// memoryStore is an ordered in-memory Store: a map for point lookups
// plus a sorted slice of keys for ordered iteration. This is the Go
// analogue of the source's NO_ROCKSDB build, and doubles as the
// backend the test suite uses for "store-backend parity" (SPEC_FULL.md
// §8 property 8).
type memoryStore struct {
	data map[string][]byte
	keys []string // always sorted; lazily rebuilt after batches
	dirty bool
}

// NewMemoryStore constructs an empty ordered in-memory Store.
func NewMemoryStore() Store {
	return &memoryStore{data: make(map[string][]byte)}
}

func (s *memoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *memoryStore) Put(_ context.Context, key string, value []byte) error {
	if _, exists := s.data[key]; !exists {
		s.dirty = true
	}
	s.data[key] = value
	return nil
}

func (s *memoryStore) Delete(_ context.Context, key string) error {
	if _, exists := s.data[key]; exists {
		delete(s.data, key)
		s.dirty = true
	}
	return nil
}

func (s *memoryStore) WriteBatch(ctx context.Context, b Batch) error {
	mb, ok := b.(*memoryBatch)
	if !ok {
		return wrapf(ErrIncompatible, "memoryStore.WriteBatch: foreign batch type")
	}
	for _, op := range mb.ops {
		if op.del {
			if err := s.Delete(ctx, op.key); err != nil {
				return err
			}
			continue
		}
		if err := s.Put(ctx, op.key, op.value); err != nil {
			return err
		}
	}
	return nil
}

func (s *memoryStore) NewIterator(context.Context) (Iterator, error) {
	s.reindex()
	keys := make([]string, len(s.keys))
	copy(keys, s.keys)
	return &memoryIterator{store: s, keys: keys, pos: 0}, nil
}

func (s *memoryStore) Close(context.Context) error { return nil }

func (s *memoryStore) reindex() {
	if !s.dirty && len(s.keys) == len(s.data) {
		return
	}
	s.keys = make([]string, 0, len(s.data))
	for k := range s.data {
		s.keys = append(s.keys, k)
	}
	sort.Strings(s.keys)
	s.dirty = false
}

// NewBatch returns a Batch bound to the in-memory Store.
func (s *memoryStore) NewBatch() Batch { return &memoryBatch{} }

type memoryBatchOp struct {
	key   string
	value []byte
	del   bool
}

type memoryBatch struct {
	ops []memoryBatchOp
}

func (b *memoryBatch) Put(key string, value []byte) {
	b.ops = append(b.ops, memoryBatchOp{key: key, value: value})
}

func (b *memoryBatch) Delete(key string) {
	b.ops = append(b.ops, memoryBatchOp{key: key, del: true})
}

type memoryIterator struct {
	store *memoryStore
	keys  []string
	pos   int
}

func (it *memoryIterator) Seek(key string) {
	it.pos = sort.SearchStrings(it.keys, key)
}

func (it *memoryIterator) Valid() bool { return it.pos < len(it.keys) }

func (it *memoryIterator) Key() string {
	if !it.Valid() {
		return ""
	}
	return it.keys[it.pos]
}

func (it *memoryIterator) Value() []byte {
	if !it.Valid() {
		return nil
	}
	return it.store.data[it.keys[it.pos]]
}

func (it *memoryIterator) Next() { it.pos++ }

func (it *memoryIterator) Release() {}
