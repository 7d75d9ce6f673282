package zset

import "context"

// dict is the uniform abstraction (spec.md C2) the skiplist engine
// traverses through. Every implementation must honor the "unstable
// borrows" contract: a pointer returned by Find or NewKeyBuffer is
// borrowed and may be invalidated by any later call to Find or
// NewKeyBuffer on the same dict (the persistent backend evicts LRU
// slots on those calls). Callers that need a field across such a call
// must copy it out first.
type dict[S Value[S]] interface {
	// Find returns the record for key, or nil if absent.
	Find(ctx context.Context, key string) (*node[S], error)
	// NewKeyBuffer returns a record slot bound to key, inserted into
	// the index. isRoot must be true exactly once, for the empty key.
	NewKeyBuffer(ctx context.Context, key string, isRoot bool) (*node[S], error)
	// Erase removes n from the index. The persistent backend may also
	// recycle the slot once any pending writes for it are flushed.
	Erase(ctx context.Context, n *node[S]) error
	// ResizeLRU is an advisory growth hint based on current ZSet size.
	ResizeLRU(card uint32)

	// Persist writes n's current value immediately (used only for the
	// root, at construction). No-op on the in-memory backend.
	Persist(ctx context.Context, n *node[S]) error
	// BatchAdd stages n as dirty for the next flush.
	BatchAdd(ctx context.Context, n *node[S]) error
	// BatchDelete stages n as expired for the next flush.
	BatchDelete(ctx context.Context, n *node[S]) error
	// BatchPersist flushes staged mutations. If force is false the
	// backend may defer the flush until its own thresholds trip.
	BatchPersist(ctx context.Context, force bool) error

	// IterSeek begins ordered iteration at or after key, skipping the
	// empty-key root if it would otherwise be first.
	IterSeek(ctx context.Context, key string) (dictIterator, error)

	// Close releases any resources (store handles, iterators) held by
	// the dict. Implementations must flush pending writes first.
	Close(ctx context.Context) error
}

// dictIterator is the ordered-iteration handle returned by IterSeek.
// Recovery (C7) does not use it: it counts members by walking the
// root's forward chain through Find.
type dictIterator interface {
	Valid() bool
	Key() string
	Next()
	Release()
}
