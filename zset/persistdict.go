package zset

import "context"

// persistDict is the persistent Dict backend (spec.md C4): an LRU
// write buffer fronting a Store, batching dirty/expired records and
// flushing them together. Grounded on rocksdb_dict.h's RocksdbDict,
// with rocksdb::WriteBatch/Iterator replaced by the Store/Batch/
// Iterator contract of C8 so the same logic runs over either backend.
type persistDict[S Value[S]] struct {
	store         Store
	lru           *lruRing[S]
	root          *node[S]
	pending       []*node[S]
	bulkWriteSize int
	metrics       *metricsSet
}

const rootKey = ""
const persistDictInitialLRUCap = 1 << 10

// openPersistDict opens store and recovers the root record if one is
// already present, marking it lruRecovery so New (C7) knows to run the reconstruction walk before serving requests.
// If errorIfExists is set and a root record is already present, the
// open fails rather than silently adopting the existing data.
func openPersistDict[S Value[S]](ctx context.Context, store Store, bulkWriteSize int, errorIfExists bool, metrics *metricsSet) (*persistDict[S], error) {
	d := &persistDict[S]{
		store:         store,
		lru:           newLRURing[S](persistDictInitialLRUCap),
		bulkWriteSize: bulkWriteSize,
		metrics:       metrics,
	}
	val, ok, err := store.Get(ctx, rootKey)
	if err != nil {
		return nil, wrapf(err, "zset: read root record")
	}
	if ok {
		if errorIfExists {
			return nil, ErrAlreadyExists
		}
		root, derr := decodeNode[S](val)
		if derr != nil {
			return nil, derr
		}
		root.isRoot = true
		root.state = lruRecovery
		d.root = root
	} else {
		d.root = newRoot[S]()
	}
	return d, nil
}

func (d *persistDict[S]) Find(ctx context.Context, key string) (*node[S], error) {
	if key == rootKey {
		return d.root, nil
	}
	if err := d.BatchPersist(ctx, false); err != nil {
		return nil, err
	}
	if d.lru.Has(key) {
		d.metrics.incLRUHit()
		n, _ := d.lru.Touch(key)
		if n.state == lruExpired {
			return nil, nil
		}
		return n, nil
	}
	d.metrics.incLRUMiss()
	val, ok, err := d.store.Get(ctx, key)
	if err != nil {
		return nil, wrapf(err, "zset: find %q", key)
	}
	if !ok {
		return nil, nil
	}
	decoded, err := decodeNode[S](val)
	if err != nil {
		return nil, err
	}
	n, _ := d.lru.Touch(key)
	n.score = decoded.score
	n.isRoot = decoded.isRoot
	n.level = decoded.level
	n.state = lruOK
	n.forward = decoded.forward
	return n, nil
}

func (d *persistDict[S]) NewKeyBuffer(ctx context.Context, key string, isRoot bool) (*node[S], error) {
	if isRoot {
		return d.root, nil
	}
	if err := d.BatchPersist(ctx, false); err != nil {
		return nil, err
	}
	n, _ := d.lru.Touch(key)
	n.score = *new(S)
	n.isRoot = false
	n.level = 0
	n.state = lruOK
	n.forward = nil
	return n, nil
}

// Erase is a no-op: the persistent backend only ever removes a record
// from the store during BatchPersist, once its EXPIRED flush lands.
func (d *persistDict[S]) Erase(context.Context, *node[S]) error { return nil }

func (d *persistDict[S]) ResizeLRU(card uint32) { d.lru.Resize(card) }

// Persist writes n immediately, bypassing the write buffer. Used only
// for the root record, at construction.
func (d *persistDict[S]) Persist(ctx context.Context, n *node[S]) error {
	b, err := encodeNode[S](n)
	if err != nil {
		return err
	}
	return wrapf(d.store.Put(ctx, n.member, b), "zset: persist %q", n.member)
}

func (d *persistDict[S]) BatchAdd(_ context.Context, n *node[S]) error {
	if n.state != lruDirty {
		wasOK := n.state == lruOK
		n.state = lruDirty
		if wasOK {
			d.pending = append(d.pending, n)
		}
	}
	return nil
}

func (d *persistDict[S]) BatchDelete(_ context.Context, n *node[S]) error {
	if n.state != lruExpired {
		wasOK := n.state == lruOK
		n.state = lruExpired
		if wasOK {
			d.pending = append(d.pending, n)
		}
	}
	return nil
}

// BatchPersist flushes pending dirty/expired records in one Store
// write batch. With force=false it defers unless the LRU ring is full
// (meaning some resident record needs to make room) or enough writes
// have piled up, matching the bulk-write-size throttle of the source.
func (d *persistDict[S]) BatchPersist(ctx context.Context, force bool) error {
	if !force && !d.lru.Full() && len(d.pending) < d.bulkWriteSize {
		return nil
	}
	if len(d.pending) == 0 {
		return nil
	}
	b := d.store.NewBatch()
	for _, n := range d.pending {
		switch n.state {
		case lruDirty:
			n.state = lruOK
			enc, err := encodeNode[S](n)
			if err != nil {
				return err
			}
			b.Put(n.member, enc)
		case lruExpired:
			n.state = lruOK
			b.Delete(n.member)
			d.lru.Remove(n.member)
		}
	}
	if err := d.store.WriteBatch(ctx, b); err != nil {
		return wrapf(err, "zset: flush write buffer")
	}
	d.metrics.observeFlush(len(d.pending))
	d.pending = d.pending[:0]
	return nil
}

// IterSeek forces a full flush (so the snapshot underneath reflects
// every pending mutation), then seeks the store's own iterator and
// skips the root record if it would otherwise be first.
func (d *persistDict[S]) IterSeek(ctx context.Context, key string) (dictIterator, error) {
	if err := d.BatchPersist(ctx, true); err != nil {
		return nil, err
	}
	it, err := d.store.NewIterator(ctx)
	if err != nil {
		return nil, err
	}
	it.Seek(key)
	if it.Valid() && it.Key() == rootKey {
		it.Next()
	}
	return &persistDictIterator{it: it}, nil
}

func (d *persistDict[S]) Close(ctx context.Context) error {
	if err := d.BatchPersist(ctx, true); err != nil {
		return err
	}
	return d.store.Close(ctx)
}

type persistDictIterator struct {
	it Iterator
}

func (p *persistDictIterator) Valid() bool { return p.it.Valid() }
func (p *persistDictIterator) Key() string { return p.it.Key() }
func (p *persistDictIterator) Next()       { p.it.Next() }
func (p *persistDictIterator) Release()    { p.it.Release() }
