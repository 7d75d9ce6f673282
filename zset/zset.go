package zset

import (
	"context"

	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
)

// ScoredMember is one (member, score) pair, the Go analogue of the
// source's pairs<_T> entries returned by the range/pop family.
type ScoredMember[S Value[S]] struct {
	Member string
	Score  S
}

// options holds the former compile-time template/constant parameters
// of the source as runtime configuration, set via functional options.
type options struct {
	maxMemberLen  int
	maxLevel      int
	p             float64
	bulkWriteSize int
	store         Store
	errorIfExists bool
	name          string
	logger        hclog.Logger
	registerer    prometheus.Registerer
}

func defaultOptions() options {
	return options{
		maxMemberLen:  10,
		maxLevel:      15,
		p:             0.25,
		bulkWriteSize: 128,
	}
}

// Option configures a ZSet at construction time.
type Option func(*options)

// WithMaxMemberLen bounds member length (spec default 10).
func WithMaxMemberLen(n int) Option { return func(o *options) { o.maxMemberLen = n } }

// WithMaxLevel bounds skiplist tower height (spec default 15).
func WithMaxLevel(n int) Option { return func(o *options) { o.maxLevel = n } }

// WithSkiplistP sets the geometric level-growth probability (spec default 0.25).
func WithSkiplistP(p float64) Option { return func(o *options) { o.p = p } }

// WithBulkWriteSize sets the persistent dict's flush threshold (spec default 128).
func WithBulkWriteSize(n int) Option { return func(o *options) { o.bulkWriteSize = n } }

// WithStore selects the persistent backend. Without this option the
// ZSet uses the in-memory dict (C3); with it, the persistent dict
// (C4) fronts the given Store.
func WithStore(s Store) Option { return func(o *options) { o.store = s } }

// WithErrorIfExists makes New fail instead of recovering when the
// given Store already holds a root record.
func WithErrorIfExists(b bool) Option { return func(o *options) { o.errorIfExists = b } }

// WithName sets the logger/metrics label for this ZSet instance.
func WithName(name string) Option { return func(o *options) { o.name = name } }

// WithLogger supplies a parent hclog.Logger; a named child logger is
// derived from it. Omitted, logging is discarded.
func WithLogger(l hclog.Logger) Option { return func(o *options) { o.logger = l } }

// WithMetrics enables Prometheus instrumentation against reg.
// Omitted, metrics collection is skipped entirely.
func WithMetrics(reg prometheus.Registerer) Option { return func(o *options) { o.registerer = reg } }

// ZSet is an embeddable sorted set of unique string members ordered
// by (score, member) ascending. It is not safe for concurrent use by
// multiple goroutines: every method must be called sequentially by a
// single owner, matching the single-threaded, synchronous contract of
// the system it implements.
type ZSet[S Value[S]] struct {
	dict     dict[S]
	root     *node[S]
	maxLevel int
	card     uint32
	opts     options
	logger   hclog.Logger
	metrics  *metricsSet
}

// New opens a ZSet. Without WithStore, it is purely in-memory; with
// WithStore, it is backed by the given persistent Store and recovers
// any data already present (unless WithErrorIfExists is set).
func New[S Value[S]](ctx context.Context, opts ...Option) (*ZSet[S], error) {
	o := defaultOptions()
	for _, apply := range opts {
		apply(&o)
	}

	logger := newLogger(o.logger, o.name)
	metrics := newMetricsSet(o.registerer, o.name)

	var d dict[S]
	if o.store == nil {
		if o.errorIfExists {
			return nil, wrapf(ErrIncompatible, "zset: error_if_exists has no effect without a Store")
		}
		d = newMemDict[S]()
	} else {
		pd, err := openPersistDict[S](ctx, o.store, o.bulkWriteSize, o.errorIfExists, metrics)
		if err != nil {
			return nil, wrapf(err, "zset: open backend")
		}
		d = pd
	}

	root, err := d.NewKeyBuffer(ctx, rootKey, true)
	if err != nil {
		return nil, wrapf(err, "zset: allocate root record")
	}

	z := &ZSet[S]{dict: d, root: root, opts: o, logger: logger, metrics: metrics}

	switch root.state {
	case lruRecovery:
		logger.Debug("recovering from existing store")
		if err := z.recover(ctx); err != nil {
			return nil, wrapf(err, "zset: recovery failed")
		}
		logger.Debug("recovery complete", "cardinality", z.card, "max_level", z.maxLevel)
	default:
		root.state = lruOK
		root.isRoot = true
	}

	if err := d.Persist(ctx, root); err != nil {
		return nil, wrapf(err, "zset: persist root record")
	}
	z.metrics.setCardinality(z.card)
	return z, nil
}

// Close flushes any pending writes and releases the backing store.
// Safe to call on an in-memory ZSet (it is then a no-op).
func (z *ZSet[S]) Close(ctx context.Context) error {
	if z == nil {
		panic("zset: Close on nil ZSet")
	}
	return wrapf(z.dict.Close(ctx), "zset: close")
}

// Zcard returns the number of members.
func (z *ZSet[S]) Zcard() uint32 {
	if z == nil {
		panic("zset: Zcard on nil ZSet")
	}
	return z.card
}

func validateMember(member string, maxLen int) error {
	if member == "" {
		return ErrMemberEmpty
	}
	if len(member) > maxLen {
		return ErrMemberTooLong
	}
	return nil
}

func scoreEqual[S Value[S]](a, b S) bool {
	return !a.Less(b) && !b.Less(a)
}

func reverseScoredMembers[S Value[S]](s []ScoredMember[S]) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
