package zset

import (
	"context"
	"math/rand"
)

// randLevel draws a new node's tower height: start at 1, keep
// climbing with probability p, capped at maxLevel. Grounded on
// zerocopyskiplist.go's randomLevel, generalized from its fixed P=0.25
// to the configured probability.
func (z *ZSet[S]) randLevel() int {
	level := 1
	for rand.Float64() < z.opts.p && level < z.opts.maxLevel {
		level++
	}
	return level
}

// findByLex returns the predecessor of the first member >= probe: the
// node whose level-1 forward member is the first one not less than
// probe (or empty, if none qualifies).
func (z *ZSet[S]) findByLex(ctx context.Context, member string) (*node[S], error) {
	ms := z.root
	for i := z.maxLevel; i > 0; i-- {
		for ms.compareMember(i, member) < 0 {
			next, err := z.dict.Find(ctx, ms.forwardMember(i))
			if err != nil {
				return nil, err
			}
			ms = next
		}
	}
	return ms, nil
}

// findByScore is findByLex's score-only counterpart.
func (z *ZSet[S]) findByScore(ctx context.Context, score S) (*node[S], error) {
	ms := z.root
	for i := z.maxLevel; i > 0; i-- {
		for ms.compareScore(i, score) < 0 {
			next, err := z.dict.Find(ctx, ms.forwardMember(i))
			if err != nil {
				return nil, err
			}
			ms = next
		}
	}
	return ms, nil
}

// findByRank returns the node at 1-based rank, the root for rank 0,
// or nil if rank exceeds cardinality.
func (z *ZSet[S]) findByRank(ctx context.Context, rank uint32) (*node[S], error) {
	if rank > z.card {
		return nil, nil
	}
	if rank == 0 {
		return z.root, nil
	}
	ms := z.root
	for i := z.maxLevel; i > 0; i-- {
		for {
			mbr := ms.forwardMember(i)
			if mbr == "" {
				break
			}
			step := ms.span(i)
			if step > rank {
				break
			}
			next, err := z.dict.Find(ctx, mbr)
			if err != nil {
				return nil, err
			}
			ms = next
			rank -= step
			if rank == 0 {
				return ms, nil
			}
		}
	}
	return nil, nil
}

// implZadd inserts a brand-new member at a freshly drawn level,
// splicing its tower into every level it participates in and bumping
// spans above it. Grounded on zset.h's ImplZadd.
func (z *ZSet[S]) implZadd(ctx context.Context, member string, score S) error {
	randLevel := z.randLevel()
	if randLevel > z.root.level {
		z.root.growTo(randLevel)
	}

	prev := make([]*node[S], z.opts.maxLevel+1)
	prevStep := make([]uint32, z.opts.maxLevel+1)
	ms := z.root
	var totalStep uint32
	for i := z.maxLevel; i > 0; i-- {
		for ms.compare(i, score, member) < 0 {
			totalStep += ms.span(i)
			next, err := z.dict.Find(ctx, ms.forwardMember(i))
			if err != nil {
				return err
			}
			ms = next
		}
		prevStep[i] = totalStep
		prev[i] = ms
	}

	nn, err := z.dict.NewKeyBuffer(ctx, member, false)
	if err != nil {
		return err
	}
	nn.member = member
	nn.score = score
	nn.growTo(randLevel)

	for i := 1; i <= randLevel; i++ {
		if i <= z.maxLevel {
			mbr := prev[i].forwardMember(i)
			leftSize := prevStep[1] - prevStep[i]
			if mbr != "" {
				nn.setForwardMember(i, mbr)
				nn.setForwardScore(i, prev[i].forwardScore(i))
				nn.setSpan(i, prev[i].span(i)-leftSize)
			}
			prev[i].setSpan(i, leftSize+1)
		} else {
			prev[i] = z.root
			prev[i].setSpan(i, prevStep[1]+1)
		}
		prev[i].setForwardMember(i, member)
		prev[i].setForwardScore(i, score)
	}
	updatedLevel := randLevel
	for i := randLevel + 1; i <= z.maxLevel; i++ {
		if prev[i].forwardMember(i) == "" {
			break
		}
		prev[i].incSpan(i)
		updatedLevel = i
	}

	for i := 1; i <= updatedLevel; i++ {
		if i == 1 || prev[i] != prev[i-1] {
			if err := z.dict.BatchAdd(ctx, prev[i]); err != nil {
				return err
			}
		}
	}
	if err := z.dict.BatchAdd(ctx, nn); err != nil {
		return err
	}

	z.card++
	if randLevel > z.maxLevel {
		z.maxLevel = randLevel
	}
	z.root.level = z.maxLevel
	z.metrics.setCardinality(z.card)
	return z.dict.BatchPersist(ctx, false)
}

// implZcount counts members whose score is below (or at-or-below, if
// equalOk) the probe by accumulating spans along the traversal path.
func (z *ZSet[S]) implZcount(ctx context.Context, score S, equalOk bool) (uint32, error) {
	cmpBound := -1
	if equalOk {
		cmpBound = 0
	}
	ms := z.root
	var total uint32
	for i := z.maxLevel; i > 0; i-- {
		for ms.compareScore(i, score) <= cmpBound {
			total += ms.span(i)
			next, err := z.dict.Find(ctx, ms.forwardMember(i))
			if err != nil {
				return 0, err
			}
			ms = next
		}
	}
	return total, nil
}

// implZrank sums spans along the path to member, returning its
// 1-based rank, or 0 if the traversal never lands exactly on it.
func (z *ZSet[S]) implZrank(ctx context.Context, member string, score S) (uint32, error) {
	ms := z.root
	var total uint32
	for i := z.maxLevel; i > 0; i-- {
		for ms.compare(i, score, member) <= 0 {
			total += ms.span(i)
			next, err := z.dict.Find(ctx, ms.forwardMember(i))
			if err != nil {
				return 0, err
			}
			ms = next
		}
		if ms.compareSelf(score, member) == 0 {
			return total, nil
		}
	}
	return 0, nil
}

// implZrem locates member by (score, member), splices it out of every
// level it participates in, shrinking spans above it, and erases its
// record. Grounded on zset.h's ImplZrem.
func (z *ZSet[S]) implZrem(ctx context.Context, member string, score S) error {
	prev := make([]*node[S], z.opts.maxLevel+1)
	ms := z.root
	cmp := -1
	for i := z.maxLevel; i > 0; i-- {
		for {
			cmp = ms.compare(i, score, member)
			if cmp >= 0 {
				break
			}
			next, err := z.dict.Find(ctx, ms.forwardMember(i))
			if err != nil {
				return err
			}
			ms = next
		}
		prev[i] = ms
	}
	if cmp != 0 {
		return nil
	}

	target, err := z.dict.Find(ctx, ms.forwardMember(1))
	if err != nil {
		return err
	}
	if target == nil {
		return wrapf(ErrStoreIO, "zset: remove %q: forward link missing", member)
	}
	level := target.level

	for i := 1; i <= level; i++ {
		mbr := target.forwardMember(i)
		if mbr == "" {
			prev[i].setForwardMember(i, "")
			prev[i].setSpan(i, 0)
		} else {
			nxt, err := z.dict.Find(ctx, mbr)
			if err != nil {
				return err
			}
			prev[i].setForwardMember(i, nxt.member)
			prev[i].setForwardScore(i, nxt.score)
			prev[i].setSpan(i, prev[i].span(i)+target.span(i)-1)
		}
	}
	updatedLevel := level
	for i := level + 1; i <= z.maxLevel; i++ {
		if prev[i].forwardMember(i) == "" {
			break
		}
		prev[i].decSpan(i)
		updatedLevel = i
	}

	for i := 1; i <= updatedLevel; i++ {
		if i == 1 || prev[i] != prev[i-1] {
			if err := z.dict.BatchAdd(ctx, prev[i]); err != nil {
				return err
			}
		}
	}
	if err := z.dict.BatchDelete(ctx, target); err != nil {
		return err
	}
	if err := z.dict.Erase(ctx, target); err != nil {
		return err
	}

	z.card--
	for z.maxLevel > 0 && z.root.forwardMember(z.maxLevel) == "" {
		z.maxLevel--
	}
	z.root.level = z.maxLevel
	z.metrics.setCardinality(z.card)
	return z.dict.BatchPersist(ctx, false)
}

// Zadd inserts member with score, or updates its score if already
// present. Reports whether member is new.
func (z *ZSet[S]) Zadd(ctx context.Context, member string, score S) (bool, error) {
	if z == nil {
		panic("zset: Zadd on nil ZSet")
	}
	if err := validateMember(member, z.opts.maxMemberLen); err != nil {
		return false, err
	}
	existing, err := z.dict.Find(ctx, member)
	if err != nil {
		return false, err
	}
	if existing != nil {
		if scoreEqual(existing.score, score) {
			return false, nil
		}
		if err := z.implZrem(ctx, member, existing.score); err != nil {
			return false, err
		}
	}
	if err := z.implZadd(ctx, member, score); err != nil {
		return false, err
	}
	if existing == nil {
		z.dict.ResizeLRU(z.card)
	}
	return existing == nil, nil
}

// Zcount returns the number of members with min <= score <= max.
func (z *ZSet[S]) Zcount(ctx context.Context, min, max S) (uint32, error) {
	if max.Less(min) {
		return 0, nil
	}
	hi, err := z.implZcount(ctx, max, true)
	if err != nil {
		return 0, err
	}
	lo, err := z.implZcount(ctx, min, false)
	if err != nil {
		return 0, err
	}
	return hi - lo, nil
}

// Zincrby adds increment to member's current score (0 if absent,
// which behaves like Zadd for a new member) and returns the result.
func (z *ZSet[S]) Zincrby(ctx context.Context, member string, increment S) (S, error) {
	var zero S
	if member == "" {
		return zero, ErrMemberEmpty
	}
	existing, err := z.dict.Find(ctx, member)
	if err != nil {
		return zero, err
	}
	if existing != nil {
		increment = increment.Add(existing.score)
	}
	if _, err := z.Zadd(ctx, member, increment); err != nil {
		return zero, err
	}
	return increment, nil
}

// Zlexcount counts members whose string falls in [start,stop] (or the
// open/half-open variants selected by withStart/withStop).
func (z *ZSet[S]) Zlexcount(ctx context.Context, start string, withStart bool, stop string, withStop bool) (uint32, error) {
	if z.card == 0 || start > stop {
		return 0, nil
	}
	msStart, err := z.findByLex(ctx, start)
	if err != nil {
		return 0, err
	}
	startMember := msStart.forwardMember(1)
	if startMember == "" {
		return 0, nil
	}
	startFound := startMember == start
	startRank, err := z.Zrank(ctx, startMember)
	if err != nil {
		return 0, err
	}

	stopRank := z.card
	stopFound := false
	msStop, err := z.findByLex(ctx, stop)
	if err != nil {
		return 0, err
	}
	stopMember := msStop.forwardMember(1)
	if stopMember != "" {
		rank, err := z.Zrank(ctx, stopMember)
		if err != nil {
			return 0, err
		}
		if stopMember > stop {
			stopRank = rank - 1
		} else {
			stopRank = rank
		}
		stopFound = stopMember == stop
	}

	count := stopRank + 1 - startRank
	if startFound && !withStart {
		count--
	}
	if stopFound && !withStop {
		count--
	}
	return count, nil
}

// Zpopmax removes and returns the min(count, card) highest-scored
// members, highest first.
func (z *ZSet[S]) Zpopmax(ctx context.Context, count uint32) ([]ScoredMember[S], error) {
	if count == 0 {
		return nil, nil
	}
	var prevRank uint32
	if z.card > count {
		prevRank = z.card - count
	}
	prev, err := z.findByRank(ctx, prevRank)
	if err != nil {
		return nil, err
	}
	popCount := z.card - prevRank
	out := make([]ScoredMember[S], 0, popCount)
	for i := uint32(0); i < popCount; i++ {
		mbr := prev.forwardMember(1)
		scr := prev.forwardScore(1)
		out = append(out, ScoredMember[S]{Member: mbr, Score: scr})
		if err := z.implZrem(ctx, mbr, scr); err != nil {
			return nil, err
		}
	}
	reverseScoredMembers(out)
	return out, nil
}

// Zpopmin removes and returns the min(count, card) lowest-scored
// members, lowest first.
func (z *ZSet[S]) Zpopmin(ctx context.Context, count uint32) ([]ScoredMember[S], error) {
	if count == 0 {
		return nil, nil
	}
	popCount := count
	if z.card < popCount {
		popCount = z.card
	}
	out := make([]ScoredMember[S], 0, popCount)
	for i := uint32(0); i < popCount; i++ {
		mbr := z.root.forwardMember(1)
		scr := z.root.forwardScore(1)
		out = append(out, ScoredMember[S]{Member: mbr, Score: scr})
		if err := z.implZrem(ctx, mbr, scr); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Zrange returns members with ranks in [max(1,start), min(card,stop)]
// ascending, capped at limit (0 = unlimited).
func (z *ZSet[S]) Zrange(ctx context.Context, start, stop, limit uint32) ([]ScoredMember[S], error) {
	if start < 1 {
		start = 1
	}
	if stop > z.card {
		stop = z.card
	}
	if start > stop {
		return nil, nil
	}
	ms, err := z.findByRank(ctx, start-1)
	if err != nil {
		return nil, err
	}
	out := make([]ScoredMember[S], 0, stop-start+1)
	for i := start; i <= stop; i++ {
		next, err := z.dict.Find(ctx, ms.forwardMember(1))
		if err != nil {
			return nil, err
		}
		ms = next
		out = append(out, ScoredMember[S]{Member: ms.member, Score: ms.score})
		if limit != 0 && uint32(len(out)) == limit {
			return out, nil
		}
	}
	return out, nil
}

// Zrangebylex returns members in lex range [start,stop] ascending.
func (z *ZSet[S]) Zrangebylex(ctx context.Context, start string, withStart bool, stop string, withStop bool, limit uint32) ([]ScoredMember[S], error) {
	count, err := z.Zlexcount(ctx, start, withStart, stop, withStop)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	ms, err := z.findByLex(ctx, start)
	if err != nil {
		return nil, err
	}
	if !withStart && ms.forwardMember(1) == start {
		next, err := z.dict.Find(ctx, ms.forwardMember(1))
		if err != nil {
			return nil, err
		}
		ms = next
	}
	if limit != 0 && limit < count {
		count = limit
	}
	out := make([]ScoredMember[S], 0, count)
	for i := uint32(1); i <= count; i++ {
		out = append(out, ScoredMember[S]{Member: ms.forwardMember(1), Score: ms.forwardScore(1)})
		if i < count {
			next, err := z.dict.Find(ctx, ms.forwardMember(1))
			if err != nil {
				return nil, err
			}
			ms = next
		}
	}
	return out, nil
}

// Zrangebyscore returns members with min <= score <= max ascending,
// capped at limit. Checks both the forward-score bound and the
// forward-member-empty tail sentinel, so a tail member whose score
// equals max is neither dropped nor walked past.
func (z *ZSet[S]) Zrangebyscore(ctx context.Context, min, max S, limit uint32) ([]ScoredMember[S], error) {
	if max.Less(min) {
		return nil, nil
	}
	ms, err := z.findByScore(ctx, min)
	if err != nil {
		return nil, err
	}
	var out []ScoredMember[S]
	for {
		mbr := ms.forwardMember(1)
		scr := ms.forwardScore(1)
		if mbr == "" || max.Less(scr) {
			break
		}
		next, err := z.dict.Find(ctx, mbr)
		if err != nil {
			return nil, err
		}
		ms = next
		out = append(out, ScoredMember[S]{Member: mbr, Score: scr})
		if limit != 0 && uint32(len(out)) == limit {
			return out, nil
		}
	}
	return out, nil
}

// Zrank returns member's 1-based rank, or 0 if absent.
func (z *ZSet[S]) Zrank(ctx context.Context, member string) (uint32, error) {
	if member == "" {
		return 0, nil
	}
	ms, err := z.dict.Find(ctx, member)
	if err != nil {
		return 0, err
	}
	if ms == nil {
		return 0, nil
	}
	return z.implZrank(ctx, member, ms.score)
}

// Zrem removes member, reporting whether it was present.
func (z *ZSet[S]) Zrem(ctx context.Context, member string) (bool, error) {
	if member == "" {
		return false, nil
	}
	ms, err := z.dict.Find(ctx, member)
	if err != nil {
		return false, err
	}
	if ms == nil {
		return false, nil
	}
	if err := z.implZrem(ctx, member, ms.score); err != nil {
		return false, err
	}
	return true, nil
}

// Zremrangebylex removes every member in lex range [start,stop].
func (z *ZSet[S]) Zremrangebylex(ctx context.Context, start string, withStart bool, stop string, withStop bool) (uint32, error) {
	removed, err := z.Zlexcount(ctx, start, withStart, stop, withStop)
	if err != nil {
		return 0, err
	}
	if removed == 0 {
		return 0, nil
	}
	ms, err := z.findByLex(ctx, start)
	if err != nil {
		return 0, err
	}
	if !withStart && ms.forwardMember(1) == start {
		next, err := z.dict.Find(ctx, ms.forwardMember(1))
		if err != nil {
			return 0, err
		}
		ms = next
	}
	for i := uint32(0); i < removed; i++ {
		mbr := ms.forwardMember(1)
		scr := ms.forwardScore(1)
		if err := z.implZrem(ctx, mbr, scr); err != nil {
			return 0, err
		}
	}
	return removed, nil
}

// Zremrangebyrank removes every member with rank in [start,stop].
func (z *ZSet[S]) Zremrangebyrank(ctx context.Context, start, stop uint32) (uint32, error) {
	if start < 1 {
		start = 1
	}
	if stop > z.card {
		stop = z.card
	}
	if start > stop {
		return 0, nil
	}
	ms, err := z.findByRank(ctx, start-1)
	if err != nil {
		return 0, err
	}
	for i := start; i <= stop; i++ {
		mbr := ms.forwardMember(1)
		scr := ms.forwardScore(1)
		if err := z.implZrem(ctx, mbr, scr); err != nil {
			return 0, err
		}
	}
	return stop - start + 1, nil
}

// Zremrangebyscore removes every member with min <= score <= max.
func (z *ZSet[S]) Zremrangebyscore(ctx context.Context, min, max S) (uint32, error) {
	if max.Less(min) {
		return 0, nil
	}
	ms, err := z.findByScore(ctx, min)
	if err != nil {
		return 0, err
	}
	var removed uint32
	for {
		mbr := ms.forwardMember(1)
		scr := ms.forwardScore(1)
		if mbr == "" || max.Less(scr) {
			break
		}
		if err := z.implZrem(ctx, mbr, scr); err != nil {
			return 0, err
		}
		removed++
	}
	return removed, nil
}

// Zrevrange is Zrange in descending order: the corrected semantics
// (spec REDESIGN FLAG a) narrow the ascending window to its top
// `limit` ranks, walk it ascending, then reverse.
func (z *ZSet[S]) Zrevrange(ctx context.Context, start, stop, limit uint32) ([]ScoredMember[S], error) {
	if start < 1 {
		start = 1
	}
	if stop > z.card {
		stop = z.card
	}
	if start > stop {
		return nil, nil
	}
	if limit != 0 && stop-start+1 > limit {
		start = stop - limit + 1
	}
	out, err := z.Zrange(ctx, start, stop, 0)
	if err != nil {
		return nil, err
	}
	reverseScoredMembers(out)
	return out, nil
}

// Zrevrangebyscore is Zrangebyscore in descending order. Per the
// corrected semantics (spec REDESIGN FLAG c), limit is applied after
// the reverse: it keeps the `limit` highest-scored members.
func (z *ZSet[S]) Zrevrangebyscore(ctx context.Context, max, min S, limit uint32) ([]ScoredMember[S], error) {
	out, err := z.Zrangebyscore(ctx, min, max, 0)
	if err != nil {
		return nil, err
	}
	reverseScoredMembers(out)
	if limit != 0 && uint32(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Zrevrank returns member's rank counted from the highest score.
func (z *ZSet[S]) Zrevrank(ctx context.Context, member string) (uint32, error) {
	if member == "" {
		return 0, nil
	}
	ms, err := z.dict.Find(ctx, member)
	if err != nil {
		return 0, err
	}
	if ms == nil {
		return 0, nil
	}
	rank, err := z.implZrank(ctx, member, ms.score)
	if err != nil {
		return 0, err
	}
	return z.card + 1 - rank, nil
}

// Zscore returns member's score and whether it was found.
func (z *ZSet[S]) Zscore(ctx context.Context, member string) (S, bool, error) {
	var zero S
	if member == "" {
		return zero, false, nil
	}
	ms, err := z.dict.Find(ctx, member)
	if err != nil {
		return zero, false, err
	}
	if ms == nil {
		return zero, false, nil
	}
	return ms.score, true, nil
}

// Zinterstore computes the score-summed intersection of z and b into
// a freshly opened ZSet (configured by opts), always iterating the
// smaller of the two inputs.
func (z *ZSet[S]) Zinterstore(ctx context.Context, b *ZSet[S], opts ...Option) (*ZSet[S], error) {
	if z.card > b.card {
		return b.Zinterstore(ctx, z, opts...)
	}
	out, err := New[S](ctx, opts...)
	if err != nil {
		return nil, err
	}
	ms := z.root
	for {
		mbr := ms.forwardMember(1)
		if mbr == "" {
			break
		}
		scoreA := ms.forwardScore(1)
		scoreB, found, err := b.Zscore(ctx, mbr)
		if err != nil {
			return nil, err
		}
		if found {
			if _, err := out.Zadd(ctx, mbr, scoreA.Add(scoreB)); err != nil {
				return nil, err
			}
		}
		next, err := z.dict.Find(ctx, mbr)
		if err != nil {
			return nil, err
		}
		ms = next
	}
	return out, nil
}

// Zunionstore computes the score-summed union of z and b into a
// freshly opened ZSet (configured by opts), always iterating the
// smaller of the two inputs first.
func (z *ZSet[S]) Zunionstore(ctx context.Context, b *ZSet[S], opts ...Option) (*ZSet[S], error) {
	if z.card > b.card {
		return b.Zunionstore(ctx, z, opts...)
	}
	out, err := New[S](ctx, opts...)
	if err != nil {
		return nil, err
	}
	ms := z.root
	for {
		mbr := ms.forwardMember(1)
		if mbr == "" {
			break
		}
		score := ms.forwardScore(1)
		if _, err := out.Zadd(ctx, mbr, score); err != nil {
			return nil, err
		}
		next, err := z.dict.Find(ctx, mbr)
		if err != nil {
			return nil, err
		}
		ms = next
	}
	ms = b.root
	for {
		mbr := ms.forwardMember(1)
		if mbr == "" {
			break
		}
		score := ms.forwardScore(1)
		if _, err := out.Zincrby(ctx, mbr, score); err != nil {
			return nil, err
		}
		next, err := b.dict.Find(ctx, mbr)
		if err != nil {
			return nil, err
		}
		ms = next
	}
	return out, nil
}
