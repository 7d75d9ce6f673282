package zset

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
)

// TestRankBijectivity is testable property 2: for every rank r in
// [1,card], findByRank(r) returns the node whose own rank is r.
func TestRankBijectivity(t *testing.T) {
	ctx := context.Background()
	z, err := New[Int64](ctx, WithMaxMemberLen(10))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	const n = 500
	members := make([]string, 0, n)
	for i := 0; i < n; i++ {
		member := fmt.Sprintf("m%04d", i)
		members = append(members, member)
	}
	rand.Shuffle(len(members), func(i, j int) { members[i], members[j] = members[j], members[i] })
	for i, member := range members {
		if _, err := z.Zadd(ctx, member, Int64(i)); err != nil {
			t.Fatalf("Zadd(%s): %v", member, err)
		}
	}

	for r := uint32(1); r <= n; r++ {
		node, err := z.findByRank(ctx, r)
		if err != nil {
			t.Fatalf("findByRank(%d): %v", r, err)
		}
		if node == nil {
			t.Fatalf("findByRank(%d) = nil", r)
		}
		gotRank, err := z.Zrank(ctx, node.member)
		if err != nil {
			t.Fatalf("Zrank(%s): %v", node.member, err)
		}
		if gotRank != r {
			t.Errorf("findByRank(%d).member=%q has Zrank=%d, want %d", r, node.member, gotRank, r)
		}
	}
}

// TestSpanCorrectness is testable property 3: for every level i and
// node n, summing span_i from the root along level i reaching n equals
// Zrank(n.member).
func TestSpanCorrectness(t *testing.T) {
	ctx := context.Background()
	z, err := New[Int64](ctx, WithMaxMemberLen(10))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	const n = 300
	for i := 0; i < n; i++ {
		member := fmt.Sprintf("m%04d", i)
		if _, err := z.Zadd(ctx, member, Int64(rand.Intn(n*10))); err != nil {
			t.Fatalf("Zadd(%s): %v", member, err)
		}
	}

	for level := 1; level <= z.root.level; level++ {
		var span uint32
		cur := z.root
		for {
			span += cur.span(level)
			nextMember := cur.forwardMember(level)
			if nextMember == "" {
				break
			}
			next, err := z.dict.Find(ctx, nextMember)
			if err != nil {
				t.Fatalf("dict.Find(%s): %v", nextMember, err)
			}
			rank, err := z.Zrank(ctx, nextMember)
			if err != nil {
				t.Fatalf("Zrank(%s): %v", nextMember, err)
			}
			if span != rank {
				t.Errorf("level %d: span sum to %q = %d, want Zrank = %d", level, nextMember, span, rank)
			}
			cur = next
		}
	}
}

// TestRangeRankConsistency is testable property 4: Zrange(a,b) equals
// the sorted members with ranks in [a,b], truncated by limit.
func TestRangeRankConsistency(t *testing.T) {
	ctx := context.Background()
	z, err := New[Int64](ctx, WithMaxMemberLen(10))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	const n = 200
	type pair struct {
		member string
		score  Int64
	}
	all := make([]pair, 0, n)
	for i := 0; i < n; i++ {
		member := fmt.Sprintf("m%04d", i)
		score := Int64(rand.Intn(n * 5))
		all = append(all, pair{member, score})
		if _, err := z.Zadd(ctx, member, score); err != nil {
			t.Fatalf("Zadd(%s): %v", member, err)
		}
	}

	sortPairs := append([]pair(nil), all...)
	for i := 0; i < len(sortPairs); i++ {
		for j := i + 1; j < len(sortPairs); j++ {
			a, b := sortPairs[i], sortPairs[j]
			if cmpScoreMember(b.score, b.member, a.score, a.member) < 0 {
				sortPairs[i], sortPairs[j] = sortPairs[j], sortPairs[i]
			}
		}
	}

	got, err := z.Zrange(ctx, 1, uint32(n), 0)
	if err != nil {
		t.Fatalf("Zrange: %v", err)
	}
	if len(got) != n {
		t.Fatalf("Zrange(1,%d) len = %d, want %d", n, len(got), n)
	}
	for i, sm := range got {
		if sm.Member != sortPairs[i].member || sm.Score != sortPairs[i].score {
			t.Errorf("Zrange[%d] = (%q,%v), want (%q,%v)", i, sm.Member, sm.Score, sortPairs[i].member, sortPairs[i].score)
		}
	}

	limited, err := z.Zrange(ctx, 1, uint32(n), 5)
	if err != nil {
		t.Fatalf("Zrange with limit: %v", err)
	}
	if len(limited) != 5 {
		t.Fatalf("Zrange(1,%d,limit=5) len = %d, want 5", n, len(limited))
	}
}

// TestCountIdentities is testable property 5.
func TestCountIdentities(t *testing.T) {
	ctx := context.Background()
	z, err := New[Int64](ctx, WithMaxMemberLen(10))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	const n = 200
	var inRange int
	const min, max = Int64(100), Int64(300)
	for i := 0; i < n; i++ {
		member := fmt.Sprintf("m%04d", i)
		score := Int64(rand.Intn(n * 3))
		if score >= min && score <= max {
			inRange++
		}
		if _, err := z.Zadd(ctx, member, score); err != nil {
			t.Fatalf("Zadd(%s): %v", member, err)
		}
	}

	got, err := z.Zcount(ctx, min, max)
	if err != nil {
		t.Fatalf("Zcount: %v", err)
	}
	if int(got) != inRange {
		t.Fatalf("Zcount(%v,%v) = %d, want %d", min, max, got, inRange)
	}

	lexCount, err := z.Zlexcount(ctx, "m0050", true, "m0150", true)
	if err != nil {
		t.Fatalf("Zlexcount: %v", err)
	}
	lexRange, err := z.Zrangebylex(ctx, "m0050", true, "m0150", true, 0)
	if err != nil {
		t.Fatalf("Zrangebylex: %v", err)
	}
	if int(lexCount) != len(lexRange) {
		t.Fatalf("Zlexcount = %d, want len(Zrangebylex) = %d", lexCount, len(lexRange))
	}
}

// TestReferenceEquivalence is testable property 1: random interleaving
// of Zadd/Zrem against a ZSet and a reference map stays consistent;
// the full check runs after every Zadd step.
func TestReferenceEquivalence(t *testing.T) {
	ctx := context.Background()
	z, err := New[Int64](ctx, WithMaxMemberLen(10))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	reference := make(map[string]Int64)
	rng := rand.New(rand.NewSource(7))
	pool := make([]string, 64)
	for i := range pool {
		pool[i] = fmt.Sprintf("m%03d", i)
	}

	for step := 0; step < 2000; step++ {
		member := pool[rng.Intn(len(pool))]
		if rng.Intn(3) == 0 {
			if _, ok := reference[member]; ok {
				delete(reference, member)
				if _, err := z.Zrem(ctx, member); err != nil {
					t.Fatalf("Zrem(%s): %v", member, err)
				}
			}
			continue
		}
		score := Int64(rng.Intn(1000))
		reference[member] = score
		if _, err := z.Zadd(ctx, member, score); err != nil {
			t.Fatalf("Zadd(%s): %v", member, err)
		}

		if int(z.Zcard()) != len(reference) {
			t.Fatalf("step %d: Zcard = %d, want %d", step, z.Zcard(), len(reference))
		}

		sorted := sortedMembers(reference)
		for idx, m := range sorted {
			got, found, err := z.Zscore(ctx, m)
			if err != nil || !found || got != reference[m] {
				t.Fatalf("step %d: Zscore(%s) = (%v,%v,%v), want (%v,true,nil)", step, m, got, found, err, reference[m])
			}
			rank, err := z.Zrank(ctx, m)
			if err != nil || rank != uint32(idx+1) {
				t.Fatalf("step %d: Zrank(%s) = (%v,%v), want (%d,nil)", step, m, rank, err, idx+1)
			}
			revrank, err := z.Zrevrank(ctx, m)
			if err != nil || revrank != uint32(len(sorted)-idx) {
				t.Fatalf("step %d: Zrevrank(%s) = (%v,%v), want (%d,nil)", step, m, revrank, err, len(sorted)-idx)
			}
		}
	}
}

func sortedMembers(reference map[string]Int64) []string {
	type pair struct {
		member string
		score  Int64
	}
	pairs := make([]pair, 0, len(reference))
	for m, s := range reference {
		pairs = append(pairs, pair{m, s})
	}
	for i := 0; i < len(pairs); i++ {
		for j := i + 1; j < len(pairs); j++ {
			a, b := pairs[i], pairs[j]
			if cmpScoreMember(b.score, b.member, a.score, a.member) < 0 {
				pairs[i], pairs[j] = pairs[j], pairs[i]
			}
		}
	}
	out := make([]string, len(pairs))
	for i, p := range pairs {
		out[i] = p.member
	}
	return out
}
