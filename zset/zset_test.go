package zset

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
)

// zsetBackends is the fixture every scenario test runs against: an
// in-memory dict, and a persistent dict fronting an in-memory Store.
// Identical results across both are the "store-backend parity"
// property (SPEC_FULL.md §8 property 8).
func zsetBackends(t *testing.T, opts ...Option) map[string]*ZSet[Int64] {
	ctx := context.Background()
	out := make(map[string]*ZSet[Int64], 2)

	memOpts := append([]Option{WithMaxMemberLen(10)}, opts...)
	z, err := New[Int64](ctx, memOpts...)
	if err != nil {
		t.Fatalf("New (in-memory): %v", err)
	}
	out["memdict"] = z

	storeOpts := append([]Option{WithMaxMemberLen(10), WithStore(NewMemoryStore())}, opts...)
	zp, err := New[Int64](ctx, storeOpts...)
	if err != nil {
		t.Fatalf("New (persistent/memory store): %v", err)
	}
	out["persist-memory"] = zp

	return out
}

func forEachBackend(t *testing.T, opts []Option, run func(t *testing.T, z *ZSet[Int64])) {
	for name, z := range zsetBackends(t, opts...) {
		t.Run(name, func(t *testing.T) {
			run(t, z)
		})
	}
}

// S1: insert (i, i*i-100*i) for i=1..1000.
func TestScenarioS1(t *testing.T) {
	forEachBackend(t, nil, func(t *testing.T, z *ZSet[Int64]) {
		ctx := context.Background()
		for i := 1; i <= 1000; i++ {
			score := Int64(i*i - 100*i)
			if _, err := z.Zadd(ctx, fmt.Sprint(i), score); err != nil {
				t.Fatalf("Zadd(%d): %v", i, err)
			}
		}

		score, found, err := z.Zscore(ctx, "101")
		if err != nil || !found || score != 101 {
			t.Fatalf("Zscore(101) = (%v,%v,%v), want (101,true,nil)", score, found, err)
		}

		rank, err := z.Zrank(ctx, "1000")
		if err != nil || rank != 1000 {
			t.Fatalf("Zrank(1000) = (%v,%v), want (1000,nil)", rank, err)
		}

		got, err := z.Zrange(ctx, 1, 3, 0)
		if err != nil {
			t.Fatalf("Zrange: %v", err)
		}
		wantMembers := []string{"50", "49", "51"}
		wantScores := []Int64{-2500, -2499, -2499}
		if len(got) != 3 {
			t.Fatalf("Zrange(1,3) len = %d, want 3", len(got))
		}
		for i, sm := range got {
			if sm.Member != wantMembers[i] || sm.Score != wantScores[i] {
				t.Errorf("Zrange(1,3)[%d] = (%q,%v), want (%q,%v)", i, sm.Member, sm.Score, wantMembers[i], wantScores[i])
			}
		}
	})
}

// S2: insert (%06d, -12345678) for j=1..10000 in shuffled order.
func TestScenarioS2(t *testing.T) {
	forEachBackend(t, nil, func(t *testing.T, z *ZSet[Int64]) {
		ctx := context.Background()
		order := rand.Perm(10000)
		for _, j := range order {
			member := fmt.Sprintf("%06d", j+1)
			if _, err := z.Zadd(ctx, member, -12345678); err != nil {
				t.Fatalf("Zadd(%s): %v", member, err)
			}
		}

		got, err := z.Zrangebylex(ctx, "", true, "000010", false, 0)
		if err != nil {
			t.Fatalf("Zrangebylex: %v", err)
		}
		if len(got) != 9 {
			t.Fatalf("Zrangebylex(\"\",incl,\"000010\",excl) len = %d, want 9", len(got))
		}
		for i := 0; i < 9; i++ {
			want := fmt.Sprintf("%06d", i+1)
			if got[i].Member != want {
				t.Errorf("member[%d] = %q, want %q", i, got[i].Member, want)
			}
		}

		got2, err := z.Zrangebylex(ctx, "002045", false, "002325", true, 0)
		if err != nil {
			t.Fatalf("Zrangebylex: %v", err)
		}
		if len(got2) != 280 {
			t.Fatalf("Zrangebylex(002045,excl,002325,incl) len = %d, want 280", len(got2))
		}
	})
}

// S3: S2 followed by Zremrangebylex("009600",excl,"009700",incl).
func TestScenarioS3(t *testing.T) {
	forEachBackend(t, nil, func(t *testing.T, z *ZSet[Int64]) {
		ctx := context.Background()
		for j := 1; j <= 10000; j++ {
			member := fmt.Sprintf("%06d", j)
			if _, err := z.Zadd(ctx, member, -12345678); err != nil {
				t.Fatalf("Zadd(%s): %v", member, err)
			}
		}

		removed, err := z.Zremrangebylex(ctx, "009600", false, "009700", true)
		if err != nil {
			t.Fatalf("Zremrangebylex: %v", err)
		}
		if removed != 100 {
			t.Fatalf("Zremrangebylex removed = %d, want 100", removed)
		}

		got, err := z.Zrangebylex(ctx, "009500", true, "1000000", false, 0)
		if err != nil {
			t.Fatalf("Zrangebylex: %v", err)
		}
		if len(got) != 401 {
			t.Fatalf("Zrangebylex(009500,incl,1000000,excl) len = %d, want 401", len(got))
		}
		for _, sm := range got {
			if sm.Member > "009600" && sm.Member <= "009700" {
				t.Fatalf("member %q should have been removed", sm.Member)
			}
		}
	})
}

// S4: insert (str(i), 3i-5) for i=1..100000.
func TestScenarioS4(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping 100k-element scenario in short mode")
	}
	forEachBackend(t, nil, func(t *testing.T, z *ZSet[Int64]) {
		ctx := context.Background()
		for i := 1; i <= 100000; i++ {
			if _, err := z.Zadd(ctx, fmt.Sprint(i), Int64(3*i-5)); err != nil {
				t.Fatalf("Zadd(%d): %v", i, err)
			}
		}

		got, err := z.Zrange(ctx, 0, 10, 0)
		if err != nil {
			t.Fatalf("Zrange: %v", err)
		}
		if len(got) != 10 {
			t.Fatalf("Zrange(0,10) len = %d, want 10", len(got))
		}

		got2, err := z.Zrange(ctx, 5050, 506, 0)
		if err != nil {
			t.Fatalf("Zrange: %v", err)
		}
		if len(got2) != 0 {
			t.Fatalf("Zrange(5050,506) len = %d, want 0 (start past stop)", len(got2))
		}

		removed, err := z.Zremrangebyrank(ctx, 11, 20)
		if err != nil {
			t.Fatalf("Zremrangebyrank: %v", err)
		}
		if removed != 10 {
			t.Fatalf("Zremrangebyrank removed = %d, want 10", removed)
		}

		got3, err := z.Zrange(ctx, 5, 25, 0)
		if err != nil {
			t.Fatalf("Zrange: %v", err)
		}
		if len(got3) != 21 {
			t.Fatalf("Zrange(5,25) len = %d, want 21", len(got3))
		}
		for i := 1; i < len(got3); i++ {
			a, errA := asciiAtoi(got3[i-1].Member)
			b, errB := asciiAtoi(got3[i].Member)
			if errA != nil || errB != nil {
				continue
			}
			gap := b - a
			if gap != 1 && gap != 11 {
				t.Errorf("unexpected gap between %q and %q: %d", got3[i-1].Member, got3[i].Member, gap)
			}
		}
	})
}

// S5: intersection and union of two overlapping sets.
func TestScenarioS5(t *testing.T) {
	ctx := context.Background()
	a, err := New[Int64](ctx, WithMaxMemberLen(10))
	if err != nil {
		t.Fatalf("New a: %v", err)
	}
	b, err := New[Int64](ctx, WithMaxMemberLen(10))
	if err != nil {
		t.Fatalf("New b: %v", err)
	}

	for i := 1; i <= 12; i++ {
		if i%2 == 0 {
			if _, err := a.Zadd(ctx, fmt.Sprintf("%06d", i), Int64(i)); err != nil {
				t.Fatalf("Zadd a: %v", err)
			}
		}
		if i%3 == 0 {
			if _, err := b.Zadd(ctx, fmt.Sprintf("%06d", i), Int64(i)); err != nil {
				t.Fatalf("Zadd b: %v", err)
			}
		}
	}

	inter, err := a.Zinterstore(ctx, b, WithMaxMemberLen(10))
	if err != nil {
		t.Fatalf("Zinterstore: %v", err)
	}
	if inter.Zcard() != 2 {
		t.Fatalf("Zinterstore cardinality = %d, want 2", inter.Zcard())
	}
	wantInter := map[string]Int64{"000006": 12, "000012": 24}
	for member, want := range wantInter {
		score, found, err := inter.Zscore(ctx, member)
		if err != nil || !found || score != want {
			t.Errorf("intersection Zscore(%s) = (%v,%v,%v), want (%v,true,nil)", member, score, found, err, want)
		}
	}

	union, err := a.Zunionstore(ctx, b, WithMaxMemberLen(10))
	if err != nil {
		t.Fatalf("Zunionstore: %v", err)
	}
	evens := map[int]bool{}
	threes := map[int]bool{}
	all := map[int]bool{}
	for i := 1; i <= 12; i++ {
		if i%2 == 0 {
			evens[i] = true
			all[i] = true
		}
		if i%3 == 0 {
			threes[i] = true
			all[i] = true
		}
	}
	if int(union.Zcard()) != len(all) {
		t.Fatalf("Zunionstore cardinality = %d, want %d", union.Zcard(), len(all))
	}
	for i := range all {
		member := fmt.Sprintf("%06d", i)
		want := Int64(0)
		if evens[i] {
			want += Int64(i)
		}
		if threes[i] {
			want += Int64(i)
		}
		score, found, err := union.Zscore(ctx, member)
		if err != nil || !found || score != want {
			t.Errorf("union Zscore(%s) = (%v,%v,%v), want (%v,true,nil)", member, score, found, err, want)
		}
	}
}

// S6: 100k Zincrby calls against a reference accumulator.
func TestScenarioS6(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping 100k-increment scenario in short mode")
	}
	forEachBackend(t, nil, func(t *testing.T, z *ZSet[Int64]) {
		ctx := context.Background()
		reference := make(map[string]Int64)
		keys := []string{"k1", "k2", "k3", "k4", "k5"}
		rng := rand.New(rand.NewSource(1))

		for i := 0; i < 100000; i++ {
			key := keys[rng.Intn(len(keys))]
			delta := Int64(rng.Intn(21) - 10)
			reference[key] += delta
			if _, err := z.Zincrby(ctx, key, delta); err != nil {
				t.Fatalf("Zincrby: %v", err)
			}
		}

		if int(z.Zcard()) != len(reference) {
			t.Fatalf("Zcard = %d, want %d", z.Zcard(), len(reference))
		}
		for key, want := range reference {
			got, found, err := z.Zscore(ctx, key)
			if err != nil || !found || got != want {
				t.Errorf("Zscore(%s) = (%v,%v,%v), want (%v,true,nil)", key, got, found, err, want)
			}
		}
	})
}

func asciiAtoi(s string) (int, error) {
	var n int
	_, err := fmt.Sscanf(s, "%d", &n)
	return n, err
}
