package zset

import "context"

// recover implements C7: the root record was loaded from a non-empty
// store (state lruRecovery). Its stored level becomes max_level, and
// cardinality is reconstructed by a dry traversal summing spans along
// every level, grounded on zset.h's FindLast. Once done the root is
// marked lruOK.
func (z *ZSet[S]) recover(ctx context.Context) error {
	z.maxLevel = z.root.level
	card, err := z.findLast(ctx)
	if err != nil {
		return err
	}
	z.card = card
	z.root.state = lruOK
	return nil
}

// findLast walks every level of the root's forward chain, summing
// spans, to recompute cardinality without trusting any separately
// stored counter (none is persisted; card is derived state).
func (z *ZSet[S]) findLast(ctx context.Context) (uint32, error) {
	var total uint32
	ms := z.root
	for i := z.maxLevel; i > 0; i-- {
		for {
			mbr := ms.forwardMember(i)
			if mbr == "" {
				break
			}
			total += ms.span(i)
			next, err := z.dict.Find(ctx, mbr)
			if err != nil {
				return 0, err
			}
			ms = next
		}
	}
	return total, nil
}
