package zset

import "github.com/fxamacker/cbor/v2"

// wireTower is the on-the-wire shape of one tower entry: plain enough
// for cbor to round-trip without needing to know anything about S's
// internal layout beyond what Value[S] already exposes through
// encoding/cbor's reflection-based struct codec.
type wireTower[S Value[S]] struct {
	Member string `cbor:"m"`
	Score  S      `cbor:"s"`
	Span   uint32 `cbor:"p"`
}

// wireNode is the header-plus-tower-array record spec.md §4.1
// describes: lru_state, level and the tower. There is no separate
// score-size tag; cbor encodes S directly. Score is encoded for every
// record, the root included (where it is S's zero value).
type wireNode[S Value[S]] struct {
	Member  string            `cbor:"k"`
	Score   S                 `cbor:"v"`
	IsRoot  bool              `cbor:"r"`
	Level   int               `cbor:"l"`
	State   lruState          `cbor:"t"`
	Forward []wireTower[S]    `cbor:"f"`
}

var codecOpts = cbor.CanonicalEncOptions()

// encodeNode serializes n to its durable byte representation. The
// encoding is canonical CBOR, so the same logical record always
// encodes to identical bytes.
func encodeNode[S Value[S]](n *node[S]) ([]byte, error) {
	em, err := codecOpts.EncMode()
	if err != nil {
		return nil, wrapf(err, "zset: build cbor encoder")
	}
	w := wireNode[S]{
		Member: n.member,
		Score:  n.score,
		IsRoot: n.isRoot,
		Level:  n.level,
		State:  n.state,
	}
	if n.level > 0 {
		w.Forward = make([]wireTower[S], n.level)
		for i := 0; i < n.level; i++ {
			w.Forward[i] = wireTower[S]{
				Member: n.forward[i].member,
				Score:  n.forward[i].score,
				Span:   n.forward[i].span,
			}
		}
	}
	b, err := em.Marshal(w)
	if err != nil {
		return nil, wrapf(err, "zset: encode node %q", n.member)
	}
	return b, nil
}

// decodeNode reconstructs a node from bytes previously produced by
// encodeNode. The returned node's state is always lruOK: anything
// freshly pulled from the store is, by definition, already persisted.
func decodeNode[S Value[S]](b []byte) (*node[S], error) {
	var w wireNode[S]
	if err := cbor.Unmarshal(b, &w); err != nil {
		return nil, wrapf(err, "zset: decode node record")
	}
	n := &node[S]{
		member:  w.Member,
		score:   w.Score,
		isRoot:  w.IsRoot,
		level:   w.Level,
		state:   lruOK,
		forward: make([]towerEntry[S], len(w.Forward)),
	}
	for i, t := range w.Forward {
		n.forward[i] = towerEntry[S]{member: t.Member, score: t.Score, span: t.Span}
	}
	return n, nil
}
