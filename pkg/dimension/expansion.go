package dimension

import "github.com/gridcube/gridcube/pkg/gridcube"

// LeafExpansion returns the memoized set of (base member, aggregate weight)
// pairs reachable from id, sorted ascending by base id (spec §4.1). A base
// member expands to itself with weight +1.0. Diamond hierarchies contribute
// a summed weight for any base reachable by more than one path.
func (d *Dimension) LeafExpansion(id gridcube.MemberID) ([]LeafWeight, error) {
	d.expMu.RLock()
	if cached, ok := d.expansions[id]; ok {
		d.expMu.RUnlock()
		return cached, nil
	}
	d.expMu.RUnlock()

	d.mu.RLock()
	if _, ok := d.members[id]; !ok {
		d.mu.RUnlock()
		return nil, gridcube.UnknownMemberError{Name: "<id>"}
	}
	expansion := d.computeExpansion(id)
	d.mu.RUnlock()

	d.expMu.Lock()
	if d.expansions == nil {
		d.expansions = map[gridcube.MemberID][]LeafWeight{}
	}
	d.expansions[id] = expansion
	d.expMu.Unlock()
	return expansion, nil
}

// computeExpansion performs the weighted DFS described by spec §4.1. Must be
// called with d.mu held for reading.
func (d *Dimension) computeExpansion(id gridcube.MemberID) []LeafWeight {
	sums := map[gridcube.MemberID]gridcube.Weight{}
	type frame struct {
		id     int64
		weight gridcube.Weight
	}
	stack := []frame{{id: int64(id), weight: 1.0}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		children := d.graph.From(f.id)
		if children.Len() == 0 {
			sums[gridcube.MemberID(f.id)] += f.weight
			continue
		}
		for children.Next() {
			c := children.Node().ID()
			w, _ := d.graph.Weight(f.id, c)
			stack = append(stack, frame{id: c, weight: f.weight * w})
		}
	}
	out := make([]LeafWeight, 0, len(sums))
	for base, w := range sums {
		out = append(out, LeafWeight{Base: base, Weight: w})
	}
	sortLeafWeights(out)
	return out
}
