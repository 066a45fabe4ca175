// Package aggregate implements the Aggregation Engine of spec §4.4: a pure
// read path that sums the weighted Cartesian product of per-dimension leaf
// expansions, driven by whichever dimension's expansion is most selective
// against the fact store's inverted index.
package aggregate

import (
	"sort"

	"github.com/gridcube/gridcube/pkg/dimension"
	"github.com/gridcube/gridcube/pkg/gridcube"
	"github.com/gridcube/gridcube/pkg/store"
)

// BaseCellFunc resolves the value that should contribute for one visited
// stored base address, given the raw stored value. It is the "cell_value"
// callback of spec §4.4 step 2: the cube facade wires this to consult the
// Rules Engine for BASE_LEVEL/ALL_LEVELS rules before falling back to the
// stored value.
type BaseCellFunc func(addr store.Address, stored float64) gridcube.Result

// Aggregate evaluates a general address whose coordinates are each a single
// (possibly aggregated) member: leaf-expand every coordinate, iterate only
// the stored facts in the resulting area, and sum weighted contributions.
// coords[d] must be the member id for dimension dims[d].
func Aggregate(dims []*dimension.Dimension, coords []gridcube.MemberID, fstore *store.Store, cellValue BaseCellFunc) (gridcube.Result, error) {
	arity := len(dims)
	expansions := make([][]dimension.LeafWeight, arity)
	weightOf := make([]map[gridcube.MemberID]gridcube.Weight, arity)
	area := make([]map[gridcube.MemberID]bool, arity)

	for d := 0; d < arity; d++ {
		exp, err := dims[d].LeafExpansion(coords[d])
		if err != nil {
			return gridcube.Result{}, err
		}
		expansions[d] = exp
		w := make(map[gridcube.MemberID]gridcube.Weight, len(exp))
		allowed := make(map[gridcube.MemberID]bool, len(exp))
		for _, lw := range exp {
			w[lw.Base] = lw.Weight
			allowed[lw.Base] = true
		}
		weightOf[d] = w
		area[d] = allowed
		if len(exp) == 0 {
			return gridcube.ValueResult(0.0), nil // empty expansion, no facts possible
		}
	}

	facts := fstore.IterArea(area)
	sort.Slice(facts, func(i, j int) bool { return facts[i].Address.Key() < facts[j].Address.Key() })

	sum := 0.0
	var firstCause error
	for _, f := range facts {
		weight := 1.0
		for d, id := range f.Address {
			weight *= weightOf[d][id]
		}
		cell := cellValue(f.Address, f.Value)
		switch {
		case cell.IsValue:
			sum += weight * cell.Value
		case cell.IsError():
			if firstCause == nil {
				firstCause = cell.Cause
				if firstCause == nil {
					firstCause = gridcube.RuleError{Rule: "base-level", Cause: errSentinelMarker(cell.Sentinel)}
				}
			}
		default: // None: additive identity, skipped
		}
	}

	if firstCause != nil {
		return gridcube.ErrResult(firstCause), nil
	}
	return gridcube.ValueResult(sum), nil
}

type sentinelError gridcube.Sentinel

func (e sentinelError) Error() string { return gridcube.Sentinel(e).String() }

func errSentinelMarker(s gridcube.Sentinel) error { return sentinelError(s) }
