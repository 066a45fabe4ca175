// Package resolver implements the Address/Area Resolver of spec §4.3:
// translating a user-facing address into a canonical General Address, and
// user-facing selectors (subset, attribute filter, wildcard, explicit list)
// into per-dimension member sets usable by the aggregation engine and fact
// store.
package resolver

import (
	"path"
	"strings"

	"github.com/gridcube/gridcube/pkg/dimension"
	"github.com/gridcube/gridcube/pkg/gridcube"
	"golang.org/x/exp/slices"
)

// Coordinate is one dimension's slot in a General Address: either a single
// member (possibly aggregated), or a selector-bearing set that defines an
// Area (spec §4.3).
type Coordinate struct {
	DimIndex int
	IsSet    bool
	Members  []gridcube.MemberID // sorted, unique; len==1 for a single coordinate
}

// Address is a fully resolved General Address: one Coordinate per cube
// dimension, in cube order.
type Address struct {
	Coords []Coordinate
}

// IsArea reports whether any coordinate is selector-bearing.
func (a Address) IsArea() bool {
	for _, c := range a.Coords {
		if c.IsSet {
			return true
		}
	}
	return false
}

// Single returns the one member id of coordinate d, valid only when that
// coordinate is not a set (len(Members) == 1 is guaranteed in that case).
func (a Address) Single(d int) gridcube.MemberID { return a.Coords[d].Members[0] }

// Resolver translates address tokens against one cube's ordered dimensions.
type Resolver struct {
	dims  []*dimension.Dimension
	names []string // cube dimension names, same order as dims
}

// New creates a Resolver bound to a cube's dimensions, in cube order.
func New(dims []*dimension.Dimension, names []string) *Resolver {
	return &Resolver{dims: dims, names: names}
}

func (r *Resolver) dimIndexByName(name string) (int, bool) {
	want := strings.ToLower(strings.TrimSpace(name))
	for i, n := range r.names {
		if strings.ToLower(n) == want {
			return i, true
		}
	}
	return -1, false
}

// Resolve parses a mixture of positional and "dim:expr" qualified tokens
// into a canonical Address. Qualified tokens fill their named dimension
// directly; remaining tokens fill the remaining dimensions left-to-right in
// cube order. Dimensions that end up with no token default to their unique
// root, or fail with UnderdefinedAddressError.
func (r *Resolver) Resolve(tokens []string) (Address, error) {
	arity := len(r.dims)
	filled := make([]bool, arity)
	coords := make([]Coordinate, arity)

	var leftover []string
	for _, tok := range tokens {
		dimIdx, expr, qualified := r.splitQualified(tok)
		if !qualified {
			leftover = append(leftover, tok)
			continue
		}
		c, err := r.resolveExpr(dimIdx, expr)
		if err != nil {
			return Address{}, err
		}
		coords[dimIdx] = c
		filled[dimIdx] = true
	}

	ti := 0
	for d := 0; d < arity && ti < len(leftover); d++ {
		if filled[d] {
			continue
		}
		c, err := r.resolveExpr(d, leftover[ti])
		if err != nil {
			return Address{}, err
		}
		coords[d] = c
		filled[d] = true
		ti++
	}

	for d := 0; d < arity; d++ {
		if filled[d] {
			continue
		}
		root, ok := r.dims[d].UniqueRoot()
		if !ok {
			return Address{}, gridcube.UnderdefinedAddressError{Dimension: r.names[d]}
		}
		coords[d] = Coordinate{DimIndex: d, Members: []gridcube.MemberID{root}}
	}
	return Address{Coords: coords}, nil
}

// splitQualified reports whether tok has the form "dim:expr" for a known
// dimension name and, if so, returns the dimension index and remaining
// expression.
func (r *Resolver) splitQualified(tok string) (int, string, bool) {
	head, rest, ok := strings.Cut(tok, ":")
	if !ok {
		return -1, "", false
	}
	idx, ok := r.dimIndexByName(head)
	if !ok {
		return -1, "", false
	}
	return idx, rest, true
}

// resolveExpr resolves a single-dimension expression: a plain name, a
// comma-separated explicit list, a "*"/"?" glob, an "attr:value" filter, or
// a subset name.
func (r *Resolver) resolveExpr(dimIdx int, expr string) (Coordinate, error) {
	dim := r.dims[dimIdx]
	expr = strings.TrimSpace(expr)

	if strings.Contains(expr, ",") {
		parts := strings.Split(expr, ",")
		var ids []gridcube.MemberID
		for _, p := range parts {
			id, ok := dim.MemberByName(strings.TrimSpace(p))
			if !ok {
				return Coordinate{}, gridcube.UnknownMemberError{Name: p}
			}
			ids = append(ids, id)
		}
		return Coordinate{DimIndex: dimIdx, IsSet: true, Members: sortUniq(ids)}, nil
	}

	if strings.ContainsAny(expr, "*?") {
		var ids []gridcube.MemberID
		for _, id := range dim.Members() {
			name, _ := dim.MemberName(id)
			if ok, _ := path.Match(strings.ToLower(expr), strings.ToLower(name)); ok {
				ids = append(ids, id)
			}
		}
		return Coordinate{DimIndex: dimIdx, IsSet: true, Members: sortUniq(ids)}, nil
	}

	if attr, value, ok := strings.Cut(expr, ":"); ok && dim.HasAttribute(attr) {
		ids := dim.MembersByAttribute(attr, value)
		return Coordinate{DimIndex: dimIdx, IsSet: true, Members: sortUniq(ids)}, nil
	}

	if ids, ok := dim.Subset(expr); ok {
		return Coordinate{DimIndex: dimIdx, IsSet: true, Members: sortUniq(ids)}, nil
	}

	id, ok := dim.MemberByName(expr)
	if !ok {
		return Coordinate{}, gridcube.UnknownMemberError{Name: expr}
	}
	return Coordinate{DimIndex: dimIdx, Members: []gridcube.MemberID{id}}, nil
}

// ResolveByName performs the cursor's unique cross-dimension name search
// (spec §4.5): find the single dimension among r.dims that contains name,
// and return its index and member id. Fails with AmbiguousMemberError if
// more than one dimension matches, UnknownMemberError if none do.
func (r *Resolver) ResolveByName(name string) (dimIdx int, id gridcube.MemberID, err error) {
	dimIdx = -1
	var matchedDims []string
	for i, dim := range r.dims {
		if candidate, ok := dim.MemberByName(name); ok {
			if dimIdx != -1 {
				matchedDims = append(matchedDims, r.names[i])
			} else {
				dimIdx = i
				id = candidate
				matchedDims = append(matchedDims, r.names[i])
			}
		}
	}
	if dimIdx == -1 {
		return -1, 0, gridcube.UnknownMemberError{Name: name}
	}
	if len(matchedDims) > 1 {
		return -1, 0, gridcube.AmbiguousMemberError{Name: name, Dimensions: matchedDims}
	}
	return dimIdx, id, nil
}

func sortUniq(ids []gridcube.MemberID) []gridcube.MemberID {
	seen := map[gridcube.MemberID]bool{}
	out := make([]gridcube.MemberID, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}
