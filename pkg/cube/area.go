package cube

import (
	"github.com/gridcube/gridcube/pkg/gridcube"
	"github.com/gridcube/gridcube/pkg/resolver"
	"github.com/gridcube/gridcube/pkg/store"
	"golang.org/x/exp/slices"
)

// defaultAreaLimit guards against accidentally materializing an
// astronomically large Cartesian product when expand_all is requested
// (spec §4.7, AreaTooLargeError in §7).
const defaultAreaLimit = 2_000_000

// Area is a Cartesian-product selection over a cube's dimensions, built
// from a resolved general address whose coordinates may be sets (spec
// §4.7, GLOSSARY "Area"). Every operation on it works in terms of base
// member ids: aggregated coordinates are leaf-expanded first.
type Area struct {
	cube      *Cube
	baseSets  [][]gridcube.MemberID   // per-dim, deduplicated base member ids
	areaMasks []map[gridcube.MemberID]bool // baseSets as lookup sets, store.IterArea shape
	limit     int
}

// NewArea resolves tokens (positional and/or "dim:expr" qualified, same
// grammar as Cube.Get) into an Area over c.
func (c *Cube) NewArea(tokens ...string) (*Area, error) {
	addr, err := c.resolver.Resolve(tokens)
	if err != nil {
		return nil, err
	}
	return c.areaFromAddress(addr)
}

func (c *Cube) areaFromAddress(addr resolver.Address) (*Area, error) {
	baseSets := make([][]gridcube.MemberID, len(c.dims))
	masks := make([]map[gridcube.MemberID]bool, len(c.dims))
	for d, coord := range addr.Coords {
		seen := map[gridcube.MemberID]bool{}
		for _, m := range coord.Members {
			exp, err := c.dims[d].LeafExpansion(m)
			if err != nil {
				return nil, err
			}
			for _, lw := range exp {
				seen[lw.Base] = true
			}
		}
		ids := make([]gridcube.MemberID, 0, len(seen))
		for id := range seen {
			ids = append(ids, id)
		}
		baseSets[d] = ids
		masks[d] = seen
	}
	return &Area{cube: c, baseSets: baseSets, areaMasks: masks, limit: defaultAreaLimit}, nil
}

// WithLimit overrides the default guardrail on a full Cartesian expansion.
func (a *Area) WithLimit(n int) *Area { a.limit = n; return a }

// size returns the full Cartesian product size (used only when expanding
// every combination, not when iterating existing facts).
func (a *Area) size() int {
	n := 1
	for _, s := range a.baseSets {
		n *= len(s)
		if n == 0 {
			return 0
		}
	}
	return n
}

// enumerateAll walks the full Cartesian product of base member ids.
func (a *Area) enumerateAll() ([]store.Address, error) {
	total := a.size()
	if total > a.limit {
		return nil, gridcube.AreaTooLargeError{Size: total, Limit: a.limit}
	}
	out := make([]store.Address, 0, total)
	addr := make(store.Address, len(a.baseSets))
	var rec func(d int)
	rec = func(d int) {
		if d == len(a.baseSets) {
			out = append(out, append(store.Address(nil), addr...))
			return
		}
		for _, id := range a.baseSets[d] {
			addr[d] = id
			rec(d + 1)
		}
	}
	rec(0)
	return out, nil
}

// Enumerate returns the stored facts (address, value) currently within the
// area, without materializing unstored cells.
func (a *Area) Enumerate() []store.Fact {
	return a.cube.store.IterArea(a.areaMasks)
}

// SetValue writes value to every cell in the area (spec §4.7). When
// expandAll is true the full Cartesian product of base cells is written,
// guarded by the area size limit; otherwise only cells that already hold a
// stored fact are overwritten. Each call is one logical batch: the cube's
// data version is bumped once per touched cell, matching the fact store's
// existing per-write invalidation model.
func (a *Area) SetValue(value float64, expandAll bool) error {
	if expandAll {
		addrs, err := a.enumerateAll()
		if err != nil {
			return err
		}
		for _, addr := range addrs {
			if err := a.cube.writeCoords([]gridcube.MemberID(addr), value, false); err != nil {
				return err
			}
		}
		return nil
	}
	for _, f := range a.Enumerate() {
		if err := a.cube.writeCoords([]gridcube.MemberID(f.Address), value, false); err != nil {
			return err
		}
	}
	return nil
}

// Scale multiplies every existing stored fact in the area by k in place.
func (a *Area) Scale(k float64) error {
	for _, f := range a.Enumerate() {
		if err := a.cube.writeCoords([]gridcube.MemberID(f.Address), f.Value*k, false); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes every stored fact within the area, returning the count
// removed.
func (a *Area) Delete() int {
	return a.cube.store.DeleteArea(a.areaMasks)
}

// CopyTo copies every stored fact in a to the positionally corresponding
// cell of dst: dimension d's i-th base member in a maps to dimension d's
// i-th base member in dst. Both areas must have matching per-dimension
// cardinality; used to implement shift/copy-forward style bulk edits
// (spec §4.7 "area copy, shift... are compositions of enumerate + write").
func (a *Area) CopyTo(dst *Area) error {
	if len(a.baseSets) != len(dst.baseSets) {
		return gridcube.InvalidModelError{Detail: "CopyTo requires matching dimension counts"}
	}
	mapping := make([]map[gridcube.MemberID]gridcube.MemberID, len(a.baseSets))
	for d := range a.baseSets {
		if len(a.baseSets[d]) != len(dst.baseSets[d]) {
			return gridcube.InvalidModelError{Detail: "CopyTo requires matching per-dimension cardinality"}
		}
		src := sortedIDs(a.baseSets[d])
		to := sortedIDs(dst.baseSets[d])
		m := make(map[gridcube.MemberID]gridcube.MemberID, len(src))
		for i, id := range src {
			m[id] = to[i]
		}
		mapping[d] = m
	}
	for _, f := range a.Enumerate() {
		target := make(store.Address, len(f.Address))
		for d, id := range f.Address {
			target[d] = mapping[d][id]
		}
		if err := a.cube.writeCoords([]gridcube.MemberID(target), f.Value, false); err != nil {
			return err
		}
	}
	return nil
}

// Shift moves every stored fact in the area whose coordinate in dimName
// equals from to the same fact with that coordinate set to to, leaving
// every other coordinate unchanged (supplemented feature, grounded on
// tinyolap's area shift). Both from and to must name base members of
// dimName. A thin wrapper over CopyTo: restricts the source area to from
// and the destination area to to on dimName, identity on every other
// dimension.
func (a *Area) Shift(dimName, from, to string) error {
	dimIdx := -1
	for d, dn := range a.cube.dimNames {
		if dn == dimName {
			dimIdx = d
			break
		}
	}
	if dimIdx == -1 {
		return gridcube.UnknownMemberError{Name: dimName}
	}
	fromID, ok := a.cube.dims[dimIdx].MemberByName(from)
	if !ok {
		return gridcube.UnknownMemberError{Name: from}
	}
	toID, ok := a.cube.dims[dimIdx].MemberByName(to)
	if !ok {
		return gridcube.UnknownMemberError{Name: to}
	}
	if !a.cube.dims[dimIdx].IsBase(fromID) || !a.cube.dims[dimIdx].IsBase(toID) {
		return gridcube.InvalidModelError{Detail: "Shift requires base members"}
	}

	src := a.restrictedTo(dimIdx, fromID)
	dst := a.restrictedTo(dimIdx, toID)
	if err := src.CopyTo(dst); err != nil {
		return err
	}
	if fromID != toID {
		src.Delete()
	}
	return nil
}

// restrictedTo clones a, narrowing dimension dimIdx to the single base
// member id.
func (a *Area) restrictedTo(dimIdx int, id gridcube.MemberID) *Area {
	clone := &Area{
		cube:      a.cube,
		baseSets:  append([][]gridcube.MemberID(nil), a.baseSets...),
		areaMasks: append([]map[gridcube.MemberID]bool(nil), a.areaMasks...),
		limit:     a.limit,
	}
	clone.baseSets[dimIdx] = []gridcube.MemberID{id}
	clone.areaMasks[dimIdx] = map[gridcube.MemberID]bool{id: true}
	return clone
}

func sortedIDs(ids []gridcube.MemberID) []gridcube.MemberID {
	out := append([]gridcube.MemberID(nil), ids...)
	slices.Sort(out)
	return out
}
