// Package dimension implements the Member Registry and Dimension Hierarchy
// of the cell evaluation engine: stable member ids, parent/child edges with
// weights, and memoized leaf expansions.
//
// Hierarchy edges are held in a gonum weighted directed graph so cycle
// detection reuses gonum's topological sort; the reachability check and
// leaf expansion are small DFS walks written against that graph.
package dimension

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gridcube/gridcube/internal/pkg/logging"
	"github.com/gridcube/gridcube/pkg/gridcube"
	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

var log = logging.Log()

// member is the registry's internal record for one member.
type member struct {
	id         gridcube.MemberID
	name       string
	aliases    []string
	attributes map[string]any
	format     string
}

// Dimension is a named, versioned member registry plus hierarchy.
//
// Concurrency: a Dimension is safe for concurrent reads; structural
// mutation must go through an edit Session, and the database write lock
// (see pkg/database) serializes sessions across a whole database.
type Dimension struct {
	mu sync.RWMutex

	name    string
	nextID  gridcube.MemberID
	members map[gridcube.MemberID]*member
	byName  map[string]gridcube.MemberID // case-folded name/alias -> id

	graph *simple.WeightedDirectedGraph // parent -> child, edge weight

	subsets    map[string][]gridcube.MemberID
	attrNames  map[string]bool
	attrIndex  map[string]map[string][]gridcube.MemberID // attr -> normalized value -> members

	structureVersion uint64

	expansions map[gridcube.MemberID][]LeafWeight // memoized, keyed by member id
	expMu      sync.RWMutex

	editing *Session
}

// LeafWeight is one (base member, aggregate weight) pair in a leaf expansion.
type LeafWeight struct {
	Base   gridcube.MemberID
	Weight gridcube.Weight
}

// New creates an empty dimension.
func New(name string) *Dimension {
	return &Dimension{
		name:      name,
		nextID:    1,
		members:   map[gridcube.MemberID]*member{},
		byName:    map[string]gridcube.MemberID{},
		graph:     simple.NewWeightedDirectedGraph(0, 0),
		subsets:   map[string][]gridcube.MemberID{},
		attrNames: map[string]bool{},
		attrIndex: map[string]map[string][]gridcube.MemberID{},
	}
}

// Name returns the dimension's name.
func (d *Dimension) Name() string { return d.name }

// StructureVersion returns the current structure version; it increments on
// every committed structural edit.
func (d *Dimension) StructureVersion() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.structureVersion
}

func fold(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// MemberByName resolves a case-insensitive name or alias to a member id.
func (d *Dimension) MemberByName(name string) (gridcube.MemberID, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.byName[fold(name)]
	return id, ok
}

// MemberName returns the canonical display name of a member.
func (d *Dimension) MemberName(id gridcube.MemberID) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	m, ok := d.members[id]
	if !ok {
		return "", false
	}
	return m.name, true
}

// Exists reports whether id is a currently valid member of this dimension.
func (d *Dimension) Exists(id gridcube.MemberID) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.members[id]
	return ok
}

// IsBase reports whether id has no children (a leaf / base member).
func (d *Dimension) IsBase(id gridcube.MemberID) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.graph.From(int64(id)).Len() == 0
}

// Members returns all member ids in ascending id order.
func (d *Dimension) Members() []gridcube.MemberID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]gridcube.MemberID, 0, len(d.members))
	for id := range d.members {
		out = append(out, id)
	}
	sortMemberIDs(out)
	return out
}

// Roots returns members with no parent.
func (d *Dimension) Roots() []gridcube.MemberID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []gridcube.MemberID
	for id := range d.members {
		if d.graph.To(int64(id)).Len() == 0 {
			out = append(out, id)
		}
	}
	sortMemberIDs(out)
	return out
}

// UniqueRoot returns the dimension's single root member, or false if there
// is not exactly one.
func (d *Dimension) UniqueRoot() (gridcube.MemberID, bool) {
	roots := d.Roots()
	if len(roots) != 1 {
		return 0, false
	}
	return roots[0], true
}

// Children returns the direct children of id in ascending id order, with
// their edge weights.
func (d *Dimension) Children(id gridcube.MemberID) []LeafWeight {
	d.mu.RLock()
	defer d.mu.RUnlock()
	it := d.graph.From(int64(id))
	var out []LeafWeight
	for it.Next() {
		c := it.Node().ID()
		w := d.graph.WeightedEdge(int64(id), c).Weight()
		out = append(out, LeafWeight{Base: gridcube.MemberID(c), Weight: w})
	}
	sortLeafWeights(out)
	return out
}

// Parents returns the direct parents of id.
func (d *Dimension) Parents(id gridcube.MemberID) []gridcube.MemberID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	it := d.graph.To(int64(id))
	var out []gridcube.MemberID
	for it.Next() {
		out = append(out, gridcube.MemberID(it.Node().ID()))
	}
	sortMemberIDs(out)
	return out
}

// Attributes returns a copy of id's attribute map.
func (d *Dimension) Attributes(id gridcube.MemberID) map[string]any {
	d.mu.RLock()
	defer d.mu.RUnlock()
	m, ok := d.members[id]
	if !ok {
		return nil
	}
	out := make(map[string]any, len(m.attributes))
	for k, v := range m.attributes {
		out[k] = v
	}
	return out
}

// Aliases returns a member's aliases (not including its canonical name).
func (d *Dimension) Aliases(id gridcube.MemberID) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	m, ok := d.members[id]
	if !ok {
		return nil
	}
	return append([]string(nil), m.aliases...)
}

func sortMemberIDs(ids []gridcube.MemberID) {
	slices.Sort(ids)
}

func sortLeafWeights(ws []LeafWeight) {
	slices.SortFunc(ws, func(a, b LeafWeight) int { return int(a.Base) - int(b.Base) })
}

// validateAcyclicAndRooted runs invariants I1 (acyclic) and I2 (every member
// reachable from a root) over g/members; called at commit time.
func validateAcyclicAndRooted(g *simple.WeightedDirectedGraph, members map[gridcube.MemberID]*member, dimName string) error {
	if _, err := topo.Sort(g); err != nil {
		return gridcube.CycleDetectedError{Dimension: dimName}
	}
	reachable := map[int64]bool{}
	for id := range members {
		if g.To(int64(id)).Len() == 0 { // root
			var stack []int64
			stack = append(stack, int64(id))
			for len(stack) > 0 {
				n := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				if reachable[n] {
					continue
				}
				reachable[n] = true
				it := g.From(n)
				for it.Next() {
					stack = append(stack, it.Node().ID())
				}
			}
		}
	}
	for id := range members {
		if !reachable[int64(id)] {
			return fmt.Errorf("member %v in dimension %q is not reachable from any root", id, dimName)
		}
	}
	return nil
}
