package rule

import (
	"sync"

	"github.com/gridcube/gridcube/pkg/dimension"
	"github.com/gridcube/gridcube/pkg/gridcube"
	"github.com/gridcube/gridcube/pkg/resolver"
)

// EvalFunc evaluates a fully-qualified general address (one member id per
// dimension) and returns its Result. Bound by the cube facade to its
// recursion-guarded Rules -> Aggregate step, so that a cursor dereference
// from inside a rule body re-enters rule matching and aggregation; nested
// dereferences do not consult the result cache.
type EvalFunc func(coords []gridcube.MemberID) (gridcube.Result, error)

// VisitStack is the cursor's re-entrancy guard (spec §4.5): the set of
// addresses currently being evaluated on one top-level read's call stack.
// A fresh VisitStack is created per top-level Evaluate call by the cube
// facade and shared by every cursor derived during that call.
type VisitStack struct {
	mu   sync.Mutex
	seen map[string]bool
}

// NewVisitStack creates an empty visit stack.
func NewVisitStack() *VisitStack { return &VisitStack{seen: map[string]bool{}} }

// Enter marks key as in-flight, returning false if it was already present
// (a recursion hit).
func (v *VisitStack) Enter(key string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.seen[key] {
		return false
	}
	v.seen[key] = true
	return true
}

// Leave un-marks key.
func (v *VisitStack) Leave(key string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.seen, key)
}

// Cursor is the transient evaluation handle bound to (cube, general
// address, engine ref) passed to rule bodies (spec §3, §4.5). Coordinate
// shift by name returns a new cursor; forcing a value re-enters the engine
// through EvalFunc, which applies its own recursion guard keyed by address
// so re-entering an address already on the current evaluation stack is
// caught exactly once regardless of how many cursors reference it.
type Cursor struct {
	res      *resolver.Resolver
	dims     []*dimension.Dimension
	coords   []gridcube.MemberID
	eval     EvalFunc
	incoming *float64 // set only for ON_ENTRY rule invocations
}

// NewCursor builds a cursor bound to coords (one member id per dim, in cube order).
func NewCursor(res *resolver.Resolver, dims []*dimension.Dimension, coords []gridcube.MemberID, eval EvalFunc) *Cursor {
	return &Cursor{res: res, dims: dims, coords: append([]gridcube.MemberID(nil), coords...), eval: eval}
}

// WithIncoming attaches the pending write value, for ON_ENTRY rule cursors.
func (c *Cursor) WithIncoming(v float64) *Cursor {
	next := *c
	next.incoming = &v
	return &next
}

// Incoming returns the pending write value and true, when this cursor was
// built for an ON_ENTRY rule invocation.
func (c *Cursor) Incoming() (float64, bool) {
	if c.incoming == nil {
		return 0, false
	}
	return *c.incoming, true
}

// At resolves name against the cube's dimensions by unique cross-dimension
// search (spec §4.5: "dimension resolved by unique name search, else
// fail") and returns a new cursor with that dimension's coordinate shifted.
func (c *Cursor) At(name string) (*Cursor, error) {
	dimIdx, id, err := c.res.ResolveByName(name)
	if err != nil {
		return nil, err
	}
	next := append([]gridcube.MemberID(nil), c.coords...)
	next[dimIdx] = id
	return &Cursor{res: c.res, dims: c.dims, coords: next, eval: c.eval, incoming: c.incoming}, nil
}

// Coords returns the cursor's current address, one member id per dimension.
func (c *Cursor) Coords() []gridcube.MemberID { return append([]gridcube.MemberID(nil), c.coords...) }

// Get forces evaluation of the cursor's current address.
func (c *Cursor) Get() gridcube.Result {
	res, err := c.eval(c.coords)
	if err != nil {
		return gridcube.ErrResult(err)
	}
	return res
}

// Float forces evaluation and returns its numeric view (0.0 for any
// sentinel), the Go realization of spec's "arithmetic behaving as scalar."
func (c *Cursor) Float() float64 { return c.Get().Float() }

// F is an alias for Float, kept short for use inside rule templates.
func (c *Cursor) F() float64 { return c.Float() }

// HasValue reports whether the cursor's current address evaluates to a
// finite value rather than a sentinel.
func (c *Cursor) HasValue() bool { return c.Get().IsValue }
