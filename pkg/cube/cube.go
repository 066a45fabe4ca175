// Package cube implements the Cube facade of spec §6: it wires the
// Resolver, Result Cache, Rules Engine, Aggregation Engine and Fact Store
// together into the read/write/area API external collaborators use.
package cube

import (
	"fmt"
	"sync"
	"time"

	"github.com/gridcube/gridcube/internal/pkg/logging"
	"github.com/gridcube/gridcube/internal/pkg/metrics"
	"github.com/gridcube/gridcube/pkg/aggregate"
	"github.com/gridcube/gridcube/pkg/cache"
	"github.com/gridcube/gridcube/pkg/dimension"
	"github.com/gridcube/gridcube/pkg/gridcube"
	"github.com/gridcube/gridcube/pkg/resolver"
	"github.com/gridcube/gridcube/pkg/rule"
	"github.com/gridcube/gridcube/pkg/store"
)

var log = logging.Log()

// Cube is a named tuple of dimensions plus its sparse fact store (spec §3).
// Dimension order is part of the cube's identity.
//
// Concurrency: Cube does not lock internally; callers (normally
// pkg/database.Database) must serialize Write/Area mutation on the
// database's single write lock (spec §5). Reads are safe to call
// concurrently with each other.
type Cube struct {
	name     string
	dims     []*dimension.Dimension
	dimNames []string
	resolver *resolver.Resolver
	store    *store.Store
	rules    *rule.Engine
	cache    *cache.Cache

	dvMu        sync.Mutex
	dataVersion uint64

	// historyCap bounds the undo ring buffer (supplemented feature,
	// grounded on tinyolap's history.py); 0 disables history.
	historyCap int
	history    []undoEntry
}

type undoEntry struct {
	addr store.Address
	old  float64
}

// New creates a cube over dims (in cube order), sharing rules and cache
// with the owning database.
func New(name string, dims []*dimension.Dimension, dimNames []string, rules *rule.Engine, c *cache.Cache) (*Cube, error) {
	if len(dims) == 0 {
		return nil, gridcube.InvalidModelError{Detail: "cube must have at least one dimension"}
	}
	return &Cube{
		name:     name,
		dims:     dims,
		dimNames: dimNames,
		resolver: resolver.New(dims, dimNames),
		store:    store.New(len(dims)),
		rules:    rules,
		cache:    c,
	}, nil
}

func (c *Cube) Name() string                      { return c.name }
func (c *Cube) Dimensions() []*dimension.Dimension { return append([]*dimension.Dimension(nil), c.dims...) }
func (c *Cube) DimensionNames() []string           { return append([]string(nil), c.dimNames...) }
func (c *Cube) Arity() int                         { return len(c.dims) }
func (c *Cube) Store() *store.Store                { return c.store }

// SetHistoryCapacity enables (or disables, with 0) the undo ring buffer.
func (c *Cube) SetHistoryCapacity(n int) { c.historyCap = n }

func (c *Cube) structureVersion() uint64 {
	sv := uint64(1)
	for _, d := range c.dims {
		sv = sv*1000003 + d.StructureVersion()
	}
	return sv
}

func (c *Cube) bumpDataVersion() {
	c.dvMu.Lock()
	c.dataVersion++
	c.dvMu.Unlock()
}

func (c *Cube) currentDataVersion() uint64 {
	c.dvMu.Lock()
	defer c.dvMu.Unlock()
	return c.dataVersion
}

// Get reads or evaluates the address named by tokens (positional and/or
// "dim:member" qualified). Returns a Result: a finite value, a "no value"
// marker, or an error marker.
func (c *Cube) Get(tokens ...string) (gridcube.Result, error) {
	addr, err := c.resolver.Resolve(tokens)
	if err != nil {
		return gridcube.Result{}, err
	}
	if addr.IsArea() {
		return gridcube.Result{}, gridcube.InvalidModelError{Detail: "address contains a set selector; use Area for bulk operations"}
	}
	coords := make([]gridcube.MemberID, len(addr.Coords))
	for d, coord := range addr.Coords {
		coords[d] = coord.Members[0]
	}
	return c.Evaluate(coords)
}

// Evaluate runs the full Resolve(already done) -> Cache -> Rules ->
// Aggregation pipeline for a fully-qualified address.
func (c *Cube) Evaluate(coords []gridcube.MemberID) (gridcube.Result, error) {
	key := cache.Key{
		Cube:             c.name,
		Address:          store.Address(coords).Key(),
		StructureVersion: c.structureVersion(),
		RulesVersion:     c.rules.Version(),
		DataVersion:      c.currentDataVersion(),
	}
	if cached, ok := c.cache.Get(key); ok {
		metrics.RecordCacheLookup(c.name, true)
		return cached, nil
	}
	metrics.RecordCacheLookup(c.name, false)

	start := time.Now()
	visits := rule.NewVisitStack()
	volatile := false
	result, err := c.evalGuarded(coords, visits, &volatile)
	metrics.RecordEvaluationLatency(c.name, time.Since(start).Seconds())
	if err != nil {
		return gridcube.Result{}, err
	}
	if !volatile && !result.IsError() {
		c.cache.Put(key, result)
	}
	return result, nil
}

// evalGuarded is the single recursion-guarded evaluation step shared by the
// top-level Evaluate call, cursor dereferences from rule bodies, and the
// aggregation engine's per-leaf callback.
func (c *Cube) evalGuarded(coords []gridcube.MemberID, visits *rule.VisitStack, volatile *bool) (gridcube.Result, error) {
	key := store.Address(coords).Key()
	if !visits.Enter(key) {
		return gridcube.RecursionResult(), nil
	}
	defer visits.Leave(key)

	isBase := true
	for d, id := range coords {
		if !c.dims[d].IsBase(id) {
			isBase = false
			break
		}
	}

	if r, ok := c.rules.Match(c.name, coords, isBase, !isBase); ok {
		*volatile = *volatile || r.Volatile()
		hitRecursion := false
		cursor := rule.NewCursor(c.resolver, c.dims, coords, c.evalFuncTracking(visits, volatile, &hitRecursion))
		ret, err := c.rules.Invoke(r, cursor)
		if err != nil {
			metrics.RecordRuleInvocation(c.name, r.Name(), "error")
			return gridcube.ErrResult(err), nil
		}
		if hitRecursion {
			// The rule dereferenced an address already on this evaluation's
			// call stack; whatever numeric value it computed from that
			// dereference (Cursor.Float collapses #REC to 0.0) is not
			// trustworthy, so the marker itself is the cell's result.
			metrics.RecordRuleInvocation(c.name, r.Name(), "recursion")
			return gridcube.RecursionResult(), nil
		}
		switch ret.Outcome {
		case gridcube.Value:
			metrics.RecordRuleInvocation(c.name, r.Name(), "value")
			return gridcube.ValueResult(ret.Number), nil
		case gridcube.NoValue:
			metrics.RecordRuleInvocation(c.name, r.Name(), "no_value")
			return gridcube.NoneResult(), nil
		case gridcube.Continue:
			metrics.RecordRuleInvocation(c.name, r.Name(), "continue")
			// fall through to the default evaluation below
		}
	}

	if isBase {
		return gridcube.ValueResult(c.store.Read(store.Address(coords))), nil
	}

	visited := 0
	cellFn := func(addr store.Address, stored float64) gridcube.Result {
		visited++
		res, err := c.evalGuarded([]gridcube.MemberID(addr), visits, volatile)
		if err != nil {
			return gridcube.ErrResult(err)
		}
		return res
	}
	result, err := aggregate.Aggregate(c.dims, coords, c.store, cellFn)
	metrics.RecordAggregationFanOut(c.name, visited)
	return result, err
}

func (c *Cube) evalFunc(visits *rule.VisitStack, volatile *bool) rule.EvalFunc {
	return func(coords []gridcube.MemberID) (gridcube.Result, error) {
		return c.evalGuarded(coords, visits, volatile)
	}
}

// evalFuncTracking wraps evalGuarded for a cursor handed to a rule body,
// additionally latching hit to true if any dereference made through this
// cursor (directly or via further At/Get chains) surfaces the recursion
// marker, so the caller can discard the rule's own return value in favor of
// the marker (spec P8/S6).
func (c *Cube) evalFuncTracking(visits *rule.VisitStack, volatile *bool, hit *bool) rule.EvalFunc {
	return func(coords []gridcube.MemberID) (gridcube.Result, error) {
		res, err := c.evalGuarded(coords, visits, volatile)
		if err == nil && !res.IsValue && res.Sentinel == gridcube.RecursionMarker {
			*hit = true
		}
		return res, err
	}
}

// Set writes a single base-address fact, applying any matching ON_ENTRY
// rule first (which may rewrite or reject the value). Writing to an
// aggregated address is rejected (spec §8 boundary behavior).
func (c *Cube) Set(value float64, tokens ...string) error {
	addr, err := c.resolver.Resolve(tokens)
	if err != nil {
		return err
	}
	if addr.IsArea() {
		return gridcube.InvalidModelError{Detail: "cannot Set a set-bearing address; use Area.SetValue"}
	}
	coords := make([]gridcube.MemberID, len(addr.Coords))
	for d, coord := range addr.Coords {
		coords[d] = coord.Members[0]
		if !c.dims[d].IsBase(coords[d]) {
			return gridcube.InvalidModelError{Detail: fmt.Sprintf("cannot write to aggregated coordinate in dimension %q", c.dimNames[d])}
		}
	}
	return c.writeCoords(coords, value, true)
}

func (c *Cube) writeCoords(coords []gridcube.MemberID, value float64, recordHistory bool) error {
	finalValue := value
	if r, ok := c.rules.MatchOnEntry(c.name, coords); ok {
		cursor := rule.NewCursor(c.resolver, c.dims, coords, c.evalFunc(rule.NewVisitStack(), new(bool))).WithIncoming(value)
		ret, err := c.rules.Invoke(r, cursor)
		if err != nil {
			return gridcube.RuleError{Rule: r.Name(), Cause: err}
		}
		switch ret.Outcome {
		case gridcube.Value:
			finalValue = ret.Number
		case gridcube.NoValue:
			return nil // rejected
		case gridcube.Continue:
			finalValue = value
		}
	}

	addr := store.Address(coords)
	if recordHistory && c.historyCap > 0 {
		old := c.store.Read(addr)
		c.history = append(c.history, undoEntry{addr: append(store.Address(nil), addr...), old: old})
		if len(c.history) > c.historyCap {
			c.history = c.history[len(c.history)-c.historyCap:]
		}
	}
	c.store.Write(addr, finalValue)
	c.bumpDataVersion()
	log.V(3).Info("wrote fact", "cube", c.name, "address", addr.Key(), "value", finalValue)
	return nil
}

// Undo reverses the most recent recorded write, restoring its prior value.
// A no-op if history is disabled or empty.
func (c *Cube) Undo() bool {
	if len(c.history) == 0 {
		return false
	}
	last := c.history[len(c.history)-1]
	c.history = c.history[:len(c.history)-1]
	c.store.Write(last.addr, last.old)
	c.bumpDataVersion()
	return true
}

// CascadeRemoveMembers deletes every stored fact whose coordinate in
// dimName equals one of ids, for every id in ids (invariant F3: removing a
// member cascade-deletes the facts that referenced it). A no-op if the cube
// does not use dimName. Bumps the data version once if anything was
// deleted, so cached results referencing the deleted facts are invalidated.
func (c *Cube) CascadeRemoveMembers(dimName string, ids []gridcube.MemberID) int {
	dimIdx := -1
	for d, dn := range c.dimNames {
		if dn == dimName {
			dimIdx = d
			break
		}
	}
	if dimIdx == -1 {
		return 0
	}
	deleted := 0
	for _, id := range ids {
		deleted += c.store.DeleteWhereMemberUsed(dimIdx, id)
	}
	if deleted > 0 {
		c.bumpDataVersion()
	}
	return deleted
}

// RunCommand invokes a COMMAND-scope rule by keyword against an address.
func (c *Cube) RunCommand(keyword string, tokens ...string) (gridcube.Result, error) {
	addr, err := c.resolver.Resolve(tokens)
	if err != nil {
		return gridcube.Result{}, err
	}
	coords := make([]gridcube.MemberID, len(addr.Coords))
	for d, coord := range addr.Coords {
		coords[d] = coord.Members[0]
	}
	r, ok := c.rules.MatchCommand(c.name, keyword, coords)
	if !ok {
		return gridcube.Result{}, fmt.Errorf("no COMMAND rule %q matches this address", keyword)
	}
	visits := rule.NewVisitStack()
	volatile := false
	cursor := rule.NewCursor(c.resolver, c.dims, coords, c.evalFunc(visits, &volatile))
	ret, err := c.rules.Invoke(r, cursor)
	if err != nil {
		return gridcube.ErrResult(err), nil
	}
	switch ret.Outcome {
	case gridcube.Value:
		return gridcube.ValueResult(ret.Number), nil
	case gridcube.NoValue:
		return gridcube.NoneResult(), nil
	default:
		return gridcube.NoneResult(), nil
	}
}

// Rules exposes the shared rules engine for registration by the database facade.
func (c *Cube) Rules() *rule.Engine { return c.rules }

// Resolver exposes the cube's address resolver.
func (c *Cube) Resolver() *resolver.Resolver { return c.resolver }
