// Package database implements the Database facade of spec §3/§5: the
// top-level object owning a set of named Dimensions and Cubes, the single
// write lock serializing structural edits and writes, and referential
// integrity between dimensions and the cubes that use them.
package database

import (
	"fmt"
	"sync"

	"github.com/gridcube/gridcube/internal/pkg/logging"
	"github.com/gridcube/gridcube/pkg/cache"
	"github.com/gridcube/gridcube/pkg/cube"
	"github.com/gridcube/gridcube/pkg/dimension"
	"github.com/gridcube/gridcube/pkg/gridcube"
	"github.com/gridcube/gridcube/pkg/rule"
)

var log = logging.Log()

// Database owns a model's dimensions and cubes and serializes every
// structural edit and write on a single lock (spec §5: "single-writer /
// multi-reader per database").
type Database struct {
	name string

	// writeMu is the single per-database write lock. Reads never take it.
	writeMu sync.Mutex

	mu    sync.RWMutex
	dims  map[string]*dimension.Dimension
	cubes map[string]*cube.Cube

	rules   *rule.Engine
	cache   *cache.Cache
	journal Journal

	cacheCapacity int
}

// Journal receives every successful fact write, for durable persistence.
// pkg/persist.Store satisfies this structurally; nil (the default) means
// writes are not journaled.
type Journal interface {
	AppendFactWrite(cubeName string, address []string, value float64) error
}

// Option configures a new Database.
type Option func(*Database)

// WithCacheCapacity sets the shared result cache's entry capacity (default 10000).
func WithCacheCapacity(n int) Option {
	return func(d *Database) { d.cacheCapacity = n }
}

// New creates an empty, named database.
func New(name string, opts ...Option) *Database {
	d := &Database{
		name:          name,
		dims:          map[string]*dimension.Dimension{},
		cubes:         map[string]*cube.Cube{},
		rules:         rule.NewEngine(),
		cacheCapacity: 10000,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.cache = cache.New(d.cacheCapacity)
	return d
}

func (db *Database) Name() string { return db.name }

// SetJournal wires (or clears, with nil) a journal that every subsequent
// Write is durably recorded to. Set after the embedding caller has opened
// its persist.Store, since the store often outlives the point at which the
// database itself is constructed.
func (db *Database) SetJournal(j Journal) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.journal = j
}

// AddDimension creates and registers a new, empty dimension.
func (db *Database) AddDimension(name string) (*dimension.Dimension, error) {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.dims[name]; exists {
		return nil, gridcube.DuplicateNameError{Dimension: name, Name: name}
	}
	dim := dimension.New(name)
	db.dims[name] = dim
	log.V(1).Info("added dimension", "database", db.name, "dimension", name)
	return dim, nil
}

// Dimension looks up a registered dimension by name.
func (db *Database) Dimension(name string) (*dimension.Dimension, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	dim, ok := db.dims[name]
	return dim, ok
}

// Dimensions returns all registered dimension names.
func (db *Database) Dimensions() []string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	out := make([]string, 0, len(db.dims))
	for name := range db.dims {
		out = append(out, name)
	}
	return out
}

// RemoveDimension deletes a dimension, refusing if any cube still
// references it (invariant I5, DimensionInUseError).
func (db *Database) RemoveDimension(name string) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.dims[name]; !exists {
		return gridcube.UnknownMemberError{Name: name}
	}
	var users []string
	for cubeName, c := range db.cubes {
		for _, dn := range c.DimensionNames() {
			if dn == name {
				users = append(users, cubeName)
				break
			}
		}
	}
	if len(users) > 0 {
		return gridcube.DimensionInUseError{Dimension: name, Cubes: users}
	}
	delete(db.dims, name)
	return nil
}

// AddCube creates a cube over the named dimensions, in the given order.
// Every dimension must already be registered on this database. The cube
// shares this database's rules engine and result cache.
func (db *Database) AddCube(name string, dimNames []string) (*cube.Cube, error) {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.cubes[name]; exists {
		return nil, gridcube.DuplicateNameError{Dimension: name, Name: name}
	}
	dims := make([]*dimension.Dimension, len(dimNames))
	for i, dn := range dimNames {
		dim, ok := db.dims[dn]
		if !ok {
			return nil, gridcube.UnknownMemberError{Name: dn}
		}
		dims[i] = dim
	}
	c, err := cube.New(name, dims, dimNames, db.rules, db.cache)
	if err != nil {
		return nil, err
	}
	db.cubes[name] = c
	log.V(1).Info("added cube", "database", db.name, "cube", name, "dimensions", dimNames)
	return c, nil
}

// Cube looks up a registered cube by name.
func (db *Database) Cube(name string) (*cube.Cube, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	c, ok := db.cubes[name]
	return c, ok
}

// Cubes returns all registered cube names.
func (db *Database) Cubes() []string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	out := make([]string, 0, len(db.cubes))
	for name := range db.cubes {
		out = append(out, name)
	}
	return out
}

// RemoveCube deletes a cube and its fact store.
func (db *Database) RemoveCube(name string) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.cubes[name]; !exists {
		return gridcube.UnknownMemberError{Name: name}
	}
	delete(db.cubes, name)
	return nil
}

// Rules exposes the database's shared rules engine, for registration by
// pkg/config.
func (db *Database) Rules() *rule.Engine { return db.rules }

// EditDimension opens a structural edit session on a named dimension while
// holding the database write lock for the whole edit; fn must call
// session.Commit() or session.Rollback() before returning. This serializes
// structural edits with concurrent writes to any cube, satisfying spec §5.
func (db *Database) EditDimension(name string, fn func(*dimension.Session) error) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	dim, ok := db.Dimension(name)
	if !ok {
		return gridcube.UnknownMemberError{Name: name}
	}
	sess, err := dim.Edit()
	if err != nil {
		return err
	}
	log.V(2).Info("opened dimension edit", "database", db.name, "dimension", name, "session", sess.Token())
	if err := fn(sess); err != nil {
		sess.Rollback()
		return err
	}
	db.cascadeRemoval(name, sess.Removed())
	return nil
}

// cascadeRemoval deletes every fact referencing a removed member, in every
// cube whose dimension list includes name (invariant F3), and logs an
// InUseError per cube and removed member whose facts were deleted, so the
// cascade is visible in the operational log rather than silent.
func (db *Database) cascadeRemoval(name string, removed []gridcube.MemberID) {
	if len(removed) == 0 {
		return
	}
	db.mu.RLock()
	cubes := make([]*cube.Cube, 0, len(db.cubes))
	for _, c := range db.cubes {
		cubes = append(cubes, c)
	}
	db.mu.RUnlock()

	for _, c := range cubes {
		uses := false
		for _, dn := range c.DimensionNames() {
			if dn == name {
				uses = true
				break
			}
		}
		if !uses {
			continue
		}
		for _, id := range removed {
			if n := c.CascadeRemoveMembers(name, []gridcube.MemberID{id}); n > 0 {
				inUse := gridcube.InUseError{Dimension: name, Member: fmt.Sprintf("id:%d", id), FactsDeleted: n}
				log.Error(inUse, "cascade-deleted facts after member removal", "database", db.name, "cube", c.Name())
			}
		}
	}
}

// Write performs a single fact write on the named cube, serialized on the
// database write lock (spec §5).
func (db *Database) Write(cubeName string, value float64, addr ...string) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	c, ok := db.Cube(cubeName)
	if !ok {
		return fmt.Errorf("unknown cube %q", cubeName)
	}
	if err := c.Set(value, addr...); err != nil {
		return err
	}
	db.mu.RLock()
	j := db.journal
	db.mu.RUnlock()
	if j != nil {
		if err := j.AppendFactWrite(cubeName, addr, value); err != nil {
			log.Error(err, "journal append failed", "database", db.name, "cube", cubeName)
		}
	}
	return nil
}

// Facts returns every stored (address-token, value) pair for a cube, for
// snapshotting or introspection.
func (db *Database) Facts(cubeName string) ([]FactView, error) {
	c, ok := db.Cube(cubeName)
	if !ok {
		return nil, fmt.Errorf("unknown cube %q", cubeName)
	}
	dims := c.Dimensions()
	full := make([]map[gridcube.MemberID]bool, len(dims)) // nil == unconstrained
	facts := c.Store().IterArea(full)
	out := make([]FactView, 0, len(facts))
	for _, f := range facts {
		tokens := make([]string, len(dims))
		for i, dim := range dims {
			name, _ := dim.MemberName(f.Address[i])
			tokens[i] = name
		}
		out = append(out, FactView{Address: tokens, Value: f.Value})
	}
	return out, nil
}

// FactView is a human-readable (member names, value) fact, used by
// snapshotting and introspection surfaces.
type FactView struct {
	Address []string
	Value   float64
}
