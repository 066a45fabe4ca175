// Package store implements the sparse Fact Store of spec §4.2: a hash map
// from packed base address to value, plus a per-dimension inverted index
// used to drive area iteration from the sparsest constrained dimension.
package store

import (
	"sort"
	"strings"
	"sync"

	"github.com/gridcube/gridcube/pkg/gridcube"
)

// Address is a packed tuple of base member ids, one per cube dimension, in
// cube dimension order. Used as the fact store's primary key.
type Address []gridcube.MemberID

// Key renders the address as a map key. Member ids are fixed-width u32 so
// this is a stable, collision-free packing for any realistic arity.
func (a Address) Key() string {
	var b strings.Builder
	for i, id := range a {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(fmtUint32(uint32(id)))
	}
	return b.String()
}

func fmtUint32(v uint32) string {
	// Fixed width so lexical and numeric key order coincide; avoids importing
	// strconv/fmt in the hot write/read path.
	const hex = "0123456789abcdef"
	buf := [8]byte{}
	for i := 7; i >= 0; i-- {
		buf[i] = hex[v&0xf]
		v >>= 4
	}
	return string(buf[:])
}

func (a Address) clone() Address { return append(Address(nil), a...) }

type slot struct {
	addr  Address
	value float64
}

// Store is a sparse fact table for one cube's base address space.
//
// Concurrency: safe for concurrent Read/IterArea; Write/DeleteArea callers
// must hold the owning database's write lock (spec §5).
type Store struct {
	mu    sync.RWMutex
	facts map[string]*slot

	arity int
	// inverted[dim][memberID] -> set of fact keys touching that coordinate.
	inverted []map[gridcube.MemberID]map[string]bool
}

// New creates an empty store for a cube with the given dimension arity.
func New(arity int) *Store {
	s := &Store{
		facts:    map[string]*slot{},
		arity:    arity,
		inverted: make([]map[gridcube.MemberID]map[string]bool, arity),
	}
	for i := range s.inverted {
		s.inverted[i] = map[gridcube.MemberID]map[string]bool{}
	}
	return s
}

// Read returns the stored value at addr, or 0.0 if absent (F1).
func (s *Store) Read(addr Address) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sl, ok := s.facts[addr.Key()]; ok {
		return sl.value
	}
	return 0.0
}

// Write sets or removes (if value == 0) the fact at addr. Inverted index
// updates are atomic with the primary write (F2).
func (s *Store) Write(addr Address, value float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := addr.Key()
	if value == 0.0 {
		s.removeLocked(key)
		return
	}
	if _, exists := s.facts[key]; !exists {
		for d, id := range addr {
			set, ok := s.inverted[d][id]
			if !ok {
				set = map[string]bool{}
				s.inverted[d][id] = set
			}
			set[key] = true
		}
	}
	s.facts[key] = &slot{addr: addr.clone(), value: value}
}

func (s *Store) removeLocked(key string) {
	sl, ok := s.facts[key]
	if !ok {
		return
	}
	for d, id := range sl.addr {
		if set := s.inverted[d][id]; set != nil {
			delete(set, key)
			if len(set) == 0 {
				delete(s.inverted[d], id)
			}
		}
	}
	delete(s.facts, key)
}

// Delete removes the fact at addr if present.
func (s *Store) Delete(addr Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(addr.Key())
}

// Count returns the number of stored (non-zero) facts.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.facts)
}

// SizeEstimate returns a rough byte estimate of the store's footprint.
func (s *Store) SizeEstimate() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.facts)) * int64(8+8*s.arity)
}

// Fact is one (address, value) pair returned by iteration.
type Fact struct {
	Address Address
	Value   float64
}

// IterArea enumerates stored facts whose coordinates are contained in
// area[d] for every dimension d. A nil area[d] means "any" (unconstrained).
// Candidates are generated from the most selective (smallest) inverted-index
// set among the constrained dimensions, then filtered against the rest —
// cheaper than a full scan whenever at least one coordinate is narrow.
// Results are ordered ascending by packed address for deterministic summation.
func (s *Store) IterArea(area []map[gridcube.MemberID]bool) []Fact {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var candidateKeys map[string]bool
	bestSize := -1
	narrowestDim := -1
	for d, allowed := range area {
		if allowed == nil {
			continue
		}
		size := 0
		for id := range allowed {
			size += len(s.inverted[d][id])
		}
		if bestSize == -1 || size < bestSize {
			bestSize = size
			narrowestDim = d
		}
	}

	if narrowestDim == -1 {
		candidateKeys = map[string]bool{}
		for k := range s.facts {
			candidateKeys[k] = true
		}
	} else {
		candidateKeys = map[string]bool{}
		for id := range area[narrowestDim] {
			for k := range s.inverted[narrowestDim][id] {
				candidateKeys[k] = true
			}
		}
	}

	out := make([]Fact, 0, len(candidateKeys))
	for key := range candidateKeys {
		sl := s.facts[key]
		if sl == nil || !matches(sl.addr, area) {
			continue
		}
		out = append(out, Fact{Address: sl.addr.clone(), Value: sl.value})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address.Key() < out[j].Address.Key() })
	return out
}

func matches(addr Address, area []map[gridcube.MemberID]bool) bool {
	for d, allowed := range area {
		if allowed == nil {
			continue
		}
		if !allowed[addr[d]] {
			return false
		}
	}
	return true
}

// DeleteArea deletes every stored fact within area.
func (s *Store) DeleteArea(area []map[gridcube.MemberID]bool) int {
	facts := s.IterArea(area)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range facts {
		s.removeLocked(f.Address.Key())
	}
	return len(facts)
}

// DeleteWhereMemberUsed removes every fact whose coordinate in dimension d
// equals id, for invariant F3 (cascade delete on member removal). Returns
// the number of deleted facts.
func (s *Store) DeleteWhereMemberUsed(d int, id gridcube.MemberID) int {
	area := make([]map[gridcube.MemberID]bool, s.arity)
	area[d] = map[gridcube.MemberID]bool{id: true}
	return s.DeleteArea(area)
}
