package dimension

import (
	"fmt"

	"github.com/gridcube/gridcube/pkg/gridcube"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/graph/simple"
)

// sessionState is the edit-session state machine of spec §4.1:
// Clean -> Editing -> (Commit | Rollback) -> Clean.
type sessionState int

const (
	stateClean sessionState = iota
	stateEditing
	stateCommitted
	stateRolledBack
)

// Session is a staged mutation buffer for a Dimension. Reads against the
// owning Dimension during an open session see the pre-edit snapshot;
// Commit atomically swaps the dimension's internal tables in one step, or
// fails (CycleDetectedError, or an error naming a member unreachable from
// any root) without any partial visible effect.
type Session struct {
	dim   *Dimension
	state sessionState

	// token identifies this session in logs and audit trails; it has no
	// bearing on commit semantics.
	token string

	nextID  gridcube.MemberID
	members map[gridcube.MemberID]*member
	byName  map[string]gridcube.MemberID
	graph   *simple.WeightedDirectedGraph

	subsets   map[string][]gridcube.MemberID
	attrNames map[string]bool
	attrIndex map[string]map[string][]gridcube.MemberID

	// removed collects member ids removed during this session, so the
	// caller (pkg/database) can cascade-delete facts referencing them.
	removed []gridcube.MemberID
}

// Edit opens a new edit session. Fails if a session is already open.
func (d *Dimension) Edit() (*Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.editing != nil {
		return nil, fmt.Errorf("dimension %q already has an open edit session", d.name)
	}
	s := &Session{
		dim:     d,
		state:   stateEditing,
		token:   uuid.NewString(),
		nextID:  d.nextID,
		members: cloneMembers(d.members),
		byName:  cloneByName(d.byName),
		graph:   cloneGraph(d.graph),

		subsets:   cloneSubsets(d.subsets),
		attrNames: cloneAttrNames(d.attrNames),
		attrIndex: cloneAttrIndex(d.attrIndex),
	}
	d.editing = s
	return s, nil
}

// Token identifies this edit session for audit logging; stable for the
// session's lifetime and meaningless across processes.
func (s *Session) Token() string { return s.token }

// AddMember inserts a new member, optionally as a child of parent with the
// given edge weight. The weight is used exactly as passed (no +1.0 default
// is substituted for 0) and is ignored when parent is empty.
func (s *Session) AddMember(name string, parent string, weight gridcube.Weight) (gridcube.MemberID, error) {
	if s.state != stateEditing {
		return 0, fmt.Errorf("edit session is not open")
	}
	key := fold(name)
	if _, exists := s.byName[key]; exists {
		return 0, gridcube.DuplicateNameError{Dimension: s.dim.name, Name: name}
	}
	id := s.nextID
	s.nextID++
	s.members[id] = &member{id: id, name: name, attributes: map[string]any{}}
	s.byName[key] = id
	s.graph.AddNode(memberNode(id))

	if parent != "" {
		pid, ok := s.byName[fold(parent)]
		if !ok {
			return 0, gridcube.UnknownMemberError{Name: parent}
		}
		if err := s.addEdge(pid, id, weight); err != nil {
			return 0, err
		}
	}
	return id, nil
}

// SetWeight sets (or adds) the edge weight from parent to child.
func (s *Session) SetWeight(parent, child string, weight gridcube.Weight) error {
	if s.state != stateEditing {
		return fmt.Errorf("edit session is not open")
	}
	pid, ok := s.byName[fold(parent)]
	if !ok {
		return gridcube.UnknownMemberError{Name: parent}
	}
	cid, ok := s.byName[fold(child)]
	if !ok {
		return gridcube.UnknownMemberError{Name: child}
	}
	return s.addEdge(pid, cid, weight)
}

func (s *Session) addEdge(parent, child gridcube.MemberID, weight gridcube.Weight) error {
	if parent == child {
		return gridcube.CycleDetectedError{Dimension: s.dim.name, Parent: s.members[parent].name, Child: s.members[child].name}
	}
	s.graph.SetWeightedEdge(simple.WeightedEdge{F: memberNode(parent), T: memberNode(child), W: weight})
	if err := validateAcyclicAndRooted(s.graph, s.members, s.dim.name); err != nil {
		s.graph.RemoveEdge(int64(parent), int64(child))
		if gridcube.IsCycleDetectedError(err) {
			return gridcube.CycleDetectedError{Dimension: s.dim.name, Parent: s.members[parent].name, Child: s.members[child].name}
		}
		return err
	}
	return nil
}

// RemoveMember removes a member and its edges. Returns the id removed so
// the caller can cascade-delete stored facts referencing it (invariant F3).
func (s *Session) RemoveMember(name string) (gridcube.MemberID, error) {
	if s.state != stateEditing {
		return 0, fmt.Errorf("edit session is not open")
	}
	id, ok := s.byName[fold(name)]
	if !ok {
		return 0, gridcube.UnknownMemberError{Name: name}
	}
	m := s.members[id]
	delete(s.byName, fold(m.name))
	for _, a := range m.aliases {
		delete(s.byName, fold(a))
	}
	s.graph.RemoveNode(int64(id))
	delete(s.members, id)
	for attr, idx := range s.attrIndex {
		for v, ids := range idx {
			idx[v] = removeID(ids, id)
			if len(idx[v]) == 0 {
				delete(idx, v)
			}
		}
		s.attrIndex[attr] = idx
	}
	for name, ids := range s.subsets {
		s.subsets[name] = removeID(ids, id)
	}
	s.removed = append(s.removed, id)
	return id, nil
}

func removeID(ids []gridcube.MemberID, target gridcube.MemberID) []gridcube.MemberID {
	out := ids[:0:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}

// AddAlias adds an additional name for an existing member.
func (s *Session) AddAlias(name, alias string) error {
	if s.state != stateEditing {
		return fmt.Errorf("edit session is not open")
	}
	id, ok := s.byName[fold(name)]
	if !ok {
		return gridcube.UnknownMemberError{Name: name}
	}
	key := fold(alias)
	if _, exists := s.byName[key]; exists {
		return gridcube.DuplicateNameError{Dimension: s.dim.name, Name: alias}
	}
	s.byName[key] = id
	s.members[id].aliases = append(s.members[id].aliases, alias)
	return nil
}

// Rename changes a member's canonical display name, preserving the old name
// as an alias so addresses using it keep resolving (supplemented feature,
// grounded on tinyolap's rename_member).
func (s *Session) Rename(name, newName string) error {
	if s.state != stateEditing {
		return fmt.Errorf("edit session is not open")
	}
	id, ok := s.byName[fold(name)]
	if !ok {
		return gridcube.UnknownMemberError{Name: name}
	}
	newKey := fold(newName)
	if existing, exists := s.byName[newKey]; exists && existing != id {
		return gridcube.DuplicateNameError{Dimension: s.dim.name, Name: newName}
	}
	old := s.members[id].name
	s.members[id].name = newName
	s.byName[newKey] = id
	if fold(old) != newKey {
		s.members[id].aliases = append(s.members[id].aliases, old)
	}
	return nil
}

// SetAttribute sets an attribute value for a member, creating the attribute
// if it doesn't already exist on the dimension.
func (s *Session) SetAttribute(name, attr string, value any) error {
	if s.state != stateEditing {
		return fmt.Errorf("edit session is not open")
	}
	id, ok := s.byName[fold(name)]
	if !ok {
		return gridcube.UnknownMemberError{Name: name}
	}
	s.attrNames[attr] = true
	m := s.members[id]
	if old, had := m.attributes[attr]; had {
		idx := s.attrIndex[attr]
		key := fmt.Sprint(old)
		idx[key] = removeID(idx[key], id)
	}
	m.attributes[attr] = value
	idx, ok := s.attrIndex[attr]
	if !ok {
		idx = map[string][]gridcube.MemberID{}
		s.attrIndex[attr] = idx
	}
	key := fmt.Sprint(value)
	idx[key] = append(idx[key], id)
	return nil
}

// DefineSubset (re)defines a named ordered member list.
func (s *Session) DefineSubset(name string, members []string) error {
	if s.state != stateEditing {
		return fmt.Errorf("edit session is not open")
	}
	ids := make([]gridcube.MemberID, 0, len(members))
	for _, m := range members {
		id, ok := s.byName[fold(m)]
		if !ok {
			return gridcube.UnknownMemberError{Name: m}
		}
		ids = append(ids, id)
	}
	s.subsets[name] = ids
	return nil
}

// Commit validates the staged buffer and atomically swaps it in. On
// failure the dimension's visible state is unchanged.
func (s *Session) Commit() error {
	if s.state != stateEditing {
		return fmt.Errorf("edit session is not open")
	}
	if err := validateAcyclicAndRooted(s.graph, s.members, s.dim.name); err != nil {
		return err
	}
	d := s.dim
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID = s.nextID
	d.members = s.members
	d.byName = s.byName
	d.graph = s.graph
	d.subsets = s.subsets
	d.attrNames = s.attrNames
	d.attrIndex = s.attrIndex
	d.structureVersion++
	d.editing = nil
	s.state = stateCommitted

	d.expMu.Lock()
	d.expansions = nil // invalidated; recomputed lazily on first use (I4)
	d.expMu.Unlock()

	log.V(2).Info("committed dimension edit", "dimension", d.name, "session", s.token, "structureVersion", d.structureVersion, "removedMembers", len(s.removed))
	return nil
}

// Removed returns the member ids removed by this session, valid after Commit.
func (s *Session) Removed() []gridcube.MemberID { return append([]gridcube.MemberID(nil), s.removed...) }

// Rollback discards the edit buffer; the dimension is unchanged.
func (s *Session) Rollback() {
	if s.state != stateEditing {
		return
	}
	s.dim.mu.Lock()
	s.dim.editing = nil
	s.dim.mu.Unlock()
	s.state = stateRolledBack
}

func cloneMembers(in map[gridcube.MemberID]*member) map[gridcube.MemberID]*member {
	out := make(map[gridcube.MemberID]*member, len(in))
	for id, m := range in {
		cp := &member{id: m.id, name: m.name, format: m.format}
		cp.aliases = append([]string(nil), m.aliases...)
		cp.attributes = make(map[string]any, len(m.attributes))
		for k, v := range m.attributes {
			cp.attributes[k] = v
		}
		out[id] = cp
	}
	return out
}

func cloneByName(in map[string]gridcube.MemberID) map[string]gridcube.MemberID {
	out := make(map[string]gridcube.MemberID, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneSubsets(in map[string][]gridcube.MemberID) map[string][]gridcube.MemberID {
	out := make(map[string][]gridcube.MemberID, len(in))
	for k, v := range in {
		out[k] = append([]gridcube.MemberID(nil), v...)
	}
	return out
}

func cloneAttrNames(in map[string]bool) map[string]bool {
	out := make(map[string]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneAttrIndex(in map[string]map[string][]gridcube.MemberID) map[string]map[string][]gridcube.MemberID {
	out := make(map[string]map[string][]gridcube.MemberID, len(in))
	for attr, idx := range in {
		inner := make(map[string][]gridcube.MemberID, len(idx))
		for v, ids := range idx {
			inner[v] = append([]gridcube.MemberID(nil), ids...)
		}
		out[attr] = inner
	}
	return out
}

func cloneGraph(in *simple.WeightedDirectedGraph) *simple.WeightedDirectedGraph {
	out := simple.NewWeightedDirectedGraph(0, 0)
	nodes := in.Nodes()
	for nodes.Next() {
		out.AddNode(nodes.Node())
	}
	edges := in.Edges()
	for edges.Next() {
		e := edges.Edge()
		w, _ := in.Weight(e.From().ID(), e.To().ID())
		out.SetWeightedEdge(simple.WeightedEdge{F: e.From(), T: e.To(), W: w})
	}
	return out
}
