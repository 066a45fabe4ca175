package rule

import (
	"fmt"

	"github.com/gridcube/gridcube/internal/pkg/logging"
	"github.com/gridcube/gridcube/pkg/gridcube"
)

var log = logging.Log()

// Engine holds the ordered, per-cube rule lists (spec §4.5) and the rules
// version counter cache keys depend on.
type Engine struct {
	rulesByCube map[string][]*Rule
	version     uint64
}

// NewEngine creates an empty rules engine.
func NewEngine() *Engine {
	return &Engine{rulesByCube: map[string][]*Rule{}}
}

// Version returns the current rules version; bumped on every register/unregister.
func (e *Engine) Version() uint64 { return e.version }

// Register appends a rule to its cube's list. First-match-wins ordering
// means registration order is significant.
func (e *Engine) Register(r *Rule) {
	e.rulesByCube[r.cube] = append(e.rulesByCube[r.cube], r)
	e.version++
}

// Unregister removes a rule by cube and name; reports whether one was found.
func (e *Engine) Unregister(cube, name string) bool {
	list := e.rulesByCube[cube]
	for i, r := range list {
		if r.name == name {
			e.rulesByCube[cube] = append(list[:i:i], list[i+1:]...)
			e.version++
			return true
		}
	}
	return false
}

// Rules returns the registered rules for a cube, in registration order.
func (e *Engine) Rules(cube string) []*Rule {
	return append([]*Rule(nil), e.rulesByCube[cube]...)
}

// Match finds the first rule for cube whose scope is eligible for the given
// evaluation phase (isBase / hasAggregatedCoord) and whose trigger admits
// coords (spec §4.5 steps 1-2).
func (e *Engine) Match(cube string, coords []gridcube.MemberID, isBase, hasAggregatedCoord bool) (*Rule, bool) {
	for _, r := range e.rulesByCube[cube] {
		switch r.scope {
		case gridcube.AllLevels:
			// eligible always
		case gridcube.BaseLevel:
			if !isBase {
				continue
			}
		case gridcube.AggregationLevel:
			if !hasAggregatedCoord {
				continue
			}
		default: // OnEntry, Command: never part of read evaluation
			continue
		}
		if r.trigger.matches(coords) {
			return r, true
		}
	}
	return nil, false
}

// MatchOnEntry finds the first ON_ENTRY rule matching a write address.
func (e *Engine) MatchOnEntry(cube string, coords []gridcube.MemberID) (*Rule, bool) {
	for _, r := range e.rulesByCube[cube] {
		if r.scope == gridcube.OnEntry && r.trigger.matches(coords) {
			return r, true
		}
	}
	return nil, false
}

// MatchCommand finds the first COMMAND rule matching keyword and address.
func (e *Engine) MatchCommand(cube, keyword string, coords []gridcube.MemberID) (*Rule, bool) {
	for _, r := range e.rulesByCube[cube] {
		if r.scope != gridcube.Command || !r.trigger.matches(coords) {
			continue
		}
		for _, k := range r.commandKeywords {
			if k == keyword {
				return r, true
			}
		}
	}
	return nil, false
}

// Invoke calls r's body with cursor, recovering any panic as a RuleError
// (spec §4.5 step 4: exceptions raised inside a rule are caught, logged,
// and treated as CONTINUE with an error marker attached).
func (e *Engine) Invoke(r *Rule, cursor *Cursor) (ret gridcube.RuleReturn, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			cause := toError(rec)
			log.Error(cause, "rule panicked", "rule", r.name, "cube", r.cube)
			ret = gridcube.Cont()
			err = gridcube.RuleError{Rule: r.name, Cause: cause}
		}
	}()
	return r.fn(cursor), nil
}

func toError(rec any) error {
	if err, ok := rec.(error); ok {
		return err
	}
	return fmt.Errorf("%v", rec)
}
