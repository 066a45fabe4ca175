// Package rule implements the Rules Engine and Cell cursor of spec §4.5: an
// ordered, per-cube list of triggerable computations that participate in
// cell evaluation, plus the cursor object rule bodies use to read and
// re-target addresses.
//
// A rule's return value is an explicit variant (gridcube.RuleReturn)
// instead of magic sentinel constants on the cursor, per the Design Notes
// of spec §9: "Rules as user callables with sentinels -> explicit return
// variant."
package rule

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/gridcube/gridcube/pkg/gridcube"
)

// Selector restricts one dimension's coordinate for a trigger. A nil
// Members set means "any member in this dimension" (wildcard).
type Selector struct {
	Members []gridcube.MemberID
}

// Any is the wildcard selector.
func Any() Selector { return Selector{} }

// One restricts to a single member id.
func One(id gridcube.MemberID) Selector { return Selector{Members: []gridcube.MemberID{id}} }

// Set restricts to any of the given member ids (subset, attribute filter,
// wildcard glob or explicit list, already expanded by the resolver).
func Set(ids []gridcube.MemberID) Selector { return Selector{Members: ids} }

func (s Selector) matches(id gridcube.MemberID) bool {
	if s.Members == nil {
		return true
	}
	for _, m := range s.Members {
		if m == id {
			return true
		}
	}
	return false
}

// Trigger is a conjunction of per-dimension selectors (spec §4.5 step 2):
// it matches an address iff every dimension's selector admits that
// dimension's coordinate.
type Trigger struct {
	Selectors []Selector
}

func (t Trigger) matches(coords []gridcube.MemberID) bool {
	if len(t.Selectors) != len(coords) {
		return false
	}
	for d, sel := range t.Selectors {
		if !sel.matches(coords[d]) {
			return false
		}
	}
	return true
}

// Func is a native Go rule body. It is invoked with a cursor bound to the
// matched address; panics are recovered by the engine and reported as
// RuleError.
type Func func(c *Cursor) gridcube.RuleReturn

// Rule is one registered computation (spec "Rule" data model, §3).
type Rule struct {
	name            string
	cube            string
	scope           gridcube.Scope
	trigger         Trigger
	commandKeywords []string
	volatile        bool
	fn              Func
}

// NewFuncRule builds a rule from a native Go callable.
func NewFuncRule(name, cube string, scope gridcube.Scope, trigger Trigger, volatile bool, fn Func) *Rule {
	return &Rule{name: name, cube: cube, scope: scope, trigger: trigger, volatile: volatile, fn: fn}
}

// NewCommandRule builds a COMMAND-scope rule, invoked only by explicit name.
func NewCommandRule(name, cube string, trigger Trigger, keywords []string, fn Func) *Rule {
	return &Rule{name: name, cube: cube, scope: gridcube.Command, trigger: trigger, commandKeywords: keywords, fn: fn}
}

// NewTemplateRule builds a rule whose body is a Go text/template evaluated
// against the cursor, with sprig's helper functions available. The template
// output is parsed as a float64 (surrounding whitespace ignored), or as the
// literal tokens "N/A" or "" (NoValue) or "CONTINUE" (Continue); any other
// output, or a template execution error, becomes a caught RuleError.
func NewTemplateRule(name, cube string, scope gridcube.Scope, trigger Trigger, volatile bool, body *template.Template) *Rule {
	body = body.Funcs(sprig.TxtFuncMap())
	fn := func(c *Cursor) gridcube.RuleReturn {
		b := &bytes.Buffer{}
		if err := body.Execute(b, c); err != nil {
			panic(err)
		}
		out := b.String()
		switch out {
		case "N/A", "":
			return gridcube.NA()
		case "CONTINUE":
			return gridcube.Cont()
		default:
			v, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
			if err != nil {
				panic(fmt.Errorf("template rule %q produced non-numeric output %q", name, out))
			}
			return gridcube.Val(v)
		}
	}
	return &Rule{name: name, cube: cube, scope: scope, trigger: trigger, volatile: volatile, fn: fn}
}

func (r *Rule) Name() string             { return r.name }
func (r *Rule) Cube() string             { return r.cube }
func (r *Rule) Scope() gridcube.Scope    { return r.scope }
func (r *Rule) Volatile() bool           { return r.volatile }
func (r *Rule) CommandKeywords() []string { return r.commandKeywords }
