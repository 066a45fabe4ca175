// Package config loads a YAML model description (dimensions, cubes,
// template rules) and applies it to a database.Database, in the manner of
// korrel8r's pkg/config: parse into typed structs with sigs.k8s.io/yaml,
// then apply item-by-item, collecting per-item failures into a Status
// rather than aborting on the first error.
package config

import (
	"fmt"
	"os"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"sigs.k8s.io/yaml"

	"github.com/gridcube/gridcube/internal/pkg/logging"
	"github.com/gridcube/gridcube/pkg/database"
	"github.com/gridcube/gridcube/pkg/dimension"
	"github.com/gridcube/gridcube/pkg/gridcube"
	"github.com/gridcube/gridcube/pkg/rule"
)

var log = logging.Log()

// Model is the top-level YAML document describing a database's structure.
type Model struct {
	Dimensions []DimensionSpec `json:"dimensions"`
	Cubes      []CubeSpec      `json:"cubes"`
	Rules      []RuleSpec      `json:"rules,omitempty"`
}

// DimensionSpec describes one dimension and its member hierarchy.
type DimensionSpec struct {
	Name    string       `json:"name"`
	Members []MemberSpec `json:"members"`
}

// MemberSpec describes one member, optionally nested under a parent with a
// consolidation weight (default +1).
type MemberSpec struct {
	Name       string            `json:"name"`
	Parent     string            `json:"parent,omitempty"`
	Weight     *float64          `json:"weight,omitempty"`
	Aliases    []string          `json:"aliases,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// CubeSpec describes one cube's dimension order.
type CubeSpec struct {
	Name       string   `json:"name"`
	Dimensions []string `json:"dimensions"`
}

// RuleSpec describes one template-bodied rule (spec §4.5).
type RuleSpec struct {
	Name     string   `json:"name"`
	Cube     string   `json:"cube"`
	Scope    string   `json:"scope"` // ALL_LEVELS | BASE_LEVEL | AGGREGATION_LEVEL | ON_ENTRY | COMMAND
	Trigger  []string `json:"trigger"` // one member-name-or-"*" per cube dimension
	Volatile bool     `json:"volatile,omitempty"`
	Body     string   `json:"body"`
}

// Status collects per-item application failures without aborting the batch,
// mirroring korrel8r's Configs.Apply error aggregation.
type Status struct {
	Errors []error
}

func (s *Status) fail(format string, args ...any) {
	s.Errors = append(s.Errors, fmt.Errorf(format, args...))
}

// OK reports whether every item applied without error.
func (s *Status) OK() bool { return len(s.Errors) == 0 }

func (s *Status) Error() string {
	if s.OK() {
		return ""
	}
	msg := fmt.Sprintf("%d configuration error(s):", len(s.Errors))
	for _, e := range s.Errors {
		msg += "\n  " + e.Error()
	}
	return msg
}

// Load reads and parses a YAML model file.
func Load(path string) (*Model, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m := &Model{}
	if err := yaml.Unmarshal(b, m); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Apply creates every dimension, member, cube and rule the model describes
// on db, continuing past per-item failures and returning them all in the
// resulting Status.
func Apply(db *database.Database, m *Model) *Status {
	status := &Status{}

	for _, ds := range m.Dimensions {
		if err := applyDimension(db, ds); err != nil {
			status.fail("dimension %q: %v", ds.Name, err)
		}
	}
	for _, cs := range m.Cubes {
		if _, err := db.AddCube(cs.Name, cs.Dimensions); err != nil {
			status.fail("cube %q: %v", cs.Name, err)
		}
	}
	for _, rs := range m.Rules {
		if err := applyRule(db, rs); err != nil {
			status.fail("rule %q: %v", rs.Name, err)
		}
	}
	log.V(1).Info("applied configuration", "dimensions", len(m.Dimensions), "cubes", len(m.Cubes), "rules", len(m.Rules), "errors", len(status.Errors))
	return status
}

func applyDimension(db *database.Database, ds DimensionSpec) error {
	if _, err := db.AddDimension(ds.Name); err != nil {
		return err
	}
	return db.EditDimension(ds.Name, func(sess *dimension.Session) error {
		for _, ms := range ds.Members {
			weight := 1.0
			if ms.Weight != nil {
				weight = *ms.Weight
			}
			if _, err := sess.AddMember(ms.Name, ms.Parent, weight); err != nil {
				return err
			}
			for _, alias := range ms.Aliases {
				if err := sess.AddAlias(ms.Name, alias); err != nil {
					return err
				}
			}
			for attr, value := range ms.Attributes {
				if err := sess.SetAttribute(ms.Name, attr, value); err != nil {
					return err
				}
			}
		}
		return sess.Commit()
	})
}

func applyRule(db *database.Database, rs RuleSpec) error {
	c, ok := db.Cube(rs.Cube)
	if !ok {
		return fmt.Errorf("unknown cube %q", rs.Cube)
	}
	dims := c.Dimensions()
	if len(rs.Trigger) != len(dims) {
		return fmt.Errorf("trigger has %d entries, cube %q has %d dimensions", len(rs.Trigger), rs.Cube, len(dims))
	}
	selectors := make([]rule.Selector, len(dims))
	for i, tok := range rs.Trigger {
		if tok == "" || tok == "*" {
			selectors[i] = rule.Any()
			continue
		}
		id, ok := dims[i].MemberByName(tok)
		if !ok {
			return gridcube.UnknownMemberError{Name: tok}
		}
		selectors[i] = rule.One(id)
	}
	scope, err := parseScope(rs.Scope)
	if err != nil {
		return err
	}
	tmpl, err := template.New(rs.Name).Funcs(sprig.TxtFuncMap()).Parse(rs.Body)
	if err != nil {
		return fmt.Errorf("rule body: %w", err)
	}
	c.Rules().Register(rule.NewTemplateRule(rs.Name, rs.Cube, scope, rule.Trigger{Selectors: selectors}, rs.Volatile, tmpl))
	return nil
}

func parseScope(s string) (gridcube.Scope, error) {
	switch s {
	case "ALL_LEVELS", "":
		return gridcube.AllLevels, nil
	case "BASE_LEVEL":
		return gridcube.BaseLevel, nil
	case "AGGREGATION_LEVEL":
		return gridcube.AggregationLevel, nil
	case "ON_ENTRY":
		return gridcube.OnEntry, nil
	case "COMMAND":
		return gridcube.Command, nil
	default:
		return 0, fmt.Errorf("unknown rule scope %q", s)
	}
}
