package rule_test

import (
	"errors"
	"testing"

	"github.com/gridcube/gridcube/pkg/gridcube"
	"github.com/gridcube/gridcube/pkg/rule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchRespectsScopeAndOrder(t *testing.T) {
	e := rule.NewEngine()
	first := rule.NewFuncRule("first", "cube", gridcube.AllLevels, rule.Trigger{Selectors: []rule.Selector{rule.One(1)}}, false,
		func(c *rule.Cursor) gridcube.RuleReturn { return gridcube.Val(1) })
	second := rule.NewFuncRule("second", "cube", gridcube.AllLevels, rule.Trigger{Selectors: []rule.Selector{rule.One(1)}}, false,
		func(c *rule.Cursor) gridcube.RuleReturn { return gridcube.Val(2) })
	e.Register(first)
	e.Register(second)

	matched, ok := e.Match("cube", []gridcube.MemberID{1}, true, false)
	require.True(t, ok)
	assert.Equal(t, "first", matched.Name())
}

func TestMatchBaseLevelOnlyAtBase(t *testing.T) {
	e := rule.NewEngine()
	r := rule.NewFuncRule("baseonly", "cube", gridcube.BaseLevel, rule.Trigger{Selectors: []rule.Selector{rule.Any()}}, false, nil)
	e.Register(r)

	_, ok := e.Match("cube", []gridcube.MemberID{1}, false, true)
	assert.False(t, ok)
	_, ok = e.Match("cube", []gridcube.MemberID{1}, true, false)
	assert.True(t, ok)
}

func TestUnregisterBumpsVersion(t *testing.T) {
	e := rule.NewEngine()
	r := rule.NewFuncRule("r", "cube", gridcube.AllLevels, rule.Trigger{Selectors: []rule.Selector{rule.Any()}}, false, nil)
	e.Register(r)
	v1 := e.Version()
	assert.True(t, e.Unregister("cube", "r"))
	assert.Greater(t, e.Version(), v1)
	assert.Empty(t, e.Rules("cube"))
}

func TestInvokeRecoversPanic(t *testing.T) {
	e := rule.NewEngine()
	r := rule.NewFuncRule("boom", "cube", gridcube.AllLevels, rule.Trigger{Selectors: []rule.Selector{rule.Any()}}, false,
		func(c *rule.Cursor) gridcube.RuleReturn { panic(errors.New("kaboom")) })

	ret, err := e.Invoke(r, nil)
	require.Error(t, err)
	assert.Equal(t, gridcube.Continue, ret.Outcome)
	assert.True(t, gridcube.IsErrorType[gridcube.RuleError](err))
}
