package cube_test

import (
	"testing"

	"github.com/gridcube/gridcube/pkg/cache"
	"github.com/gridcube/gridcube/pkg/cube"
	"github.com/gridcube/gridcube/pkg/dimension"
	"github.com/gridcube/gridcube/pkg/gridcube"
	"github.com/gridcube/gridcube/pkg/rule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustAdd(t *testing.T, sess *dimension.Session, name, parent string, weight float64) gridcube.MemberID {
	t.Helper()
	id, err := sess.AddMember(name, parent, weight)
	require.NoError(t, err)
	return id
}

func addLeaves(t *testing.T, d *dimension.Dimension, parent string, leaves ...string) {
	t.Helper()
	sess, err := d.Edit()
	require.NoError(t, err)
	for _, l := range leaves {
		mustAdd(t, sess, l, parent, 1)
	}
	require.NoError(t, sess.Commit())
}

func newDim(t *testing.T, name string, roots ...string) *dimension.Dimension {
	t.Helper()
	d := dimension.New(name)
	sess, err := d.Edit()
	require.NoError(t, err)
	for _, r := range roots {
		mustAdd(t, sess, r, "", 1)
	}
	require.NoError(t, sess.Commit())
	return d
}

func buildTeslaCube(t *testing.T) *cube.Cube {
	t.Helper()
	datatypes := newDim(t, "datatypes", "Actual", "Plan")
	years := newDim(t, "years", "2021", "2022", "2023")
	periods := newDim(t, "periods", "Year")
	addLeaves(t, periods, "Year", "Q1", "Q2", "Q3", "Q4")
	regions := newDim(t, "regions", "Total")
	addLeaves(t, regions, "Total", "North", "South", "West", "East")
	products := newDim(t, "products", "Total")
	addLeaves(t, products, "Total", "Model S", "Model 3", "Model X", "Model Y")

	dims := []*dimension.Dimension{datatypes, years, periods, regions, products}
	names := []string{"datatypes", "years", "periods", "regions", "products"}
	c, err := cube.New("sales", dims, names, rule.NewEngine(), cache.New(64))
	require.NoError(t, err)
	return c
}

func TestS1TeslaFiveCubeAggregation(t *testing.T) {
	c := buildTeslaCube(t)
	require.NoError(t, c.Set(400, "Plan", "2021", "Q1", "North", "Model S"))
	require.NoError(t, c.Set(200, "Plan", "2021", "Q1", "North", "Model X"))

	res, err := c.Get("Plan", "2021", "Q1", "North", "Total")
	require.NoError(t, err)
	assert.Equal(t, 600.0, res.Float())

	res, err = c.Get("Plan", "2021", "Year", "Total", "Total")
	require.NoError(t, err)
	assert.Equal(t, 600.0, res.Float())

	res, err = c.Get("Plan", "2022", "Year", "Total", "Total")
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Float())
}

func TestS2WeightedAggregationDelta(t *testing.T) {
	datatypes := dimension.New("datatypes")
	sess, err := datatypes.Edit()
	require.NoError(t, err)
	mustAdd(t, sess, "Actual", "", 1)
	mustAdd(t, sess, "Plan", "", 1)
	mustAdd(t, sess, "Delta", "", 1)
	require.NoError(t, sess.SetWeight("Delta", "Actual", 1))
	require.NoError(t, sess.SetWeight("Delta", "Plan", -1))
	require.NoError(t, sess.Commit())

	years := newDim(t, "years", "Y1")
	dims := []*dimension.Dimension{datatypes, years}
	names := []string{"datatypes", "years"}
	c, err := cube.New("finance", dims, names, rule.NewEngine(), cache.New(64))
	require.NoError(t, err)

	require.NoError(t, c.Set(150, "Actual", "Y1"))
	require.NoError(t, c.Set(100, "Plan", "Y1"))

	res, err := c.Get("Delta", "Y1")
	require.NoError(t, err)
	assert.Equal(t, 50.0, res.Float())
}

func TestS3RuleOnAggregatedMember(t *testing.T) {
	datatypes := dimension.New("datatypes")
	sess, err := datatypes.Edit()
	require.NoError(t, err)
	mustAdd(t, sess, "Actual", "", 1)
	mustAdd(t, sess, "Plan", "", 1)
	mustAdd(t, sess, "Delta", "", 1)
	require.NoError(t, sess.SetWeight("Delta", "Actual", 1))
	require.NoError(t, sess.SetWeight("Delta", "Plan", -1))
	mustAdd(t, sess, "DeltaPct", "", 1)
	require.NoError(t, sess.Commit())

	years := newDim(t, "years", "Y1")
	dims := []*dimension.Dimension{datatypes, years}
	names := []string{"datatypes", "years"}
	engine := rule.NewEngine()
	deltaPctID, ok := datatypes.MemberByName("DeltaPct")
	require.True(t, ok)

	engine.Register(rule.NewFuncRule("deltapct", "finance", gridcube.AllLevels,
		rule.Trigger{Selectors: []rule.Selector{rule.One(deltaPctID), rule.Any()}}, false,
		func(cur *rule.Cursor) gridcube.RuleReturn {
			plan, err := cur.At("Plan")
			require.NoError(t, err)
			if plan.Float() == 0 {
				return gridcube.NA()
			}
			delta, err := cur.At("Delta")
			require.NoError(t, err)
			return gridcube.Val(delta.Float() / plan.Float())
		}))

	c, err := cube.New("finance", dims, names, engine, cache.New(64))
	require.NoError(t, err)
	require.NoError(t, c.Set(150, "Actual", "Y1"))
	require.NoError(t, c.Set(100, "Plan", "Y1"))

	res, err := c.Get("DeltaPct", "Y1")
	require.NoError(t, err)
	assert.Equal(t, 0.5, res.Float())

	require.NoError(t, c.Set(0, "Plan", "Y1"))
	res, err = c.Get("DeltaPct", "Y1")
	require.NoError(t, err)
	assert.False(t, res.IsValue)
}

func buildDiamondCube(t *testing.T) (*cube.Cube, *dimension.Dimension) {
	t.Helper()
	regions := dimension.New("regions")
	sess, err := regions.Edit()
	require.NoError(t, err)
	mustAdd(t, sess, "Total", "", 1)
	mustAdd(t, sess, "North", "Total", 1)
	mustAdd(t, sess, "Coastal", "Total", 1)
	mustAdd(t, sess, "NewYork", "North", 1)
	require.NoError(t, sess.SetWeight("Coastal", "NewYork", 1))
	require.NoError(t, sess.Commit())

	metrics := newDim(t, "metrics", "Sales")
	dims := []*dimension.Dimension{regions, metrics}
	names := []string{"regions", "metrics"}
	c, err := cube.New("geo", dims, names, rule.NewEngine(), cache.New(64))
	require.NoError(t, err)
	return c, regions
}

func TestS4DiamondHierarchySumsWeights(t *testing.T) {
	c, _ := buildDiamondCube(t)
	require.NoError(t, c.Set(10, "NewYork", "Sales"))

	res, err := c.Get("Total", "Sales")
	require.NoError(t, err)
	assert.Equal(t, 20.0, res.Float())
}

func TestS5CacheInvalidationUnderStructuralEdit(t *testing.T) {
	c, regions := buildDiamondCube(t)
	require.NoError(t, c.Set(10, "NewYork", "Sales"))

	res, err := c.Get("Total", "Sales")
	require.NoError(t, err)
	assert.Equal(t, 20.0, res.Float())

	sess, err := regions.Edit()
	require.NoError(t, err)
	mustAdd(t, sess, "NY2", "Total", 1)
	require.NoError(t, sess.Commit())

	require.NoError(t, c.Set(5, "NY2", "Sales"))

	res, err = c.Get("Total", "Sales")
	require.NoError(t, err)
	assert.Equal(t, 25.0, res.Float())
}

func TestS6RecursionGuard(t *testing.T) {
	datatypes := newDim(t, "datatypes", "Actual", "Plan")
	years := newDim(t, "years", "Y1")
	engine := rule.NewEngine()
	planID, ok := datatypes.MemberByName("Plan")
	require.True(t, ok)
	engine.Register(rule.NewFuncRule("selfread", "finance", gridcube.AllLevels,
		rule.Trigger{Selectors: []rule.Selector{rule.One(planID), rule.Any()}}, false,
		func(cur *rule.Cursor) gridcube.RuleReturn {
			return gridcube.Val(cur.Float())
		}))

	dims := []*dimension.Dimension{datatypes, years}
	names := []string{"datatypes", "years"}
	c, err := cube.New("finance", dims, names, engine, cache.New(64))
	require.NoError(t, err)

	res, err := c.Get("Plan", "Y1")
	require.NoError(t, err)
	assert.Equal(t, gridcube.RecursionMarker, res.Sentinel)
	assert.False(t, res.IsValue)
}

func TestZeroDimensionCubeRejected(t *testing.T) {
	_, err := cube.New("empty", nil, nil, rule.NewEngine(), cache.New(64))
	require.Error(t, err)
	assert.True(t, gridcube.IsErrorType[gridcube.InvalidModelError](err))
}

func TestWriteToAggregatedAddressRejected(t *testing.T) {
	c, _ := buildDiamondCube(t)
	err := c.Set(1, "Total", "Sales")
	require.Error(t, err)
}

func TestAreaSetValueExpandAll(t *testing.T) {
	c, _ := buildDiamondCube(t)
	area, err := c.NewArea("Total", "Sales")
	require.NoError(t, err)
	require.NoError(t, area.SetValue(10, true))

	res, err := c.Get("NewYork", "Sales")
	require.NoError(t, err)
	assert.Equal(t, 10.0, res.Float())

	res, err = c.Get("Total", "Sales")
	require.NoError(t, err)
	assert.Equal(t, 20.0, res.Float())
}

func TestAreaShiftMovesFactsBetweenBaseMembers(t *testing.T) {
	c := buildTeslaCube(t)
	require.NoError(t, c.Set(400, "Plan", "2021", "Q1", "North", "Model S"))
	require.NoError(t, c.Set(50, "Plan", "2023", "Q1", "North", "Model S"))

	area, err := c.NewArea("Plan", "2021", "Q1", "North", "Model S")
	require.NoError(t, err)
	require.NoError(t, area.Shift("years", "2021", "2023"))

	res, err := c.Get("Plan", "2021", "Q1", "North", "Model S")
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Float())

	res, err = c.Get("Plan", "2023", "Q1", "North", "Model S")
	require.NoError(t, err)
	assert.Equal(t, 400.0, res.Float())
}

func TestAreaShiftRejectsUnknownDimension(t *testing.T) {
	c := buildTeslaCube(t)
	area, err := c.NewArea("Plan", "2021", "Q1", "North", "Model S")
	require.NoError(t, err)
	err = area.Shift("bogus", "2021", "2023")
	require.Error(t, err)
}
