package aggregate_test

import (
	"testing"

	"github.com/gridcube/gridcube/pkg/aggregate"
	"github.com/gridcube/gridcube/pkg/dimension"
	"github.com/gridcube/gridcube/pkg/gridcube"
	"github.com/gridcube/gridcube/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func passthrough(addr store.Address, stored float64) gridcube.Result {
	return gridcube.ValueResult(stored)
}

func buildTotalDim(t *testing.T, weights ...gridcube.Weight) (*dimension.Dimension, gridcube.MemberID, []gridcube.MemberID) {
	t.Helper()
	d := dimension.New("regions")
	s, err := d.Edit()
	require.NoError(t, err)
	_, err = s.AddMember("Total", "", 0)
	require.NoError(t, err)
	var children []gridcube.MemberID
	names := []string{"North", "South", "West", "East"}
	for i, n := range names {
		w := gridcube.Weight(1.0)
		if i < len(weights) {
			w = weights[i]
		}
		id, err := s.AddMember(n, "Total", w)
		require.NoError(t, err)
		children = append(children, id)
	}
	require.NoError(t, s.Commit())
	total, _ := d.MemberByName("Total")
	return d, total, children
}

func TestAggregateSumsWeightedChildren(t *testing.T) {
	d, total, children := buildTotalDim(t)
	fstore := store.New(1)
	fstore.Write(store.Address{children[0]}, 400)
	fstore.Write(store.Address{children[2]}, 200)

	result, err := aggregate.Aggregate([]*dimension.Dimension{d}, []gridcube.MemberID{total}, fstore, passthrough)
	require.NoError(t, err)
	assert.True(t, result.IsValue)
	assert.Equal(t, 600.0, result.Value)
}

func TestAggregateEmptyAreaIsZero(t *testing.T) {
	d, total, _ := buildTotalDim(t)
	fstore := store.New(1)
	result, err := aggregate.Aggregate([]*dimension.Dimension{d}, []gridcube.MemberID{total}, fstore, passthrough)
	require.NoError(t, err)
	assert.Equal(t, 0.0, result.Value)
}

func TestAggregateWeightedDelta(t *testing.T) {
	d := dimension.New("datatypes")
	s, _ := d.Edit()
	_, err := s.AddMember("Delta", "", 0)
	require.NoError(t, err)
	actual, err := s.AddMember("Actual", "Delta", 1)
	require.NoError(t, err)
	plan, err := s.AddMember("Plan", "Delta", -1)
	require.NoError(t, err)
	require.NoError(t, s.Commit())
	delta, _ := d.MemberByName("Delta")

	fstore := store.New(1)
	fstore.Write(store.Address{actual}, 150)
	fstore.Write(store.Address{plan}, 100)

	result, err := aggregate.Aggregate([]*dimension.Dimension{d}, []gridcube.MemberID{delta}, fstore, passthrough)
	require.NoError(t, err)
	assert.Equal(t, 50.0, result.Value) // S2
}

func TestAggregateBaseCellFuncOverridesStoredValue(t *testing.T) {
	d, total, children := buildTotalDim(t)
	fstore := store.New(1)
	fstore.Write(store.Address{children[0]}, 100)

	override := func(addr store.Address, stored float64) gridcube.Result {
		return gridcube.ValueResult(stored * 2)
	}
	result, err := aggregate.Aggregate([]*dimension.Dimension{d}, []gridcube.MemberID{total}, fstore, override)
	require.NoError(t, err)
	assert.Equal(t, 200.0, result.Value)
}
