package dimension_test

import (
	"testing"

	"github.com/gridcube/gridcube/pkg/dimension"
	"github.com/gridcube/gridcube/pkg/gridcube"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildRegions(t *testing.T) *dimension.Dimension {
	t.Helper()
	d := dimension.New("regions")
	s, err := d.Edit()
	require.NoError(t, err)
	_, err = s.AddMember("Total", "", 0)
	require.NoError(t, err)
	_, err = s.AddMember("North", "Total", 1)
	require.NoError(t, err)
	_, err = s.AddMember("Coastal", "Total", 1)
	require.NoError(t, err)
	_, err = s.AddMember("NewYork", "North", 1)
	require.NoError(t, err)
	require.NoError(t, s.SetWeight("Coastal", "NewYork", 1))
	require.NoError(t, s.Commit())
	return d
}

func TestDiamondLeafExpansionSumsWeights(t *testing.T) {
	d := buildRegions(t)
	total, _ := d.MemberByName("Total")
	ny, _ := d.MemberByName("NewYork")

	exp, err := d.LeafExpansion(total)
	require.NoError(t, err)
	require.Len(t, exp, 1)
	assert.Equal(t, ny, exp[0].Base)
	assert.Equal(t, 2.0, exp[0].Weight) // S4: NewYork reachable via North and Coastal, both weight +1
}

func TestCycleRejected(t *testing.T) {
	d := dimension.New("x")
	s, err := d.Edit()
	require.NoError(t, err)
	_, err = s.AddMember("A", "", 0)
	require.NoError(t, err)
	_, err = s.AddMember("B", "A", 1)
	require.NoError(t, err)
	err = s.SetWeight("B", "A", 1)
	require.Error(t, err)
	assert.True(t, gridcube.IsCycleDetectedError(err))
}

func TestDuplicateNameRejected(t *testing.T) {
	d := dimension.New("x")
	s, _ := d.Edit()
	_, err := s.AddMember("A", "", 0)
	require.NoError(t, err)
	_, err = s.AddMember("a", "", 0) // case-insensitive collision
	require.Error(t, err)
	assert.True(t, gridcube.IsDuplicateNameError(err))
}

func TestRenamePreservesOldNameAsAlias(t *testing.T) {
	d := dimension.New("datatypes")
	s, _ := d.Edit()
	_, err := s.AddMember("Actual", "", 0)
	require.NoError(t, err)
	require.NoError(t, s.Rename("Actual", "Real"))
	require.NoError(t, s.Commit())

	idByNew, ok := d.MemberByName("Real")
	require.True(t, ok)
	idByOld, ok := d.MemberByName("Actual")
	require.True(t, ok)
	assert.Equal(t, idByNew, idByOld)
}

func TestRemoveMemberCascadesAndReportsRemoved(t *testing.T) {
	d := buildRegions(t)
	s, err := d.Edit()
	require.NoError(t, err)
	removedID, err := s.RemoveMember("NewYork")
	require.NoError(t, err)
	require.NoError(t, s.Commit())

	assert.Equal(t, []gridcube.MemberID{removedID}, s.Removed())
	assert.False(t, d.Exists(removedID))
}

func TestWeightedDeltaExpansion(t *testing.T) {
	d := dimension.New("datatypes")
	s, _ := d.Edit()
	_, err := s.AddMember("Delta", "", 0)
	require.NoError(t, err)
	_, err = s.AddMember("Actual", "Delta", 1)
	require.NoError(t, err)
	_, err = s.AddMember("Plan", "Delta", -1)
	require.NoError(t, err)
	require.NoError(t, s.Commit())

	delta, _ := d.MemberByName("Delta")
	exp, err := d.LeafExpansion(delta)
	require.NoError(t, err)
	require.Len(t, exp, 2)
	weights := map[gridcube.MemberID]float64{}
	for _, lw := range exp {
		weights[lw.Base] = lw.Weight
	}
	actual, _ := d.MemberByName("Actual")
	plan, _ := d.MemberByName("Plan")
	assert.Equal(t, 1.0, weights[actual])
	assert.Equal(t, -1.0, weights[plan])
}
