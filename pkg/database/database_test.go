package database_test

import (
	"testing"

	"github.com/gridcube/gridcube/pkg/database"
	"github.com/gridcube/gridcube/pkg/dimension"
	"github.com/gridcube/gridcube/pkg/gridcube"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddCubeRequiresRegisteredDimensions(t *testing.T) {
	db := database.New("test")
	_, err := db.AddCube("sales", []string{"years"})
	require.Error(t, err)
}

func TestRemoveDimensionInUseRejected(t *testing.T) {
	db := database.New("test")
	_, err := db.AddDimension("years")
	require.NoError(t, err)
	err = db.EditDimension("years", func(s *dimension.Session) error {
		_, e := s.AddMember("2021", "", 1)
		if e != nil {
			return e
		}
		return s.Commit()
	})
	require.NoError(t, err)

	_, err = db.AddCube("sales", []string{"years"})
	require.NoError(t, err)

	err = db.RemoveDimension("years")
	require.Error(t, err)
	assert.True(t, gridcube.IsErrorType[gridcube.DimensionInUseError](err))
}

func TestWriteAndFacts(t *testing.T) {
	db := database.New("test")
	_, err := db.AddDimension("years")
	require.NoError(t, err)
	require.NoError(t, db.EditDimension("years", func(s *dimension.Session) error {
		if _, e := s.AddMember("2021", "", 1); e != nil {
			return e
		}
		return s.Commit()
	}))
	_, err = db.AddCube("sales", []string{"years"})
	require.NoError(t, err)

	require.NoError(t, db.Write("sales", 42, "2021"))

	facts, err := db.Facts("sales")
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, []string{"2021"}, facts[0].Address)
	assert.Equal(t, 42.0, facts[0].Value)
}

// stubJournal records every AppendFactWrite call, for TestWriteJournals.
type stubJournal struct {
	calls int
}

func (s *stubJournal) AppendFactWrite(cubeName string, address []string, value float64) error {
	s.calls++
	return nil
}

func TestWriteJournals(t *testing.T) {
	db := database.New("test")
	_, err := db.AddDimension("years")
	require.NoError(t, err)
	require.NoError(t, db.EditDimension("years", func(s *dimension.Session) error {
		if _, e := s.AddMember("2021", "", 1); e != nil {
			return e
		}
		return s.Commit()
	}))
	_, err = db.AddCube("sales", []string{"years"})
	require.NoError(t, err)

	j := &stubJournal{}
	db.SetJournal(j)

	require.NoError(t, db.Write("sales", 42, "2021"))
	assert.Equal(t, 1, j.calls)
}

func TestRemoveMemberCascadesFactDeletion(t *testing.T) {
	db := database.New("test")
	_, err := db.AddDimension("years")
	require.NoError(t, err)
	require.NoError(t, db.EditDimension("years", func(s *dimension.Session) error {
		if _, e := s.AddMember("2021", "", 1); e != nil {
			return e
		}
		if _, e := s.AddMember("2022", "", 1); e != nil {
			return e
		}
		return s.Commit()
	}))
	_, err = db.AddCube("sales", []string{"years"})
	require.NoError(t, err)
	require.NoError(t, db.Write("sales", 42, "2021"))
	require.NoError(t, db.Write("sales", 7, "2022"))

	require.NoError(t, db.EditDimension("years", func(s *dimension.Session) error {
		if _, e := s.RemoveMember("2021"); e != nil {
			return e
		}
		return s.Commit()
	}))

	facts, err := db.Facts("sales")
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, []string{"2022"}, facts[0].Address)
}
