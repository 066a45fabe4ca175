package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridcube/gridcube/pkg/gridcube"
)

func TestReadMissingIsZero(t *testing.T) {
	s := New(2)
	assert.Equal(t, 0.0, s.Read(Address{1, 1}))
}

func TestWriteReadRoundTrip(t *testing.T) {
	s := New(2)
	s.Write(Address{1, 2}, 42.0)
	assert.Equal(t, 42.0, s.Read(Address{1, 2}))
	assert.Equal(t, 1, s.Count())
}

func TestWriteZeroRemoves(t *testing.T) {
	s := New(2)
	s.Write(Address{1, 2}, 5.0)
	require.Equal(t, 1, s.Count())
	s.Write(Address{1, 2}, 0.0)
	assert.Equal(t, 0, s.Count())
	assert.Equal(t, 0.0, s.Read(Address{1, 2}))
}

func TestIterAreaNarrowsOnInvertedIndex(t *testing.T) {
	s := New(2)
	s.Write(Address{1, 1}, 10)
	s.Write(Address{1, 2}, 20)
	s.Write(Address{2, 1}, 30)

	facts := s.IterArea([]map[gridcube.MemberID]bool{{1: true}, nil})
	require.Len(t, facts, 2)
	total := 0.0
	for _, f := range facts {
		total += f.Value
	}
	assert.Equal(t, 30.0, total)
}

func TestDeleteWhereMemberUsedCascades(t *testing.T) {
	s := New(2)
	s.Write(Address{1, 1}, 10)
	s.Write(Address{1, 2}, 20)
	s.Write(Address{2, 1}, 30)

	n := s.DeleteWhereMemberUsed(0, 1)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, s.Count())
	assert.Equal(t, 30.0, s.Read(Address{2, 1}))
}
