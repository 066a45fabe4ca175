package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridcube/gridcube/pkg/gridcube"
)

func TestGetMissThenPutHit(t *testing.T) {
	c := New(2)
	key := Key{Cube: "sales", Address: "1|2"}

	_, ok := c.Get(key)
	assert.False(t, ok)

	c.Put(key, gridcube.ValueResult(7))
	got, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, 7.0, got.Value)
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	c := New(2)
	k1 := Key{Cube: "sales", Address: "1"}
	k2 := Key{Cube: "sales", Address: "2"}
	k3 := Key{Cube: "sales", Address: "3"}

	c.Put(k1, gridcube.ValueResult(1))
	c.Put(k2, gridcube.ValueResult(2))
	c.Get(k1) // promote k1, k2 becomes LRU
	c.Put(k3, gridcube.ValueResult(3))

	_, ok := c.Get(k2)
	assert.False(t, ok, "k2 should have been evicted")
	_, ok = c.Get(k1)
	assert.True(t, ok)
	_, ok = c.Get(k3)
	assert.True(t, ok)
}

func TestZeroCapacityDisablesCaching(t *testing.T) {
	c := New(0)
	key := Key{Cube: "sales", Address: "1"}
	c.Put(key, gridcube.ValueResult(1))
	_, ok := c.Get(key)
	assert.False(t, ok)
}

func TestInvalidateCubeDropsOnlyThatCube(t *testing.T) {
	c := New(10)
	kA := Key{Cube: "a", Address: "1"}
	kB := Key{Cube: "b", Address: "1"}
	c.Put(kA, gridcube.ValueResult(1))
	c.Put(kB, gridcube.ValueResult(2))

	c.InvalidateCube("a")

	_, ok := c.Get(kA)
	assert.False(t, ok)
	_, ok = c.Get(kB)
	assert.True(t, ok)
}
