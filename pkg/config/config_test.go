package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gridcube/gridcube/pkg/config"
	"github.com/gridcube/gridcube/pkg/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const modelYAML = `
dimensions:
  - name: years
    members:
      - name: "2021"
      - name: "2022"
  - name: metrics
    members:
      - name: Sales
cubes:
  - name: sales
    dimensions: [years, metrics]
rules:
  - name: double-2021
    cube: sales
    scope: ALL_LEVELS
    trigger: ["2021", Sales]
    body: "{{ mul (.At \"metrics\").Float 2 }}"
`

func TestApplyModelBuildsDatabase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.yaml")
	require.NoError(t, os.WriteFile(path, []byte(modelYAML), 0o644))

	m, err := config.Load(path)
	require.NoError(t, err)

	db := database.New("test")
	status := config.Apply(db, m)
	require.True(t, status.OK(), status.Error())

	c, ok := db.Cube("sales")
	require.True(t, ok)
	assert.Equal(t, 2, c.Arity())
}

func TestApplyCollectsErrorsWithoutAborting(t *testing.T) {
	m := &config.Model{
		Cubes: []config.CubeSpec{{Name: "orphan", Dimensions: []string{"missing"}}},
	}
	db := database.New("test")
	status := config.Apply(db, m)
	assert.False(t, status.OK())
	assert.Len(t, status.Errors, 1)
}
