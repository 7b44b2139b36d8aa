package projectconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileYieldsZeroValue(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	require.NoError(t, err)
	assert.Empty(t, cfg.Project)
	assert.Empty(t, cfg.Pools)
}

func TestLoad_ParsesProjectAndPools(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".litani.yml")
	doc := "project: demo\nparallel: 4\npools:\n  - name: io\n    depth: 2\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "demo", cfg.Project)
	assert.Equal(t, 4, cfg.Parallel)

	pools := cfg.ModelPools()
	require.Len(t, pools, 1)
	assert.Equal(t, "io", pools[0].Name)
	assert.Equal(t, 2, pools[0].Depth)
}
