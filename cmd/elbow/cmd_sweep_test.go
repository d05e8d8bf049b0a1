package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okian/elbow/internal/adapters/registry"
)

// writeWorkspace lays out a dataset and a config file for the local backend.
func writeWorkspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	var b strings.Builder
	b.WriteString("x,label\n")
	for i := range 120 {
		x := float64(i % 12)
		y := 2.0
		if x > 6 {
			y = 5
		}
		fmt.Fprintf(&b, "%g,%g\n", x, y)
	}
	data := filepath.Join(dir, "data.csv")
	require.NoError(t, os.WriteFile(data, []byte(b.String()), 0o600))

	cfg := fmt.Sprintf(`backend: local
algorithm: gbt
learning_rate: 0.3
data_path: %q
label_column: label
feature_columns: [x]
model_name: cli
retrain: true
work_dir: %q
registry_dir: %q
`, data, filepath.Join(dir, "work"), filepath.Join(dir, "models"))
	path := filepath.Join(dir, "elbow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return path
}

func TestSweepAndModelsCommands(t *testing.T) {
	cfg := writeWorkspace(t)

	out, err := runCommand(t, "--config", cfg, "sweep", "--start", "1", "--stop", "8", "-f", "json")
	require.NoError(t, err)

	var rep sweepReport
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Len(t, rep.Points, 8)
	assert.Equal(t, "models:/cli/1", rep.ModelURI)

	out, err = runCommand(t, "--config", cfg, "models", "list", "-f", "json")
	require.NoError(t, err)
	var metas []registry.Metadata
	require.NoError(t, json.Unmarshal([]byte(out), &metas))
	require.Len(t, metas, 1)
	assert.Equal(t, rep.Recommendation.Param, metas[0].Param)

	out, err = runCommand(t, "--config", cfg, "models", "get", metas[0].ID)
	require.NoError(t, err)
	assert.Contains(t, out, metas[0].ID)
	assert.Contains(t, out, "flavors: 1")

	_, err = runCommand(t, "--config", cfg, "models", "get", "missing")
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

func TestSweepCommandRejectsBadRange(t *testing.T) {
	cfg := writeWorkspace(t)
	_, err := runCommand(t, "--config", cfg, "sweep", "--start", "5", "--stop", "2")
	assert.Error(t, err)
}
