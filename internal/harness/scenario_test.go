package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadScenario(t *testing.T) {
	sc, err := LoadScenario(filepath.Join("testdata", "scenarios", "required_reference.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "required_reference", sc.Name)
	assert.Equal(t, "Order", sc.Plan.Source)
	require.NotNil(t, sc.Expect.Joins)
	assert.Equal(t, 1, *sc.Expect.Joins)
	assert.Equal(t, filepath.Join("testdata", "sales.cue"), sc.ModelPath())
}

func TestLoadScenarioRejectsIncomplete(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "missing name",
			src:  "model: m.cue\nplan: {source: Order}",
			want: "has no name",
		},
		{
			name: "missing model",
			src:  "name: x\nplan: {source: Order}",
			want: "has no model",
		},
		{
			name: "missing plan source",
			src:  "name: x\nmodel: m.cue",
			want: "has no plan source",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "scenario.yaml")
			writeFile(t, path, tt.src)
			_, err := LoadScenario(path)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestLoadScenarioDirSorted(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.yaml"), "name: b\nmodel: m.cue\nplan: {source: X}")
	writeFile(t, filepath.Join(dir, "a.yaml"), "name: a\nmodel: m.cue\nplan: {source: X}")
	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored")

	scenarios, err := LoadScenarioDir(dir)
	require.NoError(t, err)
	require.Len(t, scenarios, 2)
	assert.Equal(t, "a", scenarios[0].Name)
	assert.Equal(t, "b", scenarios[1].Name)
}
