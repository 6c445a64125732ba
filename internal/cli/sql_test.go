package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLCommand(t *testing.T) {
	dir := writeModelDir(t)
	plan := writePlan(t, customerOrdersPlan)

	out, err := execute(t, NewSQLCommand(&RootOptions{Format: "text"}), dir, plan)
	require.NoError(t, err)
	assert.Contains(t, out, "FROM orders AS t0")
	assert.Contains(t, out, "INNER JOIN customers AS t1")
	assert.Contains(t, out, "WHERE (t1.name = ?)")
	assert.Contains(t, out, "param 1: Ada")
	assert.NotContains(t, out, "'Ada'", "values are parameterized, never interpolated")
}

func TestSQLCommandJSON(t *testing.T) {
	dir := writeModelDir(t)
	plan := writePlan(t, customerOrdersPlan)

	out, err := execute(t, NewSQLCommand(&RootOptions{Format: "json"}), dir, plan)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Contains(t, data["sql"], "INNER JOIN")
	assert.NotContains(t, data["sql"], "Ada")
	assert.Equal(t, []any{"Ada"}, data["params"])
}
