package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-orm/kestrel/internal/compiler"
)

func TestValidateValidModel(t *testing.T) {
	dir := writeModelDir(t)

	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Model valid (2 entities)")
}

func TestValidateValidModelJSON(t *testing.T) {
	dir := writeModelDir(t)

	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "json"}), dir)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestValidateReportsModelErrors(t *testing.T) {
	// The navigation targets an entity that does not exist; compilation
	// succeeds but model validation must flag it.
	dir := writeModelDirWith(t, `
package sales

entities: {
	Order: {
		table: "orders"
		key: ["Id"]
		properties: {
			Id:        "int"
			AccountId: "int"
		}
		navigations: {
			Account: {target: "Account", foreignKey: ["AccountId"], dependent: true}
		}
	}
}
`)
	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, compiler.ErrNavUnknownTarget)
	assert.Contains(t, out, "✗ 1 validation error(s)")
}

func TestValidateNonExistentDirectory(t *testing.T) {
	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), "/nonexistent/directory/path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeNotFound)
	assert.Contains(t, out, "not found")
}
