package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const salesModelCUE = `
package sales

entities: {
	Customer: {
		table: "customers"
		key: ["Id"]
		properties: {
			Id:   "int"
			Name: "string"
			City: "string?"
		}
		navigations: {
			Orders: {target: "Order", foreignKey: ["CustomerId"], collection: true}
		}
	}
	Order: {
		table: "orders"
		key: ["Id"]
		properties: {
			Id:         "int"
			CustomerId: "int"
			Total:      "float"
		}
		navigations: {
			Customer: {target: "Customer", foreignKey: ["CustomerId"], dependent: true}
		}
	}
}
`

const customerOrdersPlan = `
source: Order
pipeline:
  - where: {path: Customer.Name, value: Ada}
`

// writeModelDir writes a valid sales model into a fresh directory.
func writeModelDir(t *testing.T) string {
	t.Helper()
	return writeModelDirWith(t, salesModelCUE)
}

func writeModelDirWith(t *testing.T, cueSrc string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "model.cue"), []byte(cueSrc), 0o644))
	return dir
}

func writePlan(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

// execute runs a command with captured stdout and returns the output.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}
