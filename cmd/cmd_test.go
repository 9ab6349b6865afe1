package cmd

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupProject writes a config file and a repository tree with two valid
// packages and one invalid, returning the config path.
func setupProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	root := filepath.Join(dir, "packages")

	writePkg := func(sub, content string) {
		path := filepath.Join(root, sub)
		require.NoError(t, os.MkdirAll(path, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(path, "package.json"), []byte(content), 0o644))
	}
	writePkg("alpha", `{"name": "Alpha", "identifier": "A1"}`)
	writePkg("beta", `{"name": "Beta", "identifier": "B2"}`)
	writePkg("broken", `{"identifier": "X1"}`)

	cfgPath := filepath.Join(dir, ".packhouse.yml")
	cfgContent := "logging:\n  level: error\nrepositories:\n  - name: main\n    directory: " + root + "\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfgContent), 0o644))
	return cfgPath
}

// runCommand executes the CLI with args and returns its combined output.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	// reset flag state shared between invocations
	listRepo, listInvalid, listFormat = "", false, "table"
	getRepo = ""
	exportRepo, exportOutput = "", ""

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestScanCommand(t *testing.T) {
	cfgPath := setupProject(t)

	out, err := runCommand(t, "scan", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "main")
	assert.Contains(t, out, "2") // indexed packages
	assert.Contains(t, out, "1") // invalid packages
}

func TestScanCommand_UnknownRepository(t *testing.T) {
	cfgPath := setupProject(t)
	_, err := runCommand(t, "scan", "ghost", "--config", cfgPath)
	assert.Error(t, err)
}

func TestListCommand(t *testing.T) {
	cfgPath := setupProject(t)

	out, err := runCommand(t, "list", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "A1")
	assert.Contains(t, out, "Alpha")
	assert.Contains(t, out, "B2")
	assert.NotContains(t, out, "X1")
}

func TestListCommand_Invalid(t *testing.T) {
	cfgPath := setupProject(t)

	out, err := runCommand(t, "list", "--invalid", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "broken")
	assert.NotContains(t, out, "Alpha")
}

func TestListCommand_YAML(t *testing.T) {
	cfgPath := setupProject(t)

	out, err := runCommand(t, "list", "--format", "yaml", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "identifier: A1")
}

func TestGetCommand(t *testing.T) {
	cfgPath := setupProject(t)

	out, err := runCommand(t, "get", "A1", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Alpha")

	_, err = runCommand(t, "get", "missing", "--config", cfgPath)
	assert.Error(t, err)
}

func TestExportCommand(t *testing.T) {
	cfgPath := setupProject(t)
	output := filepath.Join(t.TempDir(), "alpha.zip")

	_, err := runCommand(t, "export", "A1", "--output", output, "--config", cfgPath)
	require.NoError(t, err)

	zr, err := zip.OpenReader(output)
	require.NoError(t, err)
	defer zr.Close()
	require.Len(t, zr.File, 1)
	assert.Equal(t, "package.json", zr.File[0].Name)
}

func TestVersionCommand(t *testing.T) {
	out, err := runCommand(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "packhouse")
}
