package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

var (
	blogModels    = filepath.Join("..", "..", "testdata", "models")
	blogData      = filepath.Join("..", "..", "testdata", "data", "blog.yaml")
	blogScenarios = filepath.Join("..", "..", "testdata", "scenarios")
)

// writeSpecDir writes content as the only CUE file of a new directory.
func writeSpecDir(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "models.cue"), []byte(content), 0644))
	return dir
}

// execute runs cmd with args and returns what it wrote to stdout.
func execute(cmd *cobra.Command, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}
