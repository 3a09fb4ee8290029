package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/dataflowgo/internal/cli"
)

func TestRunHelp(t *testing.T) {
	t.Parallel()
	var out, errOut bytes.Buffer

	err := run(context.Background(), &out, &errOut, []string{"--help"})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "USAGE:")
	assert.Contains(t, out.String(), "serve")
}

func TestRunUnknownFlag(t *testing.T) {
	t.Parallel()
	var out, errOut bytes.Buffer

	err := run(context.Background(), &out, &errOut, []string{"--this-is-not-a-valid-flag"})
	var exitErr *cli.ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, cli.ExitUsage, exitErr.Code)
	assert.Contains(t, exitErr.Message, "this-is-not-a-valid-flag")
}

func TestRunBrokenNetworkFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "main.hcl")
	broken := `
module "src" {
  type = "SendTestMatrix"
`
	require.NoError(t, os.WriteFile(path, []byte(broken), 0o600))
	var out, errOut bytes.Buffer

	err := run(context.Background(), &out, &errOut, []string{"run", path})
	var exitErr *cli.ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, cli.ExitFailure, exitErr.Code)
	assert.Contains(t, exitErr.Message, "failed to parse")
	assert.Empty(t, out.String())
}
