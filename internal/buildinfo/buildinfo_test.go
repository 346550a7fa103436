package buildinfo

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPrintBuildData(t *testing.T) {
	old := Version
	Version = "v0.1.0"
	t.Cleanup(func() { Version = old })

	var buf bytes.Buffer
	PrintBuildData(&buf)

	require.Contains(t, buf.String(), "Build version: v0.1.0")
	require.Contains(t, buf.String(), "Build date: N/A")
}
