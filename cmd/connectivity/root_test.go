package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTablesCommandPrintsCodes(t *testing.T) {
	csvPath, err := filepath.Abs("../../internal/facility/testdata/facilities.csv")
	require.NoError(t, err)
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("reference:\n  source: csv\n  path: "+csvPath+"\n"), 0o600))
	t.Setenv("CONN_REFERENCE_SOURCE", "")
	t.Setenv("CONN_REFERENCE_PATH", "")

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"tables", "--config", cfgPath, "--env-file", filepath.Join(t.TempDir(), "none.env")})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "facilityOwnerType")
	assert.Contains(t, out.String(), "facilityType")
	assert.Contains(t, out.String(), "Government")
	assert.Contains(t, out.String(), "Hospital")
}

func TestServeRejectsBadConfig(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("indicators:\n  missing_policy: zero\n"), 0o600))

	cmd := newRootCommand()
	cmd.SetArgs([]string{"serve", "--config", cfgPath})
	assert.Error(t, cmd.Execute())
}
