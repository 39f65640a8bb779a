package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCmd(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("PAYDASH_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--env-file", filepath.Join(t.TempDir(), "absent.env"), "--source", "demo"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestSummaryCommand(t *testing.T) {
	stdout, stderr, err := runCmd(t, "summary")
	require.NoError(t, err, stderr)

	var summary struct {
		Totals struct {
			Records       int    `json:"records"`
			FinalAmount   string `json:"final_amount"`
			PendingAmount string `json:"pending_amount"`
		} `json:"totals"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &summary), stdout)
	assert.Equal(t, "91102303.3", summary.Totals.FinalAmount)
	assert.Equal(t, "54179040", summary.Totals.PendingAmount)
	assert.Contains(t, stderr, `"level"`, "logs belong on stderr")
}

func TestSummaryCommand_InvalidFilter(t *testing.T) {
	_, _, err := runCmd(t, "summary", "--min-final", "10", "--max-final", "1")
	assert.Error(t, err)

	_, _, err = runCmd(t, "summary", "--min-final", "ten")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--min-final")
}

func TestExportCommand(t *testing.T) {
	t.Run("stdout", func(t *testing.T) {
		stdout, stderr, err := runCmd(t, "export", "--mode", "Cash")
		require.NoError(t, err, stderr)

		lines := strings.Split(strings.TrimSpace(stdout), "\n")
		require.Greater(t, len(lines), 1)
		assert.True(t, strings.HasPrefix(lines[0], "unit_name,work_order_no"))
		for _, line := range lines[1:] {
			assert.Contains(t, line, "Cash")
		}
	})

	t.Run("file", func(t *testing.T) {
		out := filepath.Join(t.TempDir(), "ledger.csv")
		stdout, stderr, err := runCmd(t, "export", "--out", out)
		require.NoError(t, err, stderr)
		assert.Empty(t, stdout)
		assert.Contains(t, stderr, out)

		data, err := os.ReadFile(out)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(data, []byte("unit_name,")))
	})
}

func TestSourcesCommand(t *testing.T) {
	stdout, stderr, err := runCmd(t, "sources")
	require.NoError(t, err, stderr)

	var body struct {
		Attempts []struct {
			Source string `json:"source"`
			Rows   int    `json:"rows"`
		} `json:"attempts"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &body))
	require.Len(t, body.Attempts, 1)
	assert.Equal(t, "demo", body.Attempts[0].Source)
	assert.Positive(t, body.Attempts[0].Rows)
}

func TestUnknownSource(t *testing.T) {
	_, _, err := runCmd(t, "--source", "ftp", "summary")
	assert.Error(t, err)
}
