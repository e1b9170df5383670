package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/merchantscaravan/caravan-server/internal/sim"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSimulatorJSONOutput(t *testing.T) {
	out, err := execute(t, "--games", "2", "--players", "3", "--seed", "5", "--format", "json")
	require.NoError(t, err)

	var summary sim.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, 2, summary.Games)
	assert.Positive(t, summary.Commands)
}

func TestSimulatorTextOutput(t *testing.T) {
	out, err := execute(t, "--games", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "games:        1")
}

func TestSimulatorRejectsBadFlags(t *testing.T) {
	_, err := execute(t, "--format", "yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")

	_, err = execute(t, "--players", "12")
	assert.Error(t, err)
}
