package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
)

func TestArgOr(t *testing.T) {
	args := []string{"data/2024", "out/combined.csv"}
	assert.Equal(t, "data/2024", argOr(args, 0, "data/raw"))
	assert.Equal(t, "out/combined.csv", argOr(args, 1, "data/processed"))
	assert.Equal(t, "data/processed", argOr(args[:1], 1, "data/processed"))
	assert.Equal(t, "data/raw", argOr(nil, 0, "data/raw"))
	assert.Equal(t, "data/raw", argOr([]string{""}, 0, "data/raw"))
}

func TestPipelineCommandsTakePositionalPaths(t *testing.T) {
	tests := []struct {
		cmd  *cobra.Command
		args []string
	}{
		{cmd: extractCmd, args: []string{"data/raw", "data/processed"}},
		{cmd: profilesCmd, args: []string{"data/processed", "out.csv"}},
		{cmd: narrativesCmd, args: []string{"profiles.csv", "out.json"}},
		{cmd: loadCmd, args: []string{"profiles.csv", "narratives.json"}},
		{cmd: placementsAnalyzeCmd, args: []string{"data/raw", "out.csv"}},
		{cmd: placementsApplyCmd, args: []string{"analysis.csv"}},
	}
	for _, tt := range tests {
		t.Run(tt.cmd.Name(), func(t *testing.T) {
			assert.NoError(t, tt.cmd.ValidateArgs(nil), "paths must be optional")
			assert.NoError(t, tt.cmd.ValidateArgs(tt.args))
			assert.Error(t, tt.cmd.ValidateArgs(append(tt.args, "extra")))
		})
	}
}
