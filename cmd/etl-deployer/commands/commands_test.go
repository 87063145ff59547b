package commands

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func flagNames(cmd *cli.Command) []string {
	var names []string
	for _, f := range cmd.Flags {
		names = append(names, f.Names()...)
	}
	return names
}

func TestCommandSurface(t *testing.T) {
	logger := zerolog.Nop()

	testCases := []struct {
		command *cli.Command
		name    string
		aliases []string
		flags   []string
		local   bool // packaging runs without the project/env flag set
	}{
		{
			command: SetupCommand(&logger),
			name:    "setup",
			flags:   []string{"artifact", "glue-script", "dry-run", "credentials-secret"},
		},
		{
			command: PackageCommand(&logger),
			name:    "package",
			flags:   []string{"manifest", "variant", "output"},
			local:   true,
		},
		{
			command: ImportCommand(&logger),
			name:    "import-resources",
			aliases: []string{"import"},
		},
		{
			command: RunLocalCommand(&logger),
			name:    "run-local",
			aliases: []string{"upload"},
			flags:   []string{"file", "key", "simulate"},
		},
		{
			command: MonitorCommand(&logger),
			name:    "monitor",
		},
		{
			command: TeardownCommand(&logger),
			name:    "teardown",
			flags:   []string{"force"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.NotNil(t, tc.command)
			assert.Equal(t, tc.name, tc.command.Name)
			for _, alias := range tc.aliases {
				assert.Contains(t, tc.command.Aliases, alias)
			}
			names := flagNames(tc.command)
			want := tc.flags
			if !tc.local {
				want = append(want, "project", "env", "region")
			}
			for _, flag := range want {
				assert.Contains(t, names, flag)
			}
		})
	}
}
