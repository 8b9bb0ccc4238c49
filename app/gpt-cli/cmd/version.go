package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	gitCommit = "unknown"
	buildTime = "unknown"
)

// SetVersionInfo records the build information printed by the version command
func SetVersionInfo(v, commit, built string) {
	version, gitCommit, buildTime = v, commit, built
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipCredentialCheck: "true"},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "gpt-cli %s (commit %s, built %s)\n", version, gitCommit, buildTime)
		},
	}
}
