package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Set at build time with -ldflags "-X snowops/cmd/cli/cmd.Version=..."
var (
	Version = "0.1.0"
	Commit  = "dev"
)

// versionCmd prints version information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "snowops version %s (%s, %s)\n", Version, Commit, runtime.Version())
	},
}
