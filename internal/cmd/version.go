package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the sisyphus release version, overridable at build time via
// -ldflags "-X .../internal/cmd.Version=v1.2.3".
var Version = "0.1.0-dev"

var versionCmd = &cobra.Command{
	Use:     "version",
	GroupID: GroupDiag,
	Short:   "Print the sisyphus version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("sisyphus %s\n", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
