package capomastro

import (
	"fmt"

	"github.com/spf13/cobra"
)

// set via -ldflags at build time
var version = "development"

func newVersionCommand() *cobra.Command {
	var versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(*cobra.Command, []string) {
			fmt.Println(version)
		},
	}
	return versionCmd
}
