package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/adforge/adforge/cmd/adforge/internal/build"
	"github.com/adforge/adforge/cmd/adforge/internal/config"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(build.String())
		if IsVerbose() {
			fmt.Printf("  go:     %s\n", runtime.Version())
			if p, err := config.DefaultPath(); err == nil {
				fmt.Printf("  config: %s\n", p)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
