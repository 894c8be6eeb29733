package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "colpack",
	Short: "colpack - columnar compression for semi-structured values",
	Long: `colpack packs streams of semi-structured values (scalars, objects,
arrays) into compact column binaries, and bundles named columns into
self-describing blobs.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
