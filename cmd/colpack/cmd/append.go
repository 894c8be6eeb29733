package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/colpack/colpack/element"
	"github.com/colpack/colpack/format"
	"github.com/colpack/colpack/store"
)

var (
	appendDB          string
	appendCompression string
)

// appendCmd appends JSON values to a stored series, reopening the sealed
// column binary in place.
var appendCmd = &cobra.Command{
	Use:   "append --db <path> <series> <json-value>...",
	Short: "Append values to a series in a column store",
	Long: `Append adds one or more JSON values to a series in an embedded column
store, creating the store and the series as needed. The stored binary is
resumed rather than re-encoded, so appends stay cheap as a series grows.

Example:
  colpack append --db metrics.db cpu.usage 0.42 0.43`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		compression, ok := format.ParseCompression(appendCompression)
		if !ok {
			return fmt.Errorf("unknown compression codec %q", appendCompression)
		}

		elems := make([]element.Element, 0, len(args)-1)
		for _, arg := range args[1:] {
			el, err := element.FromJSON([]byte(arg))
			if err != nil {
				return fmt.Errorf("value %q: %w", arg, err)
			}
			elems = append(elems, el)
		}

		s, err := store.Open(appendDB, store.WithCompression(compression))
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.Append(args[0], elems...); err != nil {
			return err
		}

		meta, err := s.Meta(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "series %q now holds %d elements\n", args[0], meta.Count)

		return nil
	},
}

func init() {
	appendCmd.Flags().StringVar(&appendDB, "db", "colpack.db", "path to the column store database")
	appendCmd.Flags().StringVar(&appendCompression, "compression", "none",
		"at-rest compression codec (none, zstd, s2, lz4, snappy)")
	rootCmd.AddCommand(appendCmd)
}
