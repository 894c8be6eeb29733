package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/colpack/colpack/blob"
)

// inspectCmd prints a blob's header and column table.
var inspectCmd = &cobra.Command{
	Use:   "inspect <in.blob>",
	Short: "Show a blob's header and column table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		decoder, err := blob.NewDecoder(data)
		if err != nil {
			return err
		}

		header := decoder.Header()
		out := cmd.OutOrStdout()

		fmt.Fprintf(out, "file:         %s (%d bytes)\n", args[0], len(data))
		fmt.Fprintf(out, "magic:        %#04x (version %d)\n",
			header.Flag.GetMagicNumber(), header.Flag.Version)
		fmt.Fprintf(out, "endianness:   %s\n", endiannessName(header.Flag.IsBigEndian()))
		fmt.Fprintf(out, "compression:  %s\n", header.Flag.Compression())
		fmt.Fprintf(out, "checksum:     %s\n", checksumName(header.Flag.HasChecksum(), header.Checksum))
		fmt.Fprintf(out, "columns:      %d\n", decoder.ColumnCount())
		fmt.Fprintf(out, "payload:      %d bytes stored, %d bytes raw\n",
			len(data)-int(header.PayloadOffset), header.PayloadLength)

		if decoder.ColumnCount() == 0 {
			return nil
		}

		fmt.Fprintln(out)
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "FIELD ID\tOFFSET\tBYTES\tELEMENTS")
		for _, entry := range decoder.Index() {
			fmt.Fprintf(w, "%016x\t%d\t%d\t%d\n",
				entry.FieldID, entry.Offset, entry.Length, entry.Count)
		}

		return w.Flush()
	},
}

func endiannessName(big bool) string {
	if big {
		return "big"
	}

	return "little"
}

func checksumName(enabled bool, sum uint32) string {
	if !enabled {
		return "disabled"
	}

	return fmt.Sprintf("crc32c %#08x", sum)
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
