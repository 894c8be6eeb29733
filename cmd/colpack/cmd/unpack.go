package cmd

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/colpack/colpack/blob"
	"github.com/colpack/colpack/element"
)

// unpackCmd replays a blob's columns back into JSON.
var unpackCmd = &cobra.Command{
	Use:   "unpack <in.blob> [column...]",
	Short: "Unpack a column blob to JSON lines",
	Long: `Unpack decodes a column blob. With column names given, it reassembles
one JSON object per row from those columns, eliding fields whose column holds
a hole. Without names it dumps every column keyed by field ID, since the blob
index stores only the 64-bit hash of each name.

Examples:
  colpack unpack readings.blob temperature pressure
  colpack unpack readings.blob`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		decoder, err := blob.NewDecoder(data)
		if err != nil {
			return err
		}

		out := bufio.NewWriter(cmd.OutOrStdout())
		defer out.Flush()

		if len(args) > 1 {
			return unpackRows(out, decoder, args[1:])
		}

		return unpackByID(out, decoder)
	},
}

func unpackRows(out *bufio.Writer, decoder *blob.Decoder, names []string) error {
	columns := make([][]element.Element, len(names))
	rows := 0
	for i, name := range names {
		col, err := decoder.Column(name)
		if err != nil {
			return err
		}
		values, err := col.Values()
		if err != nil {
			return fmt.Errorf("column %q: %w", name, err)
		}
		columns[i] = values
		rows = max(rows, len(values))
	}

	for row := range rows {
		builder := element.NewObjectBuilder()
		for i, values := range columns {
			if row >= len(values) || values[row].IsMissing() {
				continue
			}
			builder.Append(names[i], values[row])
		}

		data, err := element.ToJSON(builder.Build())
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\n", data)
	}

	return nil
}

func unpackByID(out *bufio.Writer, decoder *blob.Decoder) error {
	for _, id := range decoder.FieldIDs() {
		col, err := decoder.ColumnByID(id)
		if err != nil {
			return err
		}
		values, err := col.Values()
		if err != nil {
			return fmt.Errorf("column %016x: %w", id, err)
		}

		// Holes print as null; Array elides missing elements outright.
		for i, el := range values {
			if el.IsMissing() {
				values[i] = element.Null()
			}
		}

		data, err := element.ToJSON(element.Array(values...))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%016x\t%s\n", id, data)
	}

	return nil
}

func init() {
	rootCmd.AddCommand(unpackCmd)
}
