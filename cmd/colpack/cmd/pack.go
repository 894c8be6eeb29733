package cmd

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/colpack/colpack/blob"
	"github.com/colpack/colpack/column"
	"github.com/colpack/colpack/element"
	"github.com/colpack/colpack/format"
)

var (
	packCompression      string
	packInterleaveFactor int
)

// packCmd turns a JSON-lines file into a column blob, one column per
// top-level field.
var packCmd = &cobra.Command{
	Use:   "pack <in.jsonl> <out.blob>",
	Short: "Pack a JSON-lines file into a column blob",
	Long: `Pack reads one JSON value per line and writes a column blob with one
column per top-level object field. Rows missing a field record a hole, so
columns stay aligned row by row.

Example:
  colpack pack readings.jsonl readings.blob --compression zstd`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		compression, ok := format.ParseCompression(packCompression)
		if !ok {
			return fmt.Errorf("unknown compression codec %q", packCompression)
		}

		in, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer in.Close()

		encoder, err := blob.NewEncoder(
			blob.WithCompression(compression),
			blob.WithColumnOptions(column.WithInterleaveBufferFactor(packInterleaveFactor)),
		)
		if err != nil {
			return err
		}

		p := packer{encoder: encoder, columns: make(map[string]*blob.Column)}

		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
		line := 0
		for scanner.Scan() {
			line++
			if len(scanner.Bytes()) == 0 {
				continue
			}

			el, err := element.FromJSON(scanner.Bytes())
			if err != nil {
				return fmt.Errorf("line %d: %w", line, err)
			}
			if err := p.addRow(el); err != nil {
				return fmt.Errorf("line %d: %w", line, err)
			}
		}
		if err := scanner.Err(); err != nil {
			return err
		}

		b, err := encoder.Finish()
		if err != nil {
			return err
		}
		if err := os.WriteFile(args[1], b.Bytes(), 0o644); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "packed %d rows into %d columns (%d bytes)\n",
			p.rows, b.ColumnCount(), b.Size())

		return nil
	},
}

// packer fans JSON rows out into per-field blob columns, recording holes so
// every column stays row aligned.
type packer struct {
	encoder *blob.Encoder
	columns map[string]*blob.Column
	rows    int
}

func (p *packer) addRow(el element.Element) error {
	if el.Type() != element.TypeObject {
		return fmt.Errorf("expected a JSON object, got %s", el.Type())
	}

	seen := make(map[string]bool, len(p.columns))
	for name, value := range el.Fields() {
		col, err := p.column(name)
		if err != nil {
			return err
		}
		col.Append(value)
		seen[name] = true
	}

	for name, col := range p.columns {
		if !seen[name] {
			col.Skip()
		}
	}
	p.rows++

	return nil
}

func (p *packer) column(name string) (*blob.Column, error) {
	if col, ok := p.columns[name]; ok {
		return col, nil
	}

	col, err := p.encoder.Column(name)
	if err != nil {
		return nil, err
	}

	// Backfill holes for the rows emitted before this field first appeared.
	for range p.rows {
		col.Skip()
	}
	p.columns[name] = col

	return col, nil
}

func init() {
	packCmd.Flags().StringVar(&packCompression, "compression", "zstd",
		"payload compression codec (none, zstd, s2, lz4, snappy)")
	packCmd.Flags().IntVar(&packInterleaveFactor, "interleave-factor", 2,
		"buffered containers per leaf before committing an interleave reference shape")
	rootCmd.AddCommand(packCmd)
}
