package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/denizumutdereli/lvcsr-decoder/internal/lattice"
	"github.com/denizumutdereli/lvcsr-decoder/internal/persistence"
)

// newLatticeCmd builds the "lattice" subcommand: a standalone SLF/msgpack
// round-trip tool that needs neither a linguist nor a scorer, usable to
// inspect or convert lattices persisted by the MCP get_lattice tool.
func newLatticeCmd() *cobra.Command {
	var inPath, outPath, inFormat, outFormat string

	cmd := &cobra.Command{
		Use:   "lattice",
		Short: "Convert a persisted lattice between SLF and msgpack",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLattice(inPath, outPath, inFormat, outFormat)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&inPath, "in", "", "Input lattice path (required)")
	flags.StringVar(&outPath, "out", "", "Output lattice path (required)")
	flags.StringVar(&inFormat, "in-format", "slf", "Input format: slf or msgpack")
	flags.StringVar(&outFormat, "out-format", "slf", "Output format: slf or msgpack")
	cmd.MarkFlagRequired("in")
	cmd.MarkFlagRequired("out")

	return cmd
}

func runLattice(inPath, outPath, inFormat, outFormat string) error {
	in, err := os.Open(inPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", inPath, err)
	}
	defer in.Close()

	l, err := readLattice(in, inFormat)
	if err != nil {
		return fmt.Errorf("reading %s as %s: %w", inPath, inFormat, err)
	}

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", outPath, err)
	}
	defer out.Close()

	if err := writeLattice(out, l, outFormat); err != nil {
		return fmt.Errorf("writing %s as %s: %w", outPath, outFormat, err)
	}

	fmt.Printf("converted %s (%s) -> %s (%s): %d nodes, %d edges\n",
		inPath, inFormat, outPath, outFormat, len(l.Nodes), len(l.Edges))
	return nil
}

func readLattice(r *os.File, format string) (*lattice.Lattice, error) {
	switch format {
	case "slf":
		return persistence.ReadSLF(r)
	case "msgpack":
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		return persistence.NewCodec(true).Decode(data)
	default:
		return nil, fmt.Errorf("unknown format %q, want slf or msgpack", format)
	}
}

func writeLattice(w *os.File, l *lattice.Lattice, format string) error {
	switch format {
	case "slf":
		return persistence.WriteSLF(w, l)
	case "msgpack":
		data, err := persistence.NewCodec(true).Encode(l)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	default:
		return fmt.Errorf("unknown format %q, want slf or msgpack", format)
	}
}
