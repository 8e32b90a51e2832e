package info

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/lunixbochs/fvbommel-util/sortorder"
	"github.com/spf13/cobra"

	"github.com/il2corn/il2corn/go/cmd"
	"github.com/il2corn/il2corn/go/loader"
	"github.com/il2corn/il2corn/go/models"
)

var showSymbols bool

var infoCmd = &cobra.Command{
	Use:   "info <binary>",
	Short: "Show the layout of a PE, ELF or Mach-O image",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		bin, err := loader.LoadFile(args[0])
		if err != nil {
			return err
		}
		config := cmd.Config(false, nil)
		Print(&cmd.Printer{W: os.Stdout, Color: config.Color}, bin, showSymbols)
		return nil
	},
}

func init() {
	infoCmd.Flags().BoolVarP(&showSymbols, "symbols", "s", false, "list symbols")
	cmd.Register(infoCmd)
}

// Print writes a summary of bin.
func Print(p *cmd.Printer, bin models.BinaryFile, symbols bool) {
	p.Header("%s %s (%d-bit, %s)", bin.Format(), bin.Arch(), bin.Bits(), bin.OS())
	p.Field("entry", bin.Entry())
	p.Field("image base", bin.ImageBase())
	p.Field("size", humanize.IBytes(uint64(len(bin.Data()))))
	p.Field("symbols", len(bin.Symbols()))

	p.Header("sections")
	w := tabwriter.NewWriter(p.W, 0, 0, 2, ' ', 0)
	for _, s := range bin.Sections() {
		fmt.Fprintf(w, "  %s\t%s\t%s\t%#x\t%s\t%s\n", s.Name, s.Addr, s.End(), s.Offset,
			humanize.IBytes(s.RawSize), s.Flags)
	}
	w.Flush()

	if symbols {
		syms := append([]models.Symbol(nil), bin.Symbols()...)
		sort.Slice(syms, func(i, j int) bool { return sortorder.NaturalLess(syms[i].Name, syms[j].Name) })
		p.Header("symbols")
		w = tabwriter.NewWriter(p.W, 0, 0, 2, ' ', 0)
		for _, s := range syms {
			fmt.Fprintf(w, "  %s\t%s\t%s\n", s.Addr, s.Kind, s.Name)
		}
		w.Flush()
	}
}
