package dump

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/golang/snappy"
	"github.com/lunixbochs/fvbommel-util/sortorder"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/il2corn/il2corn/go/cmd"
	"github.com/il2corn/il2corn/go/il2cpp/dumper"
	"github.com/il2corn/il2corn/go/models"
)

var (
	output   string
	compress bool
	verbose  bool
	reg      cmd.RegistrationFlags
)

var dumpCmd = &cobra.Command{
	Use:   "dump <binary> <metadata>",
	Short: "Reconstruct types, methods and string literals as JSON",
	Args:  cobra.ExactArgs(2),
	RunE: func(c *cobra.Command, args []string) error {
		config := cmd.Config(verbose, &reg)
		config.Compress = compress
		config.Output = output
		d, err := dumper.Open(args[0], args[1], config)
		if err != nil {
			return err
		}
		res, err := d.Dump()
		if err != nil {
			return err
		}
		if err := Save(res, config); err != nil {
			return err
		}
		Summary(&cmd.Printer{W: os.Stderr, Color: config.Color}, res, config.Verbose)
		return nil
	},
}

func init() {
	fs := dumpCmd.Flags()
	fs.StringVarP(&output, "output", "o", "", "write JSON to file (default stdout)")
	fs.BoolVarP(&compress, "compress", "z", false, "snappy compress the output")
	fs.BoolVarP(&verbose, "verbose", "v", false, "list every type in the summary")
	reg.Add(fs)
	cmd.Register(dumpCmd)
}

// Write encodes res as indented JSON, snappy framed when compress is set.
func Write(w io.Writer, res *models.DumpResults, compress bool) error {
	if compress {
		zw := snappy.NewBufferedWriter(w)
		if err := Write(zw, res, false); err != nil {
			return err
		}
		return errors.Wrap(zw.Close(), "failed to flush compressed output")
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(res), "failed to encode results")
}

// Save writes res to config.Output, or stdout when unset.
func Save(res *models.DumpResults, config *models.Config) error {
	if config.Output == "" {
		return Write(os.Stdout, res, config.Compress)
	}
	f, err := os.Create(config.Output)
	if err != nil {
		return errors.Wrap(err, "failed to create output")
	}
	if err := Write(f, res, config.Compress); err != nil {
		f.Close()
		return err
	}
	return errors.Wrap(f.Close(), "failed to close output")
}

func Summary(p *cmd.Printer, res *models.DumpResults, listTypes bool) {
	p.Header("metadata v%d", res.MetadataVersion)
	if res.RuntimeVersion != nil {
		p.Field("runtime version", *res.RuntimeVersion)
	}
	p.Field("code registration", p.Addr(res.Registrations.CodeRegistration))
	p.Field("metadata registration", p.Addr(res.Registrations.MetadataRegistration))
	st := res.Statistics
	p.Field("assemblies", st.AssembliesCount)
	p.Field("types", st.TotalTypes)
	p.Field("methods", st.TotalMethods)
	p.Field("fields", st.TotalFields)
	p.Field("string literals", st.TotalStrings)
	if !res.Registrations.Found() {
		p.Warn("registrations not found; pass --code-registration and --metadata-registration to set them")
	}
	if listTypes {
		names := make([]string, 0, len(res.Types))
		for _, t := range res.Types {
			names = append(names, t.FullName)
		}
		sort.Slice(names, func(i, j int) bool { return sortorder.NaturalLess(names[i], names[j]) })
		p.Header("types")
		for _, name := range names {
			fmt.Fprintf(p.W, "  %s\n", name)
		}
	}
}
