package search

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/il2corn/il2corn/go/cmd"
	"github.com/il2corn/il2corn/go/il2cpp/metadata"
	regsearch "github.com/il2corn/il2corn/go/il2cpp/search"
	"github.com/il2corn/il2corn/go/loader"
	"github.com/il2corn/il2corn/go/models"
)

var reg cmd.RegistrationFlags

var searchCmd = &cobra.Command{
	Use:   "search <binary> <metadata>",
	Short: "Locate g_CodeRegistration and g_MetadataRegistration",
	Args:  cobra.ExactArgs(2),
	RunE: func(c *cobra.Command, args []string) error {
		bin, err := loader.LoadFile(args[0])
		if err != nil {
			return err
		}
		meta, err := metadata.LoadFile(args[1])
		if err != nil {
			return err
		}
		config := cmd.Config(false, &reg)
		l := regsearch.NewLocator(bin, len(meta.TypeDefinitions), len(meta.Methods))
		if config.ManualCodeRegistration != 0 && config.ManualMetadataRegistration != 0 {
			l.SetManual(models.Address(config.ManualCodeRegistration), models.Address(config.ManualMetadataRegistration))
		}
		p := &cmd.Printer{W: os.Stdout, Color: config.Color}
		res, ok := l.Find()
		if !ok {
			p.Field("code registration", p.Addr(nil))
			p.Field("metadata registration", p.Addr(nil))
			return errors.New("registrations not found")
		}
		regs := res.Registrations()
		p.Field("strategy", res.Strategy)
		p.Field("code registration", p.Addr(regs.CodeRegistration))
		p.Field("metadata registration", p.Addr(regs.MetadataRegistration))
		return nil
	},
}

func init() {
	fs := searchCmd.Flags()
	fs.Uint64Var(&reg.Code, "code-registration", 0, "address of g_CodeRegistration")
	fs.Uint64Var(&reg.Metadata, "metadata-registration", 0, "address of g_MetadataRegistration")
	cmd.Register(searchCmd)
}
