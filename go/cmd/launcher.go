package cmd

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/il2corn/il2corn/go/logflags"
)

var root = &cobra.Command{
	Use:           "il2corn",
	Short:         "Recover managed type information from IL2CPP builds",
	SilenceUsage:  true,
	SilenceErrors: true,
	Example:       "  il2corn dump -o dump.json libil2cpp.so global-metadata.dat",
}

var (
	logFlag   bool
	logLayers string
	logOutput string
	noColor   bool
)

func init() {
	pf := root.PersistentFlags()
	pf.BoolVar(&logFlag, "log", false, "enable logging")
	pf.StringVar(&logLayers, "log-layers", "", "comma separated layers to log (loader,metadata,locator,dumper,all)")
	pf.StringVar(&logOutput, "log-output", "", "write logs to file instead of stderr")
	pf.BoolVar(&noColor, "no-color", false, "disable colored output")
	root.PersistentPreRunE = func(c *cobra.Command, args []string) error {
		if logOutput != "" {
			if !logFlag {
				return errors.New("--log-output specified without --log")
			}
			f, err := os.OpenFile(logOutput, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
			if err != nil {
				return errors.Wrap(err, "failed to open log output")
			}
			logflags.SetOutput(f)
		}
		return logflags.Setup(logFlag, logLayers)
	}
}

// Register adds a subcommand. Subcommand packages call it from init.
func Register(c *cobra.Command) {
	root.AddCommand(c)
}

func Main() {
	if err := root.Execute(); err != nil {
		PrintError(err)
		os.Exit(1)
	}
}
