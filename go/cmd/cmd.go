package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mgutz/ansi"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/il2corn/il2corn/go/models"
)

type stackTracer interface {
	StackTrace() errors.StackTrace
}

func PrintError(err error) {
	// print an error, and a stacktrace if available
	fmt.Fprintf(os.Stderr, "%s\n", strings.Repeat("-", 40))
	fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	if err, ok := err.(stackTracer); ok {
		// parse full path and method name for each stack frame
		var frames [][]string
		for _, f := range err.StackTrace() {
			fullpath := ""
			fileline := fmt.Sprintf("%s:%d", f, f)
			method := fmt.Sprintf("%n", f)

			frame := fmt.Sprintf("%+s", f)
			tmp := strings.SplitN(frame, "\n", 3)
			if len(tmp) == 2 {
				pathsplit := strings.Split(tmp[0], "/")
				method = pathsplit[len(pathsplit)-1]
				fullpath = strings.TrimSpace(tmp[1])
			}
			frames = append(frames, []string{fullpath, fileline, method})
			if method == "main.main" {
				break
			}
		}
		// calculate column widths
		widths := make([]int, 3)
		for _, f := range frames {
			for i, s := range f {
				if len(s) > widths[i] {
					widths[i] = len(s)
				}
			}
		}
		for _, f := range frames {
			method := f[2]
			for i := 0; i < 2; i++ {
				if widths[i] > 0 {
					pad := strings.Repeat(" ", widths[i]-len(f[i]))
					fmt.Fprintf(os.Stderr, "%s%s | ", f[i], pad)
				}
			}
			fmt.Fprintf(os.Stderr, "%s()\n", method)
		}
	}
}

// RegistrationFlags are shared by subcommands that run the locator.
type RegistrationFlags struct {
	Code, Metadata uint64
	SkipSearch     bool
}

func (r *RegistrationFlags) Add(fs *pflag.FlagSet) {
	fs.Uint64Var(&r.Code, "code-registration", 0, "address of g_CodeRegistration (skips search with --metadata-registration)")
	fs.Uint64Var(&r.Metadata, "metadata-registration", 0, "address of g_MetadataRegistration")
	fs.BoolVar(&r.SkipSearch, "skip-search", false, "don't search the binary for registrations")
}

// Config builds the per-invocation options shared by every subcommand.
func Config(verbose bool, reg *RegistrationFlags) *models.Config {
	config := &models.Config{Color: !noColor, Verbose: verbose}
	if reg != nil {
		config.ManualCodeRegistration = reg.Code
		config.ManualMetadataRegistration = reg.Metadata
		config.SkipSearch = reg.SkipSearch
	}
	return config
}

// Printer writes optionally colored report lines.
type Printer struct {
	W     io.Writer
	Color bool
}

func (p *Printer) style(style, s string) string {
	if !p.Color {
		return s
	}
	return ansi.Color(s, style)
}

func (p *Printer) Header(format string, a ...interface{}) {
	fmt.Fprintln(p.W, p.style("default+b", fmt.Sprintf(format, a...)))
}

// Field prints an aligned "key: value" line.
func (p *Printer) Field(key string, value interface{}) {
	fmt.Fprintf(p.W, "  %s %v\n", p.style("cyan", fmt.Sprintf("%-22s", key+":")), value)
}

func (p *Printer) Warn(format string, a ...interface{}) {
	fmt.Fprintln(p.W, p.style("yellow", fmt.Sprintf(format, a...)))
}

func (p *Printer) Addr(addr *models.Address) string {
	if addr == nil {
		return p.style("red", "not found")
	}
	return p.style("green", addr.String())
}
