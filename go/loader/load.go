package loader

import (
	"io/ioutil"

	"github.com/pkg/errors"

	"github.com/il2corn/il2corn/go/logflags"
	"github.com/il2corn/il2corn/go/models"
)

// DetectFormat identifies the container by its leading magic bytes.
func DetectFormat(data []byte) models.Format {
	switch {
	case MatchPE(data):
		return models.FormatPE
	case MatchElf(data):
		return models.FormatELF
	case MatchMachO(data):
		return models.FormatMachO
	}
	return models.FormatUnknown
}

func LoadFile(path string) (models.BinaryFile, error) {
	p, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	return Load(p)
}

// Load picks a parser once from the magic and returns the parsed image. The
// returned file owns data and never modifies it.
func Load(data []byte) (models.BinaryFile, error) {
	log := logflags.LoaderLogger()
	format := DetectFormat(data)
	log.Debugf("detected %s (%d bytes)", format, len(data))
	var (
		bin models.BinaryFile
		err error
	)
	switch format {
	case models.FormatPE:
		bin, err = NewPELoader(data)
	case models.FormatELF:
		bin, err = NewElfLoader(data)
	case models.FormatMachO:
		bin, err = NewMachOLoader(data)
	default:
		return nil, errors.WithStack(models.ErrUnknownFormat)
	}
	if err != nil {
		return nil, err
	}
	if logflags.Loader() {
		log.Debugf("%s %d-bit, %d sections, %d symbols", bin.Arch(), bin.Bits(), len(bin.Sections()), len(bin.Symbols()))
		for _, s := range bin.Sections() {
			log.Debugf("  %-20s %s +%#x file %#x+%#x %s", s.Name, s.Addr, s.VirtualSize, s.Offset, s.RawSize, s.Flags)
		}
	}
	return bin, nil
}
