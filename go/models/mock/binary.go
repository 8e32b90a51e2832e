package mock

import (
	"github.com/il2corn/il2corn/go/loader"
	"github.com/il2corn/il2corn/go/models"
)

// Section is a section with its payload inline. Uninitialized sections keep
// Size and carry no Data.
type Section struct {
	Name  string
	Addr  models.Address
	Size  uint64
	Flags models.SectionFlags
	Data  []byte
}

var (
	Text   = models.SectionRead | models.SectionExecute | models.SectionInitialized
	RData  = models.SectionRead | models.SectionInitialized
	RWData = models.SectionRead | models.SectionWrite | models.SectionInitialized
	BSS    = models.SectionRead | models.SectionWrite | models.SectionUninitialized
)

// NewBinary lays the section payloads out back to back in one buffer and
// wraps it in a loader.NullLoader.
func NewBinary(arch models.Arch, secs []Section, syms ...models.Symbol) models.BinaryFile {
	var (
		data     []byte
		sections []models.Section
	)
	for _, s := range secs {
		size := s.Size
		if size < uint64(len(s.Data)) {
			size = uint64(len(s.Data))
		}
		sections = append(sections, models.Section{
			Name:        s.Name,
			Addr:        s.Addr,
			VirtualSize: size,
			Offset:      uint64(len(data)),
			RawSize:     uint64(len(s.Data)),
			Flags:       s.Flags,
		})
		data = append(data, s.Data...)
	}
	return loader.NewNullLoader(arch, data, sections, syms)
}

// Pad returns b extended with zeros to n bytes.
func Pad(b []byte, n int) []byte {
	if len(b) >= n {
		return b
	}
	return append(b, make([]byte, n-len(b))...)
}
