package loader

import (
	"encoding/binary"

	"github.com/il2corn/il2corn/go/models"
)

// NullLoader serves an image assembled by the caller. No container header is
// parsed; sections must describe ranges of data.
type NullLoader struct {
	LoaderBase
}

func NewNullLoader(arch models.Arch, data []byte, sections []models.Section, symbols []models.Symbol) *NullLoader {
	return &NullLoader{LoaderBase{
		format:    models.FormatUnknown,
		arch:      arch,
		bits:      arch.PointerSize() * 8,
		byteOrder: binary.LittleEndian,
		os:        "none",
		imageBase: lowestSectionAddr(sections),
		data:      data,
		sections:  sections,
		symbols:   symbols,
	}}
}
