package models

import "encoding/binary"

// BinaryFile is the format-agnostic view of a parsed executable image. All
// addresses are absolute virtual addresses regardless of container format.
type BinaryFile interface {
	Format() Format
	Arch() Arch
	Bits() int
	OS() string
	ByteOrder() binary.ByteOrder
	ImageBase() Address
	Entry() Address

	Sections() []Section
	Symbols() []Symbol
	FindSection(name string) (Section, bool)
	FindSymbol(name string) (Symbol, bool)
	ExecutableSections() []Section
	DataSections() []Section
	SectionData(s Section) ([]byte, bool)

	VAToOffset(va Address) (uint64, bool)
	OffsetToVA(off uint64) (Address, bool)
	ReadVA(va Address, size int) ([]byte, error)
	ReadStringVA(va Address, maxLen int) (string, error)

	SearchPattern(pattern []byte) []Address
	SearchPatternMasked(pattern, mask []byte) []Address

	Data() []byte
}
