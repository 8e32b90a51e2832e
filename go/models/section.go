package models

import "strings"

type SectionFlags uint32

const (
	SectionRead SectionFlags = 1 << iota
	SectionWrite
	SectionExecute
	SectionInitialized
	SectionUninitialized
)

func (f SectionFlags) Has(o SectionFlags) bool {
	return f&o == o
}

func (f SectionFlags) String() string {
	var b strings.Builder
	for _, c := range []struct {
		flag SectionFlags
		ch   byte
	}{{SectionRead, 'r'}, {SectionWrite, 'w'}, {SectionExecute, 'x'}} {
		if f.Has(c.flag) {
			b.WriteByte(c.ch)
		} else {
			b.WriteByte('-')
		}
	}
	if f.Has(SectionUninitialized) {
		b.WriteString(" bss")
	}
	return b.String()
}

// Section is immutable once built and owned by its BinaryFile.
type Section struct {
	Name        string
	Addr        Address
	VirtualSize uint64
	Offset      uint64
	RawSize     uint64
	Flags       SectionFlags
}

func (s *Section) ContainsVirt(addr Address) bool {
	return s.Addr <= addr && uint64(addr-s.Addr) < s.VirtualSize
}

func (s *Section) ContainsPhys(off uint64) bool {
	return s.Offset <= off && off-s.Offset < s.RawSize
}

func (s *Section) Executable() bool {
	return s.Flags.Has(SectionExecute)
}

// Data sections are readable but not executable.
func (s *Section) Data() bool {
	return s.Flags.Has(SectionRead) && !s.Flags.Has(SectionExecute)
}

func (s *Section) End() Address {
	return s.Addr.Offset(int64(s.VirtualSize))
}
