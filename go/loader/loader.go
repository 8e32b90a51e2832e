package loader

import (
	"bytes"
	"encoding/binary"
	"math"
	"strings"

	"github.com/pkg/errors"

	"github.com/il2corn/il2corn/go/models"
)

// LoaderBase owns the raw image and the normalized tables built by a format
// parser. It implements everything in models.BinaryFile that does not depend
// on the container format.
type LoaderBase struct {
	format    models.Format
	arch      models.Arch
	bits      int
	byteOrder binary.ByteOrder
	os        string
	entry     models.Address
	imageBase models.Address
	data      []byte
	sections  []models.Section
	symbols   []models.Symbol
}

func (l *LoaderBase) Format() models.Format      { return l.format }
func (l *LoaderBase) Arch() models.Arch          { return l.arch }
func (l *LoaderBase) Bits() int                  { return l.bits }
func (l *LoaderBase) OS() string                 { return l.os }
func (l *LoaderBase) Entry() models.Address      { return l.entry }
func (l *LoaderBase) ImageBase() models.Address  { return l.imageBase }
func (l *LoaderBase) Data() []byte               { return l.data }
func (l *LoaderBase) Sections() []models.Section { return l.sections }
func (l *LoaderBase) Symbols() []models.Symbol   { return l.symbols }

func (l *LoaderBase) ByteOrder() binary.ByteOrder {
	if l.byteOrder == nil {
		return binary.LittleEndian
	}
	return l.byteOrder
}

func (l *LoaderBase) FindSection(name string) (models.Section, bool) {
	for _, s := range l.sections {
		if s.Name == name {
			return s, true
		}
	}
	return models.Section{}, false
}

func (l *LoaderBase) FindSymbol(name string) (models.Symbol, bool) {
	for _, s := range l.symbols {
		if s.Name == name {
			return s, true
		}
	}
	return models.Symbol{}, false
}

func (l *LoaderBase) ExecutableSections() []models.Section {
	var ret []models.Section
	for _, s := range l.sections {
		if s.Executable() {
			ret = append(ret, s)
		}
	}
	return ret
}

func (l *LoaderBase) DataSections() []models.Section {
	var ret []models.Section
	for _, s := range l.sections {
		if s.Data() {
			ret = append(ret, s)
		}
	}
	return ret
}

func (l *LoaderBase) SectionData(s models.Section) ([]byte, bool) {
	if s.Offset > uint64(len(l.data)) || s.RawSize > uint64(len(l.data))-s.Offset {
		return nil, false
	}
	return l.data[s.Offset : s.Offset+s.RawSize], true
}

// VAToOffset maps through the first section whose virtual range contains va.
// Sections at address zero are not loaded and never match. Addresses past the
// section's file data (bss, or a PE virtual tail) have no offset.
func (l *LoaderBase) VAToOffset(va models.Address) (uint64, bool) {
	for i := range l.sections {
		s := &l.sections[i]
		if s.Addr == 0 || !s.ContainsVirt(va) {
			continue
		}
		delta := uint64(va - s.Addr)
		if delta >= s.RawSize {
			return 0, false
		}
		return s.Offset + delta, true
	}
	return 0, false
}

func (l *LoaderBase) OffsetToVA(off uint64) (models.Address, bool) {
	for i := range l.sections {
		s := &l.sections[i]
		if s.Addr == 0 || !s.ContainsPhys(off) {
			continue
		}
		return s.Addr.Offset(int64(off - s.Offset)), true
	}
	return 0, false
}

func (l *LoaderBase) ReadVA(va models.Address, size int) ([]byte, error) {
	off, ok := l.VAToOffset(va)
	if !ok || size < 0 {
		return nil, errors.WithStack(&models.OutOfBoundsError{Addr: uint64(va)})
	}
	if off > uint64(len(l.data)) || uint64(size) > uint64(len(l.data))-off {
		return nil, errors.WithStack(&models.OutOfBoundsError{Addr: uint64(va)})
	}
	return l.data[off : off+uint64(size)], nil
}

// ReadStringVA stops at the first null byte or after maxLen bytes, whichever
// comes first. Unlike models.Reader.CString a missing terminator is not an error.
func (l *LoaderBase) ReadStringVA(va models.Address, maxLen int) (string, error) {
	off, ok := l.VAToOffset(va)
	if !ok || off >= uint64(len(l.data)) {
		return "", errors.WithStack(&models.OutOfBoundsError{Addr: uint64(va)})
	}
	end := uint64(len(l.data))
	if maxLen >= 0 && uint64(maxLen) < end-off {
		end = off + uint64(maxLen)
	}
	buf := l.data[off:end]
	if i := bytes.IndexByte(buf, 0); i >= 0 {
		buf = buf[:i]
	}
	return strings.ToValidUTF8(string(buf), "\uFFFD"), nil
}

func (l *LoaderBase) SearchPattern(pattern []byte) []models.Address {
	if len(pattern) == 0 {
		return nil
	}
	var ret []models.Address
	for _, s := range l.ExecutableSections() {
		data, ok := l.SectionData(s)
		if !ok {
			continue
		}
		for i := 0; i+len(pattern) <= len(data); i++ {
			if bytes.Equal(data[i:i+len(pattern)], pattern) {
				ret = append(ret, s.Addr.Offset(int64(i)))
			}
		}
	}
	return ret
}

// SearchPatternMasked compares only the bytes whose mask byte is non-zero.
// A mask of the wrong length matches nothing.
func (l *LoaderBase) SearchPatternMasked(pattern, mask []byte) []models.Address {
	if len(pattern) == 0 || len(pattern) != len(mask) {
		return nil
	}
	var ret []models.Address
	for _, s := range l.ExecutableSections() {
		data, ok := l.SectionData(s)
		if !ok {
			continue
		}
	outer:
		for i := 0; i+len(pattern) <= len(data); i++ {
			for j, b := range data[i : i+len(pattern)] {
				if mask[j] != 0 && b != pattern[j] {
					continue outer
				}
			}
			ret = append(ret, s.Addr.Offset(int64(i)))
		}
	}
	return ret
}

// offsetOf converts a file position computed from header fields to an int,
// failing closed on values that cannot index the buffer.
func offsetOf(base uint64, add ...uint64) (int, error) {
	v := base
	for _, a := range add {
		if a > math.MaxUint64-v {
			return 0, errors.WithStack(models.ParseErrorf("offset overflow: %#x + %#x", v, a))
		}
		v += a
	}
	if v > math.MaxInt {
		return 0, errors.WithStack(models.ParseErrorf("offset %#x out of range", v))
	}
	return int(v), nil
}

func tableSize(count, entsize uint64) (uint64, error) {
	if entsize != 0 && count > math.MaxUint64/entsize {
		return 0, errors.WithStack(models.ParseErrorf("table size overflow: %d * %d", count, entsize))
	}
	return count * entsize, nil
}

// tableString reads the null-terminated entry at index within the string
// table starting at file offset base. Out of range yields "".
func (l *LoaderBase) tableString(base, index uint64) string {
	off, err := offsetOf(base, index)
	if err != nil || off >= len(l.data) {
		return ""
	}
	return trimName(l.data[off:])
}

func trimName(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return strings.ToValidUTF8(string(b), "\uFFFD")
}
