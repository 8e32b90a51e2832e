package loader

import (
	"encoding/binary"
	"testing"

	"github.com/pkg/errors"

	"github.com/il2corn/il2corn/go/models"
)

func loadAll(t *testing.T) []models.BinaryFile {
	var ret []models.BinaryFile
	for _, data := range [][]byte{
		defaultPE(false).build(),
		defaultPE(true).build(),
		defaultElf(32, binary.BigEndian).build(),
		defaultElf(64, binary.LittleEndian).build(),
		defaultMachO(64).build(),
	} {
		bin, err := Load(data)
		if err != nil {
			t.Fatal(err)
		}
		ret = append(ret, bin)
	}
	return ret
}

func TestVAOffsetRoundTrip(t *testing.T) {
	for _, bin := range loadAll(t) {
		for _, s := range bin.Sections() {
			if s.Addr == 0 {
				continue
			}
			if s.RawSize == 0 {
				if off, ok := bin.VAToOffset(s.Addr); ok {
					t.Errorf("%s %s: %s has no file data but mapped to %#x", bin.Format(), s.Name, s.Addr, off)
				}
				if b, err := bin.ReadVA(s.Addr, 4); err == nil {
					t.Errorf("%s %s: read % x from a section with no file data", bin.Format(), s.Name, b)
				}
				continue
			}
			for _, delta := range []uint64{0, 1, s.RawSize - 1} {
				if delta >= s.VirtualSize {
					continue
				}
				va := s.Addr.Offset(int64(delta))
				off, ok := bin.VAToOffset(va)
				if !ok {
					t.Fatalf("%s %s: %s not mapped", bin.Format(), s.Name, va)
				}
				back, ok := bin.OffsetToVA(off)
				if !ok {
					t.Fatalf("%s %s: offset %#x not mapped", bin.Format(), s.Name, off)
				}
				if !s.ContainsVirt(back) {
					t.Errorf("%s %s: %s -> %#x -> %s left the section", bin.Format(), s.Name, va, off, back)
				}
			}
		}
	}
}

func TestVirtualTail(t *testing.T) {
	data := make([]byte, 0x30)
	for i := range data {
		data[i] = byte(i)
	}
	bin := NewNullLoader(models.ArchX86_64, data, []models.Section{
		{Name: ".data", Addr: 0x1000, VirtualSize: 0x20, Offset: 0x10, RawSize: 0x10, Flags: models.SectionRead},
	}, nil)
	off, ok := bin.VAToOffset(0x100f)
	if !ok || off != 0x1f {
		t.Fatalf("last raw byte mapped to %#x %v", off, ok)
	}
	// 0x1010..0x101f is zero-filled memory with no file backing; file offset
	// 0x20 belongs to nothing
	for _, va := range []models.Address{0x1010, 0x101f} {
		if off, ok := bin.VAToOffset(va); ok {
			t.Errorf("%s in virtual tail mapped to %#x", va, off)
		}
		if _, err := bin.ReadVA(va, 1); err == nil {
			t.Errorf("%s in virtual tail was readable", va)
		}
	}
}

func TestReadVA(t *testing.T) {
	f := defaultElf(64, binary.LittleEndian)
	bin, err := Load(f.build())
	if err != nil {
		t.Fatal(err)
	}
	got, err := bin.ReadVA(0x10000, 3)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "\xaa\xbb\xaa" {
		t.Fatalf("read % x", got)
	}
	if _, err := bin.ReadVA(0x50000, 1); err == nil {
		t.Fatal("expected error for unmapped address")
	} else if _, ok := errors.Cause(err).(*models.OutOfBoundsError); !ok {
		t.Fatalf("expected out of bounds, got %T", errors.Cause(err))
	}
	if _, err := bin.ReadVA(0x10000, len(bin.Data())); err == nil {
		t.Fatal("expected error for read past end of file")
	}
}

func TestReadStringVA(t *testing.T) {
	data := []byte("hello\x00world")
	bin := NewNullLoader(models.ArchX86_64, data, []models.Section{
		{Name: "s", Addr: 0x1000, VirtualSize: uint64(len(data)), RawSize: uint64(len(data)), Flags: models.SectionRead},
	}, nil)
	if s, err := bin.ReadStringVA(0x1000, 64); err != nil || s != "hello" {
		t.Fatalf("got %q, %v", s, err)
	}
	if s, err := bin.ReadStringVA(0x1000, 3); err != nil || s != "hel" {
		t.Fatalf("got %q, %v", s, err)
	}
	if s, err := bin.ReadStringVA(0x1006, 64); err != nil || s != "world" {
		t.Fatalf("got %q, %v", s, err)
	}
	if _, err := bin.ReadStringVA(0x2000, 4); err == nil {
		t.Fatal("expected error")
	}
}

func TestSearchPattern(t *testing.T) {
	data := []byte{0xaa, 0xbb, 0xaa, 0x00, 0xaa}
	bin := NewNullLoader(models.ArchX86_64, data, []models.Section{
		{Name: "text", Addr: 0x1000, VirtualSize: 3, RawSize: 3, Flags: models.SectionRead | models.SectionExecute},
		{Name: "data", Addr: 0x2000, Offset: 3, VirtualSize: 2, RawSize: 2, Flags: models.SectionRead},
	}, nil)
	got := bin.SearchPattern([]byte{0xaa})
	if len(got) != 2 || got[0] != 0x1000 || got[1] != 0x1002 {
		t.Fatalf("got %v", got)
	}
	if got := bin.SearchPattern(nil); len(got) != 0 {
		t.Fatalf("empty pattern matched %v", got)
	}
}

func TestSearchPatternMasked(t *testing.T) {
	data := []byte{0x90, 0x01, 0x90, 0xff, 0x91, 0x90}
	bin := NewNullLoader(models.ArchX86_64, data, []models.Section{
		{Name: "text", Addr: 0x4000, VirtualSize: 6, RawSize: 6, Flags: models.SectionRead | models.SectionExecute},
	}, nil)
	got := bin.SearchPatternMasked([]byte{0x90, 0x00}, []byte{0x01, 0x00})
	// the trailing 0x90 has no second byte
	if len(got) != 2 || got[0] != 0x4000 || got[1] != 0x4002 {
		t.Fatalf("got %v", got)
	}
	if got := bin.SearchPatternMasked([]byte{0x90, 0x00}, []byte{0x01}); got != nil {
		t.Fatalf("mismatched mask matched %v", got)
	}
}

func TestSectionHelpers(t *testing.T) {
	bin, err := Load(defaultPE(true).build())
	if err != nil {
		t.Fatal(err)
	}
	if s, ok := bin.FindSection(".text"); !ok || !s.Executable() {
		t.Fatalf("FindSection(.text) = %+v, %v", s, ok)
	}
	if _, ok := bin.FindSection(".nope"); ok {
		t.Fatal("found missing section")
	}
	if n := len(bin.ExecutableSections()); n != 1 {
		t.Fatalf("got %d executable sections", n)
	}
	if n := len(bin.DataSections()); n != 2 {
		t.Fatalf("got %d data sections", n)
	}
}

func TestOffsetOf(t *testing.T) {
	if _, err := offsetOf(^uint64(0), 1); err == nil {
		t.Fatal("expected overflow error")
	}
	if v, err := offsetOf(1, 2, 3); err != nil || v != 6 {
		t.Fatalf("got %d, %v", v, err)
	}
	if _, err := tableSize(^uint64(0), 2); err == nil {
		t.Fatal("expected overflow error")
	}
}
