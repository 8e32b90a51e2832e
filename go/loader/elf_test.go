package loader

import (
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/il2corn/il2corn/go/models"
)

func checkSections(t *testing.T, got []models.Section, want []fixtureSection) {
	t.Helper()
	for _, w := range want {
		found := false
		for _, g := range got {
			if g.Name != w.Name {
				continue
			}
			found = true
			if g != w.Section {
				t.Errorf("section %s:\n got %+v\nwant %+v", w.Name, g, w.Section)
			}
		}
		if !found {
			t.Errorf("section %s missing", w.Name)
		}
	}
}

func TestElfLoad(t *testing.T) {
	for _, bits := range []int{32, 64} {
		for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
			t.Run(fmt.Sprintf("%d-%s", bits, order), func(t *testing.T) {
				f := defaultElf(bits, order)
				data := f.build()
				if DetectFormat(data) != models.FormatELF {
					t.Fatal("ELF not detected")
				}
				elf, err := NewElfLoader(data)
				if err != nil {
					t.Fatal(err)
				}
				if elf.Bits() != bits {
					t.Errorf("bits = %d", elf.Bits())
				}
				if elf.ByteOrder() != order {
					t.Errorf("byte order = %s", elf.ByteOrder())
				}
				wantArch := models.ArchArm
				if bits == 64 {
					wantArch = models.ArchArm64
				}
				if elf.Arch() != wantArch {
					t.Errorf("arch = %s", elf.Arch())
				}
				if elf.Entry() != 0x10000 {
					t.Errorf("entry = %s", elf.Entry())
				}
				if elf.ImageBase() != 0x10000 {
					t.Errorf("image base = %s", elf.ImageBase())
				}
				if elf.OS() != "linux" {
					t.Errorf("os = %s", elf.OS())
				}
				// null + 3 authored + symtab, strtab, shstrtab
				if len(elf.Sections()) != 7 {
					t.Errorf("got %d sections", len(elf.Sections()))
				}
				checkSections(t, elf.Sections(), f.sections)
			})
		}
	}
}

func TestElfSymbol(t *testing.T) {
	f := defaultElf(64, binary.LittleEndian)
	elf, err := NewElfLoader(f.build())
	if err != nil {
		t.Fatal(err)
	}
	syms := elf.Symbols()
	if len(syms) != len(f.symbols) {
		t.Fatalf("got %d symbols, want %d", len(syms), len(f.symbols))
	}
	for i, want := range f.symbols {
		if syms[i] != want {
			t.Errorf("symbol %d: got %+v, want %+v", i, syms[i], want)
		}
	}
	if _, ok := elf.FindSymbol("g_CodeRegistration"); !ok {
		t.Error("FindSymbol failed")
	}
}

func TestElfSymbolNeedsAdjacentStrtab(t *testing.T) {
	f := defaultElf(32, binary.LittleEndian)
	data := f.build()
	elf, err := NewElfLoader(data)
	if err != nil {
		t.Fatal(err)
	}
	// Retag .strtab (the section after .symtab) as PROGBITS.
	shoff := int(binary.LittleEndian.Uint32(data[32:]))
	for i, sh := range elf.shdrs {
		if sh.Type == shtStrtab && i > 0 && elf.shdrs[i-1].Type == shtSymtab {
			binary.LittleEndian.PutUint32(data[shoff+i*40+4:], 1)
		}
	}
	elf, err = NewElfLoader(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(elf.Symbols()) != 0 {
		t.Fatalf("expected no symbols, got %d", len(elf.Symbols()))
	}
}

func TestElfAndroid(t *testing.T) {
	f := defaultElf(64, binary.LittleEndian)
	f.android = true
	elf, err := NewElfLoader(f.build())
	if err != nil {
		t.Fatal(err)
	}
	if elf.OS() != "android" {
		t.Fatalf("os = %s", elf.OS())
	}
}

func TestElfTruncated(t *testing.T) {
	data := defaultElf(64, binary.LittleEndian).build()
	if _, err := NewElfLoader(data[:10]); !models.IsTruncated(err) {
		t.Fatalf("expected truncation error, got %v", err)
	}
	if _, err := NewElfLoader(data[:40]); !models.IsTruncated(err) {
		t.Fatalf("expected truncation error, got %v", err)
	}
	// Cut into the last section header.
	if _, err := NewElfLoader(data[:len(data)-40]); !models.IsTruncated(err) {
		t.Fatalf("expected truncation error, got %v", err)
	}
}

func TestElfBadClass(t *testing.T) {
	data := defaultElf(64, binary.LittleEndian).build()
	data[4] = 9
	if _, err := NewElfLoader(data); err == nil {
		t.Fatal("expected error for bad class")
	}
}
