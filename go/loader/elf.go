package loader

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/il2corn/il2corn/go/logflags"
	"github.com/il2corn/il2corn/go/models"
)

const (
	elfIdentSize = 16

	elfClass32 = 1
	elfClass64 = 2

	elfData2LSB = 1
	elfData2MSB = 2

	shfWrite     = 0x1
	shfAlloc     = 0x2
	shfExecInstr = 0x4

	shtSymtab = 2
	shtStrtab = 3
	shtNobits = 8
	shtDynsym = 11

	sttObject  = 1
	sttFunc    = 2
	sttSection = 3
	sttFile    = 4
)

var elfMagic = []byte{0x7f, 'E', 'L', 'F'}

var elfMachineMap = map[uint16]models.Arch{
	3:   models.ArchX86,
	40:  models.ArchArm,
	62:  models.ArchX86_64,
	183: models.ArchArm64,
}

type ElfLoader struct {
	LoaderBase
	shdrs []elfSectionHeader
}

// Elf64_Ehdr after e_ident. The 32-bit variant narrows the address fields.
type elfHeader struct {
	Type      uint16
	Machine   uint16
	Version   uint32
	Entry     uint64
	Phoff     uint64
	Shoff     uint64
	Flags     uint32
	Ehsize    uint16
	Phentsize uint16
	Phnum     uint16
	Shentsize uint16
	Shnum     uint16
	Shstrndx  uint16
}

type elfHeader32 struct {
	Type      uint16
	Machine   uint16
	Version   uint32
	Entry     uint64 `struc:"uint32"`
	Phoff     uint64 `struc:"uint32"`
	Shoff     uint64 `struc:"uint32"`
	Flags     uint32
	Ehsize    uint16
	Phentsize uint16
	Phnum     uint16
	Shentsize uint16
	Shnum     uint16
	Shstrndx  uint16
}

// Leading fields of Elf64_Shdr; link, info, addralign and entsize are unused.
type elfSectionHeader struct {
	Name   uint32
	Type   uint32
	Flags  uint64
	Addr   uint64
	Offset uint64
	Size   uint64
}

type elfSectionHeader32 struct {
	Name   uint32
	Type   uint32
	Flags  uint64 `struc:"uint32"`
	Addr   uint64 `struc:"uint32"`
	Offset uint64 `struc:"uint32"`
	Size   uint64 `struc:"uint32"`
}

type elfSymbol struct {
	Name  uint32
	Info  uint8
	Other uint8
	Shndx uint16
	Value uint64
	Size  uint64
}

type elfSymbol32 struct {
	Name  uint32
	Value uint64 `struc:"uint32"`
	Size  uint64 `struc:"uint32"`
	Info  uint8
	Other uint8
	Shndx uint16
}

func MatchElf(data []byte) bool {
	return bytes.Equal(getMagic(data), elfMagic)
}

func NewElfLoader(data []byte) (*ElfLoader, error) {
	log := logflags.LoaderLogger()
	if len(data) < elfIdentSize {
		return nil, errors.WithStack(&models.TruncatedError{Expected: elfIdentSize, Available: len(data)})
	}
	if !MatchElf(data) {
		return nil, errors.WithStack(&models.MagicError{
			Expected: uint64(binary.LittleEndian.Uint32(elfMagic)),
			Actual:   uint64(magicLE(data)),
		})
	}
	var bits int
	switch data[4] {
	case elfClass32:
		bits = 32
	case elfClass64:
		bits = 64
	default:
		return nil, errors.WithStack(models.ParseErrorf("invalid ELF class: %d", data[4]))
	}
	var order binary.ByteOrder
	switch data[5] {
	case elfData2LSB:
		order = binary.LittleEndian
	case elfData2MSB:
		order = binary.BigEndian
	default:
		return nil, errors.WithStack(models.ParseErrorf("invalid ELF data encoding: %d", data[5]))
	}

	r := models.NewReaderAt(data, elfIdentSize, order)
	var hdr elfHeader
	var err error
	if bits == 64 {
		err = r.Unpack(&hdr)
	} else {
		var hdr32 elfHeader32
		err = r.Unpack(&hdr32)
		hdr = elfHeader(hdr32)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read ELF header")
	}
	arch, ok := elfMachineMap[hdr.Machine]
	if !ok {
		arch = models.ArchUnknown
		log.Debugf("unknown ELF machine %d", hdr.Machine)
	}

	e := &ElfLoader{
		LoaderBase: LoaderBase{
			format:    models.FormatELF,
			arch:      arch,
			bits:      bits,
			byteOrder: order,
			os:        "linux",
			entry:     models.Address(hdr.Entry),
			data:      data,
		},
	}
	if hdr.Shnum > 0 && hdr.Shoff > 0 {
		minEnt := 40
		if bits == 64 {
			minEnt = 64
		}
		if int(hdr.Shentsize) < minEnt {
			return nil, errors.WithStack(models.ParseErrorf("section header entry size %d too small", hdr.Shentsize))
		}
		if err := e.readSectionHeaders(r, hdr.Shoff, int(hdr.Shentsize), int(hdr.Shnum)); err != nil {
			return nil, err
		}
	}
	e.buildSections(int(hdr.Shstrndx))
	e.symbols = e.readSymbols()
	e.imageBase = lowestSectionAddr(e.sections)
	if _, ok := e.FindSection(".note.android.ident"); ok {
		e.os = "android"
	}
	log.Debugf("ELF%d %s %s: %d sections, %d symbols", bits, arch, e.os, len(e.sections), len(e.symbols))
	return e, nil
}

func (e *ElfLoader) readSectionHeaders(r *models.Reader, shoff uint64, entsize, count int) error {
	e.shdrs = make([]elfSectionHeader, 0, count)
	for i := 0; i < count; i++ {
		pos, err := offsetOf(shoff, uint64(i)*uint64(entsize))
		if err != nil {
			return err
		}
		r.SetPos(pos)
		var sh elfSectionHeader
		if e.bits == 64 {
			err = r.Unpack(&sh)
		} else {
			var sh32 elfSectionHeader32
			err = r.Unpack(&sh32)
			sh = elfSectionHeader(sh32)
		}
		if err != nil {
			return errors.Wrapf(err, "failed to read section header %d", i)
		}
		e.shdrs = append(e.shdrs, sh)
	}
	return nil
}

func (e *ElfLoader) buildSections(shstrndx int) {
	var strtab *elfSectionHeader
	if shstrndx < len(e.shdrs) && e.shdrs[shstrndx].Size > 0 {
		strtab = &e.shdrs[shstrndx]
	}
	e.sections = make([]models.Section, 0, len(e.shdrs))
	for _, sh := range e.shdrs {
		var name string
		if strtab != nil && uint64(sh.Name) < strtab.Size {
			name = e.tableString(strtab.Offset, uint64(sh.Name))
		}
		var flags models.SectionFlags
		if sh.Flags&shfAlloc != 0 {
			flags |= models.SectionRead
		}
		if sh.Flags&shfWrite != 0 {
			flags |= models.SectionWrite
		}
		if sh.Flags&shfExecInstr != 0 {
			flags |= models.SectionExecute
		}
		rawSize := sh.Size
		if sh.Type == shtNobits {
			rawSize = 0
			flags |= models.SectionUninitialized
		} else if sh.Size > 0 {
			flags |= models.SectionInitialized
		}
		e.sections = append(e.sections, models.Section{
			Name:        name,
			Addr:        models.Address(sh.Addr),
			VirtualSize: sh.Size,
			Offset:      sh.Offset,
			RawSize:     rawSize,
			Flags:       flags,
		})
	}
}

// readSymbols walks SYMTAB and DYNSYM sections. The string table is taken to
// be the section immediately following the symbol table, not sh_link.
func (e *ElfLoader) readSymbols() []models.Symbol {
	log := logflags.LoaderLogger()
	entsize := uint64(16)
	if e.bits == 64 {
		entsize = 24
	}
	var syms []models.Symbol
	for i, sh := range e.shdrs {
		if sh.Type != shtSymtab && sh.Type != shtDynsym {
			continue
		}
		if i+1 >= len(e.shdrs) || e.shdrs[i+1].Type != shtStrtab {
			log.Debugf("symbol table %d has no adjacent string table", i)
			continue
		}
		strtab := e.shdrs[i+1]
		r := models.NewReader(e.data, e.byteOrder)
		for j := uint64(0); j < sh.Size/entsize; j++ {
			pos, err := offsetOf(sh.Offset, j*entsize)
			if err != nil {
				break
			}
			r.SetPos(pos)
			var sym elfSymbol
			if e.bits == 64 {
				err = r.Unpack(&sym)
			} else {
				var sym32 elfSymbol32
				err = r.Unpack(&sym32)
				sym = elfSymbol{Name: sym32.Name, Info: sym32.Info, Other: sym32.Other,
					Shndx: sym32.Shndx, Value: sym32.Value, Size: sym32.Size}
			}
			if err != nil {
				log.Debugf("symbol table %d truncated at entry %d: %v", i, j, err)
				break
			}
			if uint64(sym.Name) >= strtab.Size {
				continue
			}
			symName := e.tableString(strtab.Offset, uint64(sym.Name))
			if symName == "" {
				continue
			}
			syms = append(syms, models.Symbol{
				Name: symName,
				Addr: models.Address(sym.Value),
				Size: sym.Size,
				Kind: elfSymbolKind(sym.Info & 0xf),
			})
		}
	}
	return syms
}

func elfSymbolKind(typ uint8) models.SymbolKind {
	switch typ {
	case sttFunc:
		return models.SymbolFunction
	case sttObject:
		return models.SymbolObject
	case sttSection:
		return models.SymbolSection
	case sttFile:
		return models.SymbolFile
	default:
		return models.SymbolUnknown
	}
}

func lowestSectionAddr(sections []models.Section) models.Address {
	var low models.Address
	for _, s := range sections {
		if s.Addr != 0 && (low == 0 || s.Addr < low) {
			low = s.Addr
		}
	}
	return low
}
