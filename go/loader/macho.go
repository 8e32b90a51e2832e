package loader

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/il2corn/il2corn/go/logflags"
	"github.com/il2corn/il2corn/go/models"
)

const (
	machoMagic32 = 0xfeedface
	machoMagic64 = 0xfeedfacf
	machoCigam32 = 0xcefaedfe
	machoCigam64 = 0xcffaedfe
	fatMagic     = 0xcafebabe
	fatCigam     = 0xbebafeca

	machoLoadCmdSegment    = 0x1
	machoLoadCmdSymtab     = 0x2
	machoLoadCmdUnixThread = 0x5
	machoLoadCmdSegment64  = 0x19
	machoLoadCmdReqDyld    = 0x80000000
	machoLoadCmdMain       = 0x28 | machoLoadCmdReqDyld

	vmProtRead    = 0x1
	vmProtWrite   = 0x2
	vmProtExecute = 0x4

	machoSectionTypeMask     = 0xff
	machoZerofill            = 0x1
	machoGBZerofill          = 0xc
	machoThreadLocalZerofill = 0x12
)

const (
	machoCpu386   = 7
	machoCpuAmd64 = 0x01000007
	machoCpuArm   = 12
	machoCpuArm64 = 0x0100000c
)

var machoCpuMap = map[uint32]models.Arch{
	machoCpu386:   models.ArchX86,
	machoCpuAmd64: models.ArchX86_64,
	machoCpuArm:   models.ArchArm,
	machoCpuArm64: models.ArchArm64,
}

type MachOLoader struct {
	LoaderBase
	fatOffset uint64
	textBase  models.Address
}

type fatArch struct {
	CpuType    uint32
	CpuSubtype uint32
	Offset     uint32
	Size       uint32
	Align      uint32
}

// mach_header_64 after the magic; the 32-bit header lacks Reserved.
type machoHeader struct {
	CpuType    uint32
	CpuSubtype uint32
	FileType   uint32
	Ncmds      uint32
	SizeOfCmds uint32
	Flags      uint32
}

type machoSegment struct {
	Name     []byte `struc:"[16]byte"`
	Addr     uint64
	Memsz    uint64
	Offset   uint64
	Filesz   uint64
	Maxprot  uint32
	Initprot uint32
	Nsect    uint32
	Flag     uint32
}

type machoSegment32 struct {
	Name     []byte `struc:"[16]byte"`
	Addr     uint64 `struc:"uint32"`
	Memsz    uint64 `struc:"uint32"`
	Offset   uint64 `struc:"uint32"`
	Filesz   uint64 `struc:"uint32"`
	Maxprot  uint32
	Initprot uint32
	Nsect    uint32
	Flag     uint32
}

type machoSection struct {
	Name      []byte `struc:"[16]byte"`
	Seg       []byte `struc:"[16]byte"`
	Addr      uint64
	Size      uint64
	Offset    uint32
	Align     uint32
	Reloff    uint32
	Nreloc    uint32
	Flags     uint32
	Reserved1 uint32
	Reserved2 uint32
	Reserved3 uint32
}

type machoSection32 struct {
	Name      []byte `struc:"[16]byte"`
	Seg       []byte `struc:"[16]byte"`
	Addr      uint64 `struc:"uint32"`
	Size      uint64 `struc:"uint32"`
	Offset    uint32
	Align     uint32
	Reloff    uint32
	Nreloc    uint32
	Flags     uint32
	Reserved1 uint32
	Reserved2 uint32
}

type machoSymtab struct {
	Symoff  uint32
	Nsyms   uint32
	Stroff  uint32
	Strsize uint32
}

type machoNlist struct {
	Name  uint32
	Type  uint8
	Sect  uint8
	Desc  uint16
	Value uint64
}

type machoNlist32 struct {
	Name  uint32
	Type  uint8
	Sect  uint8
	Desc  uint16
	Value uint64 `struc:"uint32"`
}

func MatchMachO(data []byte) bool {
	switch magicLE(data) {
	case machoMagic32, machoMagic64, fatMagic, fatCigam:
		return true
	}
	return false
}

// NewMachOLoader parses a thin Mach-O image of either byte order, or picks
// one slice out of a universal binary: the first 64-bit slice wins, otherwise
// the first supported 32-bit slice.
func NewMachOLoader(data []byte) (*MachOLoader, error) {
	if len(data) < 4 {
		return nil, errors.WithStack(&models.TruncatedError{Expected: 4, Available: len(data)})
	}
	switch magicLE(data) {
	case fatMagic:
		return newFatLoader(data, binary.LittleEndian)
	case fatCigam:
		return newFatLoader(data, binary.BigEndian)
	}
	return newMachOLoaderAt(data, 0)
}

func newFatLoader(data []byte, order binary.ByteOrder) (*MachOLoader, error) {
	log := logflags.LoaderLogger()
	r := models.NewReaderAt(data, 4, order)
	count, err := r.Uint32()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read fat header")
	}
	var best *fatArch
scan:
	for i := uint32(0); i < count; i++ {
		fa := new(fatArch)
		if err := r.Unpack(fa); err != nil {
			return nil, errors.Wrapf(err, "failed to read fat arch %d", i)
		}
		log.Debugf("fat slice %d: cpu %#x offset %#x size %#x", i, fa.CpuType, fa.Offset, fa.Size)
		switch fa.CpuType {
		case machoCpuAmd64, machoCpuArm64:
			best = fa
			break scan
		case machoCpu386, machoCpuArm:
			if best == nil {
				best = fa
			}
		}
	}
	if best == nil {
		return nil, errors.WithStack(models.ParseErrorf("no supported architecture in fat binary"))
	}
	return newMachOLoaderAt(data, uint64(best.Offset))
}

func newMachOLoaderAt(data []byte, base uint64) (*MachOLoader, error) {
	log := logflags.LoaderLogger()
	pos, err := offsetOf(base)
	if err != nil {
		return nil, err
	}
	r := models.NewReaderAt(data, pos, binary.LittleEndian)
	magic, err := r.Uint32()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read Mach-O magic")
	}
	var (
		bits  int
		order binary.ByteOrder = binary.LittleEndian
	)
	switch magic {
	case machoMagic32:
		bits = 32
	case machoMagic64:
		bits = 64
	case machoCigam32:
		bits, order = 32, binary.BigEndian
	case machoCigam64:
		bits, order = 64, binary.BigEndian
	default:
		return nil, errors.WithStack(&models.MagicError{Expected: machoMagic64, Actual: uint64(magic)})
	}
	r = models.NewReaderAt(data, pos+4, order)
	var hdr machoHeader
	if err := r.Unpack(&hdr); err != nil {
		return nil, errors.Wrap(err, "failed to read Mach-O header")
	}
	if bits == 64 {
		if err := r.Skip(4); err != nil {
			return nil, errors.Wrap(err, "failed to read Mach-O header")
		}
	}
	arch, ok := machoCpuMap[hdr.CpuType]
	if !ok {
		arch = models.ArchUnknown
		log.Debugf("unknown Mach-O cpu %#x", hdr.CpuType)
	}
	m := &MachOLoader{
		LoaderBase: LoaderBase{
			format:    models.FormatMachO,
			arch:      arch,
			bits:      bits,
			byteOrder: order,
			os:        "darwin",
			data:      data,
		},
		fatOffset: base,
	}
	if err := m.readLoadCommands(r, int(hdr.Ncmds)); err != nil {
		return nil, err
	}
	m.imageBase = m.textBase
	log.Debugf("Mach-O%d %s: %d sections, %d symbols, entry %s", bits, arch, len(m.sections), len(m.symbols), m.entry)
	return m, nil
}

func (m *MachOLoader) readLoadCommands(r *models.Reader, ncmds int) error {
	var (
		entryOff   uint64
		threadAddr models.Address
		symtab     *machoSymtab
	)
	for i := 0; i < ncmds; i++ {
		start := r.Pos()
		cmd, err := r.Uint32()
		if err != nil {
			return errors.Wrapf(err, "failed to read load command %d", i)
		}
		size, err := r.Uint32()
		if err != nil {
			return errors.Wrapf(err, "failed to read load command %d", i)
		}
		if size < 8 {
			return errors.WithStack(models.ParseErrorf("load command %d has invalid size %d", i, size))
		}
		switch cmd {
		case machoLoadCmdSegment, machoLoadCmdSegment64:
			if err := m.readSegment(r, cmd == machoLoadCmdSegment64); err != nil {
				return errors.Wrapf(err, "failed to read segment command %d", i)
			}
		case machoLoadCmdMain:
			if entryOff, err = r.Uint64(); err != nil {
				return errors.Wrap(err, "failed to read LC_MAIN")
			}
		case machoLoadCmdSymtab:
			var st machoSymtab
			if err := r.Unpack(&st); err != nil {
				return errors.Wrap(err, "failed to read LC_SYMTAB")
			}
			symtab = &st
		case machoLoadCmdUnixThread:
			threadAddr = m.threadEntry(start, int(size))
		}
		next, err := offsetOf(uint64(start), uint64(size))
		if err != nil {
			return err
		}
		r.SetPos(next)
	}
	switch {
	case entryOff > 0 && m.textBase > 0:
		m.entry = m.textBase.Offset(int64(entryOff))
	case entryOff > 0:
		m.entry = models.Address(entryOff)
	default:
		m.entry = threadAddr
	}
	if symtab != nil && symtab.Nsyms > 0 && symtab.Symoff > 0 && symtab.Strsize > 0 {
		m.symbols = m.readSymbols(symtab)
	}
	return nil
}

func (m *MachOLoader) readSegment(r *models.Reader, is64 bool) error {
	var seg machoSegment
	if is64 {
		if err := r.Unpack(&seg); err != nil {
			return err
		}
	} else {
		var seg32 machoSegment32
		if err := r.Unpack(&seg32); err != nil {
			return err
		}
		seg = machoSegment(seg32)
	}
	segName := trimName(seg.Name)
	if segName == "__TEXT" {
		m.textBase = models.Address(seg.Addr)
	}
	var prot models.SectionFlags
	if seg.Initprot&vmProtRead != 0 {
		prot |= models.SectionRead
	}
	if seg.Initprot&vmProtWrite != 0 {
		prot |= models.SectionWrite
	}
	if seg.Initprot&vmProtExecute != 0 {
		prot |= models.SectionExecute
	}
	for i := uint32(0); i < seg.Nsect; i++ {
		var sect machoSection
		if is64 {
			if err := r.Unpack(&sect); err != nil {
				return err
			}
		} else {
			var s32 machoSection32
			if err := r.Unpack(&s32); err != nil {
				return err
			}
			sect = machoSection{Name: s32.Name, Seg: s32.Seg, Addr: s32.Addr, Size: s32.Size,
				Offset: s32.Offset, Align: s32.Align, Reloff: s32.Reloff, Nreloc: s32.Nreloc,
				Flags: s32.Flags, Reserved1: s32.Reserved1, Reserved2: s32.Reserved2}
		}
		flags := prot
		rawSize := sect.Size
		switch sect.Flags & machoSectionTypeMask {
		case machoZerofill, machoGBZerofill, machoThreadLocalZerofill:
			rawSize = 0
			flags |= models.SectionUninitialized
		default:
			flags |= models.SectionInitialized
		}
		m.sections = append(m.sections, models.Section{
			Name:        segName + "," + trimName(sect.Name),
			Addr:        models.Address(sect.Addr),
			VirtualSize: sect.Size,
			Offset:      m.fatOffset + uint64(sect.Offset),
			RawSize:     rawSize,
			Flags:       flags,
		})
	}
	return nil
}

// threadEntry pulls the instruction pointer out of an x86 LC_UNIXTHREAD
// register state. Other thread flavors are not decoded.
func (m *MachOLoader) threadEntry(start, size int) models.Address {
	var ip int
	switch m.arch {
	case models.ArchX86_64:
		ip = 144
	case models.ArchX86:
		ip = 56
	default:
		return 0
	}
	r := models.NewReaderAt(m.data, start+ip, m.byteOrder)
	if ip+m.bits/8 > size {
		return 0
	}
	v, err := r.Word(m.bits)
	if err != nil {
		return 0
	}
	return models.Address(v)
}

func (m *MachOLoader) readSymbols(st *machoSymtab) []models.Symbol {
	log := logflags.LoaderLogger()
	entsize := uint64(12)
	if m.bits == 64 {
		entsize = 16
	}
	symoff := m.fatOffset + uint64(st.Symoff)
	stroff := m.fatOffset + uint64(st.Stroff)
	r := models.NewReader(m.data, m.byteOrder)
	var syms []models.Symbol
	for i := uint64(0); i < uint64(st.Nsyms); i++ {
		pos, err := offsetOf(symoff, i*entsize)
		if err != nil {
			break
		}
		r.SetPos(pos)
		var nl machoNlist
		if m.bits == 64 {
			err = r.Unpack(&nl)
		} else {
			var nl32 machoNlist32
			err = r.Unpack(&nl32)
			nl = machoNlist(nl32)
		}
		if err != nil {
			log.Debugf("symbol table truncated at entry %d: %v", i, err)
			break
		}
		if nl.Name >= st.Strsize {
			continue
		}
		name := m.tableString(stroff, uint64(nl.Name))
		if name == "" {
			continue
		}
		kind := models.SymbolUnknown
		switch nl.Type & 0x0e {
		case 0x0e:
			kind = models.SymbolFunction
		case 0x02:
			kind = models.SymbolObject
		}
		syms = append(syms, models.Symbol{Name: name, Addr: models.Address(nl.Value), Kind: kind})
	}
	return syms
}
