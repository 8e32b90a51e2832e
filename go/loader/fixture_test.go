package loader

import (
	"encoding/binary"

	"github.com/il2corn/il2corn/go/models"
)

type image struct {
	buf   []byte
	order binary.ByteOrder
}

func newImage(order binary.ByteOrder) *image {
	return &image{order: order}
}

func (m *image) grow(n int) {
	if len(m.buf) < n {
		m.buf = append(m.buf, make([]byte, n-len(m.buf))...)
	}
}

func (m *image) put8(off int, v uint8) {
	m.grow(off + 1)
	m.buf[off] = v
}

func (m *image) put16(off int, v uint16) {
	m.grow(off + 2)
	m.order.PutUint16(m.buf[off:], v)
}

func (m *image) put32(off int, v uint32) {
	m.grow(off + 4)
	m.order.PutUint32(m.buf[off:], v)
}

func (m *image) put64(off int, v uint64) {
	m.grow(off + 8)
	m.order.PutUint64(m.buf[off:], v)
}

func (m *image) putWord(off, bits int, v uint64) {
	if bits == 64 {
		m.put64(off, v)
	} else {
		m.put32(off, uint32(v))
	}
}

func (m *image) putBytes(off int, b []byte) {
	m.grow(off + len(b))
	copy(m.buf[off:], b)
}

// fixtureSection describes a section as authored; the builders place its
// payload at Offset and expect the parser to reproduce Section exactly.
type fixtureSection struct {
	models.Section
	payload []byte
	nobits  bool
}

var textPayload = []byte{0xaa, 0xbb, 0xaa, 0x90, 0x11, 0x90, 0x22, 0xc3}

// ---- PE ----

const (
	peLfanew   = 0x40
	peCoffOff  = peLfanew + 4
	peOptOff   = peCoffOff + 20
	peExportVA = 0x2000
)

type peFixture struct {
	is64      bool
	machine   uint16
	imageBase uint64
	entryRVA  uint32
	sections  []fixtureSection
	exports   bool
}

func defaultPE(is64 bool) *peFixture {
	base := uint64(0x400000)
	machine := uint16(0x14c)
	if is64 {
		base = 0x140000000
		machine = 0x8664
	}
	text := make([]byte, 0x200)
	copy(text, textPayload)
	return &peFixture{
		is64:      is64,
		machine:   machine,
		imageBase: base,
		entryRVA:  0x1000,
		sections: []fixtureSection{
			{Section: models.Section{Name: ".text", Addr: models.Address(base + 0x1000), VirtualSize: 0x180,
				Offset: 0x400, RawSize: 0x200,
				Flags: models.SectionRead | models.SectionExecute}, payload: text},
			{Section: models.Section{Name: ".data", Addr: models.Address(base + 0x2000), VirtualSize: 0x200,
				Offset: 0x600, RawSize: 0x200,
				Flags: models.SectionRead | models.SectionWrite | models.SectionInitialized}},
			{Section: models.Section{Name: ".bss", Addr: models.Address(base + 0x3000), VirtualSize: 0x100,
				Offset: 0, RawSize: 0,
				Flags: models.SectionRead | models.SectionWrite | models.SectionUninitialized}},
		},
	}
}

func (f *peFixture) build() []byte {
	m := newImage(binary.LittleEndian)
	m.put16(0, 0x5a4d)
	m.put32(0x3c, peLfanew)
	m.put32(peLfanew, 0x4550)

	optSize := 224
	if f.is64 {
		optSize = 240
	}
	m.put16(peCoffOff, f.machine)
	m.put16(peCoffOff+2, uint16(len(f.sections)))
	m.put16(peCoffOff+16, uint16(optSize))

	if f.is64 {
		m.put16(peOptOff, 0x20b)
		m.put32(peOptOff+16, f.entryRVA)
		m.put64(peOptOff+24, f.imageBase)
		m.put32(peOptOff+108, 16)
	} else {
		m.put16(peOptOff, 0x10b)
		m.put32(peOptOff+16, f.entryRVA)
		m.put32(peOptOff+28, uint32(f.imageBase))
		m.put32(peOptOff+92, 16)
	}
	dirOff := peOptOff + 96
	if f.is64 {
		dirOff = peOptOff + 112
	}
	if f.exports {
		m.put32(dirOff, peExportVA)
		m.put32(dirOff+4, 0x80)
	}

	secOff := peOptOff + optSize
	for i, s := range f.sections {
		h := secOff + i*40
		m.putBytes(h, []byte(s.Name))
		m.put32(h+8, uint32(s.VirtualSize))
		m.put32(h+12, uint32(uint64(s.Addr)-f.imageBase))
		m.put32(h+16, uint32(s.RawSize))
		m.put32(h+20, uint32(s.Offset))
		var c uint32
		if s.Flags.Has(models.SectionExecute) {
			c |= 0x20000000
		}
		if s.Flags.Has(models.SectionRead) {
			c |= 0x40000000
		}
		if s.Flags.Has(models.SectionWrite) {
			c |= 0x80000000
		}
		if s.Flags.Has(models.SectionInitialized) {
			c |= 0x40
		}
		if s.Flags.Has(models.SectionUninitialized) {
			c |= 0x80
		}
		m.put32(h+36, c)
		if s.RawSize > 0 {
			m.grow(int(s.Offset + s.RawSize))
			m.putBytes(int(s.Offset), s.payload)
		}
	}
	if f.exports {
		// export directory at the start of .data (file offset 0x600)
		d := 0x600
		m.put32(d+16, 1)               // ordinal base
		m.put32(d+20, 2)               // functions
		m.put32(d+24, 2)               // names
		m.put32(d+28, peExportVA+0x40) // function RVAs
		m.put32(d+32, peExportVA+0x50) // name RVAs
		m.put32(d+36, peExportVA+0x58) // ordinals
		m.put32(d+0x40, 0x1010)
		m.put32(d+0x44, 0x2100)
		m.put32(d+0x50, peExportVA+0x60)
		m.put32(d+0x54, peExportVA+0x80)
		m.put16(d+0x58, 0)
		m.put16(d+0x5a, 1)
		m.putBytes(d+0x60, []byte("g_CodeRegistration\x00"))
		m.putBytes(d+0x80, []byte("g_MetadataRegistration\x00"))
	}
	return m.buf
}

// ---- ELF ----

type elfFixture struct {
	bits     int
	order    binary.ByteOrder
	machine  uint16
	entry    uint64
	android  bool
	sections []fixtureSection
	symbols  []models.Symbol
}

func defaultElf(bits int, order binary.ByteOrder) *elfFixture {
	machine := uint16(40)
	if bits == 64 {
		machine = 183
	}
	return &elfFixture{
		bits:    bits,
		order:   order,
		machine: machine,
		entry:   0x10000,
		sections: []fixtureSection{
			{Section: models.Section{Name: ".text", Addr: 0x10000, VirtualSize: uint64(len(textPayload)),
				RawSize: uint64(len(textPayload)),
				Flags:   models.SectionRead | models.SectionExecute | models.SectionInitialized}, payload: textPayload},
			{Section: models.Section{Name: ".data", Addr: 0x20000, VirtualSize: 0x20, RawSize: 0x20,
				Flags: models.SectionRead | models.SectionWrite | models.SectionInitialized}, payload: make([]byte, 0x20)},
			{Section: models.Section{Name: ".bss", Addr: 0x30000, VirtualSize: 0x100,
				Flags: models.SectionRead | models.SectionWrite | models.SectionUninitialized}, nobits: true},
		},
		symbols: []models.Symbol{
			{Name: "g_CodeRegistration", Addr: 0x20000, Size: 0x10, Kind: models.SymbolObject},
			{Name: "il2cpp_init", Addr: 0x10000, Size: 8, Kind: models.SymbolFunction},
		},
	}
}

// build lays out: header, section payloads, .symtab, .strtab, .shstrtab, then
// the section header table. Section offsets in f.sections are filled in.
func (f *elfFixture) build() []byte {
	m := newImage(f.order)
	ehsize, shentsize, symsize := 52, 40, 16
	if f.bits == 64 {
		ehsize, shentsize, symsize = 64, 64, 24
	}
	m.putBytes(0, []byte{0x7f, 'E', 'L', 'F'})
	if f.bits == 64 {
		m.put8(4, 2)
	} else {
		m.put8(4, 1)
	}
	if f.order == binary.BigEndian {
		m.put8(5, 2)
	} else {
		m.put8(5, 1)
	}
	m.put8(6, 1)

	shstr := []byte{0}
	addName := func(tab *[]byte, name string) uint32 {
		off := uint32(len(*tab))
		*tab = append(*tab, append([]byte(name), 0)...)
		return off
	}
	type shdr struct {
		name                 uint32
		typ                  uint32
		flags, addr, off, sz uint64
	}
	hdrs := []shdr{{}}
	pos := ehsize
	secs := append([]fixtureSection(nil), f.sections...)
	if f.android {
		secs = append(secs, fixtureSection{Section: models.Section{Name: ".note.android.ident", RawSize: 4,
			VirtualSize: 4, Flags: models.SectionInitialized}, payload: []byte{1, 2, 3, 4}})
	}
	for i := range secs {
		s := &secs[i]
		var flags uint64
		if s.Flags.Has(models.SectionRead) {
			flags |= 2
		}
		if s.Flags.Has(models.SectionWrite) {
			flags |= 1
		}
		if s.Flags.Has(models.SectionExecute) {
			flags |= 4
		}
		typ := uint32(1)
		if s.nobits {
			typ = 8
			s.Offset = uint64(pos)
		} else {
			s.Offset = uint64(pos)
			m.putBytes(pos, s.payload)
			pos += len(s.payload)
		}
		hdrs = append(hdrs, shdr{addName(&shstr, s.Name), typ, flags, uint64(s.Addr), s.Offset, s.VirtualSize})
	}
	copy(f.sections, secs)

	strtab := []byte{0}
	symOff := pos
	pos += symsize // null symbol
	for _, s := range f.symbols {
		name := addName(&strtab, s.Name)
		var info uint8
		switch s.Kind {
		case models.SymbolObject:
			info = 1
		case models.SymbolFunction:
			info = 2
		}
		m.put32(pos, name)
		if f.bits == 64 {
			m.put8(pos+4, info)
			m.put64(pos+8, uint64(s.Addr))
			m.put64(pos+16, s.Size)
		} else {
			m.put32(pos+4, uint32(s.Addr))
			m.put32(pos+8, uint32(s.Size))
			m.put8(pos+12, info)
		}
		pos += symsize
	}
	hdrs = append(hdrs, shdr{addName(&shstr, ".symtab"), 2, 0, 0, uint64(symOff), uint64(pos - symOff)})
	strOff := pos
	m.putBytes(pos, strtab)
	pos += len(strtab)
	hdrs = append(hdrs, shdr{addName(&shstr, ".strtab"), 3, 0, 0, uint64(strOff), uint64(len(strtab))})

	shstrName := addName(&shstr, ".shstrtab")
	shstrOff := pos
	m.putBytes(pos, shstr)
	pos += len(shstr)
	hdrs = append(hdrs, shdr{shstrName, 3, 0, 0, uint64(shstrOff), uint64(len(shstr))})

	pos = (pos + 7) &^ 7
	shoff := pos
	for i, h := range hdrs {
		o := shoff + i*shentsize
		m.put32(o, h.name)
		m.put32(o+4, h.typ)
		if f.bits == 64 {
			m.put64(o+8, h.flags)
			m.put64(o+16, h.addr)
			m.put64(o+24, h.off)
			m.put64(o+32, h.sz)
		} else {
			m.put32(o+8, uint32(h.flags))
			m.put32(o+12, uint32(h.addr))
			m.put32(o+16, uint32(h.off))
			m.put32(o+20, uint32(h.sz))
		}
	}
	m.grow(shoff + len(hdrs)*shentsize)

	m.put16(16, 3) // ET_DYN
	m.put16(18, f.machine)
	m.put32(20, 1)
	if f.bits == 64 {
		m.put64(24, f.entry)
		m.put64(40, uint64(shoff))
		m.put16(52, uint16(ehsize))
		m.put16(58, uint16(shentsize))
		m.put16(60, uint16(len(hdrs)))
		m.put16(62, uint16(len(hdrs)-1))
	} else {
		m.put32(24, uint32(f.entry))
		m.put32(32, uint32(shoff))
		m.put16(40, uint16(ehsize))
		m.put16(46, uint16(shentsize))
		m.put16(48, uint16(len(hdrs)))
		m.put16(50, uint16(len(hdrs)-1))
	}
	return m.buf
}

// ---- Mach-O ----

type machoFixture struct {
	bits     int
	order    binary.ByteOrder
	cpu      uint32
	entryOff uint64
	symbols  []models.Symbol
}

func defaultMachO(bits int) *machoFixture {
	cpu := uint32(12)
	if bits == 64 {
		cpu = 0x0100000c
	}
	return &machoFixture{
		bits:     bits,
		order:    binary.LittleEndian,
		cpu:      cpu,
		entryOff: 0x1000,
		symbols: []models.Symbol{
			{Name: "_g_MetadataRegistration", Addr: 0x100002000, Kind: models.SymbolFunction},
		},
	}
}

const (
	machoTextAddr = 0x100000000
	machoDataAddr = 0x100002000
)

// expectedSections returns the sections build produces when the slice is
// placed at file offset base.
func (f *machoFixture) expectedSections(base uint64) []models.Section {
	text, data := uint64(machoTextAddr), uint64(machoDataAddr)
	if f.bits == 32 {
		text, data = 0x4000, 0x6000
	}
	return []models.Section{
		{Name: "__TEXT,__text", Addr: models.Address(text + 0x1000), VirtualSize: uint64(len(textPayload)),
			Offset: base + 0x1000, RawSize: uint64(len(textPayload)),
			Flags: models.SectionRead | models.SectionExecute | models.SectionInitialized},
		{Name: "__DATA,__data", Addr: models.Address(data), VirtualSize: 0x40,
			Offset: base + 0x2000, RawSize: 0x40,
			Flags: models.SectionRead | models.SectionWrite | models.SectionInitialized},
		{Name: "__DATA,__bss", Addr: models.Address(data + 0x40), VirtualSize: 0x80,
			Offset: base, RawSize: 0,
			Flags: models.SectionRead | models.SectionWrite | models.SectionUninitialized},
	}
}

// build emits a thin image. File offsets are slice-relative, as they are
// inside a fat file.
func (f *machoFixture) build() []byte {
	m := newImage(f.order)
	is64 := f.bits == 64
	hdrSize, segSize, sectSize, nlSize := 28, 56, 68, 12
	segCmd := uint32(0x1)
	magic := uint32(0xfeedface)
	textAddr, dataAddr := uint64(0x4000), uint64(0x6000)
	if is64 {
		hdrSize, segSize, sectSize, nlSize = 32, 72, 80, 16
		segCmd = 0x19
		magic = 0xfeedfacf
		textAddr, dataAddr = machoTextAddr, machoDataAddr
	}
	m.put32(0, magic)
	m.put32(4, f.cpu)
	m.put32(12, 6) // MH_DYLIB

	pos := hdrSize
	ncmds := 0
	segment := func(name string, addr, size, fileoff uint64, prot uint32, sects [][4]uint64, names []string) {
		m.put32(pos, segCmd)
		m.put32(pos+4, uint32(segSize+sectSize*len(sects)))
		m.putBytes(pos+8, []byte(name))
		if is64 {
			m.put64(pos+24, addr)
			m.put64(pos+32, size)
			m.put64(pos+40, fileoff)
			m.put64(pos+48, size)
			m.put32(pos+56, 7)
			m.put32(pos+60, prot)
			m.put32(pos+64, uint32(len(sects)))
		} else {
			m.put32(pos+24, uint32(addr))
			m.put32(pos+28, uint32(size))
			m.put32(pos+32, uint32(fileoff))
			m.put32(pos+36, uint32(size))
			m.put32(pos+40, 7)
			m.put32(pos+44, prot)
			m.put32(pos+48, uint32(len(sects)))
		}
		pos += segSize
		for i, s := range sects {
			// s = {addr, size, offset, flags}
			m.putBytes(pos, []byte(names[i]))
			m.putBytes(pos+16, []byte(name))
			if is64 {
				m.put64(pos+32, s[0])
				m.put64(pos+40, s[1])
				m.put32(pos+48, uint32(s[2]))
				m.put32(pos+64, uint32(s[3]))
			} else {
				m.put32(pos+32, uint32(s[0]))
				m.put32(pos+36, uint32(s[1]))
				m.put32(pos+40, uint32(s[2]))
				m.put32(pos+56, uint32(s[3]))
			}
			pos += sectSize
		}
		ncmds++
	}
	segment("__PAGEZERO", 0, textAddr, 0, 0, nil, nil)
	segment("__TEXT", textAddr, 0x2000, 0, 5,
		[][4]uint64{{textAddr + 0x1000, uint64(len(textPayload)), 0x1000, 0x80000400}}, []string{"__text"})
	segment("__DATA", dataAddr, 0x1000, 0x2000, 3,
		[][4]uint64{{dataAddr, 0x40, 0x2000, 0}, {dataAddr + 0x40, 0x80, 0, 1}}, []string{"__data", "__bss"})

	m.put32(pos, 0x80000028)
	m.put32(pos+4, 24)
	m.put64(pos+8, f.entryOff)
	pos += 24
	ncmds++

	symtabCmd := pos
	m.put32(pos, 2)
	m.put32(pos+4, 24)
	pos += 24
	ncmds++

	m.put32(16, uint32(ncmds))
	m.put32(20, uint32(pos-hdrSize))

	m.putBytes(0x1000, textPayload)
	m.grow(0x2040)

	symOff := 0x3000
	strtab := []byte{0, 0}
	for i, s := range f.symbols {
		o := symOff + i*nlSize
		m.put32(o, uint32(len(strtab)))
		strtab = append(strtab, append([]byte(s.Name), 0)...)
		typ := uint8(0x0f) // N_SECT | N_EXT
		if s.Kind == models.SymbolObject {
			typ = 0x03
		}
		m.put8(o+4, typ)
		m.put8(o+5, 1)
		m.putWord(o+8, f.bits, uint64(s.Addr))
	}
	strOff := symOff + len(f.symbols)*nlSize
	m.putBytes(strOff, strtab)
	m.put32(symtabCmd+8, uint32(symOff))
	m.put32(symtabCmd+12, uint32(len(f.symbols)))
	m.put32(symtabCmd+16, uint32(strOff))
	m.put32(symtabCmd+20, uint32(len(strtab)))
	return m.buf
}

type fatSlice struct {
	cpu  uint32
	data []byte
}

// buildFat places each slice at a 0x10000-aligned offset.
func buildFat(slices []fatSlice) ([]byte, []uint64) {
	m := newImage(binary.BigEndian)
	m.put32(0, 0xcafebabe)
	m.put32(4, uint32(len(slices)))
	var offsets []uint64
	off := 0x10000
	for i, s := range slices {
		h := 8 + i*20
		m.put32(h, s.cpu)
		m.put32(h+8, uint32(off))
		m.put32(h+12, uint32(len(s.data)))
		m.put32(h+16, 14)
		m.putBytes(off, s.data)
		offsets = append(offsets, uint64(off))
		off += (len(s.data) + 0xffff) &^ 0xffff
	}
	return m.buf, offsets
}
