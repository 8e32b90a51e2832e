package loader

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/il2corn/il2corn/go/logflags"
	"github.com/il2corn/il2corn/go/models"
)

const (
	peDosMagic     = 0x5a4d // "MZ"
	peSignature    = 0x00004550
	peLfanewOffset = 0x3c

	pe32Magic     = 0x10b
	pe32PlusMagic = 0x20b

	peMaxExports = 1 << 20

	imageScnCntInitializedData   = 0x00000040
	imageScnCntUninitializedData = 0x00000080
	imageScnMemExecute           = 0x20000000
	imageScnMemRead              = 0x40000000
	imageScnMemWrite             = 0x80000000
)

var peMachineMap = map[uint16]models.Arch{
	0x014c: models.ArchX86,
	0x8664: models.ArchX86_64,
	0x01c0: models.ArchArm,
	0x01c4: models.ArchArm, // ARMNT
	0xaa64: models.ArchArm64,
}

type PELoader struct {
	LoaderBase
	exportDir peDataDirectory
}

type peFileHeader struct {
	Machine              uint16
	NumberOfSections     uint16
	TimeDateStamp        uint32
	PointerToSymbolTable uint32
	NumberOfSymbols      uint32
	SizeOfOptionalHeader uint16
	Characteristics      uint16
}

type peSectionHeader struct {
	Name                 []byte `struc:"[8]byte"`
	VirtualSize          uint32
	VirtualAddress       uint32
	SizeOfRawData        uint32
	PointerToRawData     uint32
	PointerToRelocations uint32
	PointerToLinenumbers uint32
	NumberOfRelocations  uint16
	NumberOfLinenumbers  uint16
	Characteristics      uint32
}

type peDataDirectory struct {
	VirtualAddress uint32
	Size           uint32
}

func MatchPE(data []byte) bool {
	return len(data) >= 2 && binary.LittleEndian.Uint16(data) == peDosMagic
}

// NewPELoader parses a PE32 or PE32+ image. Section and entry addresses are
// rebased onto the preferred image base.
func NewPELoader(data []byte) (*PELoader, error) {
	log := logflags.LoaderLogger()
	r := models.NewReader(data, binary.LittleEndian)

	magic, err := r.Uint16()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read DOS header")
	}
	if magic != peDosMagic {
		return nil, errors.WithStack(&models.MagicError{Expected: peDosMagic, Actual: uint64(magic)})
	}
	r.SetPos(peLfanewOffset)
	lfanew, err := r.Uint32()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read e_lfanew")
	}
	pos, err := offsetOf(uint64(lfanew))
	if err != nil {
		return nil, err
	}
	r.SetPos(pos)
	sig, err := r.Uint32()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read PE signature")
	}
	if sig != peSignature {
		return nil, errors.WithStack(&models.MagicError{Expected: peSignature, Actual: uint64(sig)})
	}

	var coff peFileHeader
	if err := r.Unpack(&coff); err != nil {
		return nil, errors.Wrap(err, "failed to read COFF header")
	}
	arch, ok := peMachineMap[coff.Machine]
	if !ok {
		arch = models.ArchUnknown
		log.Debugf("unknown PE machine %#x", coff.Machine)
	}

	optStart := r.Pos()
	optMagic, err := r.Uint16()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read optional header")
	}
	if optMagic != pe32Magic && optMagic != pe32PlusMagic {
		return nil, errors.WithStack(&models.MagicError{Expected: pe32PlusMagic, Actual: uint64(optMagic)})
	}
	is64 := optMagic == pe32PlusMagic

	// linker version, SizeOfCode, SizeOfInitializedData, SizeOfUninitializedData
	if err := r.Skip(2 + 4 + 4 + 4); err != nil {
		return nil, errors.Wrap(err, "failed to read optional header")
	}
	entryRVA, err := r.Uint32()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read entry point")
	}
	skip := 4 // BaseOfCode
	if !is64 {
		skip += 4 // BaseOfData
	}
	if err := r.Skip(skip); err != nil {
		return nil, errors.Wrap(err, "failed to read optional header")
	}
	bits := 32
	if is64 {
		bits = 64
	}
	imageBase, err := r.Word(bits)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read image base")
	}

	p := &PELoader{
		LoaderBase: LoaderBase{
			format:    models.FormatPE,
			arch:      arch,
			bits:      bits,
			byteOrder: binary.LittleEndian,
			os:        "windows",
			entry:     models.Address(imageBase + uint64(entryRVA)),
			imageBase: models.Address(imageBase),
			data:      data,
		},
	}
	p.exportDir = readExportDirectory(r, optStart, int(coff.SizeOfOptionalHeader), is64)

	secStart, err := offsetOf(uint64(optStart), uint64(coff.SizeOfOptionalHeader))
	if err != nil {
		return nil, err
	}
	r.SetPos(secStart)
	p.sections = make([]models.Section, 0, coff.NumberOfSections)
	for i := 0; i < int(coff.NumberOfSections); i++ {
		sec, err := readPESection(r, imageBase)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read section header %d", i)
		}
		p.sections = append(p.sections, sec)
	}
	p.symbols = p.exports()
	log.Debugf("PE%s %s: %d sections, %d exports, base %s", map[bool]string{true: "32+", false: "32"}[is64],
		arch, len(p.sections), len(p.symbols), p.imageBase)
	return p, nil
}

func readPESection(r *models.Reader, imageBase uint64) (models.Section, error) {
	var hdr peSectionHeader
	if err := r.Unpack(&hdr); err != nil {
		return models.Section{}, err
	}

	var flags models.SectionFlags
	c := hdr.Characteristics
	if c&imageScnMemRead != 0 {
		flags |= models.SectionRead
	}
	if c&imageScnMemWrite != 0 {
		flags |= models.SectionWrite
	}
	if c&imageScnMemExecute != 0 {
		flags |= models.SectionExecute
	}
	if c&imageScnCntInitializedData != 0 {
		flags |= models.SectionInitialized
	}
	if c&imageScnCntUninitializedData != 0 {
		flags |= models.SectionUninitialized
	}
	return models.Section{
		Name:        trimName(hdr.Name),
		Addr:        models.Address(imageBase + uint64(hdr.VirtualAddress)),
		VirtualSize: uint64(hdr.VirtualSize),
		Offset:      uint64(hdr.PointerToRawData),
		RawSize:     uint64(hdr.SizeOfRawData),
		Flags:       flags,
	}, nil
}

// readExportDirectory returns data directory 0, or a zero directory when the
// optional header is too short to hold it.
func readExportDirectory(r *models.Reader, optStart, optSize int, is64 bool) peDataDirectory {
	countOff := 92
	if is64 {
		countOff = 108
	}
	if optSize < countOff+4+8 {
		return peDataDirectory{}
	}
	save := r.Pos()
	defer r.SetPos(save)
	r.SetPos(optStart + countOff)
	n, err := r.Uint32()
	if err != nil || n == 0 {
		return peDataDirectory{}
	}
	var dir peDataDirectory
	if dir.VirtualAddress, err = r.Uint32(); err != nil {
		return peDataDirectory{}
	}
	if dir.Size, err = r.Uint32(); err != nil {
		return peDataDirectory{}
	}
	return dir
}

// exports resolves the export directory into function symbols. Any
// inconsistency ends the walk; what was collected so far is kept.
func (p *PELoader) exports() []models.Symbol {
	if p.exportDir.VirtualAddress == 0 || p.exportDir.Size == 0 {
		return nil
	}
	log := logflags.LoaderLogger()
	base := p.imageBase
	rva := func(v uint32) models.Address { return base.Offset(int64(v)) }

	raw, err := p.ReadVA(rva(p.exportDir.VirtualAddress), 40)
	if err != nil {
		log.Debugf("export directory unreadable: %v", err)
		return nil
	}
	r := models.NewReader(raw, binary.LittleEndian)
	r.Skip(16) // characteristics, timestamp, version, name
	ordBase, _ := r.Uint32()
	numFuncs, _ := r.Uint32()
	numNames, _ := r.Uint32()
	addrFuncs, _ := r.Uint32()
	addrNames, _ := r.Uint32()
	addrOrds, _ := r.Uint32()
	if numFuncs > peMaxExports || numNames > peMaxExports {
		log.Debugf("implausible export counts %d/%d", numFuncs, numNames)
		return nil
	}
	log.Debugf("export directory: %d functions, %d names, ordinal base %d", numFuncs, numNames, ordBase)

	var syms []models.Symbol
	for i := uint32(0); i < numNames; i++ {
		nameRVA, err := p.readU32VA(rva(addrNames).Offset(int64(i) * 4))
		if err != nil {
			break
		}
		ordRaw, err := p.ReadVA(rva(addrOrds).Offset(int64(i)*2), 2)
		if err != nil {
			break
		}
		ord := uint32(binary.LittleEndian.Uint16(ordRaw))
		if ord >= numFuncs {
			continue
		}
		funcRVA, err := p.readU32VA(rva(addrFuncs).Offset(int64(ord) * 4))
		if err != nil || funcRVA == 0 {
			continue
		}
		name, err := p.ReadStringVA(rva(nameRVA), 512)
		if err != nil || name == "" {
			continue
		}
		kind := models.SymbolFunction
		addr := rva(funcRVA)
		if !p.inExecutable(addr) {
			kind = models.SymbolObject
		}
		syms = append(syms, models.Symbol{Name: name, Addr: addr, Kind: kind})
	}
	return syms
}

func (p *PELoader) readU32VA(va models.Address) (uint32, error) {
	b, err := p.ReadVA(va, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (p *PELoader) inExecutable(va models.Address) bool {
	for i := range p.sections {
		if p.sections[i].ContainsVirt(va) {
			return p.sections[i].Executable()
		}
	}
	return false
}
