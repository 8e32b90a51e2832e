package search

import (
	"bytes"
	"encoding/binary"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/il2corn/il2corn/go/logflags"
	"github.com/il2corn/il2corn/go/models"
)

const (
	CodeRegistrationSymbol     = "g_CodeRegistration"
	MetadataRegistrationSymbol = "g_MetadataRegistration"

	// distance searched past `lea rcx` for the paired `lea rdx`
	leaWindow = 50
	leaSize   = 7
)

var (
	leaRcx = []byte{0x48, 0x8d, 0x0d}
	leaRdx = []byte{0x48, 0x8d, 0x15}
)

type Strategy int

const (
	StrategyNone Strategy = iota
	StrategyManual
	StrategySymbol
	StrategyCount
	StrategyPattern
)

func (s Strategy) String() string {
	switch s {
	case StrategyManual:
		return "manual"
	case StrategySymbol:
		return "symbol"
	case StrategyCount:
		return "count"
	case StrategyPattern:
		return "pattern"
	}
	return "none"
}

type Result struct {
	CodeRegistration     models.Address
	MetadataRegistration models.Address
	Strategy             Strategy
}

func (r *Result) Registrations() models.Registrations {
	code, meta := r.CodeRegistration, r.MetadataRegistration
	return models.Registrations{CodeRegistration: &code, MetadataRegistration: &meta}
}

// Locator finds the two registration tables in a binary. It never fails;
// an inconclusive search just reports nothing found.
type Locator struct {
	bin         models.BinaryFile
	typeCount   int
	methodCount int
	manual      *Result
	log         *logrus.Entry
}

// NewLocator takes the type definition and method definition counts from the
// matching metadata.
func NewLocator(bin models.BinaryFile, typeCount, methodCount int) *Locator {
	return &Locator{
		bin:         bin,
		typeCount:   typeCount,
		methodCount: methodCount,
		log:         logflags.LocatorLogger(),
	}
}

// SetManual makes Find return the given addresses without searching.
func (l *Locator) SetManual(code, meta models.Address) {
	l.manual = &Result{CodeRegistration: code, MetadataRegistration: meta, Strategy: StrategyManual}
}

// Find runs each strategy in turn and returns the first hit.
func (l *Locator) Find() (*Result, bool) {
	if l.manual != nil {
		l.log.Infof("using manual registrations: code=%s metadata=%s", l.manual.CodeRegistration, l.manual.MetadataRegistration)
		return l.manual, true
	}
	if logflags.Locator() {
		l.log.Debugf("searching %s %d-bit image: %d types, %d methods, %d data sections",
			l.bin.Arch(), l.bin.Bits(), l.typeCount, l.methodCount, len(l.bin.DataSections()))
	}
	for _, strategy := range []func() (*Result, bool){l.Symbols, l.CountScan, l.Pattern} {
		if res, ok := strategy(); ok {
			l.log.WithFields(logrus.Fields{
				"strategy": res.Strategy,
				"code":     res.CodeRegistration,
				"metadata": res.MetadataRegistration,
			}).Info("found registrations")
			return res, true
		}
	}
	l.log.Warn("could not find registration structures")
	return nil, false
}

// Symbols looks for symbols naming both tables.
func (l *Locator) Symbols() (*Result, bool) {
	var code, meta *models.Address
	for _, sym := range l.bin.Symbols() {
		addr := sym.Addr
		if strings.Contains(sym.Name, CodeRegistrationSymbol) {
			code = &addr
			l.log.Debugf("%s at %s", sym.Name, addr)
		}
		if strings.Contains(sym.Name, MetadataRegistrationSymbol) {
			meta = &addr
			l.log.Debugf("%s at %s", sym.Name, addr)
		}
	}
	if code == nil || meta == nil {
		return nil, false
	}
	return &Result{CodeRegistration: *code, MetadataRegistration: *meta, Strategy: StrategySymbol}, true
}

// CountScan looks for the pointer-sized type and method counts in data
// sections. The first match of each is accepted as is.
func (l *Locator) CountScan() (*Result, bool) {
	if l.typeCount <= 0 || l.methodCount <= 0 {
		return nil, false
	}
	meta, ok := l.findCount(uint64(l.typeCount))
	if !ok {
		l.log.Debugf("type count %d not found in data sections", l.typeCount)
		return nil, false
	}
	code, ok := l.findCount(uint64(l.methodCount))
	if !ok {
		l.log.Debugf("method count %d not found in data sections", l.methodCount)
		return nil, false
	}
	return &Result{CodeRegistration: code, MetadataRegistration: meta, Strategy: StrategyCount}, true
}

func (l *Locator) findCount(count uint64) (models.Address, bool) {
	needle := make([]byte, l.bin.Bits()/8)
	if len(needle) == 8 {
		binary.LittleEndian.PutUint64(needle, count)
	} else {
		binary.LittleEndian.PutUint32(needle, uint32(count))
	}
	for _, s := range l.bin.DataSections() {
		data, ok := l.bin.SectionData(s)
		if !ok {
			continue
		}
		if i := bytes.Index(data, needle); i >= 0 {
			return s.Addr.Offset(int64(i)), true
		}
	}
	return 0, false
}

// Pattern searches code for the instruction sequence that loads both table
// addresses before the runtime init call. Only x86_64 is supported.
func (l *Locator) Pattern() (*Result, bool) {
	switch l.bin.Arch() {
	case models.ArchX86_64:
		return l.patternX64()
	default:
		l.log.Debugf("no instruction pattern for %s", l.bin.Arch())
		return nil, false
	}
}

// patternX64 matches `lea rcx, [rip+a]` followed closely by `lea rdx, [rip+b]`.
func (l *Locator) patternX64() (*Result, bool) {
	for _, s := range l.bin.ExecutableSections() {
		data, ok := l.bin.SectionData(s)
		if !ok {
			continue
		}
		for i := 0; i+leaSize <= len(data); i++ {
			if !bytes.HasPrefix(data[i:], leaRcx) {
				continue
			}
			for j := i + leaSize; j < i+leaWindow && j+leaSize <= len(data); j++ {
				if !bytes.HasPrefix(data[j:], leaRdx) {
					continue
				}
				code := ripTarget(s.Addr, i, data)
				meta := ripTarget(s.Addr, j, data)
				l.log.Debugf("lea pair at %s", s.Addr.Offset(int64(i)))
				return &Result{CodeRegistration: code, MetadataRegistration: meta, Strategy: StrategyPattern}, true
			}
		}
	}
	return nil, false
}

// ripTarget resolves the disp32 operand of the 7 byte lea at data[off].
func ripTarget(base models.Address, off int, data []byte) models.Address {
	disp := int32(binary.LittleEndian.Uint32(data[off+3:]))
	return base.Offset(int64(off) + leaSize + int64(disp))
}
