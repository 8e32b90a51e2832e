package models

type SymbolKind int

const (
	SymbolUnknown SymbolKind = iota
	SymbolFunction
	SymbolObject
	SymbolSection
	SymbolFile
)

func (k SymbolKind) String() string {
	switch k {
	case SymbolFunction:
		return "func"
	case SymbolObject:
		return "object"
	case SymbolSection:
		return "section"
	case SymbolFile:
		return "file"
	default:
		return "unknown"
	}
}

type Symbol struct {
	Name string
	Addr Address
	// Size is zero when the format does not record one.
	Size uint64
	Kind SymbolKind
}

func (s Symbol) Contains(addr Address) bool {
	return s.Addr <= addr && (uint64(addr-s.Addr) < s.Size || s.Size == 0 && addr == s.Addr)
}
