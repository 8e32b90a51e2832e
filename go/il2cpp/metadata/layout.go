package metadata

const (
	Magic      = 0xfab11baf
	MinVersion = 16
	MaxVersion = 31
)

// Range locates one table inside the blob.
type Range struct {
	Offset uint32
	Size   uint32
}

func (r Range) Empty() bool { return r.Size == 0 }

type Header struct {
	Sanity  uint32
	Version uint32

	StringLiteral                     Range
	StringLiteralData                 Range
	String                            Range
	Events                            Range
	Properties                        Range
	Methods                           Range
	ParameterDefaultValues            Range
	FieldDefaultValues                Range
	FieldAndParameterDefaultValueData Range
	FieldMarshaledSizes               Range
	Parameters                        Range
	Fields                            Range
	GenericParameters                 Range
	GenericParameterConstraints       Range
	GenericContainers                 Range
	NestedTypes                       Range
	Interfaces                        Range
	VTableMethods                     Range
	InterfaceOffsets                  Range
	TypeDefinitions                   Range
	Images                            Range
	Assemblies                        Range

	FieldRefs                            Range // 19+
	ReferencedAssemblies                 Range // 20+
	AttributeData                        Range // 21+
	AttributeDataRange                   Range // 21+
	UnresolvedVirtualCallParameterTypes  Range // 24+
	UnresolvedVirtualCallParameterRanges Range // 24+
	WindowsRuntimeTypeNames              Range // 24+
	WindowsRuntimeStrings                Range // 24+
	ExportedTypeDefinitions              Range // 24+
}

// headerFields lists the (offset, size) pairs in file order together with
// the first version that carries them.
var headerFields = []struct {
	since uint32
	field func(h *Header) *Range
}{
	{16, func(h *Header) *Range { return &h.StringLiteral }},
	{16, func(h *Header) *Range { return &h.StringLiteralData }},
	{16, func(h *Header) *Range { return &h.String }},
	{16, func(h *Header) *Range { return &h.Events }},
	{16, func(h *Header) *Range { return &h.Properties }},
	{16, func(h *Header) *Range { return &h.Methods }},
	{16, func(h *Header) *Range { return &h.ParameterDefaultValues }},
	{16, func(h *Header) *Range { return &h.FieldDefaultValues }},
	{16, func(h *Header) *Range { return &h.FieldAndParameterDefaultValueData }},
	{16, func(h *Header) *Range { return &h.FieldMarshaledSizes }},
	{16, func(h *Header) *Range { return &h.Parameters }},
	{16, func(h *Header) *Range { return &h.Fields }},
	{16, func(h *Header) *Range { return &h.GenericParameters }},
	{16, func(h *Header) *Range { return &h.GenericParameterConstraints }},
	{16, func(h *Header) *Range { return &h.GenericContainers }},
	{16, func(h *Header) *Range { return &h.NestedTypes }},
	{16, func(h *Header) *Range { return &h.Interfaces }},
	{16, func(h *Header) *Range { return &h.VTableMethods }},
	{16, func(h *Header) *Range { return &h.InterfaceOffsets }},
	{16, func(h *Header) *Range { return &h.TypeDefinitions }},
	{16, func(h *Header) *Range { return &h.Images }},
	{16, func(h *Header) *Range { return &h.Assemblies }},
	{19, func(h *Header) *Range { return &h.FieldRefs }},
	{20, func(h *Header) *Range { return &h.ReferencedAssemblies }},
	{21, func(h *Header) *Range { return &h.AttributeData }},
	{21, func(h *Header) *Range { return &h.AttributeDataRange }},
	{24, func(h *Header) *Range { return &h.UnresolvedVirtualCallParameterTypes }},
	{24, func(h *Header) *Range { return &h.UnresolvedVirtualCallParameterRanges }},
	{24, func(h *Header) *Range { return &h.WindowsRuntimeTypeNames }},
	{24, func(h *Header) *Range { return &h.WindowsRuntimeStrings }},
	{24, func(h *Header) *Range { return &h.ExportedTypeDefinitions }},
}

// Ranges returns the header's ranges present in version, in file order.
func (h *Header) Ranges(version uint32) []*Range {
	var ret []*Range
	for _, f := range headerFields {
		if version >= f.since {
			ret = append(ret, f.field(h))
		}
	}
	return ret
}

// Layout is everything about the blob that depends on its version.
type Layout struct {
	HeaderPairs  int
	TypeDefSize  int
	MethodSize   int
	ImageSize    int
	AssemblySize int
}

// recordSizes holds the variable record widths, newest last.
var recordSizes = []struct {
	since                            uint32
	typeDef, method, image, assembly int
}{
	{16, 76, 20, 24, 64},
	{24, 80, 24, 40, 68},
	{27, 88, 24, 40, 68},
}

// Fixed record widths.
const (
	FieldSize            = 12
	ParameterSize        = 12
	PropertySize         = 20
	EventSize            = 24
	GenericContainerSize = 16
	GenericParameterSize = 16
	StringLiteralSize    = 8
	DefaultValueSize     = 12
	FieldRefSize         = 8
	IndexSize            = 4
)

// LayoutFor returns the layout for version. The caller has already checked
// that version is supported.
func LayoutFor(version uint32) Layout {
	var l Layout
	for _, f := range headerFields {
		if version >= f.since {
			l.HeaderPairs++
		}
	}
	for _, s := range recordSizes {
		if version >= s.since {
			l.TypeDefSize, l.MethodSize, l.ImageSize, l.AssemblySize = s.typeDef, s.method, s.image, s.assembly
		}
	}
	return l
}

// HeaderSize is the byte length of the header including magic and version.
func (l Layout) HeaderSize() int {
	return 8 + 8*l.HeaderPairs
}
