package metadata

// Type attribute bits.
const (
	TypeVisibilityMask = 0x7
	TypeInterface      = 0x20
	TypeAbstract       = 0x80
	TypeSealed         = 0x100
)

// Method attribute bits.
const (
	MethodAccessMask  = 0x7
	MethodPrivate     = 0x1
	MethodFamANDAssem = 0x2
	MethodAssembly    = 0x3
	MethodFamily      = 0x4
	MethodFamORAssem  = 0x5
	MethodPublic      = 0x6
	MethodStatic      = 0x10
	MethodVirtual     = 0x40
	MethodAbstract    = 0x400
)

// TypeDefinition holds the widest record. Older versions leave the tail zero.
type TypeDefinition struct {
	NameIndex             uint32
	NamespaceIndex        uint32
	ByvalTypeIndex        int32
	ByrefTypeIndex        int32
	DeclaringTypeIndex    int32
	ParentIndex           int32
	ElementTypeIndex      int32
	GenericContainerIndex int32
	Flags                 uint32
	FieldStart            int32
	MethodStart           int32
	EventStart            int32
	PropertyStart         int32
	NestedTypesStart      int32
	InterfacesStart       int32
	MethodCount           uint16
	PropertyCount         uint16
	FieldCount            uint16
	EventCount            uint16
	NestedTypesCount      uint16
	VTableCount           uint16
	InterfacesCount       uint16
	InterfaceOffsetsCount uint16
	Token                 uint32 // 24+
	VTableStart           int32  // 27+
	Bitfield              uint32 // 27+
}

func (t *TypeDefinition) IsEnum() bool      { return t.Bitfield&1 != 0 }
func (t *TypeDefinition) IsInterface() bool { return t.Flags&TypeInterface != 0 }
func (t *TypeDefinition) IsAbstract() bool  { return t.Flags&TypeAbstract != 0 }
func (t *TypeDefinition) IsSealed() bool    { return t.Flags&TypeSealed != 0 }

type MethodDefinition struct {
	NameIndex      uint32
	DeclaringType  int32
	ReturnType     int32
	ParameterStart int32
	Flags          uint16
	ParameterCount uint16
	Token          uint32 // 24+
}

func (m *MethodDefinition) IsStatic() bool   { return m.Flags&MethodStatic != 0 }
func (m *MethodDefinition) IsVirtual() bool  { return m.Flags&MethodVirtual != 0 }
func (m *MethodDefinition) IsAbstract() bool { return m.Flags&MethodAbstract != 0 }

// Access returns the C# access modifier for the method.
func (m *MethodDefinition) Access() string {
	switch m.Flags & MethodAccessMask {
	case MethodPrivate:
		return "private"
	case MethodFamANDAssem:
		return "private protected"
	case MethodAssembly:
		return "internal"
	case MethodFamily:
		return "protected"
	case MethodFamORAssem:
		return "protected internal"
	case MethodPublic:
		return "public"
	}
	return "private"
}

type ImageDefinition struct {
	NameIndex            uint32
	AssemblyIndex        int32
	TypeStart            int32
	TypeCount            uint32
	EntryPointIndex      int32
	Token                uint32
	ExportedTypeStart    int32  // 24+
	ExportedTypeCount    uint32 // 24+
	CustomAttributeStart int32  // 24+
	CustomAttributeCount uint32 // 24+
}

type AssemblyDefinition struct {
	ImageIndex              int32
	ReferencedAssemblyStart int32
	ReferencedAssemblyCount int32
	NameIndex               uint32
	CultureIndex            uint32
	PublicKeyIndex          uint32
	HashValueIndex          uint32
	PublicKeyToken          []byte `struc:"[8]byte"`
	HashAlg                 uint32
	HashLen                 int32
	Flags                   uint32
	Major                   int32
	Minor                   int32
	Build                   int32
	Revision                int32
	Token                   uint32 // 24+
}

type FieldDefinition struct {
	NameIndex uint32
	TypeIndex int32
	Token     uint32
}

type ParameterDefinition struct {
	NameIndex uint32
	Token     uint32
	TypeIndex int32
}

type PropertyDefinition struct {
	NameIndex uint32
	Get       int32
	Set       int32
	Attrs     uint32
	Token     uint32
}

type EventDefinition struct {
	NameIndex uint32
	TypeIndex int32
	Add       int32
	Remove    int32
	Raise     int32
	Token     uint32
}

type GenericContainer struct {
	OwnerIndex            int32
	TypeArgc              int32
	IsMethod              int32
	GenericParameterStart int32
}

type GenericParameter struct {
	OwnerIndex       int32
	NameIndex        uint32
	ConstraintsStart int16
	ConstraintsCount int16
	Num              uint16
	Flags            uint16
}

type StringLiteralDefinition struct {
	Length    uint32
	DataIndex int32
}

// DefaultValue is shared by the field and parameter default value tables.
// Index is the field or parameter index it applies to.
type DefaultValue struct {
	Index     int32
	TypeIndex int32
	DataIndex int32
}

type FieldRef struct {
	TypeIndex  int32
	FieldIndex int32
}
