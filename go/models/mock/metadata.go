package mock

import (
	"bytes"
	"encoding/binary"
	"unicode/utf16"

	"github.com/il2corn/il2corn/go/il2cpp/metadata"
	"github.com/il2corn/il2corn/go/models"
)

// Metadata assembles a global metadata blob from decoded records.
type Metadata struct {
	Version uint32

	Types             []metadata.TypeDefinition
	Methods           []metadata.MethodDefinition
	Fields            []metadata.FieldDefinition
	Parameters        []metadata.ParameterDefinition
	Properties        []metadata.PropertyDefinition
	Images            []metadata.ImageDefinition
	Assemblies        []metadata.AssemblyDefinition
	GenericContainers []metadata.GenericContainer
	GenericParameters []metadata.GenericParameter
	FieldDefaults     []metadata.DefaultValue
	Interfaces        []int32
	NestedTypes       []int32

	strings     []byte
	interned    map[string]uint32
	literals    []metadata.StringLiteralDefinition
	literalData []byte
	defaultData []byte
}

func NewMetadata(version uint32) *Metadata {
	return &Metadata{Version: version, interned: make(map[string]uint32)}
}

// Str interns s in the string table and returns its index.
func (m *Metadata) Str(s string) uint32 {
	if idx, ok := m.interned[s]; ok {
		return idx
	}
	idx := uint32(len(m.strings))
	m.strings = append(append(m.strings, s...), 0)
	m.interned[s] = idx
	return idx
}

// RawStr appends raw bytes plus a terminator to the string table.
func (m *Metadata) RawStr(b []byte) uint32 {
	idx := uint32(len(m.strings))
	m.strings = append(append(m.strings, b...), 0)
	return idx
}

func (m *Metadata) Literal(s string) int {
	units := utf16.Encode([]rune(s))
	m.literals = append(m.literals, metadata.StringLiteralDefinition{
		Length:    uint32(len(units)),
		DataIndex: int32(len(m.literalData)),
	})
	for _, u := range units {
		m.literalData = append(m.literalData, byte(u), byte(u>>8))
	}
	return len(m.literals) - 1
}

// RawLiteral adds a literal of length code units over raw UTF-16LE bytes.
func (m *Metadata) RawLiteral(length uint32, raw []byte) int {
	m.literals = append(m.literals, metadata.StringLiteralDefinition{
		Length:    length,
		DataIndex: int32(len(m.literalData)),
	})
	m.literalData = append(m.literalData, raw...)
	return len(m.literals) - 1
}

func (m *Metadata) FieldDefault(field, typeIndex int32, data []byte) {
	m.FieldDefaults = append(m.FieldDefaults, metadata.DefaultValue{
		Index:     field,
		TypeIndex: typeIndex,
		DataIndex: int32(len(m.defaultData)),
	})
	m.defaultData = append(m.defaultData, data...)
}

type blob struct {
	bytes.Buffer
}

func (b *blob) records(width, count int, at func(i int) interface{}) metadata.Range {
	rng := metadata.Range{Offset: uint32(b.Len())}
	for i := 0; i < count; i++ {
		var tmp bytes.Buffer
		s := &models.StrucStream{Stream: &tmp, Order: binary.LittleEndian}
		if err := s.Pack(at(i)); err != nil {
			panic(err)
		}
		b.Write(tmp.Bytes()[:width])
	}
	rng.Size = uint32(b.Len()) - rng.Offset
	return rng
}

func (b *blob) raw(data []byte) metadata.Range {
	rng := metadata.Range{Offset: uint32(b.Len()), Size: uint32(len(data))}
	b.Write(data)
	return rng
}

func (b *blob) indices(v []int32) metadata.Range {
	rng := metadata.Range{Offset: uint32(b.Len())}
	for _, i := range v {
		binary.Write(b, binary.LittleEndian, i)
	}
	rng.Size = uint32(b.Len()) - rng.Offset
	return rng
}

// Build encodes the blob. The field table is always written last, so cutting
// bytes off the end truncates only that table.
func (m *Metadata) Build() []byte {
	layout := metadata.LayoutFor(m.Version)
	var h metadata.Header
	b := &blob{}
	b.Write(make([]byte, layout.HeaderSize()))

	h.String = b.raw(m.strings)
	h.StringLiteralData = b.raw(m.literalData)
	h.FieldAndParameterDefaultValueData = b.raw(m.defaultData)
	h.StringLiteral = b.records(metadata.StringLiteralSize, len(m.literals), func(i int) interface{} { return &m.literals[i] })
	h.TypeDefinitions = b.records(layout.TypeDefSize, len(m.Types), func(i int) interface{} { return &m.Types[i] })
	h.Methods = b.records(layout.MethodSize, len(m.Methods), func(i int) interface{} { return &m.Methods[i] })
	h.Parameters = b.records(metadata.ParameterSize, len(m.Parameters), func(i int) interface{} { return &m.Parameters[i] })
	h.Properties = b.records(metadata.PropertySize, len(m.Properties), func(i int) interface{} { return &m.Properties[i] })
	h.Images = b.records(layout.ImageSize, len(m.Images), func(i int) interface{} { return &m.Images[i] })
	h.Assemblies = b.records(layout.AssemblySize, len(m.Assemblies), func(i int) interface{} {
		a := m.Assemblies[i]
		if len(a.PublicKeyToken) != 8 {
			a.PublicKeyToken = make([]byte, 8)
		}
		return &a
	})
	h.GenericContainers = b.records(metadata.GenericContainerSize, len(m.GenericContainers), func(i int) interface{} { return &m.GenericContainers[i] })
	h.GenericParameters = b.records(metadata.GenericParameterSize, len(m.GenericParameters), func(i int) interface{} { return &m.GenericParameters[i] })
	h.FieldDefaultValues = b.records(metadata.DefaultValueSize, len(m.FieldDefaults), func(i int) interface{} { return &m.FieldDefaults[i] })
	h.Interfaces = b.indices(m.Interfaces)
	h.NestedTypes = b.indices(m.NestedTypes)
	h.Fields = b.records(metadata.FieldSize, len(m.Fields), func(i int) interface{} { return &m.Fields[i] })

	out := b.Bytes()
	binary.LittleEndian.PutUint32(out[0:], metadata.Magic)
	binary.LittleEndian.PutUint32(out[4:], m.Version)
	off := 8
	for _, rng := range h.Ranges(m.Version) {
		binary.LittleEndian.PutUint32(out[off:], rng.Offset)
		binary.LittleEndian.PutUint32(out[off+4:], rng.Size)
		off += 8
	}
	return out
}
