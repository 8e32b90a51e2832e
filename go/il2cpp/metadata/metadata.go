package metadata

import (
	"encoding/binary"
	"io/ioutil"

	"github.com/hashicorp/golang-lru"
	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/il2corn/il2corn/go/logflags"
	"github.com/il2corn/il2corn/go/models"
)

const stringCacheSize = 4096

// Metadata is a decoded global metadata blob. It is read-only after Parse.
type Metadata struct {
	Header  Header
	Version uint32
	Layout  Layout

	TypeDefinitions        []TypeDefinition
	Methods                []MethodDefinition
	Fields                 []FieldDefinition
	Parameters             []ParameterDefinition
	Properties             []PropertyDefinition
	Events                 []EventDefinition
	Images                 []ImageDefinition
	Assemblies             []AssemblyDefinition
	GenericContainers      []GenericContainer
	GenericParameters      []GenericParameter
	StringLiterals         []StringLiteralDefinition
	FieldDefaultValues     []DefaultValue
	ParameterDefaultValues []DefaultValue
	FieldRefs              []FieldRef
	Interfaces             []int32
	NestedTypes            []int32

	data          []byte
	fieldDefaults map[int32]int
	strings       *lru.Cache
	log           *logrus.Entry
}

func LoadFile(path string) (*Metadata, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read metadata")
	}
	return Parse(data)
}

// Parse decodes data. Only a bad prefix or a short header fails the parse;
// tables running past the end of data are cut short instead.
func Parse(data []byte) (*Metadata, error) {
	r := models.NewReader(data, binary.LittleEndian)
	magic, err := r.Uint32()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if magic != Magic {
		return nil, errors.WithStack(&models.MagicError{Expected: Magic, Actual: uint64(magic)})
	}
	version, err := r.Uint32()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if version < MinVersion || version > MaxVersion {
		return nil, errors.WithStack(&models.UnsupportedVersionError{Version: version})
	}
	m := &Metadata{
		Version:       version,
		Layout:        LayoutFor(version),
		data:          data,
		fieldDefaults: make(map[int32]int),
		log:           logflags.MetadataLogger(),
	}
	m.Header.Sanity, m.Header.Version = magic, version
	if err := m.readHeader(r); err != nil {
		return nil, err
	}
	if m.strings, err = lru.New(stringCacheSize); err != nil {
		return nil, errors.WithStack(err)
	}
	if err := m.readTables(); err != nil {
		return nil, err
	}
	m.log.WithFields(logrus.Fields{
		"version":    version,
		"types":      len(m.TypeDefinitions),
		"methods":    len(m.Methods),
		"fields":     len(m.Fields),
		"strings":    len(m.StringLiterals),
		"assemblies": len(m.Assemblies),
	}).Debug("decoded metadata")
	return m, nil
}

func (m *Metadata) readHeader(r *models.Reader) error {
	for _, rng := range m.Header.Ranges(m.Version) {
		var err error
		if rng.Offset, err = r.Uint32(); err != nil {
			return errors.Wrap(err, "failed to read metadata header")
		}
		if rng.Size, err = r.Uint32(); err != nil {
			return errors.Wrap(err, "failed to read metadata header")
		}
	}
	return nil
}

func (m *Metadata) Data() []byte { return m.data }

// table walks the records of rng, handing each raw record to fn. It stops at
// the first record that does not fit in the blob and returns how many records
// were visited.
func (m *Metadata) table(name string, rng Range, size int, fn func(raw []byte) error) (int, error) {
	if size <= 0 || rng.Empty() {
		return 0, nil
	}
	count := int(rng.Size) / size
	for i := 0; i < count; i++ {
		off := uint64(rng.Offset) + uint64(i)*uint64(size)
		if off+uint64(size) > uint64(len(m.data)) {
			m.log.WithFields(logrus.Fields{
				"table":    name,
				"claimed":  count,
				"decoded":  i,
				"offset":   rng.Offset,
				"dataSize": len(m.data),
			}).Warn("table runs past end of metadata")
			return i, nil
		}
		if err := fn(m.data[off : off+uint64(size)]); err != nil {
			return i, errors.Wrapf(err, "%s[%d]", name, i)
		}
	}
	return count, nil
}

// decodeRecord unpacks raw into v. A record shorter than v is zero extended,
// which leaves fields added by later versions empty.
func decodeRecord(raw []byte, v interface{}) error {
	size, err := struc.Sizeof(v)
	if err != nil {
		return errors.WithStack(err)
	}
	if len(raw) < size {
		padded := make([]byte, size)
		copy(padded, raw)
		raw = padded
	}
	return models.NewStrucStream(raw[:size], binary.LittleEndian).Unpack(v)
}

func (m *Metadata) readTables() error {
	h, l := &m.Header, m.Layout
	type tableSpec struct {
		name string
		rng  Range
		size int
		fn   func(raw []byte) error
	}
	tables := []tableSpec{
		{"typeDefinitions", h.TypeDefinitions, l.TypeDefSize, func(raw []byte) error {
			var v TypeDefinition
			if err := decodeRecord(raw, &v); err != nil {
				return err
			}
			m.TypeDefinitions = append(m.TypeDefinitions, v)
			return nil
		}},
		{"methods", h.Methods, l.MethodSize, func(raw []byte) error {
			var v MethodDefinition
			if err := decodeRecord(raw, &v); err != nil {
				return err
			}
			m.Methods = append(m.Methods, v)
			return nil
		}},
		{"images", h.Images, l.ImageSize, func(raw []byte) error {
			var v ImageDefinition
			if err := decodeRecord(raw, &v); err != nil {
				return err
			}
			m.Images = append(m.Images, v)
			return nil
		}},
		{"assemblies", h.Assemblies, l.AssemblySize, func(raw []byte) error {
			var v AssemblyDefinition
			if err := decodeRecord(raw, &v); err != nil {
				return err
			}
			m.Assemblies = append(m.Assemblies, v)
			return nil
		}},
		{"fields", h.Fields, FieldSize, func(raw []byte) error {
			var v FieldDefinition
			if err := decodeRecord(raw, &v); err != nil {
				return err
			}
			m.Fields = append(m.Fields, v)
			return nil
		}},
		{"parameters", h.Parameters, ParameterSize, func(raw []byte) error {
			var v ParameterDefinition
			if err := decodeRecord(raw, &v); err != nil {
				return err
			}
			m.Parameters = append(m.Parameters, v)
			return nil
		}},
		{"properties", h.Properties, PropertySize, func(raw []byte) error {
			var v PropertyDefinition
			if err := decodeRecord(raw, &v); err != nil {
				return err
			}
			m.Properties = append(m.Properties, v)
			return nil
		}},
		{"events", h.Events, EventSize, func(raw []byte) error {
			var v EventDefinition
			if err := decodeRecord(raw, &v); err != nil {
				return err
			}
			m.Events = append(m.Events, v)
			return nil
		}},
		{"genericContainers", h.GenericContainers, GenericContainerSize, func(raw []byte) error {
			var v GenericContainer
			if err := decodeRecord(raw, &v); err != nil {
				return err
			}
			m.GenericContainers = append(m.GenericContainers, v)
			return nil
		}},
		{"genericParameters", h.GenericParameters, GenericParameterSize, func(raw []byte) error {
			var v GenericParameter
			if err := decodeRecord(raw, &v); err != nil {
				return err
			}
			m.GenericParameters = append(m.GenericParameters, v)
			return nil
		}},
		{"stringLiterals", h.StringLiteral, StringLiteralSize, func(raw []byte) error {
			var v StringLiteralDefinition
			if err := decodeRecord(raw, &v); err != nil {
				return err
			}
			m.StringLiterals = append(m.StringLiterals, v)
			return nil
		}},
		{"fieldDefaultValues", h.FieldDefaultValues, DefaultValueSize, func(raw []byte) error {
			var v DefaultValue
			if err := decodeRecord(raw, &v); err != nil {
				return err
			}
			m.fieldDefaults[v.Index] = len(m.FieldDefaultValues)
			m.FieldDefaultValues = append(m.FieldDefaultValues, v)
			return nil
		}},
		{"parameterDefaultValues", h.ParameterDefaultValues, DefaultValueSize, func(raw []byte) error {
			var v DefaultValue
			if err := decodeRecord(raw, &v); err != nil {
				return err
			}
			m.ParameterDefaultValues = append(m.ParameterDefaultValues, v)
			return nil
		}},
		{"fieldRefs", h.FieldRefs, FieldRefSize, func(raw []byte) error {
			var v FieldRef
			if err := decodeRecord(raw, &v); err != nil {
				return err
			}
			m.FieldRefs = append(m.FieldRefs, v)
			return nil
		}},
		{"interfaces", h.Interfaces, IndexSize, func(raw []byte) error {
			m.Interfaces = append(m.Interfaces, int32(binary.LittleEndian.Uint32(raw)))
			return nil
		}},
		{"nestedTypes", h.NestedTypes, IndexSize, func(raw []byte) error {
			m.NestedTypes = append(m.NestedTypes, int32(binary.LittleEndian.Uint32(raw)))
			return nil
		}},
	}
	for _, t := range tables {
		n, err := m.table(t.name, t.rng, t.size, t.fn)
		if err != nil {
			return err
		}
		if logflags.Metadata() {
			m.log.Debugf("%s: %d records at %#x", t.name, n, t.rng.Offset)
		}
	}
	return nil
}

// Type returns the type definition at index, or false when index is out of
// range.
func (m *Metadata) Type(index int32) (*TypeDefinition, bool) {
	if index < 0 || int(index) >= len(m.TypeDefinitions) {
		return nil, false
	}
	return &m.TypeDefinitions[index], true
}

func (m *Metadata) Method(index int32) (*MethodDefinition, bool) {
	if index < 0 || int(index) >= len(m.Methods) {
		return nil, false
	}
	return &m.Methods[index], true
}

func (m *Metadata) Field(index int32) (*FieldDefinition, bool) {
	if index < 0 || int(index) >= len(m.Fields) {
		return nil, false
	}
	return &m.Fields[index], true
}

func (m *Metadata) Parameter(index int32) (*ParameterDefinition, bool) {
	if index < 0 || int(index) >= len(m.Parameters) {
		return nil, false
	}
	return &m.Parameters[index], true
}

func (m *Metadata) Property(index int32) (*PropertyDefinition, bool) {
	if index < 0 || int(index) >= len(m.Properties) {
		return nil, false
	}
	return &m.Properties[index], true
}

func (m *Metadata) GenericContainer(index int32) (*GenericContainer, bool) {
	if index < 0 || int(index) >= len(m.GenericContainers) {
		return nil, false
	}
	return &m.GenericContainers[index], true
}

func (m *Metadata) GenericParameter(index int32) (*GenericParameter, bool) {
	if index < 0 || int(index) >= len(m.GenericParameters) {
		return nil, false
	}
	return &m.GenericParameters[index], true
}

// ImageForType returns the image whose type range covers typeIndex.
func (m *Metadata) ImageForType(typeIndex int) (*ImageDefinition, bool) {
	for i := range m.Images {
		img := &m.Images[i]
		if img.TypeStart < 0 {
			continue
		}
		start := int(img.TypeStart)
		if typeIndex >= start && typeIndex < start+int(img.TypeCount) {
			return img, true
		}
	}
	return nil, false
}

// FieldDefaultValue returns the default value record for a field index.
func (m *Metadata) FieldDefaultValue(fieldIndex int32) (*DefaultValue, bool) {
	i, ok := m.fieldDefaults[fieldIndex]
	if !ok {
		return nil, false
	}
	return &m.FieldDefaultValues[i], true
}

// DefaultValueData returns n bytes of the default value blob at dataIndex.
func (m *Metadata) DefaultValueData(dataIndex int32, n int) ([]byte, bool) {
	if dataIndex < 0 || n < 0 {
		return nil, false
	}
	off := uint64(m.Header.FieldAndParameterDefaultValueData.Offset) + uint64(dataIndex)
	if off+uint64(n) > uint64(len(m.data)) {
		return nil, false
	}
	return m.data[off : off+uint64(n)], true
}
