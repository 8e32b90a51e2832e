package dumper

import (
	"encoding/binary"
	"strconv"

	"github.com/google/uuid"

	"github.com/il2corn/il2corn/go/il2cpp/metadata"
	"github.com/il2corn/il2corn/go/models"
)

const enumBase = "System.Enum"

// types must run after methods so method IDs are available.
func (d *Dumper) types() []models.DumpedType {
	ret := make([]models.DumpedType, 0, len(d.meta.TypeDefinitions))
	for i := range d.meta.TypeDefinitions {
		ret = append(ret, d.dumpType(i, &d.meta.TypeDefinitions[i]))
	}
	return ret
}

func (d *Dumper) dumpType(index int, td *metadata.TypeDefinition) models.DumpedType {
	name := d.meta.StringOr(td.NameIndex, unknownName)
	namespace := d.meta.StringOr(td.NamespaceIndex, "")
	fullName := FullName(namespace, name)
	t := models.DumpedType{
		ID:                typeID(index, fullName, td.Token),
		Index:             index,
		Name:              name,
		Namespace:         namespace,
		FullName:          fullName,
		Interfaces:        d.typeNames(d.meta.Interfaces, td.InterfacesStart, td.InterfacesCount),
		NestedTypes:       d.typeNames(d.meta.NestedTypes, td.NestedTypesStart, td.NestedTypesCount),
		GenericParameters: d.genericParameters(td),
		MethodStart:       int(td.MethodStart),
		MethodCount:       int(td.MethodCount),
		IsEnum:            d.isEnum(td),
		IsInterface:       td.IsInterface(),
		IsAbstract:        td.IsAbstract(),
		IsSealed:          td.IsSealed(),
		Token:             td.Token,
	}
	if t.Interfaces == nil {
		t.Interfaces = []string{}
	}
	if parent, ok := d.typeDefName(td.ParentIndex); ok {
		t.ParentType = &parent
	}
	if outer, ok := d.typeDefName(td.DeclaringTypeIndex); ok {
		t.DeclaringType = &outer
	}
	if img, ok := d.meta.ImageForType(index); ok {
		t.Assembly = d.meta.StringOr(img.NameIndex, "")
	}
	t.Fields = d.fields(td, t.IsEnum)
	t.Methods = d.methodRefs(td)
	t.Properties = d.properties(td)
	return t
}

// isEnum prefers the enum bit of newer records and falls back to the parent
// type on versions that lack it.
func (d *Dumper) isEnum(td *metadata.TypeDefinition) bool {
	if td.IsEnum() {
		return true
	}
	parent, ok := d.typeDefName(td.ParentIndex)
	return ok && parent == enumBase
}

func (d *Dumper) methodRefs(td *metadata.TypeDefinition) []uuid.UUID {
	ret := []uuid.UUID{}
	if td.MethodStart < 0 {
		return ret
	}
	for i := 0; i < int(td.MethodCount); i++ {
		if id, ok := d.methodRef(td.MethodStart + int32(i)); ok {
			ret = append(ret, id)
		}
	}
	return ret
}

func (d *Dumper) fields(td *metadata.TypeDefinition, enum bool) []models.DumpedField {
	ret := []models.DumpedField{}
	if td.FieldStart < 0 {
		return ret
	}
	for i := 0; i < int(td.FieldCount); i++ {
		idx := td.FieldStart + int32(i)
		fd, ok := d.meta.Field(idx)
		if !ok {
			break
		}
		f := models.DumpedField{
			Name:     d.meta.StringOr(fd.NameIndex, unknownName),
			TypeName: d.typeName(fd.TypeIndex),
			Token:    fd.Token,
		}
		if dv, ok := d.meta.FieldDefaultValue(idx); ok {
			f.IsConst, f.IsStatic = true, true
			if enum {
				if raw, ok := d.meta.DefaultValueData(dv.DataIndex, 4); ok {
					v := strconv.FormatInt(int64(int32(binary.LittleEndian.Uint32(raw))), 10)
					f.DefaultValue = &v
				}
			}
		}
		ret = append(ret, f)
	}
	return ret
}

// properties resolves accessors relative to the type's first method.
func (d *Dumper) properties(td *metadata.TypeDefinition) []models.DumpedProperty {
	ret := []models.DumpedProperty{}
	if td.PropertyStart < 0 {
		return ret
	}
	for i := 0; i < int(td.PropertyCount); i++ {
		pd, ok := d.meta.Property(td.PropertyStart + int32(i))
		if !ok {
			break
		}
		p := models.DumpedProperty{Name: d.meta.StringOr(pd.NameIndex, unknownName)}
		if pd.Get >= 0 && td.MethodStart >= 0 {
			idx := td.MethodStart + pd.Get
			if id, ok := d.methodRef(idx); ok {
				p.Getter = &id
				p.TypeName = d.typeName(d.meta.Methods[idx].ReturnType)
			}
		}
		if pd.Set >= 0 && td.MethodStart >= 0 {
			idx := td.MethodStart + pd.Set
			if id, ok := d.methodRef(idx); ok {
				p.Setter = &id
				if p.TypeName == "" {
					if params := d.parameters(&d.meta.Methods[idx]); len(params) > 0 {
						p.TypeName = params[0].TypeName
					}
				}
			}
		}
		ret = append(ret, p)
	}
	return ret
}
