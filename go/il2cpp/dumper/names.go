package dumper

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/il2corn/il2corn/go/il2cpp/metadata"
)

const unknownName = "<unknown>"

var idSpace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/il2corn/il2corn"))

// FullName joins a namespace and a type name.
func FullName(namespace, name string) string {
	if namespace == "" {
		return name
	}
	return namespace + "." + name
}

// MethodFullName uses "$$" to keep method names apart from nested type names.
func MethodFullName(typeFullName, name string) string {
	return typeFullName + "$$" + name
}

func typeID(index int, fullName string, token uint32) uuid.UUID {
	return uuid.NewSHA1(idSpace, []byte(fmt.Sprintf("type:%d:%s:%#x", index, fullName, token)))
}

func methodID(index int, fullName string, token uint32) uuid.UUID {
	return uuid.NewSHA1(idSpace, []byte(fmt.Sprintf("method:%d:%s:%#x", index, fullName, token)))
}

// typeDefName returns the full name of type definition idx, if it exists and
// has a name.
func (d *Dumper) typeDefName(idx int32) (string, bool) {
	td, ok := d.meta.Type(idx)
	if !ok {
		return "", false
	}
	name, ok := d.meta.String(td.NameIndex)
	if !ok {
		return "", false
	}
	return FullName(d.meta.StringOr(td.NamespaceIndex, ""), name), true
}

// typeName resolves a type reference without walking generic instances.
func (d *Dumper) typeName(idx int32) string {
	if idx < 0 {
		return "void"
	}
	if name, ok := d.typeDefName(idx); ok {
		return name
	}
	return fmt.Sprintf("Type_%d", idx)
}

func (d *Dumper) typeNames(table []int32, start int32, count uint16) []string {
	if start < 0 || count == 0 {
		return nil
	}
	var ret []string
	for i := 0; i < int(count); i++ {
		pos := int(start) + i
		if pos >= len(table) || table[pos] < 0 {
			continue
		}
		if name, ok := d.typeDefName(table[pos]); ok {
			ret = append(ret, name)
		}
	}
	return ret
}

func (d *Dumper) genericParameters(td *metadata.TypeDefinition) []string {
	gc, ok := d.meta.GenericContainer(td.GenericContainerIndex)
	if !ok {
		return nil
	}
	var ret []string
	for i := int32(0); i < gc.TypeArgc; i++ {
		gp, ok := d.meta.GenericParameter(gc.GenericParameterStart + i)
		if !ok {
			break
		}
		ret = append(ret, d.meta.StringOr(gp.NameIndex, fmt.Sprintf("T%d", i)))
	}
	return ret
}
