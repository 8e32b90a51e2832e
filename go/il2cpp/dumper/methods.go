package dumper

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/il2corn/il2corn/go/il2cpp/metadata"
	"github.com/il2corn/il2corn/go/models"
)

// methods converts every method definition once, in metadata order, and
// records the IDs types use to reference them.
func (d *Dumper) methods() []models.DumpedMethod {
	ret := make([]models.DumpedMethod, 0, len(d.meta.Methods))
	d.methodIDs = make([]uuid.UUID, 0, len(d.meta.Methods))
	for i := range d.meta.Methods {
		m := d.method(i, &d.meta.Methods[i])
		d.methodIDs = append(d.methodIDs, m.ID)
		ret = append(ret, m)
	}
	return ret
}

func (d *Dumper) method(index int, md *metadata.MethodDefinition) models.DumpedMethod {
	name := d.meta.StringOr(md.NameIndex, unknownName)
	var className, namespace string
	if td, ok := d.meta.Type(md.DeclaringType); ok {
		className = d.meta.StringOr(td.NameIndex, unknownName)
		namespace = d.meta.StringOr(td.NamespaceIndex, "")
	}
	fullName := MethodFullName(FullName(namespace, className), name)
	return models.DumpedMethod{
		ID:         methodID(index, fullName, md.Token),
		Index:      index,
		Name:       name,
		FullName:   fullName,
		ReturnType: d.typeName(md.ReturnType),
		Parameters: d.parameters(md),
		ClassName:  className,
		Namespace:  namespace,
		Access:     md.Access(),
		IsStatic:   md.IsStatic(),
		IsVirtual:  md.IsVirtual(),
		IsAbstract: md.IsAbstract(),
		Token:      md.Token,
	}
}

func (d *Dumper) parameters(md *metadata.MethodDefinition) []models.MethodParameter {
	if md.ParameterStart < 0 || md.ParameterCount == 0 {
		return nil
	}
	var ret []models.MethodParameter
	for i := 0; i < int(md.ParameterCount); i++ {
		pd, ok := d.meta.Parameter(md.ParameterStart + int32(i))
		if !ok {
			break
		}
		ret = append(ret, models.MethodParameter{
			Name:     d.meta.StringOr(pd.NameIndex, fmt.Sprintf("param%d", i)),
			TypeName: d.typeName(pd.TypeIndex),
			Index:    i,
		})
	}
	return ret
}

// methodRef returns the ID of the method at a global index.
func (d *Dumper) methodRef(index int32) (uuid.UUID, bool) {
	if index < 0 || int(index) >= len(d.methodIDs) {
		return uuid.Nil, false
	}
	return d.methodIDs[index], true
}
