package models

import (
	"time"

	"github.com/google/uuid"
)

type MethodParameter struct {
	Name     string `json:"name"`
	TypeName string `json:"type_name"`
	Index    int    `json:"index"`
}

type DumpedMethod struct {
	ID         uuid.UUID         `json:"id"`
	Index      int               `json:"index"`
	Name       string            `json:"name"`
	FullName   string            `json:"full_name"`
	Address    Address           `json:"address"`
	ReturnType string            `json:"return_type"`
	Parameters []MethodParameter `json:"parameters"`
	ClassName  string            `json:"class_name"`
	Namespace  string            `json:"namespace"`
	Access     string            `json:"access"`
	IsStatic   bool              `json:"is_static"`
	IsVirtual  bool              `json:"is_virtual"`
	IsAbstract bool              `json:"is_abstract"`
	Token      uint32            `json:"token"`
}

type DumpedField struct {
	Name         string  `json:"name"`
	TypeName     string  `json:"type_name"`
	Offset       uint32  `json:"offset"`
	IsStatic     bool    `json:"is_static"`
	IsConst      bool    `json:"is_const"`
	DefaultValue *string `json:"default_value,omitempty"`
	Token        uint32  `json:"token"`
}

type DumpedProperty struct {
	Name     string     `json:"name"`
	TypeName string     `json:"type_name"`
	Getter   *uuid.UUID `json:"getter,omitempty"`
	Setter   *uuid.UUID `json:"setter,omitempty"`
}

// DumpedType references its methods by ID; the method records themselves live
// once in DumpResults.Methods.
type DumpedType struct {
	ID                uuid.UUID        `json:"id"`
	Index             int              `json:"index"`
	Name              string           `json:"name"`
	Namespace         string           `json:"namespace"`
	FullName          string           `json:"full_name"`
	Assembly          string           `json:"assembly,omitempty"`
	ParentType        *string          `json:"parent_type,omitempty"`
	DeclaringType     *string          `json:"declaring_type,omitempty"`
	Interfaces        []string         `json:"interfaces"`
	NestedTypes       []string         `json:"nested_types,omitempty"`
	GenericParameters []string         `json:"generic_parameters,omitempty"`
	Fields            []DumpedField    `json:"fields"`
	MethodStart       int              `json:"method_start"`
	MethodCount       int              `json:"method_count"`
	Methods           []uuid.UUID      `json:"methods"`
	Properties        []DumpedProperty `json:"properties"`
	IsEnum            bool             `json:"is_enum"`
	IsInterface       bool             `json:"is_interface"`
	IsAbstract        bool             `json:"is_abstract"`
	IsSealed          bool             `json:"is_sealed"`
	Token             uint32           `json:"token"`
}

type StringLiteral struct {
	Address Address `json:"address"`
	Value   string  `json:"value"`
	Index   int     `json:"index"`
}

type DumpStatistics struct {
	TotalTypes      int `json:"total_types"`
	TotalMethods    int `json:"total_methods"`
	TotalFields     int `json:"total_fields"`
	TotalStrings    int `json:"total_strings"`
	AssembliesCount int `json:"assemblies_count"`
}

// Registrations holds the two runtime registration tables, when located.
type Registrations struct {
	CodeRegistration     *Address `json:"code_registration,omitempty"`
	MetadataRegistration *Address `json:"metadata_registration,omitempty"`
}

func (r Registrations) Found() bool {
	return r.CodeRegistration != nil && r.MetadataRegistration != nil
}

type DumpResults struct {
	Timestamp       time.Time       `json:"timestamp"`
	RuntimeVersion  *string         `json:"runtime_version,omitempty"`
	MetadataVersion uint32          `json:"metadata_version"`
	Types           []DumpedType    `json:"types"`
	Methods         []DumpedMethod  `json:"methods"`
	StringLiterals  []StringLiteral `json:"string_literals"`
	Statistics      DumpStatistics  `json:"statistics"`
	Registrations   Registrations   `json:"registrations"`
}

// Method returns the method record for id, if present.
func (d *DumpResults) Method(id uuid.UUID) (*DumpedMethod, bool) {
	for i := range d.Methods {
		if d.Methods[i].ID == id {
			return &d.Methods[i], true
		}
	}
	return nil, false
}

// TypeMethods resolves a type's method slice against the flat method list.
func (d *DumpResults) TypeMethods(t *DumpedType) []DumpedMethod {
	if t.MethodStart < 0 || t.MethodStart >= len(d.Methods) {
		return nil
	}
	end := t.MethodStart + t.MethodCount
	if end > len(d.Methods) {
		end = len(d.Methods)
	}
	return d.Methods[t.MethodStart:end]
}
