// Package schemagen translates JSON Schemas advertised by MCP tools into Go
// type definitions. Compilation is pure: no I/O, deterministic field ordering,
// deterministic names derived from server, tool, and role, so generating twice
// from the same inputs yields byte-identical source.
package schemagen

import (
	"sort"
	"strings"
	"unicode"

	"github.com/google/jsonschema-go/jsonschema"
)

// Kind classifies a compiled type.
type Kind string

const (
	KindRecord   Kind = "record"
	KindSequence Kind = "sequence"
	KindString   Kind = "string"
	KindInteger  Kind = "integer"
	KindNumber   Kind = "number"
	KindBoolean  Kind = "boolean"
	KindOpaque   Kind = "opaque"
)

// CompiledType is the result of compiling one schema. Records carry fields;
// sequences carry an element type; scalars and opaque values carry neither.
type CompiledType struct {
	// Name is set only for named top-level records.
	Name        string
	Kind        Kind
	Description string
	Fields      []Field
	Elem        *CompiledType
}

// Field is one property of a record type, ordered by JSON name.
type Field struct {
	JSONName    string
	GoName      string
	Type        *CompiledType
	Required    bool
	Description string
}

// Compile translates a schema into a compiled type. A nil schema, or one
// whose type is unknown, compiles to an opaque value. name is applied when
// the schema compiles to a record.
func Compile(name string, schema *jsonschema.Schema) *CompiledType {
	t := compile(schema)
	if t.Kind == KindRecord {
		t.Name = name
	}
	return t
}

func compile(schema *jsonschema.Schema) *CompiledType {
	if schema == nil {
		return &CompiledType{Kind: KindOpaque}
	}
	switch schema.Type {
	case "string":
		return &CompiledType{Kind: KindString, Description: schema.Description}
	case "integer":
		return &CompiledType{Kind: KindInteger, Description: schema.Description}
	case "number":
		return &CompiledType{Kind: KindNumber, Description: schema.Description}
	case "boolean":
		return &CompiledType{Kind: KindBoolean, Description: schema.Description}
	case "array":
		return &CompiledType{
			Kind:        KindSequence,
			Description: schema.Description,
			Elem:        compile(schema.Items),
		}
	case "object":
		return compileRecord(schema)
	default:
		return &CompiledType{Kind: KindOpaque, Description: schema.Description}
	}
}

func compileRecord(schema *jsonschema.Schema) *CompiledType {
	required := make(map[string]bool, len(schema.Required))
	for _, name := range schema.Required {
		required[name] = true
	}
	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]Field, 0, len(names))
	for _, name := range names {
		prop := schema.Properties[name]
		fields = append(fields, Field{
			JSONName:    name,
			GoName:      ExportIdent(name),
			Type:        compile(prop),
			Required:    required[name],
			Description: propDescription(prop),
		})
	}
	return &CompiledType{
		Kind:        KindRecord,
		Description: schema.Description,
		Fields:      fields,
	}
}

func propDescription(s *jsonschema.Schema) string {
	if s == nil {
		return ""
	}
	return s.Description
}

// GoType renders the type expression used in a field or element position.
// Records that were not assigned a name degrade to map[string]any: only the
// top-level input and output records become named structs.
func (t *CompiledType) GoType() string {
	if t == nil {
		return "any"
	}
	switch t.Kind {
	case KindString:
		return "string"
	case KindInteger:
		return "int64"
	case KindNumber:
		return "float64"
	case KindBoolean:
		return "bool"
	case KindSequence:
		return "[]" + t.Elem.GoType()
	case KindRecord:
		if t.Name != "" {
			return t.Name
		}
		return "map[string]any"
	default:
		return "any"
	}
}

// scalar reports whether the type renders to a value type that needs a
// pointer to distinguish "absent" from the zero value.
func (t *CompiledType) scalar() bool {
	switch t.Kind {
	case KindString, KindInteger, KindNumber, KindBoolean:
		return true
	}
	return false
}

// SanitizeIdent rewrites a name into a valid Go identifier: every character
// outside [A-Za-z0-9_] becomes an underscore and a leading digit is prefixed
// with one.
func SanitizeIdent(name string) string {
	var b strings.Builder
	for _, r := range name {
		if r == '_' || unicode.IsLetter(r) && r < 128 || unicode.IsDigit(r) && r < 128 {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	s := b.String()
	if s == "" {
		return "_"
	}
	if s[0] >= '0' && s[0] <= '9' {
		s = "_" + s
	}
	return s
}

// ExportIdent sanitizes a name and upper-cases its first letter so the
// resulting identifier is exported.
func ExportIdent(name string) string {
	s := SanitizeIdent(name)
	for i, r := range s {
		if unicode.IsLetter(r) {
			if i == 0 {
				return strings.ToUpper(s[:1]) + s[1:]
			}
			break
		}
	}
	return s
}

// PackageIdent sanitizes a server name into a usable package (and directory)
// name: lower-cased, underscores preserved.
func PackageIdent(name string) string {
	return strings.ToLower(SanitizeIdent(name))
}

// TypeName derives the deterministic name for a tool's input or output record:
// <Server>__<Tool><Role>. Role is "Input" or "Output".
func TypeName(server, tool, role string) string {
	return ExportIdent(server) + "__" + ExportIdent(tool) + role
}

// FuncName derives the deterministic name for a tool's generated callable:
// <Server>__<Tool>.
func FuncName(server, tool string) string {
	return ExportIdent(server) + "__" + ExportIdent(tool)
}

// Eligible reports whether a tool can be given a typed binding. Only tools
// whose output schema exists and has type "object" are structurally decodable
// into a typed record; everything else is skipped by policy, not as an error.
func Eligible(outputSchema *jsonschema.Schema) bool {
	return outputSchema != nil && outputSchema.Type == "object"
}
