package schemagen

import (
	"fmt"
	"strings"
)

// RenderMode selects how optional fields are rendered.
type RenderMode int

const (
	// RenderInput renders optional scalar fields as pointers with omitempty
	// so absent parameters are dropped from the argument map entirely.
	RenderInput RenderMode = iota
	// RenderOutput renders every field as a plain value; decoding leaves
	// absent optional fields at their zero value.
	RenderOutput
)

// RenderStruct renders a named record as a Go struct definition. Non-record
// types render to nothing: callers only materialize declarations for the
// top-level input and output records.
func RenderStruct(t *CompiledType, mode RenderMode) string {
	if t == nil || t.Kind != KindRecord || t.Name == "" {
		return ""
	}
	var b strings.Builder
	if t.Description != "" {
		writeComment(&b, "", t.Description)
	}
	fmt.Fprintf(&b, "type %s struct {\n", t.Name)
	for _, f := range t.Fields {
		if f.Description != "" {
			writeComment(&b, "\t", f.Description)
		}
		goType := f.Type.GoType()
		tag := f.JSONName
		if mode == RenderInput && !f.Required {
			if f.Type.scalar() {
				goType = "*" + goType
			}
			tag += ",omitempty"
		}
		fmt.Fprintf(&b, "\t%s %s `json:%q`\n", f.GoName, goType, tag)
	}
	b.WriteString("}\n")
	return b.String()
}

// writeComment emits a description as line comments, one per input line, with
// the given indent.
func writeComment(b *strings.Builder, indent, text string) {
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			fmt.Fprintf(b, "%s//\n", indent)
			continue
		}
		fmt.Fprintf(b, "%s// %s\n", indent, line)
	}
}
