package schema

import (
	"encoding/json"
	"fmt"
	"regexp"
)

var avroName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

type fieldNode struct {
	field    Field
	children []*fieldNode
}

// ToAvro renders normalized fields back into an Avro record schema named name.
// Normalizing the output as KindAvro yields the same paths, types and
// nullability. Named types are defined on first use and referenced after.
func ToAvro(name string, fields []Field) ([]byte, error) {
	roots, err := buildTree(fields)
	if err != nil {
		return nil, err
	}
	enc := &avroEncoder{defined: make(map[string]bool)}
	recordName := enc.typeName(name, "Root")
	enc.defined[recordName] = true
	doc := map[string]any{
		"type":   "record",
		"name":   recordName,
		"fields": enc.fieldList(roots),
	}
	return json.Marshal(doc)
}

func buildTree(fields []Field) ([]*fieldNode, error) {
	var roots []*fieldNode
	byPath := make(map[string]*fieldNode, len(fields))
	for _, f := range fields {
		if f.Path == "" {
			return nil, fmt.Errorf("field with empty path")
		}
		n := &fieldNode{field: f}
		if parentPath, _, nested := SplitPath(f.Path); nested {
			parent, ok := byPath[parentPath]
			if !ok {
				return nil, fmt.Errorf("field %s precedes its parent", f.Path)
			}
			if !holdsRecord(parent.field) {
				return nil, fmt.Errorf("field %s is nested under non-record %s", f.Path, parent.field.Path)
			}
			parent.children = append(parent.children, n)
		} else {
			roots = append(roots, n)
		}
		byPath[f.Path] = n
	}
	return roots, nil
}

// holdsRecord reports whether children may be flattened under f.
func holdsRecord(f Field) bool {
	switch f.Type {
	case TypeRecord:
		return true
	case TypeArray, TypeMap:
		return f.Items != nil && holdsRecord(*f.Items)
	}
	return false
}

type avroEncoder struct {
	defined map[string]bool
	seq     int
}

func (e *avroEncoder) fieldList(nodes []*fieldNode) []any {
	out := make([]any, 0, len(nodes))
	for _, n := range nodes {
		entry := map[string]any{
			"name": SegmentName(n.field.Path),
			"type": e.render(n.field, n.children),
		}
		if n.field.Description != "" {
			entry["doc"] = n.field.Description
		}
		out = append(out, entry)
	}
	return out
}

func (e *avroEncoder) render(f Field, children []*fieldNode) any {
	if f.Type == TypeUnion {
		members := make([]any, 0, len(f.Members)+1)
		if f.Nullable {
			members = append(members, "null")
		}
		for _, m := range f.Members {
			members = append(members, e.member(m))
		}
		return members
	}
	t := e.renderType(f, children)
	if f.Nullable && f.Type != TypeNull {
		return []any{"null", t}
	}
	return t
}

func (e *avroEncoder) renderType(f Field, children []*fieldNode) any {
	switch f.Type {
	case TypeNull, TypeBoolean, TypeInt, TypeLong, TypeFloat, TypeDouble, TypeBytes, TypeString:
		return string(f.Type)
	case TypeDate:
		return map[string]any{"type": "int", "logicalType": "date"}
	case TypeTime:
		return map[string]any{"type": "long", "logicalType": "time-micros"}
	case TypeTimestamp:
		return map[string]any{"type": "long", "logicalType": "timestamp-millis"}
	case TypeDecimal:
		out := map[string]any{"type": "bytes", "logicalType": "decimal"}
		if f.Precision > 0 {
			out["precision"] = f.Precision
			out["scale"] = f.Scale
		}
		return out
	case TypeFixed:
		name := e.typeName(f.NativeType, "Fixed")
		if e.defined[name] {
			return name
		}
		e.defined[name] = true
		return map[string]any{"type": "fixed", "name": name, "size": f.Length}
	case TypeEnum:
		name := e.typeName(f.NativeType, "Enum")
		if e.defined[name] {
			return name
		}
		e.defined[name] = true
		symbols := f.Symbols
		if symbols == nil {
			symbols = []string{}
		}
		return map[string]any{"type": "enum", "name": name, "symbols": symbols}
	case TypeRecord:
		name := e.typeName(f.NativeType, "Record")
		if e.defined[name] {
			return name
		}
		e.defined[name] = true
		return map[string]any{"type": "record", "name": name, "fields": e.fieldList(children)}
	case TypeArray:
		return map[string]any{"type": "array", "items": e.element(f.Items, children)}
	case TypeMap:
		return map[string]any{"type": "map", "values": e.element(f.Items, children)}
	}
	return "string"
}

func (e *avroEncoder) element(items *Field, children []*fieldNode) any {
	if items == nil {
		return "string"
	}
	return e.render(*items, children)
}

// member renders a union member by name. Definitions of named members are
// not retained in the field model, so unknown names become empty records.
func (e *avroEncoder) member(name string) any {
	if _, ok := avroPrimitives[name]; ok {
		return name
	}
	switch name {
	case "array":
		return map[string]any{"type": "array", "items": "string"}
	case "map":
		return map[string]any{"type": "map", "values": "string"}
	}
	if e.defined[name] {
		return name
	}
	n := e.typeName(name, "Member")
	e.defined[n] = true
	return map[string]any{"type": "record", "name": n, "fields": []any{}}
}

// typeName returns candidate when it is a valid Avro full name, otherwise a
// generated name with the given prefix.
func (e *avroEncoder) typeName(candidate, prefix string) string {
	if avroName.MatchString(candidate) {
		return candidate
	}
	e.seq++
	return fmt.Sprintf("%s%d", prefix, e.seq)
}
