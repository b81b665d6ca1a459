package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// rootValuePath names the single field emitted for a non-record top-level schema.
const rootValuePath = "value"

var avroPrimitives = map[string]FieldType{
	"null":    TypeNull,
	"boolean": TypeBoolean,
	"int":     TypeInt,
	"long":    TypeLong,
	"float":   TypeFloat,
	"double":  TypeDouble,
	"bytes":   TypeBytes,
	"string":  TypeString,
}

var avroLogicalTypes = map[string]FieldType{
	"date":                   TypeDate,
	"time-millis":            TypeTime,
	"time-micros":            TypeTime,
	"timestamp-millis":       TypeTimestamp,
	"timestamp-micros":       TypeTimestamp,
	"timestamp-nanos":        TypeTimestamp,
	"local-timestamp-millis": TypeTimestamp,
	"local-timestamp-micros": TypeTimestamp,
	"decimal":                TypeDecimal,
	"uuid":                   TypeString,
	"duration":               TypeFixed,
}

// avroWalker flattens one Avro document. Named types are collected in a
// first pass so references resolve regardless of where they were defined.
type avroWalker struct {
	named     map[string]map[string]any
	short     map[string]string
	expanding map[string]bool
	fields    []Field
	diags     []string
}

func normalizeAvro(raw []byte) (*Result, error) {
	var root any
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, &ParseError{Kind: KindAvro, Err: err}
	}
	w := &avroWalker{
		named:     make(map[string]map[string]any),
		short:     make(map[string]string),
		expanding: make(map[string]bool),
	}
	if err := w.collect(root, ""); err != nil {
		return nil, &ParseError{Kind: KindAvro, Err: err}
	}

	var err error
	if obj, ok := root.(map[string]any); ok && isRecordType(obj["type"]) {
		full := defName(obj, "")
		w.expanding[full] = true
		err = w.walkFields("", obj, namespaceOf(full))
	} else {
		err = w.walk(rootValuePath, root, "", "")
	}
	if err != nil {
		return nil, &ParseError{Kind: KindAvro, Err: err}
	}
	return &Result{Fields: w.fields, Diagnostics: w.diags}, nil
}

// collect registers every named type (record, error, enum, fixed).
func (w *avroWalker) collect(schema any, ns string) error {
	switch s := schema.(type) {
	case string:
		return nil
	case []any:
		for _, m := range s {
			if err := w.collect(m, ns); err != nil {
				return err
			}
		}
		return nil
	case map[string]any:
		t, ok := s["type"]
		if !ok {
			return errors.New("schema object without type")
		}
		ts, isString := t.(string)
		if !isString {
			return w.collect(t, ns)
		}
		switch ts {
		case "record", "error", "enum", "fixed":
			name, _ := s["name"].(string)
			if name == "" {
				return fmt.Errorf("%s without name", ts)
			}
			full := defName(s, ns)
			w.named[full] = s
			w.short[lastSegment(full)] = full
			if ts != "record" && ts != "error" {
				return nil
			}
			fields, ok := s["fields"].([]any)
			if !ok {
				return fmt.Errorf("record %s has no fields list", full)
			}
			for i, raw := range fields {
				fo, ok := raw.(map[string]any)
				if !ok {
					return fmt.Errorf("record %s: field %d is not an object", full, i)
				}
				if err := w.collect(fo["type"], namespaceOf(full)); err != nil {
					return err
				}
			}
		case "array":
			return w.collect(s["items"], ns)
		case "map":
			return w.collect(s["values"], ns)
		}
		return nil
	default:
		return fmt.Errorf("invalid schema element %v", schema)
	}
}

// walk appends the field at path, followed by its flattened children.
func (w *avroWalker) walk(path string, schema any, doc string, ns string) error {
	idx := len(w.fields)
	w.fields = append(w.fields, Field{})
	f, err := w.describe(path, schema, ns)
	if err != nil {
		return err
	}
	f.Path = path
	f.Description = doc
	w.fields[idx] = f
	return nil
}

func (w *avroWalker) walkFields(prefix string, def map[string]any, ns string) error {
	fields, ok := def["fields"].([]any)
	if !ok {
		return fmt.Errorf("record %v has no fields list", def["name"])
	}
	for i, raw := range fields {
		fo, _ := raw.(map[string]any)
		name, _ := fo["name"].(string)
		if name == "" {
			return fmt.Errorf("record %v: field %d has no name", def["name"], i)
		}
		ft, ok := fo["type"]
		if !ok {
			return fmt.Errorf("record %v: field %s has no type", def["name"], name)
		}
		doc, _ := fo["doc"].(string)
		if err := w.walk(joinPath(prefix, name), ft, doc, ns); err != nil {
			return err
		}
	}
	return nil
}

// describe returns the descriptor for schema (Path unset). Record children are
// appended to w.fields under path as a side effect.
func (w *avroWalker) describe(path string, schema any, ns string) (Field, error) {
	switch s := schema.(type) {
	case string:
		if t, ok := avroPrimitives[s]; ok {
			return Field{Type: t, NativeType: s}, nil
		}
		return w.reference(path, s, ns)
	case []any:
		return w.union(path, s, ns)
	case map[string]any:
		t, ok := s["type"]
		if !ok {
			return Field{}, fmt.Errorf("%s: schema object without type", path)
		}
		ts, isString := t.(string)
		if !isString {
			return w.describe(path, t, ns)
		}
		switch ts {
		case "record", "error":
			return w.expandRecord(path, defName(s, ns), s)
		case "enum":
			return Field{Type: TypeEnum, NativeType: defName(s, ns), Symbols: stringList(s["symbols"])}, nil
		case "fixed":
			f := Field{Type: TypeFixed, NativeType: defName(s, ns), Length: intProp(s, "size")}
			return w.logical(path, f, s), nil
		case "array":
			items, err := w.element(path, s["items"], ns)
			if err != nil {
				return Field{}, err
			}
			return Field{Type: TypeArray, NativeType: "array<" + items.NativeType + ">", Items: items}, nil
		case "map":
			values, err := w.element(path, s["values"], ns)
			if err != nil {
				return Field{}, err
			}
			return Field{Type: TypeMap, NativeType: "map<string," + values.NativeType + ">", Items: values}, nil
		}
		if base, ok := avroPrimitives[ts]; ok {
			return w.logical(path, Field{Type: base, NativeType: ts}, s), nil
		}
		return w.reference(path, ts, ns)
	default:
		return Field{}, fmt.Errorf("%s: invalid schema element %v", path, schema)
	}
}

func (w *avroWalker) element(path string, schema any, ns string) (*Field, error) {
	if schema == nil {
		return nil, fmt.Errorf("%s: container without element type", path)
	}
	f, err := w.describe(path, schema, ns)
	if err != nil {
		return nil, err
	}
	f.Path = ""
	return &f, nil
}

func (w *avroWalker) expandRecord(path, full string, def map[string]any) (Field, error) {
	f := Field{Type: TypeRecord, NativeType: full}
	if w.expanding[full] {
		w.diag(path, "recursive reference to %s not expanded", full)
		return f, nil
	}
	w.expanding[full] = true
	defer delete(w.expanding, full)
	return f, w.walkFields(path, def, namespaceOf(full))
}

func (w *avroWalker) reference(path, name, ns string) (Field, error) {
	full := w.resolve(name, ns)
	def, ok := w.named[full]
	if !ok {
		return Field{}, fmt.Errorf("%s: unknown type %q", path, name)
	}
	return w.describe(path, def, namespaceOf(full))
}

func (w *avroWalker) union(path string, members []any, ns string) (Field, error) {
	var nonNull []any
	nullable := false
	for _, m := range members {
		if s, ok := m.(string); ok && s == "null" {
			nullable = true
			continue
		}
		nonNull = append(nonNull, m)
	}
	switch len(nonNull) {
	case 0:
		return Field{Type: TypeNull, NativeType: "null", Nullable: true}, nil
	case 1:
		f, err := w.describe(path, nonNull[0], ns)
		f.Nullable = f.Nullable || nullable
		return f, err
	}
	names := make([]string, 0, len(nonNull))
	for _, m := range nonNull {
		names = append(names, w.memberName(m, ns))
	}
	return Field{
		Type:       TypeUnion,
		Nullable:   nullable,
		NativeType: "union<" + strings.Join(names, ",") + ">",
		Members:    names,
	}, nil
}

func (w *avroWalker) memberName(m any, ns string) string {
	switch s := m.(type) {
	case string:
		if _, ok := avroPrimitives[s]; ok {
			return s
		}
		return w.resolve(s, ns)
	case map[string]any:
		if _, ok := s["name"].(string); ok {
			return defName(s, ns)
		}
		if ts, ok := s["type"].(string); ok {
			return ts
		}
		return w.memberName(s["type"], ns)
	}
	return "union"
}

func (w *avroWalker) logical(path string, f Field, obj map[string]any) Field {
	lt, ok := obj["logicalType"].(string)
	if !ok {
		return f
	}
	t, known := avroLogicalTypes[lt]
	if !known {
		w.diag(path, "unknown logical type %q on %s, using %s", lt, f.NativeType, f.Type)
		return f
	}
	f.Type = t
	f.NativeType = lt
	if t == TypeDecimal {
		f.Precision = intProp(obj, "precision")
		f.Scale = intProp(obj, "scale")
	}
	return f
}

func (w *avroWalker) resolve(name, ns string) string {
	if _, ok := w.named[name]; ok {
		return name
	}
	if ns != "" {
		if _, ok := w.named[ns+"."+name]; ok {
			return ns + "." + name
		}
	}
	if full, ok := w.short[name]; ok {
		return full
	}
	return name
}

func (w *avroWalker) diag(path, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if path != "" {
		msg = path + ": " + msg
	}
	w.diags = append(w.diags, msg)
}

func isRecordType(t any) bool {
	s, ok := t.(string)
	return ok && (s == "record" || s == "error")
}

func defName(obj map[string]any, ns string) string {
	name, _ := obj["name"].(string)
	if explicit, ok := obj["namespace"].(string); ok && !strings.Contains(name, ".") {
		ns = explicit
	}
	if strings.Contains(name, ".") || ns == "" {
		return name
	}
	return ns + "." + name
}

func namespaceOf(full string) string {
	if i := strings.LastIndex(full, "."); i >= 0 {
		return full[:i]
	}
	return ""
}

func lastSegment(full string) string {
	if i := strings.LastIndex(full, "."); i >= 0 {
		return full[i+1:]
	}
	return full
}

func intProp(obj map[string]any, key string) int {
	switch v := obj[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func stringList(v any) []string {
	items, _ := v.([]any)
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
