// Package schema converts platform-native schema descriptions (registry Avro
// documents, warehouse column lists) into one ordered, normalized field model.
//
// Structure:
//
//	types.go      - Kind, FieldType, Field, Result, errors
//	avro.go       - Avro document walker
//	columns.go    - warehouse column list walker
//	encode.go     - ToAvro, the inverse rendering of normalized fields
//	hash.go       - content hashing of raw payloads
//	path.go       - field path segments and escaping
//	normalizer.go - cached normalizer
package schema

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the wire format of a raw schema payload.
type Kind string

const (
	KindAvro     Kind = "AVRO"
	KindColumns  Kind = "COLUMNS"
	KindJSON     Kind = "JSON"
	KindProtobuf Kind = "PROTOBUF"
)

// ParseKind maps a registry schemaType string to a Kind. Registries omit the
// type for Avro, so the empty string is Avro.
func ParseKind(s string) Kind {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return KindAvro
	}
	return Kind(s)
}

// Supported reports whether Normalize accepts the kind.
func (k Kind) Supported() bool {
	return k == KindAvro || k == KindColumns
}

// FieldType is the normalized type of a field.
type FieldType string

const (
	TypeBoolean   FieldType = "boolean"
	TypeInt       FieldType = "int"
	TypeLong      FieldType = "long"
	TypeFloat     FieldType = "float"
	TypeDouble    FieldType = "double"
	TypeBytes     FieldType = "bytes"
	TypeString    FieldType = "string"
	TypeFixed     FieldType = "fixed"
	TypeDecimal   FieldType = "decimal"
	TypeDate      FieldType = "date"
	TypeTime      FieldType = "time"
	TypeTimestamp FieldType = "timestamp"
	TypeNull      FieldType = "null"

	TypeRecord FieldType = "record"
	TypeArray  FieldType = "array"
	TypeMap    FieldType = "map"
	TypeUnion  FieldType = "union"
	TypeEnum   FieldType = "enum"
)

// Field is one normalized field descriptor.
//
// Nested records are flattened: a record field keeps its own entry (the
// structural marker) and its children follow it with dotted paths. Arrays and
// maps describe their element/value type in Items; when the element is a
// record its children are flattened under the array's path. Dots and
// backslashes inside a name are escaped (see EscapeSegment).
type Field struct {
	Path        string    `json:"fieldPath"`
	Type        FieldType `json:"type"`
	Nullable    bool      `json:"nullable"`
	NativeType  string    `json:"nativeDataType"`
	Description string    `json:"description,omitempty"`
	Items       *Field    `json:"items,omitempty"`
	Symbols     []string  `json:"symbols,omitempty"`
	Members     []string  `json:"members,omitempty"`
	Precision   int       `json:"precision,omitempty"`
	Scale       int       `json:"scale,omitempty"`
	Length      int       `json:"length,omitempty"`
}

// Clone returns a deep copy.
func (f Field) Clone() Field {
	out := f
	if f.Items != nil {
		items := f.Items.Clone()
		out.Items = &items
	}
	out.Symbols = append([]string(nil), f.Symbols...)
	out.Members = append([]string(nil), f.Members...)
	return out
}

// Result is the outcome of normalizing one payload.
type Result struct {
	Fields []Field
	// Diagnostics lists recoverable oddities (unknown logical or SQL types).
	Diagnostics []string
}

func (r *Result) clone() *Result {
	out := &Result{
		Fields:      make([]Field, len(r.Fields)),
		Diagnostics: append([]string(nil), r.Diagnostics...),
	}
	for i, f := range r.Fields {
		out.Fields[i] = f.Clone()
	}
	return out
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrUnsupportedKind is matched by errors returned for unknown wire formats.
var ErrUnsupportedKind = errors.New("unsupported schema kind")

// UnsupportedKindError names the rejected kind.
type UnsupportedKindError struct {
	Kind Kind
}

func (e *UnsupportedKindError) Error() string {
	return fmt.Sprintf("unsupported schema kind %q", string(e.Kind))
}

func (e *UnsupportedKindError) Is(target error) bool { return target == ErrUnsupportedKind }

// ParseError reports a malformed payload of a supported kind.
type ParseError struct {
	Kind Kind
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s schema: %v", e.Kind, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Normalize converts raw into normalized fields. Unsupported kinds fail with
// an error matching ErrUnsupportedKind; malformed payloads with *ParseError.
func Normalize(raw []byte, kind Kind) (*Result, error) {
	switch kind {
	case KindAvro:
		return normalizeAvro(raw)
	case KindColumns:
		return normalizeColumns(raw)
	default:
		return nil, &UnsupportedKindError{Kind: kind}
	}
}
