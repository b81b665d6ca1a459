package schema

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Column is one warehouse column as reported by information_schema. A JSON
// array of Columns is the KindColumns payload.
type Column struct {
	Name        string `json:"name"`
	DataType    string `json:"dataType"`
	Nullable    bool   `json:"nullable"`
	Comment     string `json:"comment,omitempty"`
	Precision   int    `json:"precision,omitempty"`
	Scale       int    `json:"scale,omitempty"`
	Length      int    `json:"length,omitempty"`
	ElementType string `json:"elementType,omitempty"`
}

// EncodeColumns renders cols as a KindColumns payload.
func EncodeColumns(cols []Column) ([]byte, error) {
	if cols == nil {
		cols = []Column{}
	}
	return json.Marshal(cols)
}

var sqlTypes = map[string]FieldType{
	"boolean":                     TypeBoolean,
	"bool":                        TypeBoolean,
	"smallint":                    TypeInt,
	"int2":                        TypeInt,
	"integer":                     TypeInt,
	"int":                         TypeInt,
	"int4":                        TypeInt,
	"serial":                      TypeInt,
	"bigint":                      TypeLong,
	"int8":                        TypeLong,
	"bigserial":                   TypeLong,
	"real":                        TypeFloat,
	"float4":                      TypeFloat,
	"double precision":            TypeDouble,
	"float8":                      TypeDouble,
	"numeric":                     TypeDecimal,
	"decimal":                     TypeDecimal,
	"money":                       TypeDecimal,
	"character varying":           TypeString,
	"varchar":                     TypeString,
	"character":                   TypeString,
	"char":                        TypeString,
	"bpchar":                      TypeString,
	"text":                        TypeString,
	"uuid":                        TypeString,
	"citext":                      TypeString,
	"inet":                        TypeString,
	"bytea":                       TypeBytes,
	"date":                        TypeDate,
	"time":                        TypeTime,
	"time without time zone":      TypeTime,
	"time with time zone":         TypeTime,
	"timetz":                      TypeTime,
	"timestamp":                   TypeTimestamp,
	"timestamp without time zone": TypeTimestamp,
	"timestamp with time zone":    TypeTimestamp,
	"timestamptz":                 TypeTimestamp,
}

func normalizeColumns(raw []byte) (*Result, error) {
	var cols []Column
	if err := json.Unmarshal(raw, &cols); err != nil {
		return nil, &ParseError{Kind: KindColumns, Err: err}
	}
	res := &Result{Fields: make([]Field, 0, len(cols))}
	for i, col := range cols {
		if col.Name == "" {
			return nil, &ParseError{Kind: KindColumns, Err: fmt.Errorf("column %d has no name", i)}
		}
		f, diag := columnField(col)
		if diag != "" {
			res.Diagnostics = append(res.Diagnostics, col.Name+": "+diag)
		}
		res.Fields = append(res.Fields, f)
	}
	return res, nil
}

func columnField(col Column) (Field, string) {
	native := strings.TrimSpace(col.DataType)
	f := Field{
		Path:        EscapeSegment(col.Name),
		Nullable:    col.Nullable,
		NativeType:  native,
		Description: col.Comment,
	}
	switch lower := strings.ToLower(native); lower {
	case "array":
		elem := strings.TrimPrefix(strings.ToLower(col.ElementType), "_")
		t, ok := sqlTypes[elem]
		diag := ""
		if !ok {
			t = TypeString
			diag = fmt.Sprintf("unknown array element type %q, using string", col.ElementType)
		}
		f.Type = TypeArray
		f.NativeType = elem + "[]"
		f.Items = &Field{Type: t, NativeType: elem}
		return f, diag
	case "json", "jsonb", "hstore":
		f.Type = TypeMap
		f.Items = &Field{Type: TypeString, NativeType: "string"}
		return f, ""
	default:
		t, ok := sqlTypes[lower]
		if !ok {
			f.Type = TypeString
			return f, fmt.Sprintf("unknown type %q, using string", native)
		}
		f.Type = t
		switch t {
		case TypeDecimal:
			f.Precision = col.Precision
			f.Scale = col.Scale
		case TypeString:
			f.Length = col.Length
		}
		return f, ""
	}
}
