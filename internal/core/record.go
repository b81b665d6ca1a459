package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrDuplicateAspect is returned when an aspect kind is attached twice.
var ErrDuplicateAspect = errors.New("duplicate aspect")

// MetadataRecord is the catalog-bound unit: one entity and its aspects.
// Aspects are append-only; at most one aspect of each kind.
type MetadataRecord struct {
	EntityURN string
	Aspects   []Aspect
}

// NewRecord creates an empty record for urn.
func NewRecord(urn string) (*MetadataRecord, error) {
	if !strings.HasPrefix(urn, "urn:li:") {
		return nil, &InvalidURNError{Value: urn, Reason: "missing urn:li: prefix"}
	}
	return &MetadataRecord{EntityURN: urn}, nil
}

// NewRecordWith creates a record for urn carrying aspects in order. It fails
// on an invalid urn or on the first aspect AddAspect rejects.
func NewRecordWith(urn string, aspects ...Aspect) (*MetadataRecord, error) {
	rec, err := NewRecord(urn)
	if err != nil {
		return nil, err
	}
	for _, a := range aspects {
		if err := rec.AddAspect(a); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// AddAspect attaches a. A second aspect of the same kind is rejected.
func (r *MetadataRecord) AddAspect(a Aspect) error {
	if a == nil {
		return errors.New("nil aspect")
	}
	if _, ok := r.Aspect(a.AspectName()); ok {
		return fmt.Errorf("%w %s on %s", ErrDuplicateAspect, a.AspectName(), r.EntityURN)
	}
	r.Aspects = append(r.Aspects, a)
	return nil
}

// Aspect returns the aspect of the given kind.
func (r *MetadataRecord) Aspect(name string) (Aspect, bool) {
	for _, a := range r.Aspects {
		if a.AspectName() == name {
			return a, true
		}
	}
	return nil, false
}

// AspectNames lists attached aspect kinds in attach order.
func (r *MetadataRecord) AspectNames() []string {
	names := make([]string, 0, len(r.Aspects))
	for _, a := range r.Aspects {
		names = append(names, a.AspectName())
	}
	return names
}

// =============================================================================
// JSON
// =============================================================================

type recordJSON struct {
	EntityURN string                       `json:"entityUrn"`
	Aspects   []map[string]json.RawMessage `json:"aspects"`
}

// MarshalJSON renders {"entityUrn": ..., "aspects": [{"<name>": {...}}, ...]}.
func (r MetadataRecord) MarshalJSON() ([]byte, error) {
	out := recordJSON{EntityURN: r.EntityURN, Aspects: make([]map[string]json.RawMessage, 0, len(r.Aspects))}
	for _, a := range r.Aspects {
		raw, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("marshal aspect %s: %w", a.AspectName(), err)
		}
		out.Aspects = append(out.Aspects, map[string]json.RawMessage{a.AspectName(): raw})
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes known aspects into their types and keeps the rest as
// GenericAspect.
func (r *MetadataRecord) UnmarshalJSON(data []byte) error {
	var in recordJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	rec := MetadataRecord{EntityURN: in.EntityURN}
	for i, entry := range in.Aspects {
		if len(entry) != 1 {
			return fmt.Errorf("%s: aspect %d must have exactly one key, got %d", in.EntityURN, i, len(entry))
		}
		for name, raw := range entry {
			a, err := decodeAspect(name, raw)
			if err != nil {
				return fmt.Errorf("%s: decode aspect %s: %w", in.EntityURN, name, err)
			}
			if err := rec.AddAspect(a); err != nil {
				return err
			}
		}
	}
	*r = rec
	return nil
}

// MarshalRecords renders records as an indented JSON array, the record file
// and golden file format.
func MarshalRecords(records []*MetadataRecord) ([]byte, error) {
	if records == nil {
		records = []*MetadataRecord{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalRecords parses a JSON array of records.
func UnmarshalRecords(data []byte) ([]*MetadataRecord, error) {
	var records []*MetadataRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	return records, nil
}
