package core

import (
	"encoding/json"
	"time"

	"github.com/datascienceChris/datahub/internal/schema"
)

// Aspect is one named facet of an entity.
type Aspect interface {
	AspectName() string
}

// Aspect names as they appear in serialized records.
const (
	AspectStatus                 = "status"
	AspectSchemaMetadata         = "schemaMetadata"
	AspectDatasetProperties      = "datasetProperties"
	AspectDatasetUsageStatistics = "datasetUsageStatistics"
)

// =============================================================================
// STATUS
// =============================================================================

// Status marks whether the entity still exists on the platform.
type Status struct {
	Removed bool `json:"removed"`
}

func (Status) AspectName() string { return AspectStatus }

// =============================================================================
// SCHEMA METADATA
// =============================================================================

// AuditStamp records who produced a value and when (epoch milliseconds).
type AuditStamp struct {
	Time  int64  `json:"time"`
	Actor string `json:"actor"`
}

// NewAuditStamp stamps t for actor.
func NewAuditStamp(t time.Time, actor string) AuditStamp {
	return AuditStamp{Time: t.UnixMilli(), Actor: actor}
}

// PlatformSchema carries the raw platform schema document.
type PlatformSchema struct {
	Kind           string `json:"kind"`
	DocumentSchema string `json:"documentSchema"`
}

// Platform schema kinds.
const (
	PlatformSchemaKafka   = "KafkaSchema"
	PlatformSchemaColumns = "SqlColumns"
)

// SchemaMetadata is a point-in-time schema snapshot of a dataset.
type SchemaMetadata struct {
	SchemaName     string         `json:"schemaName"`
	Platform       string         `json:"platform"`
	Version        int64          `json:"version"`
	Hash           string         `json:"hash"`
	PlatformSchema PlatformSchema `json:"platformSchema"`
	Fields         []schema.Field `json:"fields"`
	Created        AuditStamp     `json:"created"`
	LastModified   AuditStamp     `json:"lastModified"`
}

func (SchemaMetadata) AspectName() string { return AspectSchemaMetadata }

// =============================================================================
// PROPERTIES & USAGE
// =============================================================================

// DatasetProperties holds descriptive properties.
type DatasetProperties struct {
	Name             string            `json:"name,omitempty"`
	Description      string            `json:"description,omitempty"`
	CustomProperties map[string]string `json:"customProperties,omitempty"`
}

func (DatasetProperties) AspectName() string { return AspectDatasetProperties }

// DatasetUsageStatistics is an operational snapshot of table activity.
type DatasetUsageStatistics struct {
	TimestampMillis int64 `json:"timestampMillis"`
	RowCount        int64 `json:"rowCount"`
	SeqScans        int64 `json:"seqScans"`
	IndexScans      int64 `json:"indexScans"`
	RowsInserted    int64 `json:"rowsInserted"`
	RowsUpdated     int64 `json:"rowsUpdated"`
	RowsDeleted     int64 `json:"rowsDeleted"`
}

func (DatasetUsageStatistics) AspectName() string { return AspectDatasetUsageStatistics }

// GenericAspect holds an aspect this package has no type for. It round-trips
// through JSON unchanged.
type GenericAspect struct {
	Name  string
	Value json.RawMessage
}

func (g GenericAspect) AspectName() string { return g.Name }

func (g GenericAspect) MarshalJSON() ([]byte, error) {
	if len(g.Value) == 0 {
		return []byte("null"), nil
	}
	return g.Value, nil
}

// decoders returns a pointer to a zero value for each typed aspect.
var decoders = map[string]func() any{
	AspectStatus:                 func() any { return &Status{} },
	AspectSchemaMetadata:         func() any { return &SchemaMetadata{} },
	AspectDatasetProperties:      func() any { return &DatasetProperties{} },
	AspectDatasetUsageStatistics: func() any { return &DatasetUsageStatistics{} },
}

func decodeAspect(name string, raw json.RawMessage) (Aspect, error) {
	newValue, ok := decoders[name]
	if !ok {
		return GenericAspect{Name: name, Value: append(json.RawMessage(nil), raw...)}, nil
	}
	v := newValue()
	if err := json.Unmarshal(raw, v); err != nil {
		return nil, err
	}
	switch a := v.(type) {
	case *Status:
		return *a, nil
	case *SchemaMetadata:
		return *a, nil
	case *DatasetProperties:
		return *a, nil
	case *DatasetUsageStatistics:
		return *a, nil
	}
	return GenericAspect{Name: name, Value: raw}, nil
}
