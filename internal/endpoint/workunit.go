package endpoint

import (
	"errors"

	"github.com/datascienceChris/datahub/internal/core"
)

// WorkUnit is one independently deliverable record with a stable id. The id
// is unique within a run and identical across reruns on unchanged input.
type WorkUnit struct {
	id     string
	record *core.MetadataRecord
}

// NewWorkUnit wraps record.
func NewWorkUnit(id string, record *core.MetadataRecord) (*WorkUnit, error) {
	if id == "" {
		return nil, errors.New("work unit id is required")
	}
	if record == nil {
		return nil, errors.New("work unit record is required")
	}
	return &WorkUnit{id: id, record: record}, nil
}

func (w *WorkUnit) ID() string                  { return w.id }
func (w *WorkUnit) Record() *core.MetadataRecord { return w.record }
