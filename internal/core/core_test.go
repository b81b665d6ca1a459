package core_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/datascienceChris/datahub/internal/core"
	"github.com/datascienceChris/datahub/internal/schema"
)

// =============================================================================
// URN
// =============================================================================

func TestDatasetURN(t *testing.T) {
	urn, err := core.DatasetURN("kafka", "orders", "")
	if err != nil {
		t.Fatalf("DatasetURN failed: %v", err)
	}
	want := "urn:li:dataset:(urn:li:dataPlatform:kafka,orders,PROD)"
	if urn != want {
		t.Errorf("Expected %s, got %s", want, urn)
	}

	urn, err = core.DatasetURN("postgres", "public.customers", "dev")
	if err != nil {
		t.Fatalf("DatasetURN failed: %v", err)
	}
	if !strings.HasSuffix(urn, ",public.customers,DEV)") {
		t.Errorf("Expected upper-cased env, got %s", urn)
	}
}

func TestDatasetURN_Rejects(t *testing.T) {
	tests := []struct {
		name, platform, resource, env string
	}{
		{"empty name", "kafka", "", "PROD"},
		{"comma in name", "kafka", "a,b", "PROD"},
		{"paren in name", "kafka", "a(b)", "PROD"},
		{"empty platform", "", "orders", "PROD"},
		{"unknown env", "kafka", "orders", "MARS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := core.DatasetURN(tt.platform, tt.resource, tt.env)
			if !errors.Is(err, core.ErrInvalidURN) {
				t.Errorf("Expected ErrInvalidURN, got %v", err)
			}
		})
	}
}

func TestParseDatasetURN(t *testing.T) {
	key, err := core.ParseDatasetURN("urn:li:dataset:(urn:li:dataPlatform:kafka,orders,PROD)")
	if err != nil {
		t.Fatalf("ParseDatasetURN failed: %v", err)
	}
	want := core.DatasetKey{Platform: "kafka", Name: "orders", Env: "PROD"}
	if key != want {
		t.Errorf("Expected %+v, got %+v", want, key)
	}
	if key.URN() != "urn:li:dataset:(urn:li:dataPlatform:kafka,orders,PROD)" {
		t.Errorf("Expected URN to round trip, got %s", key.URN())
	}

	for _, bad := range []string{"", "urn:li:corpuser:etl", "urn:li:dataset:(kafka,orders,PROD)", "urn:li:dataset:(urn:li:dataPlatform:kafka,orders)"} {
		if _, err := core.ParseDatasetURN(bad); !errors.Is(err, core.ErrInvalidURN) {
			t.Errorf("ParseDatasetURN(%q): expected ErrInvalidURN, got %v", bad, err)
		}
	}
}

// =============================================================================
// RECORD
// =============================================================================

func TestMetadataRecord_RejectsDuplicateAspect(t *testing.T) {
	rec, err := core.NewRecord("urn:li:dataset:(urn:li:dataPlatform:kafka,orders,PROD)")
	if err != nil {
		t.Fatalf("NewRecord failed: %v", err)
	}
	if err := rec.AddAspect(core.Status{}); err != nil {
		t.Fatalf("AddAspect failed: %v", err)
	}
	if err := rec.AddAspect(core.Status{Removed: true}); !errors.Is(err, core.ErrDuplicateAspect) {
		t.Errorf("Expected ErrDuplicateAspect, got %v", err)
	}
	if len(rec.Aspects) != 1 {
		t.Errorf("Expected 1 aspect, got %d", len(rec.Aspects))
	}
	a, _ := rec.Aspect(core.AspectStatus)
	if a.(core.Status).Removed {
		t.Error("Expected the first status aspect to be kept")
	}
}

func TestNewRecordWith(t *testing.T) {
	urn := "urn:li:dataset:(urn:li:dataPlatform:kafka,orders,PROD)"
	rec, err := core.NewRecordWith(urn, core.Status{}, core.DatasetProperties{Name: "orders"})
	if err != nil {
		t.Fatalf("NewRecordWith failed: %v", err)
	}
	want := []string{core.AspectStatus, core.AspectDatasetProperties}
	if diff := cmp.Diff(want, rec.AspectNames()); diff != "" {
		t.Errorf("aspects mismatch (-want +got):\n%s", diff)
	}

	if _, err := core.NewRecordWith(urn, core.Status{}, core.Status{Removed: true}); !errors.Is(err, core.ErrDuplicateAspect) {
		t.Errorf("Expected ErrDuplicateAspect, got %v", err)
	}
	if _, err := core.NewRecordWith(urn, nil); err == nil {
		t.Error("Expected error for nil aspect")
	}
	if _, err := core.NewRecordWith("orders", core.Status{}); !errors.Is(err, core.ErrInvalidURN) {
		t.Errorf("Expected ErrInvalidURN, got %v", err)
	}
}

func TestNewRecord_RequiresURN(t *testing.T) {
	if _, err := core.NewRecord("orders"); !errors.Is(err, core.ErrInvalidURN) {
		t.Errorf("Expected ErrInvalidURN, got %v", err)
	}
}

func TestMetadataRecord_JSONRoundTrip(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	rec, _ := core.NewRecord("urn:li:dataset:(urn:li:dataPlatform:kafka,orders,PROD)")
	rec.AddAspect(core.Status{})
	rec.AddAspect(core.SchemaMetadata{
		SchemaName:     "orders",
		Platform:       core.PlatformURN("kafka"),
		Hash:           "abc",
		PlatformSchema: core.PlatformSchema{Kind: core.PlatformSchemaKafka, DocumentSchema: `"string"`},
		Fields:         []schema.Field{{Path: "value", Type: schema.TypeString, NativeType: "string"}},
		Created:        core.NewAuditStamp(now, core.ActorETL),
		LastModified:   core.NewAuditStamp(now, core.ActorETL),
	})
	rec.AddAspect(core.GenericAspect{Name: "ownership", Value: []byte(`{"owners":[]}`)})

	data, err := core.MarshalRecords([]*core.MetadataRecord{rec})
	if err != nil {
		t.Fatalf("MarshalRecords failed: %v", err)
	}
	if !strings.Contains(string(data), `"entityUrn": "urn:li:dataset:(urn:li:dataPlatform:kafka,orders,PROD)"`) {
		t.Errorf("Expected entityUrn key in output, got:\n%s", data)
	}
	if !strings.Contains(string(data), `"schemaMetadata": {`) {
		t.Errorf("Expected aspect keyed by name, got:\n%s", data)
	}

	back, err := core.UnmarshalRecords(data)
	if err != nil {
		t.Fatalf("UnmarshalRecords failed: %v", err)
	}
	if len(back) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(back))
	}
	if diff := cmp.Diff([]string{"status", "schemaMetadata", "ownership"}, back[0].AspectNames()); diff != "" {
		t.Errorf("aspect names mismatch (-want +got):\n%s", diff)
	}
	sm, ok := back[0].Aspect(core.AspectSchemaMetadata)
	if !ok {
		t.Fatal("Expected schemaMetadata aspect")
	}
	if got := sm.(core.SchemaMetadata).Created.Time; got != now.UnixMilli() {
		t.Errorf("Expected created time %d, got %d", now.UnixMilli(), got)
	}
	if _, ok := sm.(core.SchemaMetadata); !ok {
		t.Errorf("Expected typed SchemaMetadata, got %T", sm)
	}
}

func TestUnmarshalRecords_RejectsDuplicateAspects(t *testing.T) {
	data := `[{"entityUrn":"urn:li:dataset:(urn:li:dataPlatform:kafka,a,PROD)","aspects":[{"status":{"removed":false}},{"status":{"removed":true}}]}]`
	if _, err := core.UnmarshalRecords([]byte(data)); !errors.Is(err, core.ErrDuplicateAspect) {
		t.Errorf("Expected ErrDuplicateAspect, got %v", err)
	}
}

func TestMarshalRecords_Empty(t *testing.T) {
	data, err := core.MarshalRecords(nil)
	if err != nil {
		t.Fatalf("MarshalRecords failed: %v", err)
	}
	if strings.TrimSpace(string(data)) != "[]" {
		t.Errorf("Expected empty array, got %q", data)
	}
}
