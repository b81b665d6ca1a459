package golden_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/datascienceChris/datahub/internal/golden"
)

const expected = `[
  {
    "entityUrn": "urn:li:dataset:(urn:li:dataPlatform:kafka,orders,PROD)",
    "aspects": [
      {"status": {"removed": false}},
      {"schemaMetadata": {
        "schemaName": "orders",
        "created": {"time": 1709294400000, "actor": "urn:li:corpuser:etl"},
        "fields": [
          {"fieldPath": "id", "type": "long"},
          {"fieldPath": "note", "type": "string"}
        ]
      }}
    ]
  }
]`

func compare(t *testing.T, actual string, opts ...golden.Option) *golden.Result {
	t.Helper()
	res, err := golden.Compare([]byte(actual), []byte(expected), opts...)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	return res
}

// =============================================================================
// COMPARE
// =============================================================================

func TestCompare_AspectOrderAndKeyOrderIgnored(t *testing.T) {
	actual := `[{"aspects": [
	  {"schemaMetadata": {
	    "fields": [{"type": "long", "fieldPath": "id"}, {"type": "string", "fieldPath": "note"}],
	    "created": {"actor": "urn:li:corpuser:etl", "time": 1709294400000},
	    "schemaName": "orders"}},
	  {"status": {"removed": false}}],
	  "entityUrn": "urn:li:dataset:(urn:li:dataPlatform:kafka,orders,PROD)"}]`

	if res := compare(t, actual); !res.Equal() {
		t.Errorf("Expected equal streams, got:\n%s", res)
	}
}

func TestCompare_FieldOrderMatters(t *testing.T) {
	actual := strings.Replace(strings.Replace(expected,
		`{"fieldPath": "id", "type": "long"}`, `@@`, 1),
		`{"fieldPath": "note", "type": "string"}`, `{"fieldPath": "id", "type": "long"}`, 1)
	actual = strings.Replace(actual, `@@`, `{"fieldPath": "note", "type": "string"}`, 1)

	res := compare(t, actual)
	if res.Equal() {
		t.Fatal("Expected reordered fields to be reported")
	}
	if len(res.Diffs) != 1 {
		t.Fatalf("Expected 1 diff, got %d:\n%s", len(res.Diffs), res)
	}
	d := res.Diffs[0]
	if d.URN != "urn:li:dataset:(urn:li:dataPlatform:kafka,orders,PROD)" || d.Aspect != "schemaMetadata" {
		t.Errorf("Expected diff on orders schemaMetadata, got %s / %s", d.URN, d.Aspect)
	}
}

func TestCompare_MissingAndUnexpected(t *testing.T) {
	actual := `[
	  {"entityUrn": "urn:li:dataset:(urn:li:dataPlatform:kafka,orders,PROD)", "aspects": [{"status": {"removed": false}}]},
	  {"entityUrn": "urn:li:dataset:(urn:li:dataPlatform:kafka,extra,PROD)", "aspects": []}
	]`
	res := compare(t, actual)

	var got []string
	for _, d := range res.Diffs {
		got = append(got, d.String())
	}
	want := []string{
		"urn:li:dataset:(urn:li:dataPlatform:kafka,extra,PROD): unexpected in actual",
		"urn:li:dataset:(urn:li:dataPlatform:kafka,orders,PROD) [schemaMetadata]: aspect missing from actual",
	}
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("Expected diffs:\n%s\ngot:\n%s", strings.Join(want, "\n"), strings.Join(got, "\n"))
	}
}

func TestCompare_IgnorePaths(t *testing.T) {
	actual := strings.Replace(expected, "1709294400000", "1800000000000", 1)

	if res := compare(t, actual); res.Equal() {
		t.Fatal("Expected a changed timestamp to be reported")
	}
	if res := compare(t, actual, golden.IgnorePaths("schemaMetadata.created.time")); !res.Equal() {
		t.Errorf("Expected ignored timestamp to compare equal, got:\n%s", res)
	}
}

func TestCompare_MalformedInput(t *testing.T) {
	if _, err := golden.Compare([]byte(`{"not": "an array"}`), []byte(expected)); err == nil {
		t.Error("Expected an error for a non-array stream")
	}
	if _, err := golden.Compare([]byte(`[{"aspects": []}]`), []byte(expected)); err == nil {
		t.Error("Expected an error for a record without entityUrn")
	}
}

// =============================================================================
// ASSERT GOLDEN
// =============================================================================

func TestAssertGolden_UpdateThenCompare(t *testing.T) {
	dir := t.TempDir()
	actualPath := filepath.Join(dir, "actual.json")
	goldenPath := filepath.Join(dir, "testdata", "golden.json")
	if err := os.WriteFile(actualPath, []byte(expected), 0o644); err != nil {
		t.Fatalf("write actual: %v", err)
	}

	t.Setenv(golden.UpdateEnv, "1")
	golden.AssertGolden(t, actualPath, goldenPath)
	data, err := os.ReadFile(goldenPath)
	if err != nil {
		t.Fatalf("Expected golden file to be written: %v", err)
	}
	if string(data) != expected {
		t.Error("Expected golden file to be a copy of the actual output")
	}

	t.Setenv(golden.UpdateEnv, "")
	golden.AssertGolden(t, actualPath, goldenPath)
}
