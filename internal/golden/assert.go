package golden

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/datascienceChris/datahub/internal/config"
)

// UpdateEnv, when true, makes AssertGolden rewrite golden files from the
// actual output instead of comparing.
const UpdateEnv = "INGEST_UPDATE_GOLDEN"

// AssertGolden compares the record file at actualPath with the golden file
// and reports one test error per mismatch.
func AssertGolden(t testing.TB, actualPath, goldenPath string, opts ...Option) {
	t.Helper()
	actual, err := os.ReadFile(actualPath)
	if err != nil {
		t.Fatalf("read actual output: %v", err)
	}
	if config.EnvBool(UpdateEnv, false) {
		if err := os.MkdirAll(filepath.Dir(goldenPath), 0o755); err != nil {
			t.Fatalf("create golden directory: %v", err)
		}
		if err := os.WriteFile(goldenPath, actual, 0o644); err != nil {
			t.Fatalf("update golden file: %v", err)
		}
		t.Logf("updated golden file %s", goldenPath)
		return
	}
	expected, err := os.ReadFile(goldenPath)
	if err != nil {
		t.Fatalf("read golden file (set %s=1 to create it): %v", UpdateEnv, err)
	}
	res, err := Compare(actual, expected, opts...)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	for _, d := range res.Diffs {
		t.Errorf("golden mismatch %s", d)
	}
}
