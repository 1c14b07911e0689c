package checksum

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSumDeterministic(t *testing.T) {
	a := Sum([]byte("hello"))
	b := Sum([]byte("hello"))
	if a != b {
		t.Errorf("same input produced different hashes: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}
}

func TestSumKnownValue(t *testing.T) {
	got := SumString("")
	want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got != want {
		t.Errorf("empty input hash = %s, want %s", got, want)
	}
}

func TestFileMatchesSum(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "artifact.json")
	content := []byte(`{"domains":[]}`)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatal(err)
	}

	got, err := File(path)
	if err != nil {
		t.Fatalf("File failed: %v", err)
	}
	if got != Sum(content) {
		t.Errorf("file hash %s does not match content hash %s", got, Sum(content))
	}
}

func TestFileMissingReturnsEmpty(t *testing.T) {
	got, err := File(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("expected nil error for missing file, got %v", err)
	}
	if got != "" {
		t.Errorf("expected empty checksum for missing file, got %s", got)
	}
}
