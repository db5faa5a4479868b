package universe

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNew_DedupAcrossSectors(t *testing.T) {
	u := New(map[string][]string{
		"A": {"TCS", "INFY"},
		"B": {"INFY", "WIPRO"},
	})
	if u.Len() != 3 {
		t.Fatalf("expected 3 symbols after dedup, got %d", u.Len())
	}
	// INFY lands in A (first sector in name order).
	if got := u.Sector("INFY"); got != "A" {
		t.Errorf("expected INFY in sector A, got %q", got)
	}
	if got := u.Sector("UNKNOWN"); got != "" {
		t.Errorf("expected empty sector for unknown symbol, got %q", got)
	}
}

func TestBatches(t *testing.T) {
	u := New(map[string][]string{
		"A": {"S1", "S2", "S3", "S4", "S5"},
	})

	batches := u.Batches(2)
	if len(batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(batches))
	}
	if len(batches[0]) != 2 || len(batches[2]) != 1 {
		t.Errorf("unexpected batch sizes: %v", batches)
	}

	// Order preserved across batches.
	var flat []string
	for _, b := range batches {
		flat = append(flat, b...)
	}
	for i, s := range u.Symbols() {
		if flat[i] != s {
			t.Fatalf("order broken at %d: %v", i, flat)
		}
	}

	// Non-positive size: one batch with everything.
	if all := u.Batches(0); len(all) != 1 || len(all[0]) != 5 {
		t.Errorf("expected single full batch, got %v", all)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "universe.json")
	content := `{"sectors": {"IT": ["TCS", "INFY"], "AUTO": ["MARUTI"]}}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	u, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if u.Len() != 3 {
		t.Errorf("expected 3 symbols, got %d", u.Len())
	}
	if u.Sector("MARUTI") != "AUTO" {
		t.Errorf("sector lookup failed: %q", u.Sector("MARUTI"))
	}
}

func TestLoad_EmptyIsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "universe.json")
	if err := os.WriteFile(path, []byte(`{}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for empty universe")
	}
}

func TestDefault_NotEmpty(t *testing.T) {
	u := Default()
	if u.Len() < 40 {
		t.Errorf("default universe suspiciously small: %d", u.Len())
	}
	if u.Sector("RELIANCE") != "ENERGY" {
		t.Errorf("unexpected sector: %q", u.Sector("RELIANCE"))
	}
}
