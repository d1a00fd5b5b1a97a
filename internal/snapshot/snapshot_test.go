package snapshot

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"newscurator/internal/news"
)

func TestWriteSequencesStages(t *testing.T) {
	base := t.TempDir()
	w := New(base, "run-1", true)

	recs := []*news.Record{{ID: "a", Title: "First"}}
	w.Write("filter", recs)
	w.Write("cluster", recs)

	for _, name := range []string{"01_filter.json", "02_cluster.json"} {
		path := filepath.Join(base, "run-1", name)
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("Expected snapshot %s: %v", name, err)
		}
		var got []*news.Record
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("Snapshot %s not valid JSON: %v", name, err)
		}
		if len(got) != 1 || got[0].ID != "a" {
			t.Errorf("Snapshot %s: unexpected content %+v", name, got)
		}
	}
}

func TestDisabledWriterIsNoop(t *testing.T) {
	base := t.TempDir()
	w := New(base, "run-1", false)
	w.Write("filter", []*news.Record{{ID: "a"}})

	if _, err := os.Stat(filepath.Join(base, "run-1")); !os.IsNotExist(err) {
		t.Error("Disabled writer should not create directories")
	}
	if w.Dir() != "" {
		t.Errorf("Disabled writer Dir: expected empty, got %q", w.Dir())
	}
}

func TestNilWriterIsSafe(t *testing.T) {
	var w *Writer
	w.Write("filter", nil)
	if w.Dir() != "" {
		t.Error("Nil writer Dir should be empty")
	}
}
