// Package snapshot persists the full record set after each curation stage
// so a run can be inspected or replayed offline.
package snapshot

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"newscurator/internal/news"
)

// Writer dumps per-stage JSON snapshots under a run-scoped directory.
// A disabled or nil writer turns every call into a no-op.
type Writer struct {
	dir     string
	enabled bool
	seq     int
}

// New creates a writer rooted at baseDir/runID. The directory is created
// lazily on the first write.
func New(baseDir, runID string, enabled bool) *Writer {
	if !enabled || baseDir == "" {
		return &Writer{}
	}
	return &Writer{dir: filepath.Join(baseDir, runID), enabled: true}
}

// Write dumps the records as <seq>_<stage>.json. Snapshot failures are
// logged, never fatal; curation proceeds regardless.
func (w *Writer) Write(stage string, records []*news.Record) {
	if w == nil || !w.enabled {
		return
	}
	w.seq++
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		log.Printf("Snapshot dir %s: %v", w.dir, err)
		return
	}

	path := filepath.Join(w.dir, fmt.Sprintf("%02d_%s.json", w.seq, stage))
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		log.Printf("Snapshot %s: %v", stage, err)
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Printf("Snapshot %s: %v", path, err)
		return
	}
	log.Printf("Snapshot written: %s (%d records)", path, len(records))
}

// Dir returns the run directory, or "" when disabled.
func (w *Writer) Dir() string {
	if w == nil || !w.enabled {
		return ""
	}
	return w.dir
}
