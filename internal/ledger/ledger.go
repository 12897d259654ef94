// Package ledger maintains the append-only collected Q&A file: every manual
// correction becomes one {instruction, output} entry, and the file is folded
// into the authoritative source by the curation workflow before the next
// index rebuild.
package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/nimbusgpu/askbot/internal/models"
)

// Ledger is the collected-corrections JSON file. Appends are
// read-modify-write under a process-local lock.
type Ledger struct {
	mu   sync.Mutex
	path string
}

// New creates a Ledger at path. The file is created on first append.
func New(path string) *Ledger {
	return &Ledger{path: path}
}

// Append adds one entry to the end of the file. Existing content that cannot
// be parsed is treated as empty rather than blocking the correction.
func (l *Ledger) Append(entry models.SourceRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := l.readAll()
	entries = append(entries, entry)

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("creating ledger directory: %w", err)
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding ledger: %w", err)
	}

	if err := os.WriteFile(l.path, data, 0o644); err != nil {
		return fmt.Errorf("writing ledger: %w", err)
	}

	return nil
}

// Entries returns the current ledger content. A missing or malformed file
// yields an empty slice.
func (l *Ledger) Entries() []models.SourceRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.readAll()
}

func (l *Ledger) readAll() []models.SourceRecord {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil
	}

	var entries []models.SourceRecord
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil
	}

	return entries
}
