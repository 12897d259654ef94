// Package index implements the persistent vector index over Q&A records.
//
// The index lives in a directory containing a single SQLite database file and
// is searched with a brute-force Euclidean distance scan. The rebuild process
// replaces the whole directory; the serving process re-opens it per query, so
// a reader always observes whatever the last completed rebuild left on disk.
package index

import (
	"container/heap"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// dbFileName is the SQLite file inside the index directory.
const dbFileName = "index.db"

// deleteRetryDelay is how long Delete waits before its second removal attempt.
// Networked or mounted storage can hold file locks briefly after a reader closes.
const deleteRetryDelay = time.Second

// Record is one Q&A document stored in the index.
type Record struct {
	ID        string
	Text      string
	Embedding []float32
	Source    string
	Category  string
	CreatedAt time.Time
}

// ScoredRecord is a Record with its distance to the query vector.
// Lower distance means more similar.
type ScoredRecord struct {
	Record
	Distance float32
}

// Store is a handle to the on-disk index.
type Store struct {
	db *sql.DB
}

const schema = `
	CREATE TABLE IF NOT EXISTS qa_records (
		id TEXT PRIMARY KEY,
		text TEXT NOT NULL,
		embedding BLOB NOT NULL,
		source TEXT NOT NULL,
		category TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`

// Open opens the index at dir for reading, creating an empty index when the
// directory does not exist yet. A missing index is not an error: during the
// rebuild window between deletion and re-insertion, readers must see an empty
// result set rather than a failure.
func Open(dir string) (*Store, error) {
	return open(dir)
}

// Create opens a fresh index at dir for bulk insertion. Any records that
// survived the caller's deletion of the previous index (e.g. a directory that
// could not be removed) are cleared, so the rebuilt index never mixes old and
// new records.
func Create(dir string) (*Store, error) {
	s, err := open(dir)
	if err != nil {
		return nil, err
	}

	if _, err := s.db.Exec(`DELETE FROM qa_records`); err != nil {
		s.db.Close()
		return nil, fmt.Errorf("clearing previous records: %w", err)
	}

	return s, nil
}

func open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, dbFileName))
	if err != nil {
		return nil, fmt.Errorf("opening index database: %w", err)
	}

	// Single connection avoids "database is locked" errors; a short busy
	// timeout lets concurrent openers wait instead of failing.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating qa_records table: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Insert adds records in a single transaction.
func (s *Store) Insert(records []Record) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning insert transaction: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO qa_records (id, text, embedding, source, category, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing insert statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		createdAt := r.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		blob := encodeFloat32s(r.Embedding)
		if _, err := stmt.Exec(r.ID, r.Text, blob, r.Source, r.Category, createdAt.Format(time.RFC3339)); err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting record %s: %w", r.ID, err)
		}
	}

	return tx.Commit()
}

// distEntry tracks a candidate during the scan phase of Search.
type distEntry struct {
	ID       string
	Distance float32
}

// Search returns the topK records closest to vector by Euclidean distance,
// ordered nearest first. An empty index yields an empty result, not an error.
func (s *Store) Search(vector []float32, topK int) ([]ScoredRecord, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}

	// Phase 1: scan only id + embedding to find the topK nearest candidates.
	rows, err := s.db.Query(`SELECT id, embedding FROM qa_records`)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	// Max-heap on distance: the worst candidate sits on top and is evicted
	// whenever a closer record is found.
	h := &distHeap{}
	heap.Init(h)

	var buf []float32

	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		buf, err = decodeFloat32sInto(buf, blob)
		if err != nil {
			return nil, fmt.Errorf("decoding embedding for %s: %w", id, err)
		}

		d, err := euclideanDistance(vector, buf)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", id, err)
		}

		if h.Len() < topK {
			heap.Push(h, distEntry{ID: id, Distance: d})
		} else if d < (*h)[0].Distance {
			(*h)[0] = distEntry{ID: id, Distance: d}
			heap.Fix(h, 0)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	if h.Len() == 0 {
		return nil, nil
	}

	// Phase 2: fetch full rows for the winners, nearest first.
	ordered := make([]distEntry, h.Len())
	for i := len(ordered) - 1; i >= 0; i-- {
		ordered[i] = heap.Pop(h).(distEntry)
	}

	results := make([]ScoredRecord, 0, len(ordered))
	for _, e := range ordered {
		r, err := s.getByID(e.ID)
		if err != nil {
			return nil, err
		}
		results = append(results, ScoredRecord{Record: r, Distance: e.Distance})
	}

	return results, nil
}

func (s *Store) getByID(id string) (Record, error) {
	var r Record
	var blob []byte
	var createdAt string

	err := s.db.QueryRow(`
		SELECT id, text, embedding, source, category, created_at
		FROM qa_records WHERE id = ?`, id,
	).Scan(&r.ID, &r.Text, &blob, &r.Source, &r.Category, &createdAt)
	if err != nil {
		return Record{}, fmt.Errorf("fetching record %s: %w", id, err)
	}

	r.Embedding, err = decodeFloat32s(blob)
	if err != nil {
		return Record{}, fmt.Errorf("decoding embedding for %s: %w", id, err)
	}

	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return Record{}, fmt.Errorf("parsing created_at for %s: %w", id, err)
	}
	r.CreatedAt = t

	return r, nil
}

// Count returns the number of records in the index.
func (s *Store) Count() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM qa_records`).Scan(&count)
	return count, err
}

// ExportAll returns every record in insertion order. Used by rebuild
// verification and tests.
func (s *Store) ExportAll() ([]Record, error) {
	rows, err := s.db.Query(`
		SELECT id, text, embedding, source, category, created_at
		FROM qa_records ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying all records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var blob []byte
		var createdAt string
		if err := rows.Scan(&r.ID, &r.Text, &blob, &r.Source, &r.Category, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		r.Embedding, err = decodeFloat32s(blob)
		if err != nil {
			return nil, fmt.Errorf("decoding embedding for %s: %w", r.ID, err)
		}
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at for %s: %w", r.ID, err)
		}
		r.CreatedAt = t
		records = append(records, r)
	}
	return records, rows.Err()
}

// Delete removes the index directory. Removal errors are retried once after a
// short delay (transient lock release on mounted storage) and then ignored:
// a stale partial directory must not block a rebuild.
func Delete(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil
	}

	if err := os.RemoveAll(dir); err == nil {
		return nil
	}

	time.Sleep(deleteRetryDelay)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("removing index directory after retry: %w", err)
	}

	return nil
}

// encodeFloat32s serializes a float32 slice to little-endian bytes.
func encodeFloat32s(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeFloat32s deserializes little-endian bytes into a new float32 slice.
func decodeFloat32s(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("byte slice length %d is not a multiple of 4", len(b))
	}
	n := len(b) / 4
	v := make([]float32, n)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

// decodeFloat32sInto decodes little-endian bytes into the provided buffer,
// reusing it to avoid per-row allocations during search scans.
func decodeFloat32sInto(buf []float32, b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("byte slice length %d is not a multiple of 4", len(b))
	}
	n := len(b) / 4
	if cap(buf) < n {
		buf = make([]float32, n)
	} else {
		buf = buf[:n]
	}
	for i := range buf {
		buf[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return buf, nil
}

// euclideanDistance returns the L2 distance between two vectors of equal length.
func euclideanDistance(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector dimension mismatch: %d vs %d", len(a), len(b))
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return float32(math.Sqrt(sum)), nil
}

// distHeap is a max-heap of distEntry ordered by Distance.
type distHeap []distEntry

func (h distHeap) Len() int           { return len(h) }
func (h distHeap) Less(i, j int) bool { return h[i].Distance > h[j].Distance }
func (h distHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *distHeap) Push(x any)        { *h = append(*h, x.(distEntry)) }
func (h *distHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
