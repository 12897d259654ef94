// Package repository handles data access for the chat log store.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nimbusgpu/askbot/internal/models"
)

// ErrChatLogNotFound is returned when no chat log row exists for the given id.
var ErrChatLogNotFound = errors.New("chat log not found")

// ChatLogsRepository handles data access for the chat_logs table.
type ChatLogsRepository struct {
	db *sql.DB
}

// NewChatLogsRepository creates a new chat logs repository.
func NewChatLogsRepository(db *sql.DB) *ChatLogsRepository {
	return &ChatLogsRepository{db: db}
}

// Init creates the chat_logs table if it does not exist yet.
func (r *ChatLogsRepository) Init(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS chat_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp TEXT NOT NULL,
			question TEXT NOT NULL,
			answer TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT 'General',
			is_answered INTEGER NOT NULL DEFAULT 1
		)`)
	if err != nil {
		return fmt.Errorf("creating chat_logs table: %w", err)
	}

	return nil
}

// Insert appends one chat interaction and returns its assigned id.
func (r *ChatLogsRepository) Insert(ctx context.Context, question, answer, category string, answered bool) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO chat_logs (timestamp, question, answer, category, is_answered)
		VALUES (?, ?, ?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339), question, answer, category, answered,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting chat log: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading inserted chat log id: %w", err)
	}

	return id, nil
}

// GetByID returns the chat log with the given id, or ErrChatLogNotFound.
func (r *ChatLogsRepository) GetByID(ctx context.Context, id int64) (*models.ChatLog, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, timestamp, question, answer, category, is_answered
		FROM chat_logs WHERE id = ?`, id)

	log, err := scanChatLog(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrChatLogNotFound
		}

		return nil, fmt.Errorf("get chat log %d: %w", id, err)
	}

	return log, nil
}

// ListAll returns every chat log, newest first.
func (r *ChatLogsRepository) ListAll(ctx context.Context) ([]models.ChatLog, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, timestamp, question, answer, category, is_answered
		FROM chat_logs ORDER BY timestamp DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing chat logs: %w", err)
	}
	defer rows.Close()

	return collectChatLogs(rows)
}

// ListUnanswered returns unanswered chat logs, newest first, up to limit.
func (r *ChatLogsRepository) ListUnanswered(ctx context.Context, limit int) ([]models.ChatLog, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, timestamp, question, answer, category, is_answered
		FROM chat_logs WHERE is_answered = 0
		ORDER BY timestamp DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing unanswered chat logs: %w", err)
	}
	defer rows.Close()

	return collectChatLogs(rows)
}

// MarkCorrected applies a manual correction: the answer is replaced, the row
// becomes answered, and the category is forced to Manual_Fixed.
// Returns ErrChatLogNotFound when no row has the given id.
func (r *ChatLogsRepository) MarkCorrected(ctx context.Context, id int64, answer string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE chat_logs SET answer = ?, is_answered = 1, category = ?
		WHERE id = ?`, answer, models.CategoryManualFixed, id)
	if err != nil {
		return fmt.Errorf("updating chat log %d: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows for chat log %d: %w", id, err)
	}
	if n == 0 {
		return ErrChatLogNotFound
	}

	return nil
}

// DailyCounts returns the number of interactions per calendar day (UTC).
func (r *ChatLogsRepository) DailyCounts(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT strftime('%Y-%m-%d', timestamp), COUNT(*)
		FROM chat_logs GROUP BY 1 ORDER BY 1`)
	if err != nil {
		return nil, fmt.Errorf("querying daily counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var day string
		var n int
		if err := rows.Scan(&day, &n); err != nil {
			return nil, fmt.Errorf("scanning daily count: %w", err)
		}
		counts[day] = n
	}

	return counts, rows.Err()
}

// CategoryCounts returns the number of interactions per category.
func (r *ChatLogsRepository) CategoryCounts(ctx context.Context) ([]models.CategoryCount, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT category, COUNT(*) FROM chat_logs GROUP BY category ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("querying category counts: %w", err)
	}
	defer rows.Close()

	var counts []models.CategoryCount
	for rows.Next() {
		var c models.CategoryCount
		if err := rows.Scan(&c.Name, &c.Value); err != nil {
			return nil, fmt.Errorf("scanning category count: %w", err)
		}
		counts = append(counts, c)
	}

	return counts, rows.Err()
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanChatLog(row rowScanner) (*models.ChatLog, error) {
	var log models.ChatLog
	var ts string

	if err := row.Scan(&log.ID, &ts, &log.Question, &log.Answer, &log.Category, &log.Answered); err != nil {
		return nil, err
	}

	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return nil, fmt.Errorf("parsing timestamp: %w", err)
	}
	log.Timestamp = t

	return &log, nil
}

func collectChatLogs(rows *sql.Rows) ([]models.ChatLog, error) {
	var logs []models.ChatLog
	for rows.Next() {
		log, err := scanChatLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning chat log: %w", err)
		}
		logs = append(logs, *log)
	}

	return logs, rows.Err()
}
