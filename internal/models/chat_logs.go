// Package models defines the data types shared across repositories, services, and handlers.
package models

import "time"

// Question categories. The classifier assigns Pricing, Technical, Account, or
// General; Unknown is forced when retrieval found nothing usable; Manual_Fixed
// marks entries corrected by a human through the dashboard.
const (
	CategoryGeneral     = "General"
	CategoryPricing     = "Pricing"
	CategoryTechnical   = "Technical"
	CategoryAccount     = "Account"
	CategoryUnknown     = "Unknown"
	CategoryManualFixed = "Manual_Fixed"
)

// ChatLog is one recorded chat interaction.
type ChatLog struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Category  string    `json:"category"`
	Answered  bool      `json:"is_answered"`
}

// CategoryCount is one bucket of the per-category distribution.
type CategoryCount struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// AnswerResult is what the answer engine returns for a single question.
type AnswerResult struct {
	Answer   string `json:"answer"`
	Category string `json:"category"`
	Answered bool   `json:"is_answered"`
}

// SourceRecord is one entry of the authoritative Q&A source file and of the
// collected-corrections ledger: a question and its canonical answer.
type SourceRecord struct {
	Instruction string `json:"instruction"`
	Output      string `json:"output"`
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message string `json:"message"`
}

// UpdateAnswerRequest is the body of POST /api/dashboard/update_answer.
type UpdateAnswerRequest struct {
	LogID  int64  `json:"log_id"`
	Answer string `json:"answer"`
}
