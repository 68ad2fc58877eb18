package chat

import "time"

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Job is one queued async chat turn, processed by cmd/worker.
type Job struct {
	ID string `gorm:"primaryKey;size:26"` // ULID length

	UserID uint64 `gorm:"index;not null"`

	// AgentSessionID may be empty: the worker then creates a fresh session
	// for the turn, same as a synchronous chat request without a session id.
	AgentSessionID string `gorm:"size:64;index"`

	Prompt string `gorm:"type:text;not null"`

	IdempotencyKey *string `gorm:"type:varchar(128);index:uniq_user_idempo,unique" json:"idempotency_key"`

	Status JobStatus `gorm:"type:varchar(16);index;not null"`

	// Filled when succeeded
	ResultMessages  *string `gorm:"type:text"` // JSON-encoded []stream.Message
	ResultSessionID *string `gorm:"size:64"`

	// Filled when failed
	Error *string `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
