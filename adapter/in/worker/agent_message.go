package worker

import (
	"time"

	"quote_agent/core/domain"

	"github.com/google/uuid"
)

// JobType represents the type of a job.
type JobType = string

const (
	JobEmailProcess JobType = "email.process"
	JobFollowUpSend JobType = "followup.send"
)

// Message is one unit of work for the pool.
type Message struct {
	ID        string
	Type      JobType
	BatchID   string
	Email     *domain.EmailMessage
	CreatedAt time.Time
	Retries   int

	// done is invoked exactly once when the job reaches a terminal state,
	// success or exhausted retries.
	done func()
}

// NewEmailJob wraps an inbound email for processing within a batch.
func NewEmailJob(batchID string, email *domain.EmailMessage) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      JobEmailProcess,
		BatchID:   batchID,
		Email:     email,
		CreatedAt: time.Now(),
	}
}

// NewFollowUpJob requests a sweep of due follow-up reminders.
func NewFollowUpJob(batchID string) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      JobFollowUpSend,
		BatchID:   batchID,
		CreatedAt: time.Now(),
	}
}

func (m *Message) finish() {
	if m.done != nil {
		m.done()
		m.done = nil
	}
}
