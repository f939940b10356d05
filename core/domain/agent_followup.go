package domain

import "time"

// FollowUpStatus tracks the follow-up loop for one quotation.
type FollowUpStatus string

const (
	// FollowUpPending means we are waiting for the requester to reply.
	FollowUpPending FollowUpStatus = "pending_info"
	// FollowUpResponded means the requester replied before we gave up.
	FollowUpResponded FollowUpStatus = "responded"
	// FollowUpCompleted means the missing info arrived and the record is done.
	FollowUpCompleted FollowUpStatus = "completed"
	// FollowUpAbandoned means the maximum number of reminders went unanswered.
	FollowUpAbandoned FollowUpStatus = "abandoned"
)

// FollowUpRecord tracks reminder emails sent for an incomplete quotation.
type FollowUpRecord struct {
	ID            string         `json:"id"`
	QuotationID   string         `json:"quotation_id"`
	Email         string         `json:"email"`
	ThreadID      string         `json:"thread_id,omitempty"`
	RFC822MsgID   string         `json:"rfc822_msg_id,omitempty"` // threads reminders into the client's conversation
	References    string         `json:"references,omitempty"`
	MissingFields []string       `json:"missing_fields"`
	SentCount     int            `json:"sent_count"`
	LastSentAt    time.Time      `json:"last_sent_at,omitempty"`
	NextSendAt    time.Time      `json:"next_send_at"`
	Status        FollowUpStatus `json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Due reports whether a reminder should be sent at the given time.
func (f *FollowUpRecord) Due(now time.Time) bool {
	return f.Status == FollowUpPending && !now.Before(f.NextSendAt)
}
