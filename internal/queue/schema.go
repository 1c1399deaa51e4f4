package queue

import (
	"time"
)

// Request is one durable outbound row. It is inserted by Enqueue,
// flipped to consumed exactly once by a successful drain, and never
// deleted here; retention is an operator concern.
type Request struct {
	ID          int64      `json:"id"`
	MessageID   string     `json:"msg_id,omitempty"` // correlation to the inbound event
	Payload     string     `json:"payload"`          // form-encoded request body
	Destination string     `json:"destination"`      // gateway endpoint URL
	Producer    string     `json:"producer"`         // subsystem that enqueued it
	IsConsumed  bool       `json:"is_consumed"`
	EnqueuedAt  time.Time  `json:"enqueued_at"`
	ConsumedAt  *time.Time `json:"consumed_at,omitempty"`
}

const Schema = `
CREATE TABLE IF NOT EXISTS queues (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	msg_id TEXT NOT NULL DEFAULT '',
	payload TEXT NOT NULL,
	destination TEXT NOT NULL,
	producer TEXT NOT NULL DEFAULT '',
	is_consumed BOOLEAN NOT NULL DEFAULT 0,
	enqueued_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	consumed_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_queues_pending ON queues(is_consumed, enqueued_at);
CREATE INDEX IF NOT EXISTS idx_queues_msg ON queues(msg_id);
`
