package domain

import "time"

// MessageType is the classification tag carried by an inbox row.
type MessageType string

const (
	TypeUnconfirmed MessageType = "unconfirmed"
	TypeChat        MessageType = "Chat"
	TypeCommand     MessageType = "Command"
)

// RawMessage is a normalized message record as delivered by the mail source.
type RawMessage struct {
	Content     string
	Sender      string
	Subject     string
	TimeSent    time.Time // zero when the source had no Date header
	MsgID       string    // Message-ID header; may be empty, backfilled on ingest
	ThreadID    string
	ExternalRef string // provider-side message id, used for relabeling
}

// InboxMessage is a durable inbox row. msg_id is the idempotency key:
// re-ingesting the same external message replaces the row instead of
// duplicating it.
type InboxMessage struct {
	Content     string
	TimeSent    time.Time
	TimeSeen    time.Time
	Type        MessageType
	Sender      string
	Subject     string
	MsgID       string
	ThreadID    string
	ExternalRef string
}

// OutboxMessage is a drafted reply awaiting delivery. It carries the
// originating message's identifiers so the sink can thread the reply.
type OutboxMessage struct {
	Content     string
	TimeSent    time.Time
	Sender      string
	Subject     string
	MsgID       string
	ThreadID    string
	ExternalRef string
}
