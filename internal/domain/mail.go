package domain

import "context"

// MailSource produces bounded batches of new inbound messages. The transport
// behind it (polling, read-state management, OAuth) is not this system's
// concern; delivery is at-least-once and dedup happens on ingest by msg_id.
type MailSource interface {
	PollNewMessages(ctx context.Context, limit int) ([]RawMessage, error)
}

// Reply is a drafted response handed to the mail sink.
type Reply struct {
	To        string
	Content   string
	Subject   string
	InReplyTo string
	ThreadID  string
}

// MailSink delivers drafted replies back to the sender.
type MailSink interface {
	SendReply(ctx context.Context, r Reply) error
}
