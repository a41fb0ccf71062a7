package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"mailbot/internal/domain"
)

// Spool is a file-based stand-in for the mail transport: inbound messages
// are JSON files dropped in <dir>/in, sent replies are written to <dir>/out.
// It keeps the daemon runnable without wiring a real mail provider.
type Spool struct {
	dir    string
	logger *slog.Logger
}

func NewSpool(dir string, logger *slog.Logger) (*Spool, error) {
	for _, sub := range []string{"in", "out", "done"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("cannot create spool directory: %w", err)
		}
	}
	return &Spool{dir: dir, logger: logger}, nil
}

type spoolMessage struct {
	Content  string `json:"content"`
	Sender   string `json:"sender"`
	Subject  string `json:"subject"`
	TimeSent string `json:"timeSent,omitempty"` // RFC 3339
	MsgID    string `json:"msgId,omitempty"`
	ThreadID string `json:"threadId,omitempty"`
}

// PollNewMessages reads up to limit message files from <dir>/in, oldest file
// name first, and moves each to <dir>/done so delivery is one-shot.
func (s *Spool) PollNewMessages(ctx context.Context, limit int) ([]domain.RawMessage, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, "in"))
	if err != nil {
		return nil, fmt.Errorf("read spool: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	if len(names) > limit {
		names = names[:limit]
	}

	var msgs []domain.RawMessage
	for _, name := range names {
		path := filepath.Join(s.dir, "in", name)
		data, err := os.ReadFile(path)
		if err != nil {
			s.logger.Warn("cannot read spool message", "path", path, "err", err)
			continue
		}

		var m spoolMessage
		if err := json.Unmarshal(data, &m); err != nil {
			s.logger.Warn("cannot parse spool message", "path", path, "err", err)
			continue
		}

		raw := domain.RawMessage{
			Content:     m.Content,
			Sender:      m.Sender,
			Subject:     m.Subject,
			MsgID:       m.MsgID,
			ThreadID:    m.ThreadID,
			ExternalRef: name,
		}
		if m.TimeSent != "" {
			if t, err := time.Parse(time.RFC3339, m.TimeSent); err == nil {
				raw.TimeSent = t
			}
		}
		msgs = append(msgs, raw)

		if err := os.Rename(path, filepath.Join(s.dir, "done", name)); err != nil {
			s.logger.Warn("cannot archive spool message", "path", path, "err", err)
		}
	}
	return msgs, nil
}

// SendReply writes the reply as a JSON file in <dir>/out.
func (s *Spool) SendReply(ctx context.Context, r domain.Reply) error {
	out := map[string]string{
		"to":        r.To,
		"content":   r.Content,
		"subject":   r.Subject,
		"inReplyTo": r.InReplyTo,
		"threadId":  r.ThreadID,
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal reply: %w", err)
	}

	name := fmt.Sprintf("%d-%s.json", time.Now().Unix(), uuid.NewString()[:8])
	path := filepath.Join(s.dir, "out", name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write reply: %w", err)
	}
	return nil
}
