// Package classify tags unconfirmed inbox messages as chat, command, or
// discard, tracking the one process-wide chat session.
package classify

import (
	"log/slog"
	"strings"

	"mailbot/internal/domain"
	"mailbot/internal/store"
)

const (
	// Session-control phrases, matched fuzzily against the first line.
	phraseOpen  = "hey meep"
	phraseClose = "bye meep"

	// Minimum similarity for a session phrase to count as a match.
	phraseThreshold = 80

	commandPrefix = "!"
)

// Classifier decides the fate of unconfirmed messages. The session flag is an
// instance field so tests can run independent classifiers; it deliberately
// does not survive restarts.
type Classifier struct {
	matcher     domain.Matcher
	logger      *slog.Logger
	sessionOpen bool
}

func New(matcher domain.Matcher, logger *slog.Logger) *Classifier {
	return &Classifier{matcher: matcher, logger: logger}
}

// SessionOpen reports whether a chat session is currently open.
func (c *Classifier) SessionOpen() bool { return c.sessionOpen }

// Classify maps one batch of unconfirmed messages to inbox changes, applied
// by the store as a single transaction. Precedence per message: degenerate
// content, session phrase, open-session catch-all, command prefix, discard.
func (c *Classifier) Classify(batch []domain.InboxMessage) []store.InboxChange {
	changes := make([]store.InboxChange, 0, len(batch))

	for _, msg := range batch {
		if len(msg.Content) <= 1 {
			changes = append(changes, store.InboxChange{MsgID: msg.MsgID, Delete: true})
			c.logger.Info("discarded degenerate message", "msg_id", msg.MsgID)
			continue
		}

		firstLine, _, _ := strings.Cut(msg.Content, "\n")

		match, score := c.matcher.BestMatch(firstLine, []string{phraseOpen, phraseClose})
		if score >= phraseThreshold {
			switch match {
			case phraseOpen:
				if !c.sessionOpen {
					c.sessionOpen = true
					c.logger.Info("chat session opened", "msg_id", msg.MsgID)
				}
			case phraseClose:
				if c.sessionOpen {
					c.sessionOpen = false
					c.logger.Info("chat session closed", "msg_id", msg.MsgID)
				}
			}
			changes = append(changes, store.InboxChange{MsgID: msg.MsgID, Type: domain.TypeChat})
			continue
		}

		if c.sessionOpen {
			changes = append(changes, store.InboxChange{MsgID: msg.MsgID, Type: domain.TypeChat})
			c.logger.Info("message tagged as chat", "msg_id", msg.MsgID)
			continue
		}

		if strings.HasPrefix(firstLine, commandPrefix) {
			changes = append(changes, store.InboxChange{MsgID: msg.MsgID, Type: domain.TypeCommand})
			c.logger.Info("message tagged as command", "msg_id", msg.MsgID)
			continue
		}

		changes = append(changes, store.InboxChange{MsgID: msg.MsgID, Delete: true})
		c.logger.Info("message ignored", "msg_id", msg.MsgID)
	}

	return changes
}
