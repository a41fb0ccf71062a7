package classify

import (
	"io"
	"log/slog"
	"testing"

	"mailbot/internal/domain"
	"mailbot/internal/fuzzy"
)

func testClassifier() *Classifier {
	return New(fuzzy.NewScorer(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func msg(id, content string) domain.InboxMessage {
	return domain.InboxMessage{MsgID: id, Content: content, Type: domain.TypeUnconfirmed}
}

func TestClassify_DegenerateContentDeleted(t *testing.T) {
	c := testClassifier()
	for _, content := range []string{"", "x", "!"} {
		changes := c.Classify([]domain.InboxMessage{msg("m1", content)})
		if len(changes) != 1 || !changes[0].Delete {
			t.Fatalf("content %q: expected delete, got %+v", content, changes)
		}
	}
}

func TestClassify_CommandPrefix(t *testing.T) {
	c := testClassifier()
	changes := c.Classify([]domain.InboxMessage{msg("m1", "!notion add \"Groceries\"")})
	if len(changes) != 1 || changes[0].Delete || changes[0].Type != domain.TypeCommand {
		t.Fatalf("expected Command tag, got %+v", changes)
	}
}

func TestClassify_PlainTextDiscardedOutsideSession(t *testing.T) {
	c := testClassifier()
	changes := c.Classify([]domain.InboxMessage{msg("m1", "what's for dinner?")})
	if len(changes) != 1 || !changes[0].Delete {
		t.Fatalf("expected discard, got %+v", changes)
	}
}

func TestClassify_SessionToggling(t *testing.T) {
	c := testClassifier()

	// "hey meep" opens the session and is itself Chat.
	changes := c.Classify([]domain.InboxMessage{msg("m1", "hey meep")})
	if changes[0].Type != domain.TypeChat {
		t.Fatalf("expected Chat for session open, got %+v", changes[0])
	}
	if !c.SessionOpen() {
		t.Fatal("expected session open after 'hey meep'")
	}

	// Anything inside an open session is Chat, even non-command noise.
	changes = c.Classify([]domain.InboxMessage{msg("m2", "foo")})
	if changes[0].Delete || changes[0].Type != domain.TypeChat {
		t.Fatalf("expected Chat inside session, got %+v", changes[0])
	}
	if !c.SessionOpen() {
		t.Fatal("session must stay open until 'bye meep'")
	}

	// "bye meep" closes it.
	changes = c.Classify([]domain.InboxMessage{msg("m3", "bye meep")})
	if changes[0].Type != domain.TypeChat {
		t.Fatalf("expected Chat for session close, got %+v", changes[0])
	}
	if c.SessionOpen() {
		t.Fatal("expected session closed after 'bye meep'")
	}
}

func TestClassify_DoubleOpenIsIdempotent(t *testing.T) {
	c := testClassifier()
	c.Classify([]domain.InboxMessage{msg("m1", "hey meep")})
	changes := c.Classify([]domain.InboxMessage{msg("m2", "hey meep")})
	if changes[0].Type != domain.TypeChat {
		t.Fatalf("expected Chat for repeated open, got %+v", changes[0])
	}
	if !c.SessionOpen() {
		t.Fatal("repeated 'hey meep' must keep the session open")
	}
}

func TestClassify_FuzzySessionPhrase(t *testing.T) {
	c := testClassifier()
	changes := c.Classify([]domain.InboxMessage{msg("m1", "hey meeep")})
	if changes[0].Type != domain.TypeChat {
		t.Fatalf("expected typo'd session phrase to match, got %+v", changes[0])
	}
	if !c.SessionOpen() {
		t.Fatal("expected session open after fuzzy 'hey meep'")
	}
}

func TestClassify_PhraseTakesPrecedenceOverCommand(t *testing.T) {
	c := testClassifier()
	c.Classify([]domain.InboxMessage{msg("m1", "hey meep")})

	// Even command-looking content is Chat while the session is open.
	changes := c.Classify([]domain.InboxMessage{msg("m2", "!notion add X")})
	if changes[0].Type != domain.TypeChat {
		t.Fatalf("expected Chat inside open session, got %+v", changes[0])
	}
}

func TestClassify_FirstLineOnly(t *testing.T) {
	c := testClassifier()
	changes := c.Classify([]domain.InboxMessage{msg("m1", "!notion\nadd\nX")})
	if changes[0].Type != domain.TypeCommand {
		t.Fatalf("expected Command from first line prefix, got %+v", changes[0])
	}
}

func TestClassify_IndependentInstances(t *testing.T) {
	a, b := testClassifier(), testClassifier()
	a.Classify([]domain.InboxMessage{msg("m1", "hey meep")})
	if b.SessionOpen() {
		t.Fatal("session flag must not leak between classifier instances")
	}
}
