package dialogue

import (
	"context"
	"testing"
	"time"
)

func TestAppendMessageDedupWindow(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	sessionID := NewSessionID()

	first, err := repo.AppendMessage(context.Background(), &Message{
		SessionID: sessionID,
		Sender:    SenderAgent,
		Content:   "¿Cómo te llamas?",
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	// retried append within the window returns the existing row
	second, err := repo.AppendMessage(context.Background(), &Message{
		SessionID: sessionID,
		Sender:    SenderAgent,
		Content:   "  ¿Cómo te llamas?  ",
	})
	if err != nil {
		t.Fatalf("retry append: %v", err)
	}
	if second.MessageID != first.MessageID {
		t.Fatalf("retry created a new message: %s vs %s", second.MessageID, first.MessageID)
	}

	// a different sender with the same content is a genuine new message
	third, err := repo.AppendMessage(context.Background(), &Message{
		SessionID: sessionID,
		Sender:    SenderUser,
		Content:   "¿Cómo te llamas?",
	})
	if err != nil {
		t.Fatalf("append other sender: %v", err)
	}
	if third.MessageID == first.MessageID {
		t.Fatalf("dedup must be scoped per sender")
	}

	n, err := repo.CountMessages(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 messages after deduped retry, got %d", n)
	}
}

func TestAppendMessageOutsideWindowIsNewRow(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	sessionID := NewSessionID()

	if _, err := repo.AppendMessage(context.Background(), &Message{
		SessionID: sessionID,
		Sender:    SenderAgent,
		Content:   "¿Por dónde vas?",
		CreatedAt: time.Now().Add(-time.Minute),
	}); err != nil {
		t.Fatalf("append: %v", err)
	}

	if _, err := repo.AppendMessage(context.Background(), &Message{
		SessionID: sessionID,
		Sender:    SenderAgent,
		Content:   "¿Por dónde vas?",
	}); err != nil {
		t.Fatalf("append: %v", err)
	}

	n, _ := repo.CountMessages(context.Background(), sessionID)
	if n != 2 {
		t.Fatalf("identical content outside the window must append, got %d messages", n)
	}
}

func TestRecentMessagesChronological(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	sessionID := NewSessionID()

	contents := []string{"uno", "dos", "tres", "cuatro"}
	for _, c := range contents {
		if _, err := repo.AppendMessage(context.Background(), &Message{
			SessionID: sessionID,
			Sender:    SenderUser,
			Content:   c,
		}); err != nil {
			t.Fatalf("append %q: %v", c, err)
		}
	}

	msgs, err := repo.RecentMessages(context.Background(), sessionID, 3)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	for i, want := range []string{"dos", "tres", "cuatro"} {
		if msgs[i].Content != want {
			t.Fatalf("position %d: got %q, want %q", i, msgs[i].Content, want)
		}
	}
}

func TestCommitTurnIsAtomic(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	sessionID := NewSessionID()

	sess := &Session{
		SessionID:   sessionID,
		UserID:      12345,
		Stage:       StageDiagnostic,
		Comprension: LevelMedia,
		Emocion:     EmotionNeutra,
		Motivacion:  LevelMedia,
		StartedAt:   time.Now(),
	}
	if err := repo.CreateSession(context.Background(), sess); err != nil {
		t.Fatalf("create session: %v", err)
	}

	sess.Book = "Matilda"
	mut := &TurnMutation{
		Session: sess,
		Messages: []*Message{
			{SessionID: sessionID, Sender: SenderUser, Content: "leo Matilda"},
			{SessionID: sessionID, Sender: SenderAgent, Content: "¡Qué buen libro!"},
		},
		Snapshots: []ParamSnapshot{
			{SessionID: sessionID, Comprension: LevelMedia, Emocion: EmotionNeutra, Motivacion: LevelMedia},
		},
	}
	if err := repo.CommitTurn(context.Background(), mut); err != nil {
		t.Fatalf("commit: %v", err)
	}

	got, err := repo.GetSession(context.Background(), 12345, sessionID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Book != "Matilda" {
		t.Fatalf("session update not committed, book=%q", got.Book)
	}
	n, _ := repo.CountMessages(context.Background(), sessionID)
	if n != 2 {
		t.Fatalf("expected 2 committed messages, got %d", n)
	}
}
