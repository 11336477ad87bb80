package dialogue

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lectigo/lectigo/internal/models"
)

// ErrNotFound is the only error the orchestrator surfaces to its caller.
var ErrNotFound = errors.New("not found")

// dedupWindow is how close in time two identical messages must be to be
// considered a retried append rather than a genuine repeat.
const dedupWindow = 2 * time.Second

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) DB() *gorm.DB { return r.db }

func (r *Repo) GetUser(ctx context.Context, userID uint64) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).First(&u, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *Repo) GetUserByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).Where("external_id = ?", externalID).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *Repo) GetSession(ctx context.Context, userID uint64, sessionID string) (*Session, error) {
	var s Session
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND session_id = ?", userID, sessionID).
		First(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *Repo) CreateSession(ctx context.Context, s *Session) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *Repo) SaveSession(ctx context.Context, s *Session) error {
	return r.db.WithContext(ctx).Save(s).Error
}

// ListUnfinished returns the user's non-finalized sessions, oldest first.
func (r *Repo) ListUnfinished(ctx context.Context, userID uint64) ([]Session, error) {
	var out []Session
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND finalized = ?", userID, false).
		Order("id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) ListSessions(ctx context.Context, userID uint64) ([]Session, error) {
	var out []Session
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) CountMessages(ctx context.Context, sessionID string) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&Message{}).
		Where("session_id = ?", sessionID).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

// ListMessages returns the session's messages oldest first.
func (r *Repo) ListMessages(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	q := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var msgs []Message
	if err := q.Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// RecentMessages returns the newest n messages in chronological order.
func (r *Repo) RecentMessages(ctx context.Context, sessionID string, n int) ([]Message, error) {
	if n <= 0 {
		n = 6
	}
	var desc []Message
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id DESC").
		Limit(n).
		Find(&desc).Error; err != nil {
		return nil, err
	}
	asc := make([]Message, 0, len(desc))
	for i := len(desc) - 1; i >= 0; i-- {
		asc = append(asc, desc[i])
	}
	return asc, nil
}

func (r *Repo) ListProgress(ctx context.Context, sessionID string, limit int) ([]ProgressEntry, error) {
	q := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []ProgressEntry
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// AppendMessage inserts a message unless an identical one (same trimmed
// content, same sender) was appended within the dedup window; retried turns
// then get the existing row back and the log does not grow.
func (r *Repo) AppendMessage(ctx context.Context, m *Message) (*Message, error) {
	var existing *Message
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		existing, err = appendMessageTx(tx, m)
		return err
	})
	if err != nil {
		return nil, err
	}
	return existing, nil
}

func appendMessageTx(tx *gorm.DB, m *Message) (*Message, error) {
	content := strings.TrimSpace(m.Content)

	var recent []Message
	if err := tx.
		Where("session_id = ? AND sender = ?", m.SessionID, m.Sender).
		Order("id DESC").
		Limit(5).
		Find(&recent).Error; err != nil {
		return nil, err
	}
	now := time.Now()
	for i := range recent {
		if strings.TrimSpace(recent[i].Content) == content &&
			now.Sub(recent[i].CreatedAt) <= dedupWindow {
			return &recent[i], nil
		}
	}

	if m.MessageID == "" {
		m.MessageID = uuid.NewString()
	}
	if err := tx.Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// TurnMutation is everything one turn wants to persist. CommitTurn writes
// it in a single transaction so a half-failed turn never leaves partial
// state behind.
type TurnMutation struct {
	User     *models.User
	Session  *Session
	Messages []*Message

	Snapshots []ParamSnapshot
	Progress  []ProgressEntry
	Emotional []models.EmotionalEntry
}

func (r *Repo) CommitTurn(ctx context.Context, mut *TurnMutation) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range mut.Messages {
			persisted, err := appendMessageTx(tx, mut.Messages[i])
			if err != nil {
				return err
			}
			// deduped appends resolve to the existing row
			mut.Messages[i] = persisted
		}
		for i := range mut.Snapshots {
			if err := tx.Create(&mut.Snapshots[i]).Error; err != nil {
				return err
			}
		}
		for i := range mut.Progress {
			if err := tx.Create(&mut.Progress[i]).Error; err != nil {
				return err
			}
		}
		for i := range mut.Emotional {
			if err := tx.Create(&mut.Emotional[i]).Error; err != nil {
				return err
			}
		}
		if mut.Session != nil {
			if err := tx.Save(mut.Session).Error; err != nil {
				return err
			}
		}
		if mut.User != nil {
			if err := tx.Save(mut.User).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
