package dialogue

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/datatypes"
)

// Ordinal levels for comprehension and motivation.
const (
	LevelAlta  = "alta"
	LevelMedia = "media"
	LevelBaja  = "baja"
)

// Emotion categories.
const (
	EmotionPositiva = "positiva"
	EmotionNeutra   = "neutra"
	EmotionNegativa = "negativa"
)

// Message senders.
const (
	SenderUser   = "usuario"
	SenderAgent  = "agente"
	SenderSystem = "sistema"
)

// Params are the three per-session conversational parameters updated on
// every user turn.
type Params struct {
	Comprension string `json:"comprension"`
	Emocion     string `json:"emocion"`
	Motivacion  string `json:"motivacion"`
}

// NeutralParams is the safe default for brand-new sessions and for
// utterances too short or ambiguous to classify.
func NeutralParams() Params {
	return Params{Comprension: LevelMedia, Emocion: EmotionNeutra, Motivacion: LevelMedia}
}

// Merge applies a classification on top of the current params. Empty or
// out-of-vocabulary fields keep their previous value; the merge never falls
// back to a hardcoded default once the session has params.
func (p Params) Merge(next Params) Params {
	if validLevel(next.Comprension) {
		p.Comprension = next.Comprension
	}
	if validEmotion(next.Emocion) {
		p.Emocion = next.Emocion
	}
	if validLevel(next.Motivacion) {
		p.Motivacion = next.Motivacion
	}
	return p
}

func validLevel(v string) bool {
	return v == LevelAlta || v == LevelMedia || v == LevelBaja
}

func validEmotion(v string) bool {
	return v == EmotionPositiva || v == EmotionNeutra || v == EmotionNegativa
}

// Session is one conversation instance for a user.
type Session struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement" json:"-"`
	SessionID string `gorm:"type:varchar(26);uniqueIndex;not null" json:"session_id"`
	UserID    uint64 `gorm:"index;not null" json:"-"`

	Stage     Stage `gorm:"type:varchar(16);not null" json:"etapa_actual"`
	Finalized bool  `gorm:"index;not null" json:"finalizada"`

	Book     string `gorm:"type:varchar(128)" json:"libro_actual"`
	Progress *int   `json:"progreso_libro"`

	Comprension string `gorm:"type:varchar(16)" json:"comprension"`
	Emocion     string `gorm:"type:varchar(16)" json:"emocion"`
	Motivacion  string `gorm:"type:varchar(16)" json:"motivacion"`

	// book-identification sub-flow; durable so a guessed title survives
	// process restarts
	AwaitingBook  bool   `json:"-"`
	SuggestedBook string `gorm:"type:varchar(128)" json:"-"`

	Objective    string  `gorm:"type:varchar(128)" json:"objetivo_sesion"`
	LastActivity string  `gorm:"type:varchar(64)" json:"ultima_actividad"`
	Summary      *string `gorm:"type:text" json:"resumen_sesion"`

	StartedAt time.Time `json:"fecha_inicio"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

func (Session) TableName() string { return "sessions" }

func (s *Session) Params() Params {
	return Params{Comprension: s.Comprension, Emocion: s.Emocion, Motivacion: s.Motivacion}
}

func (s *Session) SetParams(p Params) {
	s.Comprension = p.Comprension
	s.Emocion = p.Emocion
	s.Motivacion = p.Motivacion
}

// HasProgress reports whether a positive progress value has been recorded.
// A stored 0 is "started but no progress yet" and still counts as missing
// for the diagnostic; a nil value is "never asked / never answered".
func (s *Session) HasProgress() bool {
	return s.Progress != nil && *s.Progress > 0
}

func NewSessionID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

// Message is one entry of a session's append-only message log.
type Message struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement" json:"-"`
	MessageID string `gorm:"type:varchar(36);uniqueIndex;not null" json:"idm"`
	SessionID string `gorm:"type:varchar(26);index;not null" json:"-"`

	Sender  string `gorm:"type:varchar(16);not null" json:"emisor"`
	Content string `gorm:"type:text;not null" json:"contenido"`
	Emotion string `gorm:"type:varchar(16)" json:"emocion"`

	// parameter snapshot at generation time, agent/system messages only
	Params datatypes.JSON `json:"parametros,omitempty"`

	CreatedAt time.Time `json:"fecha_hora"`
}

func (Message) TableName() string { return "session_messages" }

// ParamSnapshot is one entry of the append-only parameter history.
type ParamSnapshot struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement" json:"-"`
	SessionID string `gorm:"type:varchar(26);index;not null" json:"-"`

	Comprension string `gorm:"type:varchar(16)" json:"comprension"`
	Emocion     string `gorm:"type:varchar(16)" json:"emocion"`
	Motivacion  string `gorm:"type:varchar(16)" json:"motivacion"`

	CreatedAt time.Time `json:"fecha"`
}

func (ParamSnapshot) TableName() string { return "session_param_history" }

// ProgressEntry records one reading-progress change.
type ProgressEntry struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement" json:"-"`
	SessionID string `gorm:"type:varchar(26);index;not null" json:"-"`

	Book     string `gorm:"type:varchar(128)" json:"libro"`
	Previous int    `json:"avance_anterior"`
	Current  int    `json:"avance_actual"`

	CreatedAt time.Time `json:"fecha"`
}

func (ProgressEntry) TableName() string { return "session_progress_history" }
