package models

import (
	"time"

	"gorm.io/datatypes"
)

// User is the reader profile. ExternalID is the opaque id the clients
// (web and Unity) key their requests on; Name and Age start empty and are
// filled in by the diagnostic flow.
type User struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement" json:"-"`
	ExternalID string `gorm:"type:varchar(64);uniqueIndex;not null" json:"us_id"`

	Name     string `gorm:"type:varchar(64)" json:"nombre"`
	LastName string `gorm:"type:varchar(64)" json:"nombre_p"`
	Sex      string `gorm:"type:varchar(16)" json:"sexo"`
	Age      *int   `json:"edad"`

	Username     string `gorm:"type:varchar(64);index" json:"usuario"`
	PasswordHash string `gorm:"type:varchar(128)" json:"-"`

	Interests datatypes.JSONSlice[string] `json:"intereses"`
	Avatar    string                      `gorm:"type:varchar(128)" json:"avatar"`
	Scenario  string                      `gorm:"type:varchar(128)" json:"escenario"`

	RegisteredAt time.Time `json:"fecha_registro"`
	CreatedAt    time.Time `json:"-"`
	UpdatedAt    time.Time `json:"-"`
}

func (User) TableName() string { return "users" }

// EmotionalEntry is one record of the append-only emotional history log.
type EmotionalEntry struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	UserID    uint64    `gorm:"index;not null" json:"-"`
	Emotion   string    `gorm:"type:varchar(32);not null" json:"emocion_principal"`
	Intensity int       `json:"intensidad"`
	CreatedAt time.Time `json:"fecha"`
}

func (EmotionalEntry) TableName() string { return "user_emotional_history" }
