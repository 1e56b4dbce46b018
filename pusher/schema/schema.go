package schema

import (
	"time"

	"github.com/google/uuid"
)

const (
	NotStarted = "not_started"
	Starting   = "starting"
	InProgress = "in_progress"
	Complete   = "complete"
	Failed     = "failed"
	Stopped    = "stopped"
)

type Push struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	ModelName string `gorm:"size:100;not null"`
	Target    string `gorm:"size:100;not null"`
	ModelDir  string `gorm:"not null"`

	Status string `gorm:"size:100;not null"`

	Version    string `gorm:"size:100"`
	PushedPath string

	CreatedAt   time.Time
	CompletedAt *time.Time

	Logs []PushLog `gorm:"foreignKey:PushId;constraint:OnDelete:CASCADE"`
}

type PushLog struct {
	Id      uuid.UUID `gorm:"type:uuid;primaryKey"`
	PushId  uuid.UUID `gorm:"type:uuid;index"`
	Level   string    `gorm:"size:50;not null"`
	Message string
}

type ApiKey struct {
	Key  string `gorm:"primaryKey;size:100"`
	Role string `gorm:"size:50;not null"`
}

const (
	AdminRole = "admin"
	UserRole  = "user"
)
