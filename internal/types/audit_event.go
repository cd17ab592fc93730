package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditEvent records one state transition or mutating action.
// Writes are fire-and-forget; a failed insert is logged, never surfaced.
type AuditEvent struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ActorID    *uuid.UUID     `gorm:"column:actor_id;type:uuid;index" json:"actor_id,omitempty"`
	Action     string         `gorm:"column:action;not null" json:"action"`
	EntityType string         `gorm:"column:entity_type;not null" json:"entity_type"`
	EntityID   string         `gorm:"column:entity_id;index" json:"entity_id"`
	Payload    datatypes.JSON `gorm:"column:payload;type:jsonb" json:"payload,omitempty"`
	CreatedAt  time.Time      `gorm:"not null" json:"created_at"`
}

func (AuditEvent) TableName() string { return "audit_event" }

func (e *AuditEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
