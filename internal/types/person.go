package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Person holds composers and other named people referenced by the
// catalog. FullName is the dedup key on commit.
type Person struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	FirstName string         `gorm:"column:first_name" json:"first_name"`
	LastName  string         `gorm:"column:last_name" json:"last_name"`
	FullName  string         `gorm:"column:full_name;uniqueIndex;not null" json:"full_name"`
	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Person) TableName() string { return "person" }

func (p *Person) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
