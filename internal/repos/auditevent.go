package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/ArtisanClarinets/eccb-backend/internal/logger"
	"github.com/ArtisanClarinets/eccb-backend/internal/types"
)

type AuditEventRepo interface {
	Create(ctx context.Context, tx *gorm.DB, event *types.AuditEvent) (*types.AuditEvent, error)
	GetByEntity(ctx context.Context, tx *gorm.DB, entityType, entityID string) ([]*types.AuditEvent, error)
}

type auditEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAuditEventRepo(db *gorm.DB, baseLog *logger.Logger) AuditEventRepo {
	return &auditEventRepo{db: db, log: baseLog.With("repo", "AuditEventRepo")}
}

func (r *auditEventRepo) Create(ctx context.Context, tx *gorm.DB, event *types.AuditEvent) (*types.AuditEvent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(event).Error; err != nil {
		return nil, err
	}
	return event, nil
}

func (r *auditEventRepo) GetByEntity(ctx context.Context, tx *gorm.DB, entityType, entityID string) ([]*types.AuditEvent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.AuditEvent
	if err := transaction.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
