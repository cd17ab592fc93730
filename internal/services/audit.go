package services

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/ArtisanClarinets/eccb-backend/internal/logger"
	"github.com/ArtisanClarinets/eccb-backend/internal/repos"
	"github.com/ArtisanClarinets/eccb-backend/internal/types"
)

// AuditService records state transitions. Fire-and-forget: a failed
// write is logged and never propagated to the caller.
type AuditService interface {
	Record(ctx context.Context, actorID *uuid.UUID, action, entityType, entityID string, payload any)
}

type auditService struct {
	db        *gorm.DB
	log       *logger.Logger
	auditRepo repos.AuditEventRepo
}

func NewAuditService(db *gorm.DB, baseLog *logger.Logger, auditRepo repos.AuditEventRepo) AuditService {
	return &auditService{
		db:        db,
		log:       baseLog.With("service", "AuditService"),
		auditRepo: auditRepo,
	}
}

func (as *auditService) Record(ctx context.Context, actorID *uuid.UUID, action, entityType, entityID string, payload any) {
	event := &types.AuditEvent{
		ActorID:    actorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			as.log.Warn("Failed to marshal audit payload", "action", action, "error", err)
		} else {
			event.Payload = datatypes.JSON(raw)
		}
	}
	if _, err := as.auditRepo.Create(ctx, nil, event); err != nil {
		as.log.Warn("Failed to record audit event", "action", action, "entity_type", entityType, "entity_id", entityID, "error", err)
	}
}
