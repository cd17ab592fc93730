package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ArtisanClarinets/eccb-backend/internal/logger"
	"github.com/ArtisanClarinets/eccb-backend/internal/types"
)

type PiecePartRepo interface {
	Create(ctx context.Context, tx *gorm.DB, part *types.PiecePart) (*types.PiecePart, error)
	GetByPieceID(ctx context.Context, tx *gorm.DB, pieceID uuid.UUID) ([]*types.PiecePart, error)
}

type piecePartRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPiecePartRepo(db *gorm.DB, baseLog *logger.Logger) PiecePartRepo {
	return &piecePartRepo{db: db, log: baseLog.With("repo", "PiecePartRepo")}
}

func (r *piecePartRepo) Create(ctx context.Context, tx *gorm.DB, part *types.PiecePart) (*types.PiecePart, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(part).Error; err != nil {
		return nil, err
	}
	return part, nil
}

func (r *piecePartRepo) GetByPieceID(ctx context.Context, tx *gorm.DB, pieceID uuid.UUID) ([]*types.PiecePart, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.PiecePart
	if err := transaction.WithContext(ctx).
		Where("piece_id = ?", pieceID).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
