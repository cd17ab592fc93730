package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ArtisanClarinets/eccb-backend/internal/logger"
	"github.com/ArtisanClarinets/eccb-backend/internal/types"
)

type PieceFileRepo interface {
	Create(ctx context.Context, tx *gorm.DB, file *types.PieceFile) (*types.PieceFile, error)
	GetByPieceID(ctx context.Context, tx *gorm.DB, pieceID uuid.UUID) ([]*types.PieceFile, error)
}

type pieceFileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPieceFileRepo(db *gorm.DB, baseLog *logger.Logger) PieceFileRepo {
	return &pieceFileRepo{db: db, log: baseLog.With("repo", "PieceFileRepo")}
}

func (r *pieceFileRepo) Create(ctx context.Context, tx *gorm.DB, file *types.PieceFile) (*types.PieceFile, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(file).Error; err != nil {
		return nil, err
	}
	return file, nil
}

func (r *pieceFileRepo) GetByPieceID(ctx context.Context, tx *gorm.DB, pieceID uuid.UUID) ([]*types.PieceFile, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.PieceFile
	if err := transaction.WithContext(ctx).
		Where("piece_id = ?", pieceID).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
