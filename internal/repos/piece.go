package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ArtisanClarinets/eccb-backend/internal/logger"
	"github.com/ArtisanClarinets/eccb-backend/internal/types"
)

type PieceRepo interface {
	Create(ctx context.Context, tx *gorm.DB, piece *types.Piece) (*types.Piece, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Piece, error)
}

type pieceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPieceRepo(db *gorm.DB, baseLog *logger.Logger) PieceRepo {
	return &pieceRepo{db: db, log: baseLog.With("repo", "PieceRepo")}
}

func (r *pieceRepo) Create(ctx context.Context, tx *gorm.DB, piece *types.Piece) (*types.Piece, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(piece).Error; err != nil {
		return nil, err
	}
	return piece, nil
}

func (r *pieceRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Piece, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var piece types.Piece
	if err := transaction.WithContext(ctx).Where("id = ?", id).First(&piece).Error; err != nil {
		return nil, err
	}
	return &piece, nil
}
