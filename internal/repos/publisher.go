package repos

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/ArtisanClarinets/eccb-backend/internal/logger"
	"github.com/ArtisanClarinets/eccb-backend/internal/types"
)

type PublisherRepo interface {
	// GetByName returns (nil, nil) when no publisher matches.
	GetByName(ctx context.Context, tx *gorm.DB, name string) (*types.Publisher, error)
	Create(ctx context.Context, tx *gorm.DB, publisher *types.Publisher) (*types.Publisher, error)
}

type publisherRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPublisherRepo(db *gorm.DB, baseLog *logger.Logger) PublisherRepo {
	return &publisherRepo{db: db, log: baseLog.With("repo", "PublisherRepo")}
}

func (r *publisherRepo) GetByName(ctx context.Context, tx *gorm.DB, name string) (*types.Publisher, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var publisher types.Publisher
	err := transaction.WithContext(ctx).
		Where("name = ?", name).
		First(&publisher).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &publisher, nil
}

func (r *publisherRepo) Create(ctx context.Context, tx *gorm.DB, publisher *types.Publisher) (*types.Publisher, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(publisher).Error; err != nil {
		return nil, err
	}
	return publisher, nil
}
