package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/ArtisanClarinets/eccb-backend/internal/logger"
	"github.com/ArtisanClarinets/eccb-backend/internal/types"
)

type InstrumentRepo interface {
	List(ctx context.Context, tx *gorm.DB) ([]*types.Instrument, error)
	Create(ctx context.Context, tx *gorm.DB, instrument *types.Instrument) (*types.Instrument, error)
}

type instrumentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewInstrumentRepo(db *gorm.DB, baseLog *logger.Logger) InstrumentRepo {
	return &instrumentRepo{db: db, log: baseLog.With("repo", "InstrumentRepo")}
}

func (r *instrumentRepo) List(ctx context.Context, tx *gorm.DB) ([]*types.Instrument, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Instrument
	if err := transaction.WithContext(ctx).
		Order("name ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *instrumentRepo) Create(ctx context.Context, tx *gorm.DB, instrument *types.Instrument) (*types.Instrument, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(instrument).Error; err != nil {
		return nil, err
	}
	return instrument, nil
}
