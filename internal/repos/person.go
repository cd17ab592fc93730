package repos

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/ArtisanClarinets/eccb-backend/internal/logger"
	"github.com/ArtisanClarinets/eccb-backend/internal/types"
)

type PersonRepo interface {
	// GetByFullName returns (nil, nil) when no person matches.
	GetByFullName(ctx context.Context, tx *gorm.DB, fullName string) (*types.Person, error)
	Create(ctx context.Context, tx *gorm.DB, person *types.Person) (*types.Person, error)
}

type personRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPersonRepo(db *gorm.DB, baseLog *logger.Logger) PersonRepo {
	return &personRepo{db: db, log: baseLog.With("repo", "PersonRepo")}
}

func (r *personRepo) GetByFullName(ctx context.Context, tx *gorm.DB, fullName string) (*types.Person, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var person types.Person
	err := transaction.WithContext(ctx).
		Where("full_name = ?", fullName).
		First(&person).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &person, nil
}

func (r *personRepo) Create(ctx context.Context, tx *gorm.DB, person *types.Person) (*types.Person, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(person).Error; err != nil {
		return nil, err
	}
	return person, nil
}
