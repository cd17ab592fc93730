package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ArtisanClarinets/eccb-backend/internal/logger"
	"github.com/ArtisanClarinets/eccb-backend/internal/types"
)

type UploadSessionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, session *types.UploadSession) (*types.UploadSession, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.UploadSession, error)
	ListByStatus(ctx context.Context, tx *gorm.DB, status types.SessionStatus) ([]*types.UploadSession, error)
	CountByStatus(ctx context.Context, tx *gorm.DB) (map[types.SessionStatus]int64, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]any) error
	// MarkReviewed flips a session out of PENDING_REVIEW with a guarded
	// update. Returns the number of rows affected: zero means the
	// session was not pending (or does not exist).
	MarkReviewed(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]any) (int64, error)
}

type uploadSessionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUploadSessionRepo(db *gorm.DB, baseLog *logger.Logger) UploadSessionRepo {
	return &uploadSessionRepo{db: db, log: baseLog.With("repo", "UploadSessionRepo")}
}

func (r *uploadSessionRepo) Create(ctx context.Context, tx *gorm.DB, session *types.UploadSession) (*types.UploadSession, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(session).Error; err != nil {
		return nil, err
	}
	return session, nil
}

func (r *uploadSessionRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.UploadSession, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var session types.UploadSession
	if err := transaction.WithContext(ctx).
		Where("id = ?", id).
		First(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *uploadSessionRepo) ListByStatus(ctx context.Context, tx *gorm.DB, status types.SessionStatus) ([]*types.UploadSession, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.UploadSession
	if err := transaction.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *uploadSessionRepo) CountByStatus(ctx context.Context, tx *gorm.DB) (map[types.SessionStatus]int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var rows []struct {
		Status types.SessionStatus
		N      int64
	}
	if err := transaction.WithContext(ctx).
		Model(&types.UploadSession{}).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := map[types.SessionStatus]int64{
		types.SessionStatusPendingReview: 0,
		types.SessionStatusApproved:      0,
		types.SessionStatusRejected:      0,
	}
	for _, row := range rows {
		counts[row.Status] = row.N
	}
	return counts, nil
}

func (r *uploadSessionRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]any) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.UploadSession{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *uploadSessionRepo) MarkReviewed(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]any) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).
		Model(&types.UploadSession{}).
		Where("id = ? AND status = ?", id, types.SessionStatusPendingReview).
		Updates(fields)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
