package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/ArtisanClarinets/eccb-backend/internal/apperr"
	"github.com/ArtisanClarinets/eccb-backend/internal/logger"
	"github.com/ArtisanClarinets/eccb-backend/internal/repos"
	"github.com/ArtisanClarinets/eccb-backend/internal/types"
)

const bulkApproveConcurrency = 4

type ReviewStats struct {
	Pending  int64 `json:"pending"`
	Approved int64 `json:"approved"`
	Rejected int64 `json:"rejected"`
}

type BulkApproveOutcome struct {
	SessionID uuid.UUID  `json:"session_id"`
	Success   bool       `json:"success"`
	Error     string     `json:"error,omitempty"`
	PieceID   *uuid.UUID `json:"piece_id,omitempty"`
}

// ReviewService drives the session state machine on behalf of a
// reviewer: listing, approve/reject decisions, bulk approval, second
// pass re-analysis and page previews.
type ReviewService interface {
	List(ctx context.Context, status types.SessionStatus) ([]*types.UploadSession, *ReviewStats, error)
	Approve(ctx context.Context, sessionID uuid.UUID, overrides CommitOverrides, actorID uuid.UUID) (*CommitResult, error)
	Reject(ctx context.Context, sessionID uuid.UUID, reason string, actorID uuid.UUID) error
	BulkApprove(ctx context.Context, sessionIDs []uuid.UUID, actorID uuid.UUID) []BulkApproveOutcome
	TriggerSecondPass(ctx context.Context, sessionID uuid.UUID, actorID uuid.UUID) (*types.UploadSession, error)
	PreviewPage(ctx context.Context, sessionID uuid.UUID, page int, opts RenderOptions) (string, error)
	PreviewPartPage(ctx context.Context, sessionID uuid.UUID, partStorageKey string, page int, opts RenderOptions) (string, error)
}

type reviewService struct {
	db          *gorm.DB
	log         *logger.Logger
	sessionRepo repos.UploadSessionRepo
	commit      CommitService
	bucket      BucketService
	extractor   MetadataExtractor
	pdf         PDFService
	renderer    PageRenderer
	audit       AuditService
}

func NewReviewService(
	db *gorm.DB,
	baseLog *logger.Logger,
	sessionRepo repos.UploadSessionRepo,
	commit CommitService,
	bucket BucketService,
	extractor MetadataExtractor,
	pdf PDFService,
	renderer PageRenderer,
	audit AuditService,
) ReviewService {
	return &reviewService{
		db:          db,
		log:         baseLog.With("service", "ReviewService"),
		sessionRepo: sessionRepo,
		commit:      commit,
		bucket:      bucket,
		extractor:   extractor,
		pdf:         pdf,
		renderer:    renderer,
		audit:       audit,
	}
}

func (rs *reviewService) List(ctx context.Context, status types.SessionStatus) ([]*types.UploadSession, *ReviewStats, error) {
	if status == "" {
		status = types.SessionStatusPendingReview
	}
	switch status {
	case types.SessionStatusPendingReview, types.SessionStatusApproved, types.SessionStatusRejected:
	default:
		return nil, nil, apperr.Validation("status", fmt.Sprintf("unknown status %q", status))
	}
	sessions, err := rs.sessionRepo.ListByStatus(ctx, nil, status)
	if err != nil {
		return nil, nil, fmt.Errorf("list sessions: %w", err)
	}
	counts, err := rs.sessionRepo.CountByStatus(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("count sessions: %w", err)
	}
	stats := &ReviewStats{
		Pending:  counts[types.SessionStatusPendingReview],
		Approved: counts[types.SessionStatusApproved],
		Rejected: counts[types.SessionStatusRejected],
	}
	return sessions, stats, nil
}

func (rs *reviewService) Approve(ctx context.Context, sessionID uuid.UUID, overrides CommitOverrides, actorID uuid.UUID) (*CommitResult, error) {
	result, err := rs.commit.Commit(ctx, sessionID, overrides, actorID, false)
	if err != nil {
		return nil, err
	}

	// Storage cleanup happens outside the transaction; a crash here
	// leaves orphaned temp objects, never an inconsistent catalog.
	session, loadErr := rs.sessionRepo.GetByID(ctx, nil, sessionID)
	if loadErr != nil {
		rs.log.Warn("Approved session could not be reloaded for cleanup", "session_id", sessionID, "error", loadErr)
	} else {
		rs.commit.CleanupTemps(ctx, session, result.Final)
	}

	rs.audit.Record(ctx, &actorID, "upload_session.approve", "upload_session", sessionID.String(), map[string]any{
		"piece_id": result.Piece.ID,
		"title":    result.Piece.Title,
		"files":    len(result.Files),
		"parts":    len(result.Parts),
	})
	return result, nil
}

func (rs *reviewService) Reject(ctx context.Context, sessionID uuid.UUID, reason string, actorID uuid.UUID) error {
	_, err := rs.sessionRepo.GetByID(ctx, nil, sessionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("upload session", sessionID.String())
	}
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	affected, err := rs.sessionRepo.MarkReviewed(ctx, nil, sessionID, map[string]any{
		"status":        types.SessionStatusRejected,
		"reviewed_by":   actorID,
		"reviewed_at":   time.Now().UTC(),
		"reject_reason": strings.TrimSpace(reason),
	})
	if err != nil {
		return fmt.Errorf("mark session rejected: %w", err)
	}
	if affected == 0 {
		current, loadErr := rs.sessionRepo.GetByID(ctx, nil, sessionID)
		if loadErr == nil && current.Status == types.SessionStatusApproved {
			return apperr.ErrAlreadyCommitted
		}
		return apperr.State("session not pending review")
	}

	rs.audit.Record(ctx, &actorID, "upload_session.reject", "upload_session", sessionID.String(), map[string]any{
		"reason": reason,
	})
	return nil
}

// BulkApprove applies Approve to each session independently. One
// failure never rolls back or blocks the others. The title falls back
// to the session's own extracted metadata.
func (rs *reviewService) BulkApprove(ctx context.Context, sessionIDs []uuid.UUID, actorID uuid.UUID) []BulkApproveOutcome {
	outcomes := make([]BulkApproveOutcome, len(sessionIDs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bulkApproveConcurrency)
	for i, id := range sessionIDs {
		i, id := i, id
		g.Go(func() error {
			outcome := BulkApproveOutcome{SessionID: id}
			result, err := rs.approveWithSessionDefaults(gctx, id, actorID)
			if err != nil {
				outcome.Error = err.Error()
			} else {
				outcome.Success = true
				outcome.PieceID = &result.Piece.ID
			}
			mu.Lock()
			outcomes[i] = outcome
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	rs.audit.Record(ctx, &actorID, "upload_session.bulk_approve", "upload_session", "", map[string]any{
		"session_ids": sessionIDs,
		"outcomes":    outcomes,
	})
	return outcomes
}

func (rs *reviewService) approveWithSessionDefaults(ctx context.Context, sessionID uuid.UUID, actorID uuid.UUID) (*CommitResult, error) {
	session, err := rs.sessionRepo.GetByID(ctx, nil, sessionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("upload session", sessionID.String())
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	meta, err := session.Metadata()
	if err != nil {
		return nil, apperr.Validation("extracted", err.Error())
	}
	overrides := CommitOverrides{}
	if meta != nil {
		overrides.Title = meta.Title
	}
	return rs.Approve(ctx, sessionID, overrides, actorID)
}

// TriggerSecondPass re-runs extraction and splitting on a session.
// Allowed only when the second pass is QUEUED or FAILED; the review
// status is never touched.
func (rs *reviewService) TriggerSecondPass(ctx context.Context, sessionID uuid.UUID, actorID uuid.UUID) (*types.UploadSession, error) {
	session, err := rs.sessionRepo.GetByID(ctx, nil, sessionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("upload session", sessionID.String())
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session.SecondPassStatus != types.SecondPassQueued && session.SecondPassStatus != types.SecondPassFailed {
		return nil, apperr.State(fmt.Sprintf("second pass not runnable from status %s", session.SecondPassStatus))
	}

	if err := rs.sessionRepo.UpdateFields(ctx, nil, sessionID, map[string]any{
		"second_pass_status": types.SecondPassInProgress,
		"parse_status":       types.ParseStatusParsing,
	}); err != nil {
		return nil, fmt.Errorf("mark second pass in progress: %w", err)
	}

	updated, runErr := rs.runSecondPass(ctx, session)
	if runErr != nil {
		if updErr := rs.sessionRepo.UpdateFields(ctx, nil, sessionID, map[string]any{
			"second_pass_status": types.SecondPassFailed,
			"parse_status":       types.ParseStatusFailed,
		}); updErr != nil {
			rs.log.Error("Failed to mark second pass failed", "session_id", sessionID, "error", updErr)
		}
		return nil, runErr
	}

	rs.audit.Record(ctx, &actorID, "upload_session.second_pass", "upload_session", sessionID.String(), map[string]any{
		"parse_status":       updated.ParseStatus,
		"second_pass_status": updated.SecondPassStatus,
	})
	return updated, nil
}

func (rs *reviewService) runSecondPass(ctx context.Context, session *types.UploadSession) (*types.UploadSession, error) {
	original, err := rs.bucket.Download(ctx, session.StorageKey)
	if err != nil {
		return nil, apperr.Dependency("second pass download", err)
	}
	meta, err := rs.extractor.ExtractMetadata(ctx, original, session.OriginalName)
	if err != nil {
		return nil, apperr.Dependency("second pass extraction", err)
	}
	pageCount, err := rs.pdf.PageCount(original)
	if err != nil {
		return nil, apperr.Dependency("second pass page count", err)
	}
	plan := BuildCuttingPlan(meta, pageCount)

	tempKeys, err := session.TempKeys()
	if err != nil {
		rs.log.Warn("Could not decode existing temp keys", "session_id", session.ID, "error", err)
		tempKeys = []string{session.StorageKey}
	}

	splitParts, newKeys, err := splitAndUploadParts(ctx, rs.pdf, rs.bucket, session.ID, original, meta, plan)
	if err != nil {
		return nil, err
	}
	tempKeys = append(tempKeys, newKeys...)

	if err := session.SetMetadata(meta); err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	if err := session.SetCuttingPlan(plan); err != nil {
		return nil, fmt.Errorf("encode cutting plan: %w", err)
	}
	if err := session.SetSplitParts(splitParts); err != nil {
		return nil, fmt.Errorf("encode split parts: %w", err)
	}
	if err := session.SetTempKeys(tempKeys); err != nil {
		return nil, fmt.Errorf("encode temp keys: %w", err)
	}

	if err := rs.sessionRepo.UpdateFields(ctx, nil, session.ID, map[string]any{
		"extracted":          session.Extracted,
		"cutting_plan":       session.CuttingPlan,
		"split_parts":        session.SplitParts,
		"temp_storage_keys":  session.TempStorageKeys,
		"parse_status":       types.ParseStatusParsed,
		"second_pass_status": types.SecondPassComplete,
	}); err != nil {
		return nil, fmt.Errorf("persist second pass result: %w", err)
	}
	return rs.sessionRepo.GetByID(ctx, nil, session.ID)
}

func (rs *reviewService) PreviewPage(ctx context.Context, sessionID uuid.UUID, page int, opts RenderOptions) (string, error) {
	session, err := rs.sessionRepo.GetByID(ctx, nil, sessionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", apperr.NotFound("upload session", sessionID.String())
	}
	if err != nil {
		return "", fmt.Errorf("load session: %w", err)
	}
	pdf, err := rs.bucket.Download(ctx, session.StorageKey)
	if err != nil {
		return "", apperr.Dependency("preview download", err)
	}
	image, err := rs.renderer.RenderPage(ctx, pdf, page, opts)
	if err != nil {
		return "", apperr.Dependency("preview render", err)
	}
	return image, nil
}

func (rs *reviewService) PreviewPartPage(ctx context.Context, sessionID uuid.UUID, partStorageKey string, page int, opts RenderOptions) (string, error) {
	session, err := rs.sessionRepo.GetByID(ctx, nil, sessionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", apperr.NotFound("upload session", sessionID.String())
	}
	if err != nil {
		return "", fmt.Errorf("load session: %w", err)
	}
	if !sessionOwnsKey(session, partStorageKey) {
		return "", apperr.Validation("partStorageKey", "storage key does not belong to this session")
	}
	pdf, err := rs.bucket.Download(ctx, partStorageKey)
	if err != nil {
		return "", apperr.Dependency("part preview download", err)
	}
	image, err := rs.renderer.RenderPage(ctx, pdf, page, opts)
	if err != nil {
		return "", apperr.Dependency("part preview render", err)
	}
	return image, nil
}

func sessionOwnsKey(session *types.UploadSession, key string) bool {
	if key == "" {
		return false
	}
	if key == session.StorageKey {
		return true
	}
	if parts, err := session.DecodeSplitParts(); err == nil {
		for _, sp := range parts {
			if sp.StorageKey == key {
				return true
			}
		}
	}
	if keys, err := session.TempKeys(); err == nil {
		for _, k := range keys {
			if k == key {
				return true
			}
		}
	}
	return false
}
