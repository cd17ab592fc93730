package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ArtisanClarinets/eccb-backend/internal/apperr"
	"github.com/ArtisanClarinets/eccb-backend/internal/logger"
	"github.com/ArtisanClarinets/eccb-backend/internal/repos"
	"github.com/ArtisanClarinets/eccb-backend/internal/types"
	"github.com/ArtisanClarinets/eccb-backend/internal/utils"
)

var pdfMagic = []byte("%PDF")

type IntakeResult struct {
	Session *types.UploadSession `json:"session"`
	// AutoCommit is set when the session cleared the auto-approve
	// confidence threshold and was committed without a reviewer.
	AutoCommit *CommitResult `json:"auto_commit,omitempty"`
}

// UploadIntakeService stores a new upload, runs extraction and part
// splitting, and stages the result for review. High-confidence uploads
// can be committed automatically through the same commit path the
// manual approve uses.
type UploadIntakeService interface {
	Intake(ctx context.Context, actorID uuid.UUID, fileName, mimeType string, data []byte) (*IntakeResult, error)
}

type uploadIntakeService struct {
	db            *gorm.DB
	log           *logger.Logger
	sessionRepo   repos.UploadSessionRepo
	bucket        BucketService
	extractor     MetadataExtractor
	pdf           PDFService
	commit        CommitService
	audit         AuditService
	autoThreshold int
}

func NewUploadIntakeService(
	db *gorm.DB,
	baseLog *logger.Logger,
	sessionRepo repos.UploadSessionRepo,
	bucket BucketService,
	extractor MetadataExtractor,
	pdf PDFService,
	commit CommitService,
	audit AuditService,
) UploadIntakeService {
	serviceLog := baseLog.With("service", "UploadIntakeService")
	// 0 disables auto-approve.
	threshold := utils.GetEnvAsInt("SMART_UPLOAD_AUTO_APPROVE_CONFIDENCE", 0, baseLog)
	return &uploadIntakeService{
		db:            db,
		log:           serviceLog,
		sessionRepo:   sessionRepo,
		bucket:        bucket,
		extractor:     extractor,
		pdf:           pdf,
		commit:        commit,
		audit:         audit,
		autoThreshold: threshold,
	}
}

func (us *uploadIntakeService) Intake(ctx context.Context, actorID uuid.UUID, fileName, mimeType string, data []byte) (*IntakeResult, error) {
	if len(data) == 0 {
		return nil, apperr.Validation("file", "file is empty")
	}
	if !bytes.HasPrefix(data, pdfMagic) {
		return nil, apperr.Validation("file", "file is not a PDF")
	}
	if mimeType == "" {
		mimeType = "application/pdf"
	}
	if fileName == "" {
		fileName = "upload.pdf"
	}

	sessionID := uuid.New()
	originalKey := fmt.Sprintf("uploads/%s/original.pdf", sessionID)
	if err := us.bucket.Upload(ctx, originalKey, data, mimeType, map[string]string{
		"upload_session": sessionID.String(),
		"original_name":  fileName,
	}); err != nil {
		return nil, apperr.Dependency("upload original", err)
	}

	session := &types.UploadSession{
		ID:               sessionID,
		OriginalName:     fileName,
		MimeType:         mimeType,
		SizeBytes:        int64(len(data)),
		StorageKey:       originalKey,
		Status:           types.SessionStatusPendingReview,
		ParseStatus:      types.ParseStatusParsing,
		SecondPassStatus: types.SecondPassNone,
	}
	tempKeys := []string{originalKey}
	if err := session.SetTempKeys(tempKeys); err != nil {
		return nil, fmt.Errorf("encode temp keys: %w", err)
	}

	meta, extractErr := us.extractor.ExtractMetadata(ctx, data, fileName)
	if extractErr != nil {
		// Extraction failure is not fatal for intake: stage the session
		// for a manual retry via the second pass.
		us.log.Warn("Metadata extraction failed at intake", "session_id", sessionID, "error", extractErr)
		session.ParseStatus = types.ParseStatusFailed
		session.SecondPassStatus = types.SecondPassQueued
		if _, err := us.sessionRepo.Create(ctx, nil, session); err != nil {
			return nil, fmt.Errorf("create session: %w", err)
		}
		us.audit.Record(ctx, &actorID, "upload_session.create", "upload_session", sessionID.String(), map[string]any{
			"original_name": fileName,
			"parse_status":  session.ParseStatus,
		})
		return &IntakeResult{Session: session}, nil
	}

	pageCount, err := us.pdf.PageCount(data)
	if err != nil {
		return nil, apperr.Dependency("count pages", err)
	}
	plan := BuildCuttingPlan(meta, pageCount)
	splitParts, newKeys, err := splitAndUploadParts(ctx, us.pdf, us.bucket, sessionID, data, meta, plan)
	if err != nil {
		return nil, err
	}
	tempKeys = append(tempKeys, newKeys...)

	session.ParseStatus = types.ParseStatusParsed
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
	if _, err := us.sessionRepo.Create(ctx, nil, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	us.audit.Record(ctx, &actorID, "upload_session.create", "upload_session", sessionID.String(), map[string]any{
		"original_name": fileName,
		"confidence":    meta.ConfidenceScore,
		"is_multi_part": meta.IsMultiPart,
		"parts":         len(meta.Parts),
	})

	result := &IntakeResult{Session: session}
	if us.autoThreshold > 0 && meta.ConfidenceScore >= us.autoThreshold && strings.TrimSpace(meta.Title) != "" {
		commitResult, commitErr := us.commit.Commit(ctx, sessionID, CommitOverrides{Title: meta.Title}, actorID, true)
		if commitErr != nil {
			us.log.Warn("Auto-approve commit failed, session stays pending", "session_id", sessionID, "error", commitErr)
			return result, nil
		}
		us.commit.CleanupTemps(ctx, session, commitResult.Final)
		us.audit.Record(ctx, &actorID, "upload_session.auto_approve", "upload_session", sessionID.String(), map[string]any{
			"piece_id":   commitResult.Piece.ID,
			"confidence": meta.ConfidenceScore,
		})
		result.AutoCommit = commitResult
		if refreshed, err := us.sessionRepo.GetByID(ctx, nil, sessionID); err == nil {
			result.Session = refreshed
		}
	}
	return result, nil
}
