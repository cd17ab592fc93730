package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ArtisanClarinets/eccb-backend/internal/apperr"
	"github.com/ArtisanClarinets/eccb-backend/internal/logger"
	"github.com/ArtisanClarinets/eccb-backend/internal/repos"
	"github.com/ArtisanClarinets/eccb-backend/internal/types"
)

// PieceSourceSmartUpload marks catalog pieces created by the smart
// upload pipeline.
const PieceSourceSmartUpload = "smart-upload"

// CommitOverrides carries reviewer-supplied values that take
// precedence over the session's extracted metadata. Title is required.
type CommitOverrides struct {
	Title         string `json:"title"`
	Composer      string `json:"composer,omitempty"`
	Publisher     string `json:"publisher,omitempty"`
	Instrument    string `json:"instrument,omitempty"`
	PartNumber    string `json:"part_number,omitempty"`
	Difficulty    string `json:"difficulty,omitempty"`
	EnsembleType  string `json:"ensemble_type,omitempty"`
	KeySignature  string `json:"key_signature,omitempty"`
	TimeSignature string `json:"time_signature,omitempty"`
	Tempo         string `json:"tempo,omitempty"`
}

type CommitResult struct {
	Piece *types.Piece        `json:"piece"`
	Files []*types.PieceFile  `json:"files"`
	Parts []*types.PiecePart  `json:"parts"`
	Final map[string]struct{} `json:"-"`
}

// CommitService turns one PENDING_REVIEW session into durable catalog
// records, atomically and exactly once. Both the manual approve path
// and the auto-approve path call Commit.
type CommitService interface {
	Commit(ctx context.Context, sessionID uuid.UUID, overrides CommitOverrides, actorID uuid.UUID, autoApproved bool) (*CommitResult, error)
	// CleanupTemps deletes the session's temporary storage objects
	// that the commit did not retain. Best effort, per-key isolation.
	CleanupTemps(ctx context.Context, session *types.UploadSession, finalKeys map[string]struct{})
}

type commitService struct {
	db             *gorm.DB
	log            *logger.Logger
	sessionRepo    repos.UploadSessionRepo
	pieceRepo      repos.PieceRepo
	fileRepo       repos.PieceFileRepo
	partRepo       repos.PiecePartRepo
	personRepo     repos.PersonRepo
	publisherRepo  repos.PublisherRepo
	instrumentRepo repos.InstrumentRepo
	bucket         BucketService
}

func NewCommitService(
	db *gorm.DB,
	baseLog *logger.Logger,
	sessionRepo repos.UploadSessionRepo,
	pieceRepo repos.PieceRepo,
	fileRepo repos.PieceFileRepo,
	partRepo repos.PiecePartRepo,
	personRepo repos.PersonRepo,
	publisherRepo repos.PublisherRepo,
	instrumentRepo repos.InstrumentRepo,
	bucket BucketService,
) CommitService {
	return &commitService{
		db:             db,
		log:            baseLog.With("service", "CommitService"),
		sessionRepo:    sessionRepo,
		pieceRepo:      pieceRepo,
		fileRepo:       fileRepo,
		partRepo:       partRepo,
		personRepo:     personRepo,
		publisherRepo:  publisherRepo,
		instrumentRepo: instrumentRepo,
		bucket:         bucket,
	}
}

func (cs *commitService) Commit(ctx context.Context, sessionID uuid.UUID, overrides CommitOverrides, actorID uuid.UUID, autoApproved bool) (*CommitResult, error) {
	title := strings.TrimSpace(overrides.Title)
	if title == "" {
		return nil, apperr.Validation("title", "title is required")
	}
	var partNumber *int
	if s := strings.TrimSpace(overrides.PartNumber); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, apperr.Validation("part_number", "part_number must be an integer")
		}
		partNumber = &n
	}

	session, err := cs.sessionRepo.GetByID(ctx, nil, sessionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("upload session", sessionID.String())
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session.Status != types.SessionStatusPendingReview {
		if session.Status == types.SessionStatusApproved {
			return nil, apperr.ErrAlreadyCommitted
		}
		return nil, apperr.State("session not pending review")
	}

	meta, err := session.Metadata()
	if err != nil {
		return nil, apperr.Validation("extracted", err.Error())
	}
	if meta == nil {
		meta = &types.ExtractedMetadata{}
	}
	splitParts, err := session.DecodeSplitParts()
	if err != nil {
		return nil, apperr.Validation("split_parts", err.Error())
	}

	result := &CommitResult{}
	now := time.Now().UTC()

	txErr := cs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		composer, err := cs.resolvePerson(ctx, tx, firstNonEmpty(overrides.Composer, meta.Composer))
		if err != nil {
			return err
		}
		publisher, err := cs.resolvePublisher(ctx, tx, firstNonEmpty(overrides.Publisher, meta.Publisher))
		if err != nil {
			return err
		}

		piece := &types.Piece{
			Title:         title,
			Difficulty:    overrides.Difficulty,
			Source:        PieceSourceSmartUpload,
			EnsembleType:  firstNonEmpty(overrides.EnsembleType, meta.EnsembleType),
			KeySignature:  firstNonEmpty(overrides.KeySignature, meta.KeySignature),
			TimeSignature: firstNonEmpty(overrides.TimeSignature, meta.TimeSignature),
			Tempo:         firstNonEmpty(overrides.Tempo, meta.Tempo),
		}
		if meta.ConfidenceScore > 0 {
			score := meta.ConfidenceScore
			piece.ConfidenceScore = &score
		}
		if composer != nil {
			piece.ComposerID = &composer.ID
		}
		if publisher != nil {
			piece.PublisherID = &publisher.ID
		}
		if _, err := cs.pieceRepo.Create(ctx, tx, piece); err != nil {
			return fmt.Errorf("create piece: %w", err)
		}

		originalType := types.FileTypeFullScore
		if meta.FileType != "" {
			originalType = meta.FileType
		}
		sessionRef := session.ID
		originalFile := &types.PieceFile{
			PieceID:         piece.ID,
			FileName:        session.OriginalName,
			FileType:        originalType,
			SizeBytes:       session.SizeBytes,
			MimeType:        session.MimeType,
			StorageKey:      session.StorageKey,
			UploadedBy:      actorID,
			UploadSessionID: &sessionRef,
		}
		if partNumber != nil {
			originalFile.PartNumber = partNumber
		}
		if _, err := cs.fileRepo.Create(ctx, tx, originalFile); err != nil {
			return fmt.Errorf("create original file: %w", err)
		}
		result.Files = append(result.Files, originalFile)

		switch {
		case len(splitParts) > 0:
			for i, sp := range splitParts {
				file, part, err := cs.commitSplitPart(ctx, tx, piece, session, actorID, i, sp)
				if err != nil {
					return err
				}
				result.Files = append(result.Files, file)
				result.Parts = append(result.Parts, part)
			}
		case meta.IsMultiPart && len(meta.Parts) > 0:
			for _, ep := range meta.Parts {
				part, err := cs.commitDeclaredPart(ctx, tx, piece, originalFile, ep)
				if err != nil {
					return err
				}
				result.Parts = append(result.Parts, part)
			}
		case strings.TrimSpace(firstNonEmpty(overrides.Instrument, meta.Instrument)) != "":
			instrumentName := strings.TrimSpace(firstNonEmpty(overrides.Instrument, meta.Instrument))
			instrument, err := cs.resolveInstrument(ctx, tx, instrumentName)
			if err != nil {
				return err
			}
			part := &types.PiecePart{
				PieceID:      piece.ID,
				InstrumentID: instrument.ID,
				FileID:       originalFile.ID,
				PartLabel:    instrumentName,
				StorageKey:   originalFile.StorageKey,
			}
			if _, err := cs.partRepo.Create(ctx, tx, part); err != nil {
				return fmt.Errorf("create part: %w", err)
			}
			result.Parts = append(result.Parts, part)
		}

		affected, err := cs.sessionRepo.MarkReviewed(ctx, tx, session.ID, map[string]any{
			"status":        types.SessionStatusApproved,
			"reviewed_by":   actorID,
			"reviewed_at":   now,
			"auto_approved": autoApproved,
		})
		if err != nil {
			return fmt.Errorf("mark session approved: %w", err)
		}
		if affected == 0 {
			// A concurrent decision won the race.
			current, loadErr := cs.sessionRepo.GetByID(ctx, tx, session.ID)
			if loadErr == nil && current.Status == types.SessionStatusApproved {
				return apperr.ErrAlreadyCommitted
			}
			return apperr.State("session not pending review")
		}

		result.Piece = piece
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	result.Final = map[string]struct{}{session.StorageKey: {}}
	for _, f := range result.Files {
		result.Final[f.StorageKey] = struct{}{}
	}
	cs.log.Info("Committed upload session",
		"session_id", session.ID,
		"piece_id", result.Piece.ID,
		"files", len(result.Files),
		"parts", len(result.Parts),
		"auto_approved", autoApproved)
	return result, nil
}

func (cs *commitService) commitSplitPart(ctx context.Context, tx *gorm.DB, piece *types.Piece, session *types.UploadSession, actorID uuid.UUID, idx int, sp types.SplitPart) (*types.PieceFile, *types.PiecePart, error) {
	if strings.TrimSpace(sp.Instrument) == "" {
		return nil, nil, apperr.Validation("split_parts", fmt.Sprintf("split part %d has no instrument", idx))
	}
	if sp.StorageKey == "" {
		return nil, nil, apperr.Validation("split_parts", fmt.Sprintf("split part %d has no storage key", idx))
	}
	if sp.PageStart > 0 && sp.PageEnd > 0 && sp.PageStart > sp.PageEnd {
		return nil, nil, apperr.Validation("split_parts", fmt.Sprintf("split part %d has invalid page range %d-%d", idx, sp.PageStart, sp.PageEnd))
	}

	instrument, err := cs.resolveInstrument(ctx, tx, sp.Instrument)
	if err != nil {
		return nil, nil, err
	}

	fileName := sp.FileName
	if fileName == "" {
		fileName = fmt.Sprintf("%s - %s.pdf", strings.TrimSuffix(session.OriginalName, ".pdf"), sp.Instrument)
	}
	pageCount := sp.PageCount
	if pageCount == 0 && sp.PageStart > 0 && sp.PageEnd >= sp.PageStart {
		pageCount = sp.PageEnd - sp.PageStart + 1
	}
	partNo := idx + 1
	sessionRef := session.ID
	file := &types.PieceFile{
		PieceID:         piece.ID,
		FileName:        fileName,
		FileType:        types.FileTypePart,
		SizeBytes:       sp.SizeBytes,
		MimeType:        "application/pdf",
		StorageKey:      sp.StorageKey,
		UploadedBy:      actorID,
		UploadSessionID: &sessionRef,
		PartLabel:       firstNonEmpty(sp.PartLabel, sp.Instrument),
		InstrumentName:  sp.Instrument,
		Section:         sp.Section,
		PartNumber:      &partNo,
	}
	if pageCount > 0 {
		file.PageCount = &pageCount
	}
	if _, err := cs.fileRepo.Create(ctx, tx, file); err != nil {
		return nil, nil, fmt.Errorf("create part file: %w", err)
	}

	part := &types.PiecePart{
		PieceID:       piece.ID,
		InstrumentID:  instrument.ID,
		FileID:        file.ID,
		PartLabel:     firstNonEmpty(sp.PartLabel, sp.Instrument),
		Section:       sp.Section,
		Transposition: sp.Transposition,
		StorageKey:    sp.StorageKey,
	}
	if pageCount > 0 {
		part.PageCount = &pageCount
	}
	if _, err := cs.partRepo.Create(ctx, tx, part); err != nil {
		return nil, nil, fmt.Errorf("create part: %w", err)
	}
	return file, part, nil
}

func (cs *commitService) commitDeclaredPart(ctx context.Context, tx *gorm.DB, piece *types.Piece, originalFile *types.PieceFile, ep types.ExtractedPart) (*types.PiecePart, error) {
	instrument, err := cs.resolveInstrument(ctx, tx, ep.Instrument)
	if err != nil {
		return nil, err
	}
	part := &types.PiecePart{
		PieceID:       piece.ID,
		InstrumentID:  instrument.ID,
		FileID:        originalFile.ID,
		PartLabel:     firstNonEmpty(ep.PartLabel, ep.Instrument),
		Section:       ep.Section,
		Transposition: ep.Transposition,
		StorageKey:    originalFile.StorageKey,
	}
	if ep.PageStart > 0 && ep.PageEnd >= ep.PageStart {
		n := ep.PageEnd - ep.PageStart + 1
		part.PageCount = &n
	}
	if _, err := cs.partRepo.Create(ctx, tx, part); err != nil {
		return nil, fmt.Errorf("create part: %w", err)
	}
	return part, nil
}

func (cs *commitService) resolvePerson(ctx context.Context, tx *gorm.DB, fullName string) (*types.Person, error) {
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return nil, nil
	}
	existing, err := cs.personRepo.GetByFullName(ctx, tx, fullName)
	if err != nil {
		return nil, fmt.Errorf("look up person %q: %w", fullName, err)
	}
	if existing != nil {
		return existing, nil
	}
	first, last := SplitFullName(fullName)
	person := &types.Person{FirstName: first, LastName: last, FullName: fullName}
	if _, err := cs.personRepo.Create(ctx, tx, person); err != nil {
		return nil, fmt.Errorf("create person %q: %w", fullName, err)
	}
	return person, nil
}

func (cs *commitService) resolvePublisher(ctx context.Context, tx *gorm.DB, name string) (*types.Publisher, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	existing, err := cs.publisherRepo.GetByName(ctx, tx, name)
	if err != nil {
		return nil, fmt.Errorf("look up publisher %q: %w", name, err)
	}
	if existing != nil {
		return existing, nil
	}
	publisher := &types.Publisher{Name: name}
	if _, err := cs.publisherRepo.Create(ctx, tx, publisher); err != nil {
		return nil, fmt.Errorf("create publisher %q: %w", name, err)
	}
	return publisher, nil
}

// resolveInstrument matches case-insensitively by substring in either
// direction, creating a new instrument with a guessed family when
// nothing matches.
func (cs *commitService) resolveInstrument(ctx context.Context, tx *gorm.DB, name string) (*types.Instrument, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("instrument", "instrument name is empty")
	}
	existing, err := cs.instrumentRepo.List(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("list instruments: %w", err)
	}
	lower := strings.ToLower(name)
	for _, ins := range existing {
		insLower := strings.ToLower(ins.Name)
		if strings.Contains(insLower, lower) || strings.Contains(lower, insLower) {
			return ins, nil
		}
	}
	instrument := &types.Instrument{Name: name, Family: GuessInstrumentFamily(name)}
	if _, err := cs.instrumentRepo.Create(ctx, tx, instrument); err != nil {
		return nil, fmt.Errorf("create instrument %q: %w", name, err)
	}
	return instrument, nil
}

func (cs *commitService) CleanupTemps(ctx context.Context, session *types.UploadSession, finalKeys map[string]struct{}) {
	tempKeys, err := session.TempKeys()
	if err != nil {
		cs.log.Warn("Could not decode temp storage keys for cleanup", "session_id", session.ID, "error", err)
		return
	}
	for _, key := range tempKeys {
		if key == "" || key == session.StorageKey {
			continue
		}
		if _, retained := finalKeys[key]; retained {
			continue
		}
		if err := cs.bucket.Delete(ctx, key); err != nil {
			cs.log.Warn("Failed to delete orphaned temp object", "session_id", session.ID, "key", key, "error", err)
		}
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
