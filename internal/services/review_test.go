package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/ArtisanClarinets/eccb-backend/internal/apperr"
	"github.com/ArtisanClarinets/eccb-backend/internal/logger"
	"github.com/ArtisanClarinets/eccb-backend/internal/types"
)

func newReviewEnv(t *testing.T, extractor MetadataExtractor, pages int) (*testEnv, ReviewService) {
	t.Helper()
	env := newTestEnv(t)
	if extractor == nil {
		extractor = &fakeExtractor{meta: &types.ExtractedMetadata{Title: "Untitled"}}
	}
	review := NewReviewService(
		env.db, logger.NewNop(),
		env.sessionRepo, env.commit, env.bucket,
		extractor, &fakePDF{pages: pages}, &fakeRenderer{}, env.audit,
	)
	return env, review
}

func TestRejectMarksSession(t *testing.T) {
	env, review := newReviewEnv(t, nil, 4)
	ctx := context.Background()
	actor := uuid.New()
	session := env.createSession(t, nil, nil, nil)

	if err := review.Reject(ctx, session.ID, "  duplicate of existing piece ", actor); err != nil {
		t.Fatalf("reject: %v", err)
	}
	updated, err := env.sessionRepo.GetByID(ctx, nil, session.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if updated.Status != types.SessionStatusRejected {
		t.Fatalf("expected REJECTED, got %s", updated.Status)
	}
	if updated.RejectReason != "duplicate of existing piece" {
		t.Fatalf("reason not trimmed and stored: %q", updated.RejectReason)
	}
	if updated.ReviewedBy == nil || *updated.ReviewedBy != actor {
		t.Fatalf("reviewer not recorded")
	}

	// A second decision on a terminal session must fail.
	if err := review.Reject(ctx, session.ID, "again", actor); apperr.KindOf(err) != apperr.KindState {
		t.Fatalf("expected state error on double reject, got %v", err)
	}
}

func TestRejectAfterApprove(t *testing.T) {
	env, review := newReviewEnv(t, nil, 4)
	ctx := context.Background()
	session := env.createSession(t, &types.ExtractedMetadata{Title: "Waltz"}, nil, nil)

	if _, err := review.Approve(ctx, session.ID, CommitOverrides{Title: "Waltz"}, uuid.New()); err != nil {
		t.Fatalf("approve: %v", err)
	}
	err := review.Reject(ctx, session.ID, "changed my mind", uuid.New())
	if !errors.Is(err, apperr.ErrAlreadyCommitted) {
		t.Fatalf("expected already-committed, got %v", err)
	}
}

func TestApproveCleansOrphanedTemps(t *testing.T) {
	env, review := newReviewEnv(t, nil, 4)
	ctx := context.Background()
	session := env.createSession(t, &types.ExtractedMetadata{Title: "Nocturne"}, []types.SplitPart{
		{Instrument: "Flute", PageStart: 1, PageEnd: 2, StorageKey: "uploads/n/parts/001.pdf"},
	}, []string{"uploads/n/parts/001.pdf", "uploads/n/parts/stale.pdf"})

	if _, err := review.Approve(ctx, session.ID, CommitOverrides{Title: "Nocturne"}, uuid.New()); err != nil {
		t.Fatalf("approve: %v", err)
	}
	deleted := env.bucket.deletedKeys()
	if len(deleted) != 1 || deleted[0] != "uploads/n/parts/stale.pdf" {
		t.Fatalf("expected only the stale key deleted, got %v", deleted)
	}
}

func TestListStats(t *testing.T) {
	env, review := newReviewEnv(t, nil, 4)
	ctx := context.Background()

	pending := env.createSession(t, nil, nil, nil)
	approved := env.createSession(t, &types.ExtractedMetadata{Title: "Done"}, nil, nil)
	rejected := env.createSession(t, nil, nil, nil)
	if _, err := review.Approve(ctx, approved.ID, CommitOverrides{Title: "Done"}, uuid.New()); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := review.Reject(ctx, rejected.ID, "no", uuid.New()); err != nil {
		t.Fatalf("reject: %v", err)
	}

	sessions, stats, err := review.List(ctx, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != pending.ID {
		t.Fatalf("default list should contain only the pending session")
	}
	if stats.Pending != 1 || stats.Approved != 1 || stats.Rejected != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	if _, _, err := review.List(ctx, "SHOUTING"); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error for bad status, got %v", err)
	}
}

func TestBulkApproveIsolatesFailures(t *testing.T) {
	env, review := newReviewEnv(t, nil, 4)
	ctx := context.Background()

	a := env.createSession(t, &types.ExtractedMetadata{Title: "Alpha"}, nil, nil)
	b := env.createSession(t, &types.ExtractedMetadata{Title: "Beta"}, nil, nil)
	done := env.createSession(t, &types.ExtractedMetadata{Title: "Gamma"}, nil, nil)
	if _, err := review.Approve(ctx, done.ID, CommitOverrides{Title: "Gamma"}, uuid.New()); err != nil {
		t.Fatalf("pre-approve: %v", err)
	}

	outcomes := review.BulkApprove(ctx, []uuid.UUID{a.ID, done.ID, b.ID}, uuid.New())
	if len(outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(outcomes))
	}
	if !outcomes[0].Success || outcomes[0].PieceID == nil {
		t.Fatalf("first session should succeed: %+v", outcomes[0])
	}
	if outcomes[1].Success || outcomes[1].Error == "" {
		t.Fatalf("already-approved session should fail: %+v", outcomes[1])
	}
	if !outcomes[2].Success {
		t.Fatalf("third session should succeed despite the failure: %+v", outcomes[2])
	}
	// Gamma was committed once before the bulk run.
	if n := env.countRows(t, &types.Piece{}); n != 3 {
		t.Fatalf("expected 3 pieces, got %d", n)
	}
}

func TestTriggerSecondPassGuard(t *testing.T) {
	env, review := newReviewEnv(t, nil, 4)
	session := env.createSession(t, nil, nil, nil)

	_, err := review.TriggerSecondPass(context.Background(), session.ID, uuid.New())
	if apperr.KindOf(err) != apperr.KindState {
		t.Fatalf("expected state error when second pass not queued, got %v", err)
	}
}

func TestTriggerSecondPassReprocesses(t *testing.T) {
	extractor := &fakeExtractor{meta: &types.ExtractedMetadata{
		Title:       "Second Chance",
		IsMultiPart: true,
		Parts: []types.ExtractedPart{
			{Instrument: "Clarinet", PageStart: 1, PageEnd: 3},
			{Instrument: "Tuba", PageStart: 4, PageEnd: 6},
		},
	}}
	env, review := newReviewEnv(t, extractor, 6)
	ctx := context.Background()

	session := env.createSession(t, nil, nil, nil)
	env.bucket.objects[session.StorageKey] = []byte("%PDF original")
	if err := env.sessionRepo.UpdateFields(ctx, nil, session.ID, map[string]any{
		"parse_status":       types.ParseStatusFailed,
		"second_pass_status": types.SecondPassQueued,
	}); err != nil {
		t.Fatalf("seed statuses: %v", err)
	}
	session, err := env.sessionRepo.GetByID(ctx, nil, session.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}

	updated, err := review.TriggerSecondPass(ctx, session.ID, uuid.New())
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if updated.ParseStatus != types.ParseStatusParsed {
		t.Fatalf("expected PARSED, got %s", updated.ParseStatus)
	}
	if updated.SecondPassStatus != types.SecondPassComplete {
		t.Fatalf("expected COMPLETE, got %s", updated.SecondPassStatus)
	}
	if updated.Status != types.SessionStatusPendingReview {
		t.Fatalf("second pass must not change review status, got %s", updated.Status)
	}

	splitParts, err := updated.DecodeSplitParts()
	if err != nil {
		t.Fatalf("decode split parts: %v", err)
	}
	if len(splitParts) != 2 {
		t.Fatalf("expected 2 split parts, got %d", len(splitParts))
	}
	for _, sp := range splitParts {
		if !env.bucket.has(sp.StorageKey) {
			t.Fatalf("split part object %q not uploaded", sp.StorageKey)
		}
	}
	keys, err := updated.TempKeys()
	if err != nil {
		t.Fatalf("decode temp keys: %v", err)
	}
	if len(keys) != 3 {
		t.Fatalf("expected original + 2 part keys, got %v", keys)
	}
}

func TestPreviewPartPageOwnership(t *testing.T) {
	env, review := newReviewEnv(t, nil, 4)
	ctx := context.Background()
	session := env.createSession(t, nil, []types.SplitPart{
		{Instrument: "Horn", PageStart: 1, PageEnd: 2, StorageKey: "uploads/p/parts/001.pdf"},
	}, []string{"uploads/p/parts/001.pdf"})
	env.bucket.objects["uploads/p/parts/001.pdf"] = []byte("%PDF part")

	image, err := review.PreviewPartPage(ctx, session.ID, "uploads/p/parts/001.pdf", 0, RenderOptions{})
	if err != nil {
		t.Fatalf("preview owned key: %v", err)
	}
	if image == "" {
		t.Fatalf("empty preview image")
	}

	_, err = review.PreviewPartPage(ctx, session.ID, "uploads/other/original.pdf", 0, RenderOptions{})
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("foreign key must be rejected, got %v", err)
	}
}
