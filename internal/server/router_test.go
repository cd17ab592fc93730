package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ArtisanClarinets/eccb-backend/internal/apperr"
	"github.com/ArtisanClarinets/eccb-backend/internal/handlers"
	"github.com/ArtisanClarinets/eccb-backend/internal/logger"
	"github.com/ArtisanClarinets/eccb-backend/internal/middleware"
	"github.com/ArtisanClarinets/eccb-backend/internal/services"
	"github.com/ArtisanClarinets/eccb-backend/internal/types"
)

type stubReviewService struct {
	approveErr error
	lastActor  uuid.UUID
}

func (s *stubReviewService) List(ctx context.Context, status types.SessionStatus) ([]*types.UploadSession, *services.ReviewStats, error) {
	return []*types.UploadSession{}, &services.ReviewStats{Pending: 2}, nil
}

func (s *stubReviewService) Approve(ctx context.Context, sessionID uuid.UUID, overrides services.CommitOverrides, actorID uuid.UUID) (*services.CommitResult, error) {
	s.lastActor = actorID
	if s.approveErr != nil {
		return nil, s.approveErr
	}
	return &services.CommitResult{Piece: &types.Piece{ID: uuid.New(), Title: overrides.Title}}, nil
}

func (s *stubReviewService) Reject(ctx context.Context, sessionID uuid.UUID, reason string, actorID uuid.UUID) error {
	return nil
}

func (s *stubReviewService) BulkApprove(ctx context.Context, sessionIDs []uuid.UUID, actorID uuid.UUID) []services.BulkApproveOutcome {
	outcomes := make([]services.BulkApproveOutcome, len(sessionIDs))
	for i, id := range sessionIDs {
		outcomes[i] = services.BulkApproveOutcome{SessionID: id, Success: true}
	}
	return outcomes
}

func (s *stubReviewService) TriggerSecondPass(ctx context.Context, sessionID uuid.UUID, actorID uuid.UUID) (*types.UploadSession, error) {
	return &types.UploadSession{ID: sessionID}, nil
}

func (s *stubReviewService) PreviewPage(ctx context.Context, sessionID uuid.UUID, page int, opts services.RenderOptions) (string, error) {
	return "png", nil
}

func (s *stubReviewService) PreviewPartPage(ctx context.Context, sessionID uuid.UUID, partStorageKey string, page int, opts services.RenderOptions) (string, error) {
	return "png", nil
}

type stubIntakeService struct{}

func (s *stubIntakeService) Intake(ctx context.Context, actorID uuid.UUID, fileName, mimeType string, data []byte) (*services.IntakeResult, error) {
	return &services.IntakeResult{Session: &types.UploadSession{ID: uuid.New()}}, nil
}

func newTestRouter(t *testing.T, review *stubReviewService) (*gin.Engine, services.AuthService) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.NewNop()
	auth := services.NewAuthService(log, "router-test-secret", time.Hour)
	router := NewRouter(RouterConfig{
		AuthMiddleware: middleware.NewAuthMiddleware(log, auth),
		ReviewHandler:  handlers.NewReviewHandler(log, review),
		UploadHandler:  handlers.NewUploadHandler(log, &stubIntakeService{}),
	})
	return router, auth
}

func bearerToken(t *testing.T, auth services.AuthService, role string) string {
	t.Helper()
	token, err := auth.IssueToken(uuid.New(), role)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return "Bearer " + token
}

func TestHealthcheckIsPublic(t *testing.T) {
	router, _ := newTestRouter(t, &stubReviewService{})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthcheck", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("healthcheck status %d", w.Code)
	}
}

func TestAPIRequiresToken(t *testing.T) {
	router, _ := newTestRouter(t, &stubReviewService{})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/review", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
}

func TestMemberCanListButNotApprove(t *testing.T) {
	router, auth := newTestRouter(t, &stubReviewService{})
	token := bearerToken(t, auth, "member")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/review", nil)
	req.Header.Set("Authorization", token)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("member list status %d", w.Code)
	}

	w = httptest.NewRecorder()
	// Permission is checked before the body is read at all.
	req = httptest.NewRequest(http.MethodPost, "/api/review/"+uuid.NewString()+"/approve", bytes.NewBufferString("not json"))
	req.Header.Set("Authorization", token)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("member approve status %d, want 403", w.Code)
	}
}

func TestLibrarianApprove(t *testing.T) {
	stub := &stubReviewService{}
	router, auth := newTestRouter(t, stub)

	body, _ := json.Marshal(map[string]string{"title": "March of Tests"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/review/"+uuid.NewString()+"/approve", bytes.NewReader(body))
	req.Header.Set("Authorization", bearerToken(t, auth, "librarian"))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("librarian approve status %d: %s", w.Code, w.Body.String())
	}
	if stub.lastActor == uuid.Nil {
		t.Fatalf("actor not propagated from token")
	}

	var envelope handlers.Envelope
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !envelope.Success {
		t.Fatalf("expected success envelope: %+v", envelope)
	}
}

func TestApproveConflictMapsToAlreadyCommitted(t *testing.T) {
	stub := &stubReviewService{approveErr: apperr.ErrAlreadyCommitted}
	router, auth := newTestRouter(t, stub)

	body, _ := json.Marshal(map[string]string{"title": "Twice"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/review/"+uuid.NewString()+"/approve", bytes.NewReader(body))
	req.Header.Set("Authorization", bearerToken(t, auth, "admin"))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
	var envelope handlers.Envelope
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Code != "already_committed" {
		t.Fatalf("expected already_committed code, got %q", envelope.Code)
	}
}

func TestApproveInvalidSessionID(t *testing.T) {
	router, auth := newTestRouter(t, &stubReviewService{})
	body, _ := json.Marshal(map[string]string{"title": "X"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/review/not-a-uuid/approve", bytes.NewReader(body))
	req.Header.Set("Authorization", bearerToken(t, auth, "librarian"))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad uuid, got %d", w.Code)
	}
}
