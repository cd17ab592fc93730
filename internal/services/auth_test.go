package services

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ArtisanClarinets/eccb-backend/internal/logger"
)

func TestIssueAndParseToken(t *testing.T) {
	auth := NewAuthService(logger.NewNop(), "test-secret", time.Hour)
	userID := uuid.New()

	token, err := auth.IssueToken(userID, "librarian")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	rd, err := auth.ParseToken(token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if rd.UserID != userID {
		t.Fatalf("user id mismatch: %s", rd.UserID)
	}
	if rd.Role != "librarian" {
		t.Fatalf("role mismatch: %q", rd.Role)
	}
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	issuer := NewAuthService(logger.NewNop(), "secret-a", time.Hour)
	verifier := NewAuthService(logger.NewNop(), "secret-b", time.Hour)

	token, err := issuer.IssueToken(uuid.New(), "admin")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if _, err := verifier.ParseToken(token); err == nil {
		t.Fatalf("token signed with wrong secret must not parse")
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	auth := NewAuthService(logger.NewNop(), "test-secret", -time.Minute)
	token, err := auth.IssueToken(uuid.New(), "member")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if _, err := auth.ParseToken(token); err == nil {
		t.Fatalf("expired token must not parse")
	}
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	auth := NewAuthService(logger.NewNop(), "test-secret", time.Hour)
	if _, err := auth.ParseToken("not.a.token"); err == nil {
		t.Fatalf("garbage token must not parse")
	}
}
