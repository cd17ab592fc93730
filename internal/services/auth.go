package services

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ArtisanClarinets/eccb-backend/internal/logger"
	"github.com/ArtisanClarinets/eccb-backend/internal/requestdata"
)

// AuthService issues and parses the access tokens the middleware
// consumes. Login/refresh flows live in the identity service, not here.
type AuthService interface {
	IssueToken(userID uuid.UUID, role string) (string, error)
	ParseToken(tokenString string) (*requestdata.RequestData, error)
}

type authService struct {
	log       *logger.Logger
	secretKey []byte
	tokenTTL  time.Duration
}

func NewAuthService(baseLog *logger.Logger, secretKey string, tokenTTL time.Duration) AuthService {
	return &authService{
		log:       baseLog.With("service", "AuthService"),
		secretKey: []byte(secretKey),
		tokenTTL:  tokenTTL,
	}
}

type accessClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func (as *authService) IssueToken(userID uuid.UUID, role string) (string, error) {
	now := time.Now()
	claims := accessClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(as.tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(as.secretKey)
}

func (as *authService) ParseToken(tokenString string) (*requestdata.RequestData, error) {
	var claims accessClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return as.secretKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("invalid subject: %w", err)
	}
	return &requestdata.RequestData{
		TokenString: tokenString,
		UserID:      userID,
		Role:        claims.Role,
	}, nil
}
