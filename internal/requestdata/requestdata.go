package requestdata

import (
	"context"

	"github.com/google/uuid"

	"github.com/ArtisanClarinets/eccb-backend/internal/types"
)

type contextKey struct{}

var requestDataKey contextKey

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	if rd, ok := ctx.Value(requestDataKey).(*RequestData); ok {
		return rd
	}
	return nil
}

type RequestData struct {
	TokenString string
	UserID      uuid.UUID
	Role        string
}

func (rd *RequestData) CanEditCatalog() bool {
	return rd != nil && (rd.Role == types.RoleAdmin || rd.Role == types.RoleLibrarian)
}
