package middleware

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v4"
)

// Имена claims
const (
	jwtClaimUserID  = "user_id"
	jwtClaimSubject = "sub"
)

// GetUserIDFromContext returns the owner id carried by the authenticated request.
func GetUserIDFromContext(ctx context.Context) (string, error) {
	claims, ok := ctx.Value(userContextKey).(jwt.MapClaims)
	if !ok {
		return "", errors.New("user claims not found in context or invalid type")
	}
	return userIDFromClaims(claims)
}

// WithUserID stores a user id in ctx the same way Authenticate does.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userContextKey, jwt.MapClaims{jwtClaimUserID: userID})
}

func userIDFromClaims(claims jwt.MapClaims) (string, error) {
	raw, ok := claims[jwtClaimUserID]
	if !ok {
		raw, ok = claims[jwtClaimSubject]
	}
	if !ok {
		return "", fmt.Errorf("missing '%s' claim in token", jwtClaimUserID)
	}

	switch v := raw.(type) {
	case string:
		if v == "" {
			return "", fmt.Errorf("empty '%s' claim in token", jwtClaimUserID)
		}
		return v, nil
	case float64:
		// числовые id из старых токенов
		if v != float64(int64(v)) || v <= 0 {
			return "", fmt.Errorf("invalid user ID value in '%s' claim: %v", jwtClaimUserID, v)
		}
		return strconv.FormatInt(int64(v), 10), nil
	default:
		return "", fmt.Errorf("invalid type for '%s' claim: expected string or number, got %T", jwtClaimUserID, raw)
	}
}
