package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func sign(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)
	return token
}

func echoUser() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := GetUserIDFromContext(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(id))
	})
}

func TestAuthenticate(t *testing.T) {
	valid := sign(t, testSecret, jwt.MapClaims{"user_id": "u-42", "exp": time.Now().Add(time.Hour).Unix()})
	numeric := sign(t, testSecret, jwt.MapClaims{"user_id": 7})
	subject := sign(t, testSecret, jwt.MapClaims{"sub": "u-sub"})
	expired := sign(t, testSecret, jwt.MapClaims{"user_id": "u-42", "exp": time.Now().Add(-time.Hour).Unix()})
	foreign := sign(t, []byte("other"), jwt.MapClaims{"user_id": "u-42"})
	noUser := sign(t, testSecret, jwt.MapClaims{"role": "admin"})

	tests := []struct {
		name     string
		header   string
		query    string
		wantCode int
		wantBody string
	}{
		{name: "valid bearer", header: "Bearer " + valid, wantCode: http.StatusOK, wantBody: "u-42"},
		{name: "numeric user id", header: "Bearer " + numeric, wantCode: http.StatusOK, wantBody: "7"},
		{name: "subject claim", header: "Bearer " + subject, wantCode: http.StatusOK, wantBody: "u-sub"},
		{name: "query token", query: "?access_token=" + valid, wantCode: http.StatusOK, wantBody: "u-42"},
		{name: "missing", wantCode: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", wantCode: http.StatusUnauthorized},
		{name: "expired", header: "Bearer " + expired, wantCode: http.StatusUnauthorized},
		{name: "wrong secret", header: "Bearer " + foreign, wantCode: http.StatusUnauthorized},
		{name: "no user claim", header: "Bearer " + noUser, wantCode: http.StatusUnauthorized},
	}

	handler := Authenticate(testSecret, nil)(echoUser())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/projects"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			}
			if tt.wantCode == http.StatusUnauthorized {
				assert.Contains(t, rec.Body.String(), `"error"`)
			}
		})
	}
}

func TestParseToken_RejectsNoneAlgorithm(t *testing.T) {
	raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"user_id": "u"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ParseToken(raw, testSecret)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestGetUserIDFromContext(t *testing.T) {
	_, err := GetUserIDFromContext(context.Background())
	assert.Error(t, err)

	id, err := GetUserIDFromContext(WithUserID(context.Background(), "owner-1"))
	require.NoError(t, err)
	assert.Equal(t, "owner-1", id)
}
