package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return signed
}

func validClaims(userID int64) jwt.MapClaims {
	return jwt.MapClaims{
		"user_id":  userID,
		"username": "alice",
		"exp":      time.Now().Add(time.Hour).Unix(),
	}
}

func TestAuthenticator_Middleware(t *testing.T) {
	viper.Set("jwt.secret_key", "test-secret")
	secret := []byte("test-secret")

	var gotUserID int64
	protected := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID, _ = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	serve := func(auth *Authenticator, header string) *httptest.ResponseRecorder {
		r := httptest.NewRequest("GET", "/api/v1/accounts", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		auth.Middleware(protected).ServeHTTP(w, r)
		return w
	}

	t.Run("valid token reaches handler", func(t *testing.T) {
		gotUserID = 0
		token := signToken(t, jwt.SigningMethodHS256, secret, validClaims(7))

		w := serve(NewAuthenticator(nil), "Bearer "+token)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, int64(7), gotUserID)
	})

	t.Run("missing header", func(t *testing.T) {
		w := serve(NewAuthenticator(nil), "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("malformed header", func(t *testing.T) {
		w := serve(NewAuthenticator(nil), "Token abc")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token := signToken(t, jwt.SigningMethodHS256, []byte("other"), validClaims(7))
		w := serve(NewAuthenticator(nil), "Bearer "+token)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("expired token", func(t *testing.T) {
		claims := validClaims(7)
		claims["exp"] = time.Now().Add(-time.Hour).Unix()
		token := signToken(t, jwt.SigningMethodHS256, secret, claims)
		w := serve(NewAuthenticator(nil), "Bearer "+token)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("unsigned token is rejected", func(t *testing.T) {
		token := signToken(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, validClaims(7))
		w := serve(NewAuthenticator(nil), "Bearer "+token)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("revoked token", func(t *testing.T) {
		token := signToken(t, jwt.SigningMethodHS256, secret, validClaims(7))
		rdb, mock := redismock.NewClientMock()
		mock.ExpectExists("blacklist:" + token).SetVal(1)

		w := serve(NewAuthenticator(rdb), "Bearer "+token)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("blacklist outage fails open", func(t *testing.T) {
		token := signToken(t, jwt.SigningMethodHS256, secret, validClaims(9))
		rdb, mock := redismock.NewClientMock()
		mock.ExpectExists("blacklist:" + token).SetErr(assert.AnError)

		w := serve(NewAuthenticator(rdb), "Bearer "+token)

		assert.Equal(t, http.StatusNoContent, w.Code)
	})
}

func TestUserIDFromContext_Missing(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	_, ok := UserIDFromContext(r.Context())
	assert.False(t, ok)
}
