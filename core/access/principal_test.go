package access

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v4"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("a long time ago in a galaxy far, far away")

func newRouter(pmb *PrincipalMiddlewareBuilder, seen *Principal) *mux.Router {
	router := mux.NewRouter()
	router.Use(NewPrincipalMiddleware(pmb))
	router.HandleFunc("/whoami", func(w http.ResponseWriter, r *http.Request) {
		*seen, _ = PrincipalFromContext(r.Context())
	})
	return router
}

func TestPrincipal_Default(t *testing.T) {
	var seen Principal
	router := newRouter(&PrincipalMiddlewareBuilder{DefaultUserID: 1, Secret: secret}, &seen)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, Principal{UserID: 1}, seen)
}

func TestPrincipal_Token(t *testing.T) {
	var seen Principal
	router := newRouter(&PrincipalMiddlewareBuilder{DefaultUserID: 1, Secret: secret}, &seen)

	token, err := NewToken(secret, 2, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, Principal{UserID: 2, Authenticated: true}, seen)
}

func TestPrincipal_InvalidToken(t *testing.T) {
	var seen Principal
	router := newRouter(&PrincipalMiddlewareBuilder{DefaultUserID: 1, Secret: secret}, &seen)

	expired, err := NewToken(secret, 2, -time.Minute)
	require.NoError(t, err)
	foreign, err := NewToken([]byte("another secret"), 2, time.Hour)
	require.NoError(t, err)
	notAUser, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "luke"}).SignedString(secret)
	require.NoError(t, err)

	for _, token := range []string{expired, foreign, notAUser, "garbage"} {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "invalid token", body["msg"])
	}
}

func TestPrincipal_WithoutSecret(t *testing.T) {
	var seen Principal
	router := newRouter(&PrincipalMiddlewareBuilder{DefaultUserID: 7}, &seen)

	// tokens are ignored when no secret is configured
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, Principal{UserID: 7}, seen)
}

func TestParseToken(t *testing.T) {
	token, err := NewToken(secret, 42, time.Hour)
	require.NoError(t, err)
	userID, err := ParseToken(secret, token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), userID)

	_, err = ParseToken([]byte("wrong"), token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "42"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = ParseToken(secret, none)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
