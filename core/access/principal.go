/*Package access resolves the principal of a request.

The principal is the user the favorites endpoints operate on. It is added to
the request context by the middleware returned from NewPrincipalMiddleware and
retrieved with

	principal := PrincipalFromContext(ctx)

Requests may carry an HS256 signed JWT as "Authorization: Bearer" header whose
subject is the numeric user id. Without a token, the configured default user
is the principal.
*/
package access

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v4"
	"github.com/gorilla/mux"

	"github.com/relabs-tech/galaxy/core/logger"
)

// contextKey is the type for context keys. Go linter does not like plain strings
type contextKey string

const contextKeyPrincipal contextKey = "_principal_"

// Principal is the user on whose behalf a request is executed
type Principal struct {
	UserID uint
	// Authenticated is true if the principal was established with a valid token,
	// false if it is the default user
	Authenticated bool
}

// Identity returns the principal as used in log statements
func (p Principal) Identity() string {
	return "user|" + strconv.FormatUint(uint64(p.UserID), 10)
}

// ContextWithPrincipal returns a new context with the principal added
func ContextWithPrincipal(ctx context.Context, principal Principal) context.Context {
	return context.WithValue(ctx, contextKeyPrincipal, principal)
}

// PrincipalFromContext retrieves the principal from the context. The second return
// value is false if the context has none.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	principal, ok := ctx.Value(contextKeyPrincipal).(Principal)
	return principal, ok
}

// PrincipalMiddlewareBuilder is a helper builder for the principal middleware
type PrincipalMiddlewareBuilder struct {
	// DefaultUserID is the principal for requests without a bearer token
	DefaultUserID uint
	// Secret is the HS256 key for bearer tokens. If empty, bearer tokens are ignored
	// and every request runs as the default user.
	Secret []byte
}

// ErrInvalidToken is returned by ParseToken for tokens that cannot be verified or whose
// subject is not a user id
var ErrInvalidToken = errors.New("invalid token")

// NewPrincipalMiddleware returns a middleware handler which resolves the principal.
//
// This is a final handler with regards to the bearer token. It will return
// http.StatusUnauthorized when a token is present but invalid.
func NewPrincipalMiddleware(pmb *PrincipalMiddlewareBuilder) mux.MiddlewareFunc {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rlog := logger.FromContext(r.Context())

			principal := Principal{UserID: pmb.DefaultUserID}
			tokenString := bearerToken(r)
			if len(tokenString) > 0 && len(pmb.Secret) > 0 {
				userID, err := ParseToken(pmb.Secret, tokenString)
				if err != nil {
					rlog.WithError(err).Debugln("rejecting bearer token")
					w.Header().Set("Content-Type", "application/json; charset=utf-8")
					w.WriteHeader(http.StatusUnauthorized)
					json.NewEncoder(w).Encode(map[string]string{"msg": ErrInvalidToken.Error()})
					return
				}
				principal = Principal{UserID: userID, Authenticated: true}
			}

			ctx := ContextWithPrincipal(r.Context(), principal)
			ctx, _ = logger.ContextWithLoggerIdentity(ctx, principal.Identity())
			h.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	bearer := r.Header.Get("Authorization")
	if len(bearer) == 0 || bearer == "null" {
		return ""
	}
	if len(bearer) >= 8 && strings.ToLower(bearer[:7]) == "bearer " {
		return strings.TrimSpace(bearer[7:])
	}
	return bearer
}

// NewToken returns a signed bearer token for userID, valid for the given duration
func NewToken(secret []byte, userID uint, validity time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(userID), 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(validity)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseToken verifies tokenString with secret and returns the user id from its subject
func ParseToken(secret []byte, tokenString string) (uint, error) {
	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	userID, err := strconv.ParseUint(claims.Subject, 10, 0)
	if err != nil || userID == 0 {
		return 0, fmt.Errorf("%w: subject '%s' is not a user id", ErrInvalidToken, claims.Subject)
	}
	return uint(userID), nil
}
