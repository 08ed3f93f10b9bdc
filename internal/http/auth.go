package httpapi

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Kluncker/rockville-cg-app/internal/apperr"
	"github.com/Kluncker/rockville-cg-app/internal/models"
)

type ctxKey int

const userKey ctxKey = iota

func userFrom(ctx context.Context) (models.User, bool) {
	u, ok := ctx.Value(userKey).(models.User)
	return u, ok
}

// IssueToken signs an HS256 session token for userID. Used by tooling and
// tests; sign-in itself lives outside this service.
func IssueToken(secret []byte, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func (a *App) parseBearer(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(h, "Bearer ")
	if !ok || raw == "" {
		return "", apperr.New(apperr.Unauthenticated, "missing bearer token")
	}
	if len(a.JWTSecret) == 0 {
		return "", errors.New("JWT_SECRET is not set")
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return a.JWTSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", apperr.New(apperr.Unauthenticated, "invalid token")
	}
	if claims.Subject == "" {
		return "", apperr.New(apperr.Unauthenticated, "invalid token")
	}
	return claims.Subject, nil
}

// authenticate resolves the bearer token to a stored user.
func (a *App) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := a.parseBearer(r)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		u, err := a.Store.GetUserByID(r.Context(), userID)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		if u == nil {
			a.writeError(w, r, apperr.New(apperr.Unauthenticated, "unknown user"))
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, *u)))
	})
}

func requireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := userFrom(r.Context())
			if !ok || !slices.Contains(roles, u.Role) {
				writeJSON(w, http.StatusForbidden, map[string]string{"error": "permission denied"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// canActFor reports whether u may confirm or decline a task assigned to
// assigneeID: leaders, the assignee, and the assignee's household.
func (a *App) canActFor(ctx context.Context, u models.User, assigneeID string) (bool, error) {
	if u.IsLeader() || u.ID == assigneeID {
		return true, nil
	}
	if assigneeID == "" || u.FamilyID == "" {
		return false, nil
	}
	assignee, err := a.Store.GetUserByID(ctx, assigneeID)
	if err != nil {
		return false, err
	}
	return assignee != nil && assignee.FamilyID == u.FamilyID, nil
}
