package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"uigen/internal/gateway/entity"
)

const (
	msgTokenRequired = "Access token required"
	msgTokenInvalid  = "Invalid or expired token"
)

type userKey struct{}

func WithUser(ctx context.Context, user entity.UserID) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// UserFrom returns the user attached by Auth.
func UserFrom(ctx context.Context) (entity.UserID, bool) {
	user, ok := ctx.Value(userKey{}).(entity.UserID)
	return user, ok && !user.IsZero()
}

// ParseTokens reads "token=user,token=user" pairs.
func ParseTokens(raw string) (map[string]entity.UserID, error) {
	out := make(map[string]entity.UserID)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		token, user, ok := strings.Cut(pair, "=")
		token = strings.TrimSpace(token)
		uid := entity.NormalizeUserID(user)
		if !ok || token == "" || uid.IsZero() {
			return nil, fmt.Errorf("invalid auth token entry %q", pair)
		}
		out[token] = uid
	}
	return out, nil
}

// Auth resolves the bearer token to a user. Websocket clients may pass the
// token as the "token" query parameter. With allowAnonymous, requests
// without a token run as entity.DemoUserID.
func Auth(tokens map[string]entity.UserID, allowAnonymous bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				if !allowAnonymous {
					writeFailure(w, http.StatusUnauthorized, msgTokenRequired)
					return
				}
				next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), entity.DemoUserID)))
				return
			}
			user, ok := tokens[token]
			if !ok {
				writeFailure(w, http.StatusUnauthorized, msgTokenInvalid)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}
