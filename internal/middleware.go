package internal

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kayelam/huddle/internal/auth"
	"github.com/kayelam/huddle/internal/store"
)

// Middleware authenticates a request and places the user id in its
// context. It accepts a Bearer token or a jwt cookie; an expired JWT is
// recovered through the refresh_token cookie, mirroring a session that
// outlives its short-lived access token.
func Middleware(db *store.Store, jwtSecret, jwtIssuer string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokenString := bearerToken(r); tokenString != "" {
				userID, err := auth.ValidateJWT(tokenString, jwtSecret)
				if err == nil {
					next.ServeHTTP(w, r.WithContext(
						context.WithValue(r.Context(), auth.UserIDKey, userID)))
					return
				}
			}

			if jwtCookie, err := r.Cookie("jwt"); err == nil {
				userID, err := auth.ValidateJWT(jwtCookie.Value, jwtSecret)
				if err == nil {
					next.ServeHTTP(w, r.WithContext(
						context.WithValue(r.Context(), auth.UserIDKey, userID)))
					return
				}
			}

			// JWT absent or expired; fall back to the refresh token.
			refreshCookie, err := r.Cookie("refresh_token")
			if err != nil {
				http.Error(w, "Unauthorized.", http.StatusUnauthorized)
				return
			}

			userID, err := db.GetUserFromRefreshToken(r.Context(), refreshCookie.Value)
			if err != nil {
				http.Error(w, "Unauthorized.", http.StatusUnauthorized)
				return
			}

			jwtString, err := auth.MakeJWT(userID, jwtSecret, jwtIssuer, auth.JWTExpiry)
			if err != nil {
				slog.ErrorContext(r.Context(), "failed to mint JWT on refresh", "error", err)
				http.Error(w, "Server error.", http.StatusInternalServerError)
				return
			}
			setJWTCookie(w, jwtString, auth.JWTExpiry)

			next.ServeHTTP(w, r.WithContext(
				context.WithValue(r.Context(), auth.UserIDKey, userID)))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	return ""
}

func setJWTCookie(w http.ResponseWriter, token string, maxAge time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     "jwt",
		Value:    token,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
