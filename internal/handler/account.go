package handler

import (
	"errors"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/kayelam/huddle/internal/auth"
	"github.com/kayelam/huddle/internal/model"
	"github.com/kayelam/huddle/internal/store"
)

type authResponse struct {
	User  model.User `json:"user"`
	Token string     `json:"token"`
}

// Signup handles user account creation.
func Signup(db *store.Store, jwtSecret, jwtIssuer string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req struct {
			Username string `json:"username" validate:"required,min=2,max=32"`
			Email    string `json:"email" validate:"required,email"`
			Password string `json:"password" validate:"required,min=8"`
		}
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid signup request.")
			log.Printf("signup: %v", err)
			return
		}

		hashedPw, err := auth.HashPassword(req.Password)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Server error.")
			log.Printf("argon2id hash creation failed: %v", err)
			return
		}

		user, err := db.CreateUser(ctx, req.Username, req.Email, hashedPw)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Database error.")
			log.Printf("failed to create user entry in database: %v", err)
			return
		}

		token, err := issueSession(w, r, db, user.ID, jwtSecret, jwtIssuer)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Server error.")
			log.Printf("%v", err)
			return
		}

		slog.InfoContext(ctx, "user signed up",
			slog.String("username", user.Username))

		respondJSON(w, http.StatusCreated, authResponse{User: user, Token: token})
	}
}

// Login handles user login.
func Login(db *store.Store, jwtSecret, jwtIssuer string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req struct {
			Email    string `json:"email" validate:"required,email"`
			Password string `json:"password" validate:"required"`
		}
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid login request.")
			return
		}

		user, hashedPw, err := db.GetUserWithPasswordByEmail(ctx, req.Email)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "Invalid email or password.")
			if !errors.Is(err, store.ErrNotFound) {
				log.Printf("failed to retrieve user from db: %v", err)
			}
			return
		}

		ok, err := auth.CheckPasswordHash(req.Password, hashedPw)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Server error.")
			log.Printf("cannot verify password, hash may be corrupted: %v", err)
			return
		}
		if !ok {
			respondError(w, http.StatusUnauthorized, "Invalid email or password.")
			return
		}

		token, err := issueSession(w, r, db, user.ID, jwtSecret, jwtIssuer)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Server error.")
			log.Printf("%v", err)
			return
		}

		slog.InfoContext(ctx, "user logged in",
			slog.String("username", user.Username))

		respondJSON(w, http.StatusOK, authResponse{User: user, Token: token})
	}
}

// Logout revokes the refresh token and clears session cookies.
func Logout(db *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		refreshTok, err := r.Cookie("refresh_token")
		if err == nil {
			if err := db.RevokeRefreshToken(r.Context(), refreshTok.Value); err != nil {
				log.Printf("failed to process token revocation: %v", err)
			}
		}

		clearCookie(w, "jwt")
		clearCookie(w, "refresh_token")
		respondJSON(w, http.StatusOK, nil)
	}
}

// SearchUsers returns users matching ?search=, excluding the caller.
func SearchUsers(db *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		userID, err := auth.GetUserFromContext(ctx)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "Unauthorized.")
			return
		}

		query := r.URL.Query().Get("search")
		users, err := db.SearchUsers(ctx, query, userID)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Database error.")
			log.Printf("failed to search users: %v", err)
			return
		}
		if users == nil {
			users = []model.User{}
		}

		respondJSON(w, http.StatusOK, users)
	}
}

// issueSession mints the JWT + refresh token pair and sets both cookies.
// The JWT is also returned in the body for Bearer clients.
func issueSession(w http.ResponseWriter, r *http.Request, db *store.Store, userID uuid.UUID, jwtSecret, jwtIssuer string) (string, error) {
	token, err := auth.MakeJWT(userID, jwtSecret, jwtIssuer, auth.JWTExpiry)
	if err != nil {
		return "", err
	}

	refreshToken, err := auth.MakeRefreshToken(r.Context(), db, userID, auth.RefreshTokenExpiry)
	if err != nil {
		return "", err
	}

	setCookie(w, "jwt", token, auth.JWTExpiry)
	setCookie(w, "refresh_token", refreshToken, auth.RefreshTokenExpiry)
	return token, nil
}

func setCookie(w http.ResponseWriter, name, value string, maxAge time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
