package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"

	"github.com/kayelam/huddle/internal/auth"
	"github.com/kayelam/huddle/internal/model"
	"github.com/kayelam/huddle/internal/store"
)

// Inbound content is sanitized before persistence to prevent XSS.
var sanitizer = bluemonday.StrictPolicy()

// SendMessage validates membership, sanitizes and persists a message,
// and returns the stored record. Announcing it to live connections is
// the client's next step over the socket ("new message").
func SendMessage(db *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		userID, err := auth.GetUserFromContext(ctx)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "Unauthorized.")
			return
		}

		var req struct {
			ChatID  uuid.UUID `json:"chat_id" validate:"required"`
			Content string    `json:"content" validate:"required,max=4096"`
		}
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid message request.")
			return
		}

		chat, err := db.GetChat(ctx, req.ChatID)
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Chat not found.")
			return
		}
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Database error.")
			log.Printf("failed to get chat: %v", err)
			return
		}

		// The sender-is-a-member invariant is enforced here, once,
		// upstream of fan-out.
		if !chat.Member(userID) {
			respondError(w, http.StatusForbidden, "You are not a member of this chat.")
			return
		}

		content := sanitizer.Sanitize(req.Content)
		message, err := db.CreateMessage(ctx, chat.ID, userID, content)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Database error.")
			log.Printf("failed to store message: %v", err)
			return
		}

		respondJSON(w, http.StatusCreated, message)
	}
}

// AllMessages loads a chat's history for a member.
func AllMessages(db *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		userID, err := auth.GetUserFromContext(ctx)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "Unauthorized.")
			return
		}

		chatID, err := chatIDParam(r)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid chat id.")
			return
		}

		chat, err := db.GetChat(ctx, chatID)
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Chat not found.")
			return
		}
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Database error.")
			log.Printf("failed to get chat: %v", err)
			return
		}
		if !chat.Member(userID) {
			respondError(w, http.StatusForbidden, "You are not a member of this chat.")
			return
		}

		messages, err := db.ListMessages(ctx, chatID, 50)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Database error.")
			log.Printf("failed to load messages: %v", err)
			return
		}
		if messages == nil {
			messages = []model.Message{}
		}

		respondJSON(w, http.StatusOK, messages)
	}
}
