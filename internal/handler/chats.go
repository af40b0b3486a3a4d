package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/kayelam/huddle/internal/auth"
	"github.com/kayelam/huddle/internal/model"
	"github.com/kayelam/huddle/internal/store"
)

// AccessChat returns the existing 1:1 chat with the given user, creating
// it when absent.
func AccessChat(db *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		userID, err := auth.GetUserFromContext(ctx)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "Unauthorized.")
			return
		}

		var req struct {
			UserID uuid.UUID `json:"user_id" validate:"required"`
		}
		if err := decodeJSON(r, &req); err != nil || req.UserID == userID {
			respondError(w, http.StatusBadRequest, "Invalid chat request.")
			return
		}

		chat, err := db.FindDirectChat(ctx, userID, req.UserID)
		if errors.Is(err, store.ErrNotFound) {
			chat, err = db.CreateChat(ctx, "", false, uuid.Nil, []uuid.UUID{userID, req.UserID})
		}
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Database error.")
			log.Printf("failed to access chat: %v", err)
			return
		}

		respondJSON(w, http.StatusOK, chat)
	}
}

// FetchChats lists every chat the caller participates in.
func FetchChats(db *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		userID, err := auth.GetUserFromContext(ctx)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "Unauthorized.")
			return
		}

		chats, err := db.ListChatsForUser(ctx, userID)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Database error.")
			log.Printf("failed to list chats: %v", err)
			return
		}
		if chats == nil {
			chats = []model.Chat{}
		}

		respondJSON(w, http.StatusOK, chats)
	}
}

// CreateGroup creates a group chat with the caller as admin.
func CreateGroup(db *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		userID, err := auth.GetUserFromContext(ctx)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "Unauthorized.")
			return
		}

		var req struct {
			Name    string      `json:"name" validate:"required,min=1,max=64"`
			UserIDs []uuid.UUID `json:"user_ids" validate:"required,min=2,dive,required"`
		}
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "A group chat needs a name and at least 2 other users.")
			return
		}

		// Creator first, then the invitees, deduplicated.
		members := lo.Uniq(append([]uuid.UUID{userID}, req.UserIDs...))
		if len(members) < 3 {
			respondError(w, http.StatusBadRequest, "A group chat needs at least 3 distinct members.")
			return
		}

		chat, err := db.CreateChat(ctx, req.Name, true, userID, members)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Database error.")
			log.Printf("failed to create group chat: %v", err)
			return
		}

		respondJSON(w, http.StatusCreated, chat)
	}
}

// RenameGroup renames a group chat. Admin only.
func RenameGroup(db *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req struct {
			ChatID uuid.UUID `json:"chat_id" validate:"required"`
			Name   string    `json:"name" validate:"required,min=1,max=64"`
		}
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid rename request.")
			return
		}

		chat, ok := requireGroupAdmin(w, r, db, req.ChatID)
		if !ok {
			return
		}

		if err := db.RenameChat(ctx, chat.ID, req.Name); err != nil {
			respondError(w, http.StatusInternalServerError, "Database error.")
			log.Printf("failed to rename chat: %v", err)
			return
		}

		chat.Name = req.Name
		respondJSON(w, http.StatusOK, chat)
	}
}

// AddToGroup adds a member to a group chat. Admin only.
func AddToGroup(db *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req struct {
			ChatID uuid.UUID `json:"chat_id" validate:"required"`
			UserID uuid.UUID `json:"user_id" validate:"required"`
		}
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid group add request.")
			return
		}

		chat, ok := requireGroupAdmin(w, r, db, req.ChatID)
		if !ok {
			return
		}

		if err := db.AddChatMember(ctx, chat.ID, req.UserID); err != nil {
			respondError(w, http.StatusInternalServerError, "Database error.")
			log.Printf("failed to add chat member: %v", err)
			return
		}

		updated, err := db.GetChat(ctx, chat.ID)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Database error.")
			return
		}
		respondJSON(w, http.StatusOK, updated)
	}
}

// RemoveFromGroup removes a member from a group chat. Admin only; the
// admin cannot remove themself, the group would be left unadministered.
func RemoveFromGroup(db *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req struct {
			ChatID uuid.UUID `json:"chat_id" validate:"required"`
			UserID uuid.UUID `json:"user_id" validate:"required"`
		}
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid group remove request.")
			return
		}

		chat, ok := requireGroupAdmin(w, r, db, req.ChatID)
		if !ok {
			return
		}
		if req.UserID == chat.GroupAdmin {
			respondError(w, http.StatusBadRequest, "The group admin cannot be removed.")
			return
		}

		if err := db.RemoveChatMember(ctx, chat.ID, req.UserID); err != nil {
			respondError(w, http.StatusInternalServerError, "Database error.")
			log.Printf("failed to remove chat member: %v", err)
			return
		}

		updated, err := db.GetChat(ctx, chat.ID)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Database error.")
			return
		}
		respondJSON(w, http.StatusOK, updated)
	}
}

// requireGroupAdmin loads the chat and verifies the caller administers
// it. On failure the response has already been written.
func requireGroupAdmin(w http.ResponseWriter, r *http.Request, db *store.Store, chatID uuid.UUID) (model.Chat, bool) {
	ctx := r.Context()

	userID, err := auth.GetUserFromContext(ctx)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Unauthorized.")
		return model.Chat{}, false
	}

	chat, err := db.GetChat(ctx, chatID)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Chat not found.")
		return model.Chat{}, false
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Database error.")
		log.Printf("failed to get chat: %v", err)
		return model.Chat{}, false
	}

	if !chat.IsGroup || chat.GroupAdmin != userID {
		respondError(w, http.StatusForbidden, "Only the group admin can do that.")
		return model.Chat{}, false
	}
	return chat, true
}

func chatIDParam(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "chatID"))
}
