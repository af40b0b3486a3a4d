// Package store is the persistence collaborator: users, chats, messages
// and refresh tokens on PostgreSQL via pgx.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kayelam/huddle/internal/model"
)

var ErrNotFound = errors.New("store: not found")

type Store struct {
	db *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// CreateUser inserts an account with its hashed password.
func (s *Store) CreateUser(ctx context.Context, username, email, hashedPassword string) (model.User, error) {
	u := model.User{ID: uuid.New(), Username: username, Email: email, CreatedAt: time.Now().UTC()}

	_, err := s.db.Exec(ctx, `
		INSERT INTO users (user_id, username, email, hashed_password, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		u.ID, u.Username, u.Email, hashedPassword, u.CreatedAt)
	if err != nil {
		return model.User{}, fmt.Errorf("store: failed to create user: %w", err)
	}
	return u, nil
}

func (s *Store) GetUserByID(ctx context.Context, userID uuid.UUID) (model.User, error) {
	var u model.User
	err := s.db.QueryRow(ctx, `
		SELECT user_id, username, email, created_at FROM users WHERE user_id = $1`,
		userID).Scan(&u.ID, &u.Username, &u.Email, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("store: failed to get user: %w", err)
	}
	return u, nil
}

// GetUserWithPasswordByEmail returns the account and its password hash
// for login verification.
func (s *Store) GetUserWithPasswordByEmail(ctx context.Context, email string) (model.User, string, error) {
	var (
		u      model.User
		hashed string
	)
	err := s.db.QueryRow(ctx, `
		SELECT user_id, username, email, hashed_password, created_at
		FROM users WHERE email = $1`,
		email).Scan(&u.ID, &u.Username, &u.Email, &hashed, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, "", ErrNotFound
	}
	if err != nil {
		return model.User{}, "", fmt.Errorf("store: failed to get user by email: %w", err)
	}
	return u, hashed, nil
}

// SearchUsers matches username or email against a case-insensitive
// substring, excluding the requesting user.
func (s *Store) SearchUsers(ctx context.Context, query string, exclude uuid.UUID) ([]model.User, error) {
	rows, err := s.db.Query(ctx, `
		SELECT user_id, username, email, created_at FROM users
		WHERE (username ILIKE '%' || $1 || '%' OR email ILIKE '%' || $1 || '%')
		  AND user_id != $2
		ORDER BY username
		LIMIT 20`,
		query, exclude)
	if err != nil {
		return nil, fmt.Errorf("store: failed to search users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// CreateChat inserts a chat and its member rows in one transaction.
// memberIDs keeps its order; it becomes the participant order.
func (s *Store) CreateChat(ctx context.Context, name string, isGroup bool, admin uuid.UUID, memberIDs []uuid.UUID) (model.Chat, error) {
	chatID := uuid.New()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return model.Chat{}, fmt.Errorf("store: failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var adminID any
	if isGroup {
		adminID = admin
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO chats (chat_id, name, is_group, group_admin, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		chatID, name, isGroup, adminID, time.Now().UTC())
	if err != nil {
		return model.Chat{}, fmt.Errorf("store: failed to create chat: %w", err)
	}

	for i, userID := range memberIDs {
		_, err = tx.Exec(ctx, `
			INSERT INTO chat_users (chat_id, user_id, position) VALUES ($1, $2, $3)`,
			chatID, userID, i)
		if err != nil {
			return model.Chat{}, fmt.Errorf("store: failed to add chat member: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Chat{}, fmt.Errorf("store: failed to commit chat: %w", err)
	}
	return s.GetChat(ctx, chatID)
}

// GetChat loads a chat with its full participant list, ordered by join
// position.
func (s *Store) GetChat(ctx context.Context, chatID uuid.UUID) (model.Chat, error) {
	var (
		c     model.Chat
		admin *uuid.UUID
	)
	err := s.db.QueryRow(ctx, `
		SELECT chat_id, name, is_group, group_admin, created_at
		FROM chats WHERE chat_id = $1`,
		chatID).Scan(&c.ID, &c.Name, &c.IsGroup, &admin, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Chat{}, ErrNotFound
	}
	if err != nil {
		return model.Chat{}, fmt.Errorf("store: failed to get chat: %w", err)
	}
	if admin != nil {
		c.GroupAdmin = *admin
	}

	rows, err := s.db.Query(ctx, `
		SELECT u.user_id, u.username, u.email, u.created_at
		FROM chat_users cu
		JOIN users u ON u.user_id = cu.user_id
		WHERE cu.chat_id = $1
		ORDER BY cu.position`,
		chatID)
	if err != nil {
		return model.Chat{}, fmt.Errorf("store: failed to list chat members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.CreatedAt); err != nil {
			return model.Chat{}, fmt.Errorf("store: failed to scan chat member: %w", err)
		}
		c.Users = append(c.Users, u)
	}
	return c, rows.Err()
}

// FindDirectChat returns the existing 1:1 chat between two users, if any.
func (s *Store) FindDirectChat(ctx context.Context, a, b uuid.UUID) (model.Chat, error) {
	var chatID uuid.UUID
	err := s.db.QueryRow(ctx, `
		SELECT c.chat_id FROM chats c
		JOIN chat_users x ON x.chat_id = c.chat_id AND x.user_id = $1
		JOIN chat_users y ON y.chat_id = c.chat_id AND y.user_id = $2
		WHERE c.is_group = FALSE
		LIMIT 1`,
		a, b).Scan(&chatID)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Chat{}, ErrNotFound
	}
	if err != nil {
		return model.Chat{}, fmt.Errorf("store: failed to find direct chat: %w", err)
	}
	return s.GetChat(ctx, chatID)
}

// ListChatsForUser returns every chat the user participates in, most
// recent first.
func (s *Store) ListChatsForUser(ctx context.Context, userID uuid.UUID) ([]model.Chat, error) {
	rows, err := s.db.Query(ctx, `
		SELECT c.chat_id FROM chats c
		JOIN chat_users cu ON cu.chat_id = c.chat_id
		WHERE cu.user_id = $1
		ORDER BY c.created_at DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("store: failed to list chats: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: failed to scan chat id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	chats := make([]model.Chat, 0, len(ids))
	for _, id := range ids {
		c, err := s.GetChat(ctx, id)
		if err != nil {
			return nil, err
		}
		chats = append(chats, c)
	}
	return chats, nil
}

func (s *Store) RenameChat(ctx context.Context, chatID uuid.UUID, name string) error {
	tag, err := s.db.Exec(ctx, `UPDATE chats SET name = $2 WHERE chat_id = $1 AND is_group`, chatID, name)
	if err != nil {
		return fmt.Errorf("store: failed to rename chat: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) AddChatMember(ctx context.Context, chatID, userID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO chat_users (chat_id, user_id, position)
		VALUES ($1, $2, (SELECT COALESCE(MAX(position), -1) + 1 FROM chat_users WHERE chat_id = $1))
		ON CONFLICT DO NOTHING`,
		chatID, userID)
	if err != nil {
		return fmt.Errorf("store: failed to add chat member: %w", err)
	}
	return nil
}

func (s *Store) RemoveChatMember(ctx context.Context, chatID, userID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `DELETE FROM chat_users WHERE chat_id = $1 AND user_id = $2`, chatID, userID)
	if err != nil {
		return fmt.Errorf("store: failed to remove chat member: %w", err)
	}
	return nil
}

// CreateMessage persists a message and returns it with its sender
// populated.
func (s *Store) CreateMessage(ctx context.Context, chatID, senderID uuid.UUID, content string) (model.Message, error) {
	m := model.Message{
		ID:        uuid.New(),
		ChatID:    chatID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO messages (message_id, chat_id, sender_id, content, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		m.ID, chatID, senderID, content, m.CreatedAt)
	if err != nil {
		return model.Message{}, fmt.Errorf("store: failed to create message: %w", err)
	}

	sender, err := s.GetUserByID(ctx, senderID)
	if err != nil {
		return model.Message{}, err
	}
	m.Sender = sender
	return m, nil
}

// ListMessages returns a chat's messages in creation order.
func (s *Store) ListMessages(ctx context.Context, chatID uuid.UUID, limit int) ([]model.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT m.message_id, m.chat_id, m.content, m.created_at,
		       u.user_id, u.username, u.email, u.created_at
		FROM messages m
		JOIN users u ON u.user_id = m.sender_id
		WHERE m.chat_id = $1
		ORDER BY m.created_at
		LIMIT $2`,
		chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []model.Message
	for rows.Next() {
		var m model.Message
		err := rows.Scan(&m.ID, &m.ChatID, &m.Content, &m.CreatedAt,
			&m.Sender.ID, &m.Sender.Username, &m.Sender.Email, &m.Sender.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("store: failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// CreateRefreshToken stores a refresh token for a user.
func (s *Store) CreateRefreshToken(ctx context.Context, token string, userID uuid.UUID, expiresAt time.Time) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO refresh_tokens (token, user_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4)`,
		token, userID, time.Now().UTC(), expiresAt)
	if err != nil {
		return fmt.Errorf("store: failed to create refresh token: %w", err)
	}
	return nil
}

// GetUserFromRefreshToken resolves an unexpired, unrevoked token to its
// user id.
func (s *Store) GetUserFromRefreshToken(ctx context.Context, token string) (uuid.UUID, error) {
	var userID uuid.UUID
	err := s.db.QueryRow(ctx, `
		SELECT user_id FROM refresh_tokens
		WHERE token = $1 AND revoked_at IS NULL AND expires_at > NOW()`,
		token).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, ErrNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("store: failed to look up refresh token: %w", err)
	}
	return userID, nil
}

func (s *Store) RevokeRefreshToken(ctx context.Context, token string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE refresh_tokens SET revoked_at = NOW() WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("store: failed to revoke refresh token: %w", err)
	}
	return nil
}
