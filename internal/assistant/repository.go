package assistant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mlahtinen/formcoach/internal/contexthelpers"
	"github.com/mlahtinen/formcoach/internal/sqlite"
)

// ErrNotFound is returned when a requested entity is not found.
var ErrNotFound = errors.New("not found")

// repository contains the repositories for the assistant domain aggregates.
type repository struct {
	conversations conversationRepository
	messages      messageRepository
}

// conversationRepository handles conversation persistence.
type conversationRepository interface {
	Create(ctx context.Context, conv Conversation) (Conversation, error)
	Get(ctx context.Context, id int) (Conversation, error)
	List(ctx context.Context) ([]Conversation, error)
	Touch(ctx context.Context, id int) error
}

// messageRepository handles chat message persistence.
type messageRepository interface {
	Create(ctx context.Context, msg ChatMessage) (ChatMessage, error)
	ListByConversation(ctx context.Context, conversationID int) ([]ChatMessage, error)
}

// repositoryFactory creates repository instances.
type repositoryFactory struct {
	db     *sqlite.Database
	logger *slog.Logger
}

func newRepositoryFactory(db *sqlite.Database, logger *slog.Logger) *repositoryFactory {
	return &repositoryFactory{
		db:     db,
		logger: logger,
	}
}

// newRepository creates a new repository aggregate.
func (f *repositoryFactory) newRepository() *repository {
	return &repository{
		conversations: &conversationRepositoryImpl{db: f.db, logger: f.logger},
		messages:      &messageRepositoryImpl{db: f.db, logger: f.logger},
	}
}

type conversationRepositoryImpl struct {
	db     *sqlite.Database
	logger *slog.Logger
}

type messageRepositoryImpl struct {
	db     *sqlite.Database
	logger *slog.Logger
}

// Create creates a new conversation for the authenticated user.
func (r *conversationRepositoryImpl) Create(ctx context.Context, conv Conversation) (Conversation, error) {
	userID := contexthelpers.AuthenticatedUserID(ctx)
	if userID == 0 {
		return Conversation{}, errors.New("user not authenticated")
	}

	var result Conversation
	err := r.db.ReadWrite.QueryRowContext(ctx, `
		INSERT INTO conversations (user_id, title)
		VALUES (?, ?)
		RETURNING id, user_id, title, created_at, updated_at`,
		userID, conv.Title).Scan(
		&result.ID,
		&result.UserID,
		&result.Title,
		&result.CreatedAt,
		&result.UpdatedAt,
	)
	if err != nil {
		return Conversation{}, fmt.Errorf("create conversation: %w", err)
	}
	return result, nil
}

func (r *conversationRepositoryImpl) Get(ctx context.Context, id int) (Conversation, error) {
	userID := contexthelpers.AuthenticatedUserID(ctx)
	if userID == 0 {
		return Conversation{}, errors.New("user not authenticated")
	}

	var result Conversation
	err := r.db.ReadOnly.QueryRowContext(ctx, `
		SELECT id, user_id, title, created_at, updated_at
		FROM conversations
		WHERE id = ? AND user_id = ?`,
		id, userID).Scan(
		&result.ID,
		&result.UserID,
		&result.Title,
		&result.CreatedAt,
		&result.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Conversation{}, ErrNotFound
	}
	if err != nil {
		return Conversation{}, fmt.Errorf("get conversation: %w", err)
	}
	return result, nil
}

func (r *conversationRepositoryImpl) List(ctx context.Context) ([]Conversation, error) {
	userID := contexthelpers.AuthenticatedUserID(ctx)
	if userID == 0 {
		return nil, errors.New("user not authenticated")
	}

	rows, err := r.db.ReadOnly.QueryContext(ctx, `
		SELECT id, user_id, title, created_at, updated_at
		FROM conversations
		WHERE user_id = ?
		ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var conversations []Conversation
	for rows.Next() {
		var conv Conversation
		if err = rows.Scan(
			&conv.ID,
			&conv.UserID,
			&conv.Title,
			&conv.CreatedAt,
			&conv.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		conversations = append(conversations, conv)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}
	return conversations, nil
}

// Touch bumps the conversation's updated_at so it sorts to the top.
func (r *conversationRepositoryImpl) Touch(ctx context.Context, id int) error {
	userID := contexthelpers.AuthenticatedUserID(ctx)
	if userID == 0 {
		return errors.New("user not authenticated")
	}

	result, err := r.db.ReadWrite.ExecContext(ctx, `
		UPDATE conversations
		SET updated_at = STRFTIME('%Y-%m-%dT%H:%M:%fZ')
		WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *messageRepositoryImpl) Create(ctx context.Context, msg ChatMessage) (ChatMessage, error) {
	userID := contexthelpers.AuthenticatedUserID(ctx)
	if userID == 0 {
		return ChatMessage{}, errors.New("user not authenticated")
	}

	var result ChatMessage
	var role string
	err := r.db.ReadWrite.QueryRowContext(ctx, `
		INSERT INTO chat_messages (conversation_id, role, content, tool_name)
		SELECT ?, ?, ?, ?
		WHERE EXISTS (SELECT 1 FROM conversations WHERE id = ? AND user_id = ?)
		RETURNING id, conversation_id, role, content, tool_name, created_at`,
		msg.ConversationID, string(msg.Role), msg.Content, msg.ToolName,
		msg.ConversationID, userID).Scan(
		&result.ID,
		&result.ConversationID,
		&role,
		&result.Content,
		&result.ToolName,
		&result.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return ChatMessage{}, ErrNotFound
	}
	if err != nil {
		return ChatMessage{}, fmt.Errorf("create chat message: %w", err)
	}
	result.Role = Role(role)
	return result, nil
}

func (r *messageRepositoryImpl) ListByConversation(ctx context.Context, conversationID int) ([]ChatMessage, error) {
	userID := contexthelpers.AuthenticatedUserID(ctx)
	if userID == 0 {
		return nil, errors.New("user not authenticated")
	}

	rows, err := r.db.ReadOnly.QueryContext(ctx, `
		SELECT m.id, m.conversation_id, m.role, m.content, m.tool_name, m.created_at
		FROM chat_messages m
		JOIN conversations c ON c.id = m.conversation_id
		WHERE m.conversation_id = ? AND c.user_id = ?
		ORDER BY m.created_at, m.id`,
		conversationID, userID)
	if err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	defer rows.Close()

	var messages []ChatMessage
	for rows.Next() {
		var (
			msg  ChatMessage
			role string
		)
		if err = rows.Scan(
			&msg.ID,
			&msg.ConversationID,
			&role,
			&msg.Content,
			&msg.ToolName,
			&msg.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		msg.Role = Role(role)
		messages = append(messages, msg)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat messages: %w", err)
	}
	return messages, nil
}
