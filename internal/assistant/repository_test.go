package assistant

import (
	"context"
	"errors"
	"testing"

	"github.com/mlahtinen/formcoach/internal/contexthelpers"
	"github.com/mlahtinen/formcoach/internal/ptr"
	"github.com/mlahtinen/formcoach/internal/sqlite"
	"github.com/mlahtinen/formcoach/internal/testhelpers"
)

// newTestRepository opens an in-memory database with two users so data
// isolation between them can be asserted.
func newTestRepository(t *testing.T) (*repository, context.Context, context.Context) {
	t.Helper()
	ctx := t.Context()
	logger := testhelpers.NewLogger(testhelpers.NewWriter(t))
	db, err := sqlite.NewDatabase(ctx, ":memory:", logger)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("close database: %v", err)
		}
	})
	if _, err = db.ReadWrite.ExecContext(ctx, "INSERT INTO users (id) VALUES (2), (3)"); err != nil {
		t.Fatalf("insert test users: %v", err)
	}
	owner := context.WithValue(ctx, contexthelpers.AuthenticatedUserIDContextKey, 2)
	other := context.WithValue(ctx, contexthelpers.AuthenticatedUserIDContextKey, 3)
	return newRepositoryFactory(db, logger).newRepository(), owner, other
}

func TestConversationRepository(t *testing.T) {
	t.Parallel()
	repo, owner, other := newTestRepository(t)

	conv, err := repo.conversations.Create(owner, Conversation{Title: ptr.Ref("How tired am I?")})
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	if conv.ID == 0 {
		t.Error("expected non-zero conversation ID")
	}
	if conv.UserID != 2 {
		t.Errorf("UserID = %d, want 2", conv.UserID)
	}
	if conv.Title == nil || *conv.Title != "How tired am I?" {
		t.Errorf("Title = %v, want How tired am I?", conv.Title)
	}
	if conv.CreatedAt.IsZero() || conv.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set")
	}

	t.Run("get returns own conversation", func(t *testing.T) {
		got, err := repo.conversations.Get(owner, conv.ID)
		if err != nil {
			t.Fatalf("get conversation: %v", err)
		}
		if got.ID != conv.ID {
			t.Errorf("ID = %d, want %d", got.ID, conv.ID)
		}
	})

	t.Run("get hides other user's conversation", func(t *testing.T) {
		if _, err := repo.conversations.Get(other, conv.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("list is scoped to the user", func(t *testing.T) {
		owned, err := repo.conversations.List(owner)
		if err != nil {
			t.Fatalf("list conversations: %v", err)
		}
		if len(owned) != 1 {
			t.Errorf("expected 1 conversation for owner, got %d", len(owned))
		}
		foreign, err := repo.conversations.List(other)
		if err != nil {
			t.Fatalf("list conversations: %v", err)
		}
		if len(foreign) != 0 {
			t.Errorf("expected no conversations for other user, got %d", len(foreign))
		}
	})

	t.Run("touch rejects other user's conversation", func(t *testing.T) {
		if err := repo.conversations.Touch(other, conv.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if err := repo.conversations.Touch(owner, conv.ID); err != nil {
			t.Errorf("touch own conversation: %v", err)
		}
	})

	t.Run("requires authentication", func(t *testing.T) {
		if _, err := repo.conversations.Create(t.Context(), Conversation{}); err == nil {
			t.Error("expected error without authenticated user")
		}
	})
}

func TestMessageRepository(t *testing.T) {
	t.Parallel()
	repo, owner, other := newTestRepository(t)

	conv, err := repo.conversations.Create(owner, Conversation{Title: ptr.Ref("Plan check")})
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}

	first, err := repo.messages.Create(owner, ChatMessage{
		ConversationID: conv.ID,
		Role:           RoleUser,
		Content:        "Should I train hard today?",
	})
	if err != nil {
		t.Fatalf("create message: %v", err)
	}
	if first.Role != RoleUser || first.ToolName != nil {
		t.Errorf("unexpected message %+v", first)
	}

	toolName := "get_readiness"
	if _, err = repo.messages.Create(owner, ChatMessage{
		ConversationID: conv.ID,
		Role:           RoleTool,
		Content:        `{"found": true}`,
		ToolName:       &toolName,
	}); err != nil {
		t.Fatalf("create tool message: %v", err)
	}

	t.Run("lists messages in order", func(t *testing.T) {
		messages, err := repo.messages.ListByConversation(owner, conv.ID)
		if err != nil {
			t.Fatalf("list messages: %v", err)
		}
		if len(messages) != 2 {
			t.Fatalf("expected 2 messages, got %d", len(messages))
		}
		if messages[0].ID != first.ID {
			t.Errorf("first message ID = %d, want %d", messages[0].ID, first.ID)
		}
		if messages[1].Role != RoleTool {
			t.Errorf("second message role = %s, want tool", messages[1].Role)
		}
		if messages[1].ToolName == nil || *messages[1].ToolName != toolName {
			t.Errorf("second message tool name = %v, want %s", messages[1].ToolName, toolName)
		}
	})

	t.Run("rejects writing into a foreign conversation", func(t *testing.T) {
		_, err := repo.messages.Create(other, ChatMessage{
			ConversationID: conv.ID,
			Role:           RoleUser,
			Content:        "sneaky",
		})
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("hides foreign conversation's messages", func(t *testing.T) {
		messages, err := repo.messages.ListByConversation(other, conv.ID)
		if err != nil {
			t.Fatalf("list messages: %v", err)
		}
		if len(messages) != 0 {
			t.Errorf("expected no messages for other user, got %d", len(messages))
		}
	})
}
