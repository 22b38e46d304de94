// Package assistant implements the coaching chat: conversations persisted per
// user and answered by an LLM that can call training and readiness tools.
package assistant

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/yuin/goldmark"

	"github.com/mlahtinen/formcoach/internal/contexthelpers"
	"github.com/mlahtinen/formcoach/internal/errors"
	"github.com/mlahtinen/formcoach/internal/readiness"
	"github.com/mlahtinen/formcoach/internal/sqlite"
	"github.com/mlahtinen/formcoach/internal/training"
)

const (
	// maxToolRounds bounds the dispatch loop so a misbehaving model cannot
	// call tools forever.
	maxToolRounds = 5
	// maxHistoryMessages bounds how much of the conversation is replayed.
	maxHistoryMessages = 20
	// titleMaxLen truncates the first message into the conversation title.
	titleMaxLen = 60
)

// conversationTitle derives a title from the opening message, truncated to
// titleMaxLen runes so a multi-byte character is never split.
func conversationTitle(content string) string {
	runes := []rune(content)
	if len(runes) <= titleMaxLen {
		return content
	}
	return string(runes[:titleMaxLen])
}

// ErrUnauthenticated is returned when no authenticated user is in the context.
var ErrUnauthenticated = errors.NewSentinel("no authenticated user in context")

// Service handles the business logic for assistant conversations.
type Service struct {
	repo     *repository
	llm      *llmClient
	tools    *toolset
	markdown goldmark.Markdown
	logger   *slog.Logger
}

// NewService creates a new assistant service.
func NewService(
	db *sqlite.Database,
	logger *slog.Logger,
	openaiAPIKey string,
	trainingService *training.Service,
	readinessService *readiness.Service,
) *Service {
	factory := newRepositoryFactory(db, logger)
	return &Service{
		repo: factory.newRepository(),
		llm:  newLLMClient(openaiAPIKey, logger),
		tools: &toolset{
			query:     newSecureQueryTool(db.ReadOnly, logger),
			training:  trainingService,
			readiness: readinessService,
			logger:    logger,
		},
		markdown: goldmark.New(),
		logger:   logger,
	}
}

// Conversations retrieves the user's conversations, most recent first.
func (s *Service) Conversations(ctx context.Context) ([]Conversation, error) {
	conversations, err := s.repo.conversations.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return conversations, nil
}

// Messages retrieves the messages of one conversation.
func (s *Service) Messages(ctx context.Context, conversationID int) ([]ChatMessage, error) {
	if _, err := s.repo.conversations.Get(ctx, conversationID); err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	messages, err := s.repo.messages.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return messages, nil
}

// Ask stores the user's message, runs the model with its tools until it
// produces a final answer, and stores and returns that answer. A zero
// conversationID starts a new conversation titled after the message.
func (s *Service) Ask(ctx context.Context, conversationID int, content string) (Reply, error) {
	userID := contexthelpers.AuthenticatedUserID(ctx)
	if userID == 0 {
		return Reply{}, ErrUnauthenticated
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return Reply{}, errors.New("message content is required")
	}

	if conversationID == 0 {
		title := conversationTitle(content)
		conv, err := s.repo.conversations.Create(ctx, Conversation{Title: &title})
		if err != nil {
			return Reply{}, fmt.Errorf("create conversation: %w", err)
		}
		conversationID = conv.ID
	} else if _, err := s.repo.conversations.Get(ctx, conversationID); err != nil {
		return Reply{}, fmt.Errorf("get conversation: %w", err)
	}

	if _, err := s.repo.messages.Create(ctx, ChatMessage{
		ConversationID: conversationID,
		Role:           RoleUser,
		Content:        content,
	}); err != nil {
		return Reply{}, fmt.Errorf("save user message: %w", err)
	}

	messages, err := s.buildPrompt(ctx, userID, conversationID)
	if err != nil {
		return Reply{}, fmt.Errorf("build prompt: %w", err)
	}

	answer, toolsUsed, err := s.converse(ctx, conversationID, messages)
	if err != nil {
		return Reply{}, fmt.Errorf("converse: %w", err)
	}

	saved, err := s.repo.messages.Create(ctx, ChatMessage{
		ConversationID: conversationID,
		Role:           RoleAssistant,
		Content:        answer,
	})
	if err != nil {
		return Reply{}, fmt.Errorf("save assistant message: %w", err)
	}
	if err = s.repo.conversations.Touch(ctx, conversationID); err != nil {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "touch conversation",
			slog.Int("conversation_id", conversationID), slog.Any("error", err))
	}

	html, err := s.render(answer)
	if err != nil {
		return Reply{}, fmt.Errorf("render answer: %w", err)
	}
	return Reply{
		ConversationID: conversationID,
		Message:        saved,
		HTML:           html,
		ToolsUsed:      toolsUsed,
	}, nil
}

// buildPrompt replays the recent conversation on top of the system prompt.
// Stored tool results are audit records and are not replayed.
func (s *Service) buildPrompt(
	ctx context.Context,
	userID int,
	conversationID int,
) ([]openai.ChatCompletionMessageParamUnion, error) {
	history, err := s.repo.messages.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	if len(history) > maxHistoryMessages {
		history = history[len(history)-maxHistoryMessages:]
	}

	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt(userID)),
	}
	for _, msg := range history {
		switch msg.Role {
		case RoleUser:
			messages = append(messages, openai.UserMessage(msg.Content))
		case RoleAssistant:
			messages = append(messages, openai.AssistantMessage(msg.Content))
		case RoleTool:
		}
	}
	return messages, nil
}

// converse runs the bounded tool dispatch loop until the model answers in
// text. Tool errors are surfaced back to the model instead of failing the
// request so it can rephrase or recover.
func (s *Service) converse(
	ctx context.Context,
	conversationID int,
	messages []openai.ChatCompletionMessageParamUnion,
) (string, []string, error) {
	definitions := s.tools.definitions()
	var toolsUsed []string

	for round := 0; round < maxToolRounds; round++ {
		message, err := s.llm.complete(ctx, messages, definitions)
		if err != nil {
			return "", nil, fmt.Errorf("complete: %w", err)
		}
		if len(message.ToolCalls) == 0 {
			return message.Content, toolsUsed, nil
		}

		messages = append(messages, message.ToParam())
		for _, call := range message.ToolCalls {
			name := call.Function.Name
			result, dispatchErr := s.tools.dispatch(ctx, name, call.Function.Arguments)
			if dispatchErr != nil {
				s.logger.LogAttrs(ctx, slog.LevelWarn, "assistant tool failed",
					slog.String("tool", name), slog.Any("error", dispatchErr))
				result = fmt.Sprintf(`{"error": %q}`, dispatchErr.Error())
			}
			toolsUsed = append(toolsUsed, name)

			if _, err = s.repo.messages.Create(ctx, ChatMessage{
				ConversationID: conversationID,
				Role:           RoleTool,
				Content:        result,
				ToolName:       &name,
			}); err != nil {
				return "", nil, fmt.Errorf("save tool message: %w", err)
			}
			messages = append(messages, openai.ToolMessage(result, call.ID))
		}
	}

	// Out of rounds: force a final answer without tools.
	message, err := s.llm.complete(ctx, messages, nil)
	if err != nil {
		return "", nil, fmt.Errorf("final completion: %w", err)
	}
	return message.Content, toolsUsed, nil
}

// render converts the model's markdown answer to HTML. Raw HTML in the
// markdown is dropped by the renderer.
func (s *Service) render(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}
	return buf.String(), nil
}

// systemPrompt frames the assistant and pins every query to the current user.
func systemPrompt(userID int) string {
	return fmt.Sprintf(`You are a training readiness coach for an endurance and strength athlete.
You have tools to inspect the athlete's training loads, readiness assessments, baselines and
day-of intensity recommendations. The current user's id is %d: every SQL query you run MUST
filter on user_id = %d. Check the actual data before answering questions about it, quote
concrete numbers and dates, and explain what metrics like CTL, ATL, TSB, monotony and ACWR
mean in plain language when you use them. Be encouraging but honest about fatigue and risk.`,
		userID, userID)
}
