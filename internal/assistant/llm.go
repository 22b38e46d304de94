package assistant

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// llmClient wraps the OpenAI chat completion API.
type llmClient struct {
	client openai.Client
	model  openai.ChatModel
	logger *slog.Logger
}

func newLLMClient(apiKey string, logger *slog.Logger) *llmClient {
	return &llmClient{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  openai.ChatModelGPT4o,
		logger: logger,
	}
}

// complete sends one chat completion request and returns the first choice.
func (c *llmClient) complete(
	ctx context.Context,
	messages []openai.ChatCompletionMessageParamUnion,
	tools []openai.ChatCompletionToolUnionParam,
) (openai.ChatCompletionMessage, error) {
	params := openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: messages,
		Tools:    tools,
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return openai.ChatCompletionMessage{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return openai.ChatCompletionMessage{}, fmt.Errorf("chat completion returned no choices")
	}

	c.logger.LogAttrs(ctx, slog.LevelDebug, "received chat completion",
		slog.Int64("prompt_tokens", completion.Usage.PromptTokens),
		slog.Int64("completion_tokens", completion.Usage.CompletionTokens),
		slog.Int("tool_calls", len(completion.Choices[0].Message.ToolCalls)))

	return completion.Choices[0].Message, nil
}
