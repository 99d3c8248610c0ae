package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/SugrSertraline/neu-ink-sub000/internal/config"
	"github.com/SugrSertraline/neu-ink-sub000/internal/structuring"
)

// Finish reasons reported by the chat completions API that need special
// classification. The SDK exposes them as plain strings.
const (
	finishReasonContentFilter = "content_filter"
	finishReasonLength        = "length"
)

// OpenAIGenerator implements the structuring.TextGenerator interface using
// the OpenAI chat completions API.
type OpenAIGenerator struct {
	logger *slog.Logger
	config config.LLMConfig
	client openai.Client
}

// Ensure OpenAIGenerator implements structuring.TextGenerator.
var _ structuring.TextGenerator = (*OpenAIGenerator)(nil)

// NewOpenAIGenerator creates a new OpenAIGenerator with the provided
// configuration. Extra request options are appended after the defaults, so
// tests can redirect the client at a local server with option.WithBaseURL.
func NewOpenAIGenerator(logger *slog.Logger, cfg config.LLMConfig, opts ...option.RequestOption) (*OpenAIGenerator, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: OpenAI API key is required", structuring.ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: OpenAI model name is required", structuring.ErrInvalidConfig)
	}

	// Structuring calls are never retried; a failed call fails the session,
	// so the SDK's transport-level retries are disabled too.
	clientOpts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	clientOpts = append(clientOpts, opts...)

	return &OpenAIGenerator{
		logger: logger.With(slog.String("component", "openai_generator")),
		config: cfg,
		client: openai.NewClient(clientOpts...),
	}, nil
}

// GenerateText implements the structuring.TextGenerator interface. It sends
// the prompt as a single user message in JSON mode and returns the raw reply
// text for the structuring pipeline to parse.
func (g *OpenAIGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	if prompt == "" {
		return "", ErrEmptyPrompt
	}

	if timeout := g.config.RequestTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.config.ModelName),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature:         openai.Float(g.config.Temperature),
		MaxCompletionTokens: openai.Int(int64(g.config.MaxOutputTokens)),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		},
	}

	g.logger.DebugContext(ctx, "Making OpenAI API call",
		"model", g.config.ModelName,
		"prompt_length", len(prompt))

	completion, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			g.logger.ErrorContext(ctx, "OpenAI API call error",
				"status", apiErr.StatusCode,
				"message", apiErr.Message)
			return "", fmt.Errorf("%w: openai status %d: %s",
				structuring.ErrGenerationUnavailable, apiErr.StatusCode, apiErr.Message)
		}
		g.logger.ErrorContext(ctx, "OpenAI API call error", "error", err)
		return "", fmt.Errorf("%w: %v", structuring.ErrGenerationUnavailable, err)
	}

	text, err := extractChatReply(completion)
	if err != nil {
		g.logger.WarnContext(ctx, "OpenAI reply unusable", "error", err)
		return "", err
	}
	if completion.Choices[0].FinishReason == finishReasonLength {
		g.logger.WarnContext(ctx, "OpenAI reply truncated by token limit",
			"max_output_tokens", g.config.MaxOutputTokens)
	}

	g.logger.DebugContext(ctx, "OpenAI API call successful",
		"reply_length", len(text))
	return text, nil
}

// extractChatReply pulls the assistant message out of a completion, mapping
// refused, filtered, and empty replies to the structuring error taxonomy. A
// reply truncated by the token limit is returned as-is; the structuring
// pipeline treats the unparseable tail as malformed output and records it.
func extractChatReply(completion *openai.ChatCompletion) (string, error) {
	if completion == nil || len(completion.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in response", structuring.ErrEmptyReply)
	}

	choice := completion.Choices[0]
	if choice.FinishReason == finishReasonContentFilter {
		return "", fmt.Errorf("%w: reply stopped by content filter",
			structuring.ErrContentBlocked)
	}
	if refusal := strings.TrimSpace(choice.Message.Refusal); refusal != "" {
		return "", fmt.Errorf("%w: model refused: %s",
			structuring.ErrContentBlocked, refusal)
	}

	text := choice.Message.Content
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: empty message content", structuring.ErrEmptyReply)
	}
	return text, nil
}
