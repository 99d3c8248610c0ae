package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/SugrSertraline/neu-ink-sub000/internal/config"
	"github.com/SugrSertraline/neu-ink-sub000/internal/structuring"
)

// GeminiGenerator implements the structuring.TextGenerator interface using
// Google's Gemini API.
type GeminiGenerator struct {
	// logger is used for structured logging
	logger *slog.Logger

	// config contains LLM-specific configuration
	config config.LLMConfig

	// client is the Gemini API client for making requests
	client *genai.Client

	// model is the name of the Gemini model to use
	model string
}

// Verify GeminiGenerator implements structuring.TextGenerator
var _ structuring.TextGenerator = (*GeminiGenerator)(nil)

// NewGeminiGenerator creates a new instance of GeminiGenerator with the
// provided dependencies. The context is only used to initialize the client.
func NewGeminiGenerator(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*GeminiGenerator, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", structuring.ErrInvalidConfig)
	}

	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", structuring.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v",
			structuring.ErrInvalidConfig, err)
	}

	return &GeminiGenerator{
		logger: logger.With(slog.String("component", "gemini_generator")),
		config: cfg,
		client: client,
		model:  cfg.ModelName,
	}, nil
}

// GenerateText sends the prompt to the Gemini API and returns the reply
// text. The call is made exactly once; transport failures map to
// ErrGenerationUnavailable, safety blocks to ErrContentBlocked, and missing
// candidate text to ErrEmptyReply.
func (g *GeminiGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	if prompt == "" {
		return "", ErrEmptyPrompt
	}

	if timeout := g.config.RequestTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	genConfig := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(g.config.Temperature)),
		MaxOutputTokens:  int32(g.config.MaxOutputTokens),
		ResponseMIMEType: "application/json",
	}

	g.logger.DebugContext(ctx, "Making Gemini API call",
		"model", g.model,
		"prompt_length", len(prompt))

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), genConfig)
	if err != nil {
		g.logger.ErrorContext(ctx, "Gemini API call error", "error", err)
		return "", fmt.Errorf("%w: %v", structuring.ErrGenerationUnavailable, err)
	}

	text, err := extractReplyText(resp)
	if err != nil {
		g.logger.WarnContext(ctx, "Gemini reply unusable", "error", err)
		return "", err
	}

	g.logger.DebugContext(ctx, "Gemini API call successful",
		"reply_length", len(text))
	return text, nil
}

// extractReplyText pulls the concatenated text out of a response, mapping
// blocked and empty replies to the structuring error taxonomy.
func extractReplyText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("%w: nil response", structuring.ErrEmptyReply)
	}

	if fb := resp.PromptFeedback; fb != nil &&
		fb.BlockReason != "" && fb.BlockReason != genai.BlockedReasonUnspecified {
		return "", fmt.Errorf("%w: prompt blocked (%s)",
			structuring.ErrContentBlocked, fb.BlockReason)
	}

	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no candidates in response", structuring.ErrEmptyReply)
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", fmt.Errorf("%w: candidate stopped by safety filters",
			structuring.ErrContentBlocked)
	}
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("%w: empty candidate content", structuring.ErrEmptyReply)
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("%w: candidate contains no text parts", structuring.ErrEmptyReply)
	}

	return sb.String(), nil
}
