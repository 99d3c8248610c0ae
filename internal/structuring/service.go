package structuring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"text/template"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/SugrSertraline/neu-ink-sub000/internal/domain"
	"github.com/SugrSertraline/neu-ink-sub000/internal/platform/logger"
)

// DefaultMaxInputChars bounds the source text sent to the model when the
// configuration does not say otherwise.
const DefaultMaxInputChars = 12000

// FailureSink persists raw model output when a reply cannot be parsed.
// Implemented by store.StructuringFailureStore.
type FailureSink interface {
	Record(ctx context.Context, sessionID uuid.UUID, rawResponse, reason string) error
}

// Service runs the structuring pipeline: truncate, prompt, call the model,
// strip wrapping, parse, repair. One Service is shared by all ingestion
// tasks; it holds no per-call state.
type Service struct {
	generator     TextGenerator
	sink          FailureSink
	schema        *jsonschema.Schema
	promptTmpl    *template.Template
	maxInputChars int
	logger        *slog.Logger
}

// NewService creates a structuring service. The sink may be nil, which
// disables failure persistence (useful in tests); everything else is
// required. maxInputChars falls back to DefaultMaxInputChars when zero or
// negative.
func NewService(
	generator TextGenerator,
	sink FailureSink,
	maxInputChars int,
	log *slog.Logger,
) (*Service, error) {
	if generator == nil {
		return nil, errors.New("text generator cannot be nil")
	}
	if maxInputChars <= 0 {
		maxInputChars = DefaultMaxInputChars
	}
	if log == nil {
		log = slog.Default()
	}

	schema, err := jsonschema.CompileString("block-element.schema.json", blockElementSchema)
	if err != nil {
		return nil, fmt.Errorf("failed to compile block element schema: %w", err)
	}

	tmpl, err := template.New("structuring").Parse(promptTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse prompt template: %w", err)
	}

	return &Service{
		generator:     generator,
		sink:          sink,
		schema:        schema,
		promptTmpl:    tmpl,
		maxInputChars: maxInputChars,
		logger:        log.With(slog.String("component", "structuring_service")),
	}, nil
}

// Structure converts source text into a list of content blocks. The session
// ID keys failure-sink rows when the model reply cannot be parsed. An empty
// result list is a success: the model judged nothing block-worthy.
//
// A reply that is not a JSON array fails the whole attempt with
// ErrMalformedOutput and is never retried. Unusable elements inside a
// well-formed array are dropped and logged instead.
func (s *Service) Structure(ctx context.Context, sessionID uuid.UUID, text, hint string) (domain.BlockList, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if text == "" {
		return nil, errors.New("source text cannot be empty")
	}

	truncated := truncateToChars(text, s.maxInputChars)
	if len(truncated) < len(text) {
		log.Warn("source text truncated before structuring",
			slog.String("session_id", sessionID.String()),
			slog.Int("limit_chars", s.maxInputChars),
			slog.Int("original_chars", utf8.RuneCountInString(text)))
	}

	prompt, err := s.buildPrompt(truncated, hint)
	if err != nil {
		return nil, fmt.Errorf("failed to build structuring prompt: %w", err)
	}

	log.Debug("requesting block structuring",
		slog.String("session_id", sessionID.String()),
		slog.Int("prompt_length", len(prompt)))

	reply, err := s.generator.GenerateText(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("text generation failed: %w", err)
	}

	arrayText, ok := ExtractJSONArray(reply)
	if !ok {
		s.recordFailure(ctx, sessionID, reply, "no JSON array in model reply")
		return nil, fmt.Errorf("%w: no JSON array in model reply", ErrMalformedOutput)
	}

	var elements []json.RawMessage
	if err := json.Unmarshal([]byte(arrayText), &elements); err != nil {
		s.recordFailure(ctx, sessionID, reply, fmt.Sprintf("array parse failed: %v", err))
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}

	blocks, stats := s.repairElements(ctx, elements)

	if stats.dropped > 0 {
		log.Warn("dropped unusable elements during repair",
			slog.String("session_id", sessionID.String()),
			slog.Int("dropped", stats.dropped),
			slog.Int("kept", len(blocks)))
	}
	log.Debug("structuring finished",
		slog.String("session_id", sessionID.String()),
		slog.Int("blocks", len(blocks)),
		slog.Int("assigned_ids", stats.assigned),
		slog.Int("mirrored_fields", stats.mirrored),
		slog.Int("normalized_values", stats.normalized))

	return blocks, nil
}

// buildPrompt renders the instruction template for one call.
func (s *Service) buildPrompt(text, hint string) (string, error) {
	var buf bytes.Buffer
	err := s.promptTmpl.Execute(&buf, promptData{
		Schema:       blockElementSchema,
		SectionTitle: hint,
		SourceText:   text,
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// recordFailure writes the verbatim model reply to the side channel.
// Best-effort: sink errors are logged and never mask the structuring error.
func (s *Service) recordFailure(ctx context.Context, sessionID uuid.UUID, raw, reason string) {
	if s.sink == nil {
		return
	}
	if err := s.sink.Record(ctx, sessionID, raw, reason); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to record structuring failure",
			slog.String("error", err.Error()),
			slog.String("session_id", sessionID.String()))
	}
}

// truncateToChars cuts s to at most limit runes, preserving UTF-8 boundaries.
func truncateToChars(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := 0
	for i := range s {
		if runes == limit {
			return s[:i]
		}
		runes++
	}
	return s
}
