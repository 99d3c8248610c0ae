package structuring

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SugrSertraline/neu-ink-sub000/internal/domain"
	"github.com/SugrSertraline/neu-ink-sub000/internal/platform/logger"
)

// stubGenerator returns a canned reply and records every prompt it sees.
type stubGenerator struct {
	reply   string
	err     error
	calls   int
	prompts []string
}

func (g *stubGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	g.calls++
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

// stubSink records failure rows and optionally fails.
type stubSink struct {
	err      error
	sessions []uuid.UUID
	raws     []string
	reasons  []string
}

func (s *stubSink) Record(ctx context.Context, sessionID uuid.UUID, raw, reason string) error {
	s.sessions = append(s.sessions, sessionID)
	s.raws = append(s.raws, raw)
	s.reasons = append(s.reasons, reason)
	return s.err
}

func newTestService(t *testing.T, gen TextGenerator, sink FailureSink, maxChars int) *Service {
	t.Helper()
	log, _ := logger.GetTestLogger(t)
	svc, err := NewService(gen, sink, maxChars, log)
	require.NoError(t, err)
	return svc
}

func TestNewService(t *testing.T) {
	t.Parallel()

	t.Run("nil_generator_rejected", func(t *testing.T) {
		t.Parallel()
		_, err := NewService(nil, &stubSink{}, 0, nil)
		assert.Error(t, err)
	})

	t.Run("nil_sink_allowed", func(t *testing.T) {
		t.Parallel()
		svc, err := NewService(&stubGenerator{}, nil, 0, nil)
		require.NoError(t, err)
		assert.Equal(t, DefaultMaxInputChars, svc.maxInputChars)
	})
}

func TestStructureHappyPath(t *testing.T) {
	t.Parallel()

	reply := "Sure, here are the blocks:\n```json\n" + `[
	  {"type": "heading", "level": 2, "content": {"en": [{"kind": "text", "text": "Overview"}], "zh": []}},
	  {"type": "paragraph", "content": {"zh": [{"kind": "text", "text": "黎曼猜想仍未解决。"}]}},
	  {"type": "math", "tex": "\\zeta(s) = \\sum_{n=1}^{\\infty} n^{-s} \\tag{1}"}
	]` + "\n```"

	gen := &stubGenerator{reply: reply}
	sink := &stubSink{}
	svc := newTestService(t, gen, sink, 0)

	blocks, err := svc.Structure(context.Background(), uuid.New(), "The Riemann hypothesis...", "Background")
	require.NoError(t, err)
	require.Len(t, blocks, 3)

	heading, ok := blocks[0].(*domain.HeadingBlock)
	require.True(t, ok)
	assert.Equal(t, 2, heading.Level)
	assert.NotEmpty(t, heading.BlockID())
	assert.False(t, heading.CreatedAt.IsZero())
	assert.Equal(t, heading.Content.EN, heading.Content.ZH, "populated side should be mirrored")

	para, ok := blocks[1].(*domain.ParagraphBlock)
	require.True(t, ok)
	assert.Equal(t, para.Content.ZH, para.Content.EN)

	math, ok := blocks[2].(*domain.MathBlock)
	require.True(t, ok)
	assert.Equal(t, `\zeta(s) = \sum_{n=1}^{\infty} n^{-s}`, math.TeX)

	assert.Empty(t, sink.raws, "side channel must stay untouched on success")
	assert.Equal(t, 1, gen.calls)
}

func TestStructurePromptCarriesSchemaAndHint(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{reply: "[]"}
	svc := newTestService(t, gen, nil, 0)

	_, err := svc.Structure(context.Background(), uuid.New(), "some text", "Kinetics")
	require.NoError(t, err)

	require.Len(t, gen.prompts, 1)
	prompt := gen.prompts[0]
	assert.Contains(t, prompt, `"type"`)
	assert.Contains(t, prompt, "ordered-list")
	assert.Contains(t, prompt, "Kinetics")
	assert.Contains(t, prompt, "some text")
	assert.NotContains(t, prompt, "placeholder", "prompt must not invite placeholder elements")
}

func TestStructureMalformedReply(t *testing.T) {
	t.Parallel()

	sessionID := uuid.New()
	gen := &stubGenerator{reply: "I could not convert this text, sorry."}
	sink := &stubSink{}
	svc := newTestService(t, gen, sink, 0)

	blocks, err := svc.Structure(context.Background(), sessionID, "text", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedOutput)
	assert.Nil(t, blocks)

	require.Len(t, sink.raws, 1, "raw reply must reach the side channel")
	assert.Equal(t, gen.reply, sink.raws[0], "side channel stores the reply verbatim")
	assert.Equal(t, sessionID, sink.sessions[0])
	assert.Equal(t, 1, gen.calls, "a malformed reply is never retried")
}

func TestStructureUnparseableArray(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{reply: `[{"type": "paragraph",]`}
	sink := &stubSink{}
	svc := newTestService(t, gen, sink, 0)

	_, err := svc.Structure(context.Background(), uuid.New(), "text", "")
	assert.ErrorIs(t, err, ErrMalformedOutput)
	require.Len(t, sink.raws, 1)
	assert.Contains(t, sink.reasons[0], "parse failed")
}

func TestStructureSinkFailureDoesNotMaskError(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{reply: "no array here"}
	sink := &stubSink{err: errors.New("insert failed")}
	svc := newTestService(t, gen, sink, 0)

	_, err := svc.Structure(context.Background(), uuid.New(), "text", "")
	assert.ErrorIs(t, err, ErrMalformedOutput)
	assert.NotContains(t, err.Error(), "insert failed")
}

func TestStructureEmptyArrayIsSuccess(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{reply: "```json\n[]\n```"}
	sink := &stubSink{}
	svc := newTestService(t, gen, sink, 0)

	blocks, err := svc.Structure(context.Background(), uuid.New(), "nothing usable", "")
	require.NoError(t, err)
	assert.NotNil(t, blocks)
	assert.Empty(t, blocks)
	assert.Empty(t, sink.raws)
}

func TestStructureDropsUnusableElements(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{reply: `[
		{"note": "no type field"},
		{"type": "hologram"},
		{"type": "placeholder", "session_id": "` + uuid.NewString() + `", "stage": "structuring"},
		42,
		{"type": "paragraph", "content": {"en": [{"kind": "text", "text": "kept"}]}}
	]`}
	svc := newTestService(t, gen, nil, 0)

	blocks, err := svc.Structure(context.Background(), uuid.New(), "text", "")
	require.NoError(t, err, "unusable elements are dropped, never fatal")
	require.Len(t, blocks, 1)
	assert.Equal(t, domain.BlockKindParagraph, blocks[0].Kind())
}

func TestStructureGeneratorErrorPassesThrough(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{err: ErrGenerationUnavailable}
	sink := &stubSink{}
	svc := newTestService(t, gen, sink, 0)

	_, err := svc.Structure(context.Background(), uuid.New(), "text", "")
	assert.ErrorIs(t, err, ErrGenerationUnavailable)
	assert.Empty(t, sink.raws, "generator failures are not structuring failures")
	assert.Equal(t, 1, gen.calls)
}

func TestStructureTruncatesLongInput(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{reply: "[]"}
	log, buf := logger.GetTestLogger(t)
	svc, err := NewService(gen, nil, 10, log)
	require.NoError(t, err)

	text := strings.Repeat("汉", 15)
	_, err = svc.Structure(context.Background(), uuid.New(), text, "")
	require.NoError(t, err)

	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], strings.Repeat("汉", 10))
	assert.NotContains(t, gen.prompts[0], strings.Repeat("汉", 11))
	assert.Contains(t, buf.String(), "truncated")
}

func TestStructureRejectsEmptyText(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{reply: "[]"}
	svc := newTestService(t, gen, nil, 0)

	_, err := svc.Structure(context.Background(), uuid.New(), "", "")
	assert.Error(t, err)
	assert.Zero(t, gen.calls)
}

func TestStructurePreservesModelAssignedIDs(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{reply: `[
		{"type": "divider", "id": "keep-me"},
		{"type": "divider"}
	]`}
	svc := newTestService(t, gen, nil, 0)

	blocks, err := svc.Structure(context.Background(), uuid.New(), "text", "")
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	assert.Equal(t, "keep-me", blocks[0].BlockID())
	assert.NotEmpty(t, blocks[1].BlockID())
	assert.NotEqual(t, blocks[0].BlockID(), blocks[1].BlockID())
}
