package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// BlockKind identifies one variant of the closed content block set.
type BlockKind string

// The complete set of block kinds a section may contain. The structuring
// repair step drops anything a model emits outside this set; the codec in
// block_json.go rejects unknown kinds when reading persisted sections.
const (
	BlockKindHeading       BlockKind = "heading"
	BlockKindParagraph     BlockKind = "paragraph"
	BlockKindMath          BlockKind = "math"
	BlockKindCode          BlockKind = "code"
	BlockKindTable         BlockKind = "table"
	BlockKindOrderedList   BlockKind = "ordered-list"
	BlockKindUnorderedList BlockKind = "unordered-list"
	BlockKindQuote         BlockKind = "quote"
	BlockKindFigure        BlockKind = "figure"
	BlockKindDivider       BlockKind = "divider"
	BlockKindPlaceholder   BlockKind = "placeholder"
)

// Common validation errors for blocks
var (
	ErrEmptyBlockID            = errors.New("block ID cannot be empty")
	ErrInvalidHeadingLevel     = errors.New("heading level must be between 1 and 6")
	ErrInvalidPlaceholderStage = errors.New("invalid placeholder stage")
	ErrEmptyPlaceholderSession = errors.New("placeholder session ID cannot be empty")
)

// Block is the closed interface over all section content variants. Every
// variant embeds BlockMeta for its stable id; splice operations address
// blocks exclusively by that id.
type Block interface {
	BlockID() string
	Kind() BlockKind
	isBlock()
}

// BlockMeta carries the fields shared by every block variant.
type BlockMeta struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// BlockID returns the block's stable id.
func (m BlockMeta) BlockID() string { return m.ID }

func (m BlockMeta) isBlock() {}

// NewBlockMeta returns a fresh meta with a generated id.
func NewBlockMeta() BlockMeta {
	return BlockMeta{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
	}
}

// HeadingBlock is a section heading at levels 1 through 6.
type HeadingBlock struct {
	BlockMeta
	Level   int             `json:"level"`
	Content BilingualInline `json:"content"`
}

func (*HeadingBlock) Kind() BlockKind { return BlockKindHeading }

// ParagraphBlock is a run of body text.
type ParagraphBlock struct {
	BlockMeta
	Content BilingualInline `json:"content"`
}

func (*ParagraphBlock) Kind() BlockKind { return BlockKindParagraph }

// MathBlock is display math. TeX is language-neutral source with
// equation-numbering macros stripped by the structuring repair step.
type MathBlock struct {
	BlockMeta
	TeX string `json:"tex"`
}

func (*MathBlock) Kind() BlockKind { return BlockKindMath }

// CodeBlock is a fenced code listing.
type CodeBlock struct {
	BlockMeta
	Language string `json:"language"`
	Code     string `json:"code"`
}

func (*CodeBlock) Kind() BlockKind { return BlockKindCode }

// TableBlock is a table with an optional header row and bilingual cells.
type TableBlock struct {
	BlockMeta
	Header  []BilingualInline   `json:"header,omitempty"`
	Rows    [][]BilingualInline `json:"rows"`
	Caption BilingualText       `json:"caption"`
}

func (*TableBlock) Kind() BlockKind { return BlockKindTable }

// OrderedListBlock is a numbered list.
type OrderedListBlock struct {
	BlockMeta
	Items []BilingualInline `json:"items"`
}

func (*OrderedListBlock) Kind() BlockKind { return BlockKindOrderedList }

// UnorderedListBlock is a bulleted list.
type UnorderedListBlock struct {
	BlockMeta
	Items []BilingualInline `json:"items"`
}

func (*UnorderedListBlock) Kind() BlockKind { return BlockKindUnorderedList }

// QuoteBlock is a block quotation.
type QuoteBlock struct {
	BlockMeta
	Content BilingualInline `json:"content"`
}

func (*QuoteBlock) Kind() BlockKind { return BlockKindQuote }

// FigureBlock references an image with bilingual alt text and caption.
type FigureBlock struct {
	BlockMeta
	URL     string        `json:"url"`
	Alt     BilingualText `json:"alt"`
	Caption BilingualText `json:"caption"`
}

func (*FigureBlock) Kind() BlockKind { return BlockKindFigure }

// DividerBlock is a horizontal rule.
type DividerBlock struct {
	BlockMeta
}

func (*DividerBlock) Kind() BlockKind { return BlockKindDivider }

// PlaceholderStage tracks the visible progress of an in-flight ingestion at
// its position in the section.
type PlaceholderStage string

// Placeholder stages, in order of advancement. A failed placeholder is
// retained at its position; only a successful splice removes it.
const (
	PlaceholderStageStructuring PlaceholderStage = "structuring"
	PlaceholderStageTranslating PlaceholderStage = "translating"
	PlaceholderStageCompleted   PlaceholderStage = "completed"
	PlaceholderStageFailed      PlaceholderStage = "failed"
)

// PlaceholderBlock occupies the target position while an ingestion runs. It
// back-references its parsing session and, once structuring has finished,
// carries the ordered ids of the blocks that will replace it.
type PlaceholderBlock struct {
	BlockMeta
	SessionID      uuid.UUID        `json:"session_id"`
	Stage          PlaceholderStage `json:"stage"`
	ResultBlockIDs []string         `json:"result_block_ids,omitempty"`
}

func (*PlaceholderBlock) Kind() BlockKind { return BlockKindPlaceholder }

// NewPlaceholderBlock creates a placeholder for the given session, starting
// in the structuring stage.
func NewPlaceholderBlock(sessionID uuid.UUID) *PlaceholderBlock {
	return &PlaceholderBlock{
		BlockMeta: NewBlockMeta(),
		SessionID: sessionID,
		Stage:     PlaceholderStageStructuring,
	}
}

// isValidPlaceholderStage checks if the given stage is one of the defined stages.
func isValidPlaceholderStage(stage PlaceholderStage) bool {
	switch stage {
	case PlaceholderStageStructuring, PlaceholderStageTranslating,
		PlaceholderStageCompleted, PlaceholderStageFailed:
		return true
	default:
		return false
	}
}

// ValidateBlock checks the structural rules a block must satisfy before it
// is written into a section.
func ValidateBlock(b Block) error {
	if b.BlockID() == "" {
		return ErrEmptyBlockID
	}

	switch v := b.(type) {
	case *HeadingBlock:
		if v.Level < 1 || v.Level > 6 {
			return ErrInvalidHeadingLevel
		}
	case *PlaceholderBlock:
		if v.SessionID == uuid.Nil {
			return ErrEmptyPlaceholderSession
		}
		if !isValidPlaceholderStage(v.Stage) {
			return ErrInvalidPlaceholderStage
		}
	}

	return nil
}
