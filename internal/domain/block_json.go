package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownBlockKind is returned when persisted content carries a type tag
// outside the closed block set. Persisted sections are strict; tolerance for
// malformed model output lives in the structuring repair step, which runs
// before typed decoding.
var ErrUnknownBlockKind = errors.New("unknown block kind")

// blockEnvelope is the discriminator wrapper used on the wire and in JSONB
// storage: every block object carries a "type" field naming its kind.
type blockEnvelope struct {
	Type BlockKind `json:"type"`
}

// MarshalBlock serializes a block with its kind discriminator.
func MarshalBlock(b Block) ([]byte, error) {
	switch v := b.(type) {
	case *HeadingBlock:
		return json.Marshal(struct {
			Type BlockKind `json:"type"`
			*HeadingBlock
		}{BlockKindHeading, v})
	case *ParagraphBlock:
		return json.Marshal(struct {
			Type BlockKind `json:"type"`
			*ParagraphBlock
		}{BlockKindParagraph, v})
	case *MathBlock:
		return json.Marshal(struct {
			Type BlockKind `json:"type"`
			*MathBlock
		}{BlockKindMath, v})
	case *CodeBlock:
		return json.Marshal(struct {
			Type BlockKind `json:"type"`
			*CodeBlock
		}{BlockKindCode, v})
	case *TableBlock:
		return json.Marshal(struct {
			Type BlockKind `json:"type"`
			*TableBlock
		}{BlockKindTable, v})
	case *OrderedListBlock:
		return json.Marshal(struct {
			Type BlockKind `json:"type"`
			*OrderedListBlock
		}{BlockKindOrderedList, v})
	case *UnorderedListBlock:
		return json.Marshal(struct {
			Type BlockKind `json:"type"`
			*UnorderedListBlock
		}{BlockKindUnorderedList, v})
	case *QuoteBlock:
		return json.Marshal(struct {
			Type BlockKind `json:"type"`
			*QuoteBlock
		}{BlockKindQuote, v})
	case *FigureBlock:
		return json.Marshal(struct {
			Type BlockKind `json:"type"`
			*FigureBlock
		}{BlockKindFigure, v})
	case *DividerBlock:
		return json.Marshal(struct {
			Type BlockKind `json:"type"`
			*DividerBlock
		}{BlockKindDivider, v})
	case *PlaceholderBlock:
		return json.Marshal(struct {
			Type BlockKind `json:"type"`
			*PlaceholderBlock
		}{BlockKindPlaceholder, v})
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownBlockKind, b)
	}
}

// UnmarshalBlock deserializes one block object, dispatching on its "type"
// discriminator.
func UnmarshalBlock(data []byte) (Block, error) {
	var env blockEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to read block envelope: %w", err)
	}

	var (
		b   Block
		err error
	)
	switch env.Type {
	case BlockKindHeading:
		v := &HeadingBlock{}
		err = json.Unmarshal(data, v)
		b = v
	case BlockKindParagraph:
		v := &ParagraphBlock{}
		err = json.Unmarshal(data, v)
		b = v
	case BlockKindMath:
		v := &MathBlock{}
		err = json.Unmarshal(data, v)
		b = v
	case BlockKindCode:
		v := &CodeBlock{}
		err = json.Unmarshal(data, v)
		b = v
	case BlockKindTable:
		v := &TableBlock{}
		err = json.Unmarshal(data, v)
		b = v
	case BlockKindOrderedList:
		v := &OrderedListBlock{}
		err = json.Unmarshal(data, v)
		b = v
	case BlockKindUnorderedList:
		v := &UnorderedListBlock{}
		err = json.Unmarshal(data, v)
		b = v
	case BlockKindQuote:
		v := &QuoteBlock{}
		err = json.Unmarshal(data, v)
		b = v
	case BlockKindFigure:
		v := &FigureBlock{}
		err = json.Unmarshal(data, v)
		b = v
	case BlockKindDivider:
		v := &DividerBlock{}
		err = json.Unmarshal(data, v)
		b = v
	case BlockKindPlaceholder:
		v := &PlaceholderBlock{}
		err = json.Unmarshal(data, v)
		b = v
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBlockKind, env.Type)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to decode %s block: %w", env.Type, err)
	}
	return b, nil
}

// BlockList is an ordered sequence of blocks with envelope-aware JSON
// encoding, suitable for direct use as a JSONB column value.
type BlockList []Block

// MarshalJSON implements json.Marshaler.
func (l BlockList) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("[]"), nil
	}

	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, b := range l {
		if i > 0 {
			buf.WriteByte(',')
		}
		data, err := MarshalBlock(b)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
		buf.Write(data)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *BlockList) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*l = nil
		return nil
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return fmt.Errorf("failed to decode block array: %w", err)
	}

	out := make(BlockList, 0, len(raws))
	for i, raw := range raws {
		b, err := UnmarshalBlock(raw)
		if err != nil {
			return fmt.Errorf("block %d: %w", i, err)
		}
		out = append(out, b)
	}
	*l = out
	return nil
}

// IDs returns the ordered block ids of the list.
func (l BlockList) IDs() []string {
	ids := make([]string, 0, len(l))
	for _, b := range l {
		ids = append(ids, b.BlockID())
	}
	return ids
}

// FindByID returns the first block with the given id, or nil.
func (l BlockList) FindByID(id string) Block {
	for _, b := range l {
		if b.BlockID() == id {
			return b
		}
	}
	return nil
}

// IndexOf returns the position of the block with the given id, or -1.
func (l BlockList) IndexOf(id string) int {
	for i, b := range l {
		if b.BlockID() == id {
			return i
		}
	}
	return -1
}
