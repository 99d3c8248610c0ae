package structuring

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/SugrSertraline/neu-ink-sub000/internal/domain"
	"github.com/SugrSertraline/neu-ink-sub000/internal/platform/logger"
)

// repairableKinds is the set of block kinds a model reply may contain.
// Placeholders are excluded: they belong to the splice engine.
var repairableKinds = map[string]bool{
	string(domain.BlockKindHeading):       true,
	string(domain.BlockKindParagraph):     true,
	string(domain.BlockKindMath):          true,
	string(domain.BlockKindCode):          true,
	string(domain.BlockKindTable):         true,
	string(domain.BlockKindOrderedList):   true,
	string(domain.BlockKindUnorderedList): true,
	string(domain.BlockKindQuote):         true,
	string(domain.BlockKindFigure):        true,
	string(domain.BlockKindDivider):       true,
}

var (
	texTagPattern      = regexp.MustCompile(`\\tag\*?\{[^{}]*\}`)
	texEqnoPattern     = regexp.MustCompile(`\\eqno\s*\{[^{}]*\}`)
	texNoNumberPattern = regexp.MustCompile(`\\(?:notag|nonumber)\b`)

	// inlineDollarMath matches a text run whose whole payload is one
	// $-delimited TeX expression.
	inlineDollarMath = regexp.MustCompile(`^\s*\$([^$]+)\$\s*$`)
)

// repairStats counts what the repair pass changed. The counts are logged,
// never returned to callers: repair is a total function and its outcome is
// the block list itself.
type repairStats struct {
	dropped    int
	assigned   int
	mirrored   int
	normalized int
}

// repairElements turns raw reply elements into validated domain blocks.
// Elements that cannot be repaired are dropped and counted; the pass itself
// never fails.
func (s *Service) repairElements(ctx context.Context, elements []json.RawMessage) (domain.BlockList, repairStats) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	blocks := make(domain.BlockList, 0, len(elements))
	var stats repairStats

	for i, raw := range elements {
		var obj map[string]any
		if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
			stats.dropped++
			log.Warn("discarding non-object element", slog.Int("position", i))
			continue
		}

		kind, _ := obj["type"].(string)
		if !repairableKinds[kind] {
			stats.dropped++
			log.Warn("discarding element with unusable type",
				slog.Int("position", i),
				slog.String("type", kind))
			continue
		}

		repairMeta(obj, &stats)
		repairContent(domain.BlockKind(kind), obj, &stats)

		if err := s.schema.Validate(obj); err != nil {
			stats.dropped++
			log.Warn("discarding element failing the block schema",
				slog.Int("position", i),
				slog.String("type", kind),
				slog.String("reason", err.Error()))
			continue
		}

		data, err := json.Marshal(obj)
		if err != nil {
			stats.dropped++
			log.Warn("discarding unencodable element",
				slog.Int("position", i),
				slog.String("type", kind))
			continue
		}

		block, err := domain.UnmarshalBlock(data)
		if err != nil {
			stats.dropped++
			log.Warn("discarding element the block codec rejects",
				slog.Int("position", i),
				slog.String("type", kind),
				slog.String("error", err.Error()))
			continue
		}
		if err := domain.ValidateBlock(block); err != nil {
			stats.dropped++
			log.Warn("discarding structurally invalid element",
				slog.Int("position", i),
				slog.String("type", kind),
				slog.String("error", err.Error()))
			continue
		}

		blocks = append(blocks, block)
	}

	return blocks, stats
}

// repairMeta assigns the identity fields every block needs: a UUID when the
// model omitted or blanked "id", and a timestamp when "created_at" is absent
// or unparseable.
func repairMeta(obj map[string]any, stats *repairStats) {
	if id, ok := obj["id"].(string); !ok || id == "" {
		obj["id"] = uuid.NewString()
		stats.assigned++
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if ts, ok := obj["created_at"].(string); ok {
		if _, err := time.Parse(time.RFC3339, ts); err != nil {
			obj["created_at"] = now
		}
	} else {
		obj["created_at"] = now
	}
}

// repairContent applies the per-kind repair rules.
func repairContent(kind domain.BlockKind, obj map[string]any, stats *repairStats) {
	switch kind {
	case domain.BlockKindHeading:
		obj["level"] = clampHeadingLevel(obj["level"])
		repairBilingualInlineField(obj, "content", stats)
	case domain.BlockKindParagraph, domain.BlockKindQuote:
		repairBilingualInlineField(obj, "content", stats)
	case domain.BlockKindMath:
		tex, _ := obj["tex"].(string)
		obj["tex"] = stripEquationNumbering(tex)
	case domain.BlockKindTable:
		repairBilingualList(obj, "header", stats)
		repairTableRows(obj, stats)
		repairBilingualTextField(obj, "caption", stats)
	case domain.BlockKindOrderedList, domain.BlockKindUnorderedList:
		repairBilingualList(obj, "items", stats)
	case domain.BlockKindFigure:
		repairBilingualTextField(obj, "alt", stats)
		repairBilingualTextField(obj, "caption", stats)
	}
}

// clampHeadingLevel maps whatever the model put in "level" into 1..6.
// Non-numeric values default to 2.
func clampHeadingLevel(v any) float64 {
	f, ok := v.(float64)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 2
	}
	level := math.Trunc(f)
	if level < 1 {
		return 1
	}
	if level > 6 {
		return 6
	}
	return level
}

// stripEquationNumbering removes equation-numbering macros from TeX source
// and collapses runs of whitespace. Rendered sections number equations
// themselves; model-emitted \tag macros would fight that.
func stripEquationNumbering(tex string) string {
	tex = texTagPattern.ReplaceAllString(tex, "")
	tex = texEqnoPattern.ReplaceAllString(tex, "")
	tex = texNoNumberPattern.ReplaceAllString(tex, "")
	return strings.Join(strings.Fields(tex), " ")
}

// repairBilingualInlineField normalizes one bilingual rich-text field in
// place. Uncoercible junk is removed so the schema can judge the element by
// the field's absence.
func repairBilingualInlineField(obj map[string]any, key string, stats *repairStats) {
	v, present := obj[key]
	if !present {
		return
	}
	if cell, ok := normalizeBilingual(v, stats); ok {
		obj[key] = cell
	} else {
		delete(obj, key)
	}
}

// repairBilingualList normalizes a list of bilingual cells ("items" of the
// list kinds, "header" of tables), dropping entries that are not coercible.
func repairBilingualList(obj map[string]any, key string, stats *repairStats) {
	items, ok := obj[key].([]any)
	if !ok {
		return
	}
	out := make([]any, 0, len(items))
	for _, item := range items {
		if cell, ok := normalizeBilingual(item, stats); ok {
			out = append(out, cell)
		} else {
			stats.normalized++
		}
	}
	obj[key] = out
}

// repairTableRows normalizes every cell of every row.
func repairTableRows(obj map[string]any, stats *repairStats) {
	rows, ok := obj["rows"].([]any)
	if !ok {
		return
	}
	outRows := make([]any, 0, len(rows))
	for _, row := range rows {
		cells, ok := row.([]any)
		if !ok {
			stats.normalized++
			continue
		}
		outCells := make([]any, 0, len(cells))
		for _, cell := range cells {
			if repaired, ok := normalizeBilingual(cell, stats); ok {
				outCells = append(outCells, repaired)
			} else {
				stats.normalized++
			}
		}
		outRows = append(outRows, outCells)
	}
	obj["rows"] = outRows
}

// normalizeBilingual coerces one bilingual rich-text value: both language
// sides are normalized run by run, then the populated side is mirrored over
// an empty one. A bare string becomes the same single text run on both
// sides. Returns false for values that cannot carry text at all.
func normalizeBilingual(v any, stats *repairStats) (map[string]any, bool) {
	raw, ok := v.(map[string]any)
	if !ok {
		if s, isString := v.(string); isString && strings.TrimSpace(s) != "" {
			run := []any{map[string]any{"kind": string(domain.InlineText), "text": s}}
			stats.normalized++
			return map[string]any{"en": run, "zh": run}, true
		}
		return nil, false
	}

	en := normalizeRuns(raw["en"], stats)
	zh := normalizeRuns(raw["zh"], stats)

	switch {
	case len(en) == 0 && len(zh) > 0:
		en = zh
		stats.mirrored++
	case len(zh) == 0 && len(en) > 0:
		zh = en
		stats.mirrored++
	}

	return map[string]any{"en": en, "zh": zh}, true
}

// normalizeRuns coerces one language side into a clean run list.
func normalizeRuns(v any, stats *repairStats) []any {
	items, ok := v.([]any)
	if !ok {
		if s, isString := v.(string); isString && strings.TrimSpace(s) != "" {
			stats.normalized++
			return []any{map[string]any{"kind": string(domain.InlineText), "text": s}}
		}
		return []any{}
	}

	out := make([]any, 0, len(items))
	for _, item := range items {
		if run, ok := normalizeRun(item, stats); ok {
			out = append(out, run)
		}
	}
	return out
}

// normalizeRun repairs one inline run: infers a missing kind, moves math
// payloads misplaced in text runs into math runs, and drops empty runs.
func normalizeRun(v any, stats *repairStats) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		if s, isString := v.(string); isString && strings.TrimSpace(s) != "" {
			stats.normalized++
			return map[string]any{"kind": string(domain.InlineText), "text": s}, true
		}
		return nil, false
	}

	kind, _ := m["kind"].(string)
	text, _ := m["text"].(string)
	mathSrc, _ := m["math"].(string)

	if kind == "" {
		if mathSrc != "" {
			kind = string(domain.InlineMath)
		} else {
			kind = string(domain.InlineText)
		}
		stats.normalized++
	}

	if kind == string(domain.InlineText) {
		if mathSrc != "" && text == "" {
			kind = string(domain.InlineMath)
			stats.normalized++
		} else if matches := inlineDollarMath.FindStringSubmatch(text); matches != nil {
			kind = string(domain.InlineMath)
			mathSrc = strings.TrimSpace(matches[1])
			text = ""
			stats.normalized++
		}
	}

	switch kind {
	case string(domain.InlineMath):
		if mathSrc == "" {
			return nil, false
		}
		return map[string]any{"kind": kind, "math": mathSrc}, true
	case string(domain.InlineText):
		if text == "" {
			return nil, false
		}
		return map[string]any{"kind": kind, "text": text}, true
	default:
		// Unknown run kind: keep the text payload if there is one.
		if text == "" {
			return nil, false
		}
		stats.normalized++
		return map[string]any{"kind": string(domain.InlineText), "text": text}, true
	}
}

// repairBilingualTextField normalizes a plain bilingual string pair
// (captions, alt text): a bare string is used for both sides and the
// populated side is mirrored over an empty one.
func repairBilingualTextField(obj map[string]any, key string, stats *repairStats) {
	raw, ok := obj[key].(map[string]any)
	if !ok {
		if s, isString := obj[key].(string); isString && s != "" {
			obj[key] = map[string]any{"en": s, "zh": s}
			stats.normalized++
		} else if _, present := obj[key]; present {
			delete(obj, key)
		}
		return
	}

	en, _ := raw["en"].(string)
	zh, _ := raw["zh"].(string)
	switch {
	case en == "" && zh != "":
		en = zh
		stats.mirrored++
	case zh == "" && en != "":
		zh = en
		stats.mirrored++
	}
	obj[key] = map[string]any{"en": en, "zh": zh}
}
