package domain

// InlineKind discriminates the runs that make up rich inline content.
type InlineKind string

// Possible inline run kinds
const (
	InlineText InlineKind = "text"
	InlineMath InlineKind = "math"
)

// Inline is one run of inline content. Text carries a literal run, Math
// carries TeX source for inline math; only the field matching Kind is
// meaningful.
type Inline struct {
	Kind InlineKind `json:"kind"`
	Text string     `json:"text,omitempty"`
	Math string     `json:"math,omitempty"`
}

// IsEmpty reports whether the run carries no content for its kind.
func (i Inline) IsEmpty() bool {
	switch i.Kind {
	case InlineMath:
		return i.Math == ""
	default:
		return i.Text == ""
	}
}

// BilingualInline holds parallel inline sequences for the two platform
// languages. Validated content is symmetric: either both sides are empty or
// both are populated (see Mirror).
type BilingualInline struct {
	EN []Inline `json:"en"`
	ZH []Inline `json:"zh"`
}

// IsEmpty reports whether both language sides are empty.
func (b BilingualInline) IsEmpty() bool {
	return len(b.EN) == 0 && len(b.ZH) == 0
}

// Mirror copies the populated side over an empty one so downstream renderers
// never see asymmetric content. A value with both sides populated or both
// empty is left untouched.
func (b *BilingualInline) Mirror() {
	switch {
	case len(b.EN) == 0 && len(b.ZH) > 0:
		b.EN = cloneInlines(b.ZH)
	case len(b.ZH) == 0 && len(b.EN) > 0:
		b.ZH = cloneInlines(b.EN)
	}
}

// BilingualText holds a parallel pair of plain strings (titles, alt text).
type BilingualText struct {
	EN string `json:"en"`
	ZH string `json:"zh"`
}

// IsEmpty reports whether both language sides are empty.
func (t BilingualText) IsEmpty() bool {
	return t.EN == "" && t.ZH == ""
}

// Mirror copies the populated side over an empty one.
func (t *BilingualText) Mirror() {
	switch {
	case t.EN == "" && t.ZH != "":
		t.EN = t.ZH
	case t.ZH == "" && t.EN != "":
		t.ZH = t.EN
	}
}

func cloneInlines(runs []Inline) []Inline {
	out := make([]Inline, len(runs))
	copy(out, runs)
	return out
}
