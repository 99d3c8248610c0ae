package structuring

// promptTemplate is the fixed instruction template for structuring calls.
// It is parsed with text/template rather than html/template because the
// source text routinely contains TeX and HTML-escaping would corrupt it.
const promptTemplate = `You convert free text from bilingual (English/Chinese) technical documents into a JSON array of typed content blocks.

Rules:
- Respond with a single JSON array and nothing else. No prose, no code fences.
- Each element is an object with a "type" field: one of heading, paragraph, math, code, table, ordered-list, unordered-list, quote, figure, divider.
- Rich text fields ("content", list "items", table cells) are bilingual objects {"en": [...], "zh": [...]} whose sides are arrays of inline runs {"kind": "text", "text": "..."} or {"kind": "math", "math": "..."}.
- Fill both "en" and "zh" with the same content, translated. If you cannot translate, fill the language the source is written in and leave the other side an empty array.
- Display mathematics becomes a "math" block with TeX source in "tex". Inline mathematics becomes an inline run of kind "math". Never leave TeX inside a text run.
- Do not number equations: no \tag, \eqno, \notag, \nonumber.
- Preserve the order of the source text. Output an empty array if nothing in the text forms a content block.

Each element must satisfy this JSON Schema:
{{.Schema}}

{{if .SectionTitle}}The text belongs to a section titled: {{.SectionTitle}}

{{end}}Convert this text:

{{.SourceText}}`

// promptData is the template context for one structuring prompt.
type promptData struct {
	// Schema is the block element JSON Schema embedded in the instructions.
	Schema string

	// SectionTitle optionally tells the model where the text will live.
	SectionTitle string

	// SourceText is the (already truncated) text to convert.
	SourceText string
}
