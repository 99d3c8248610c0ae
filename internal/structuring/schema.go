package structuring

// blockElementSchema is the JSON Schema one repaired element must satisfy to
// survive into the result list. It is embedded verbatim in the prompt and
// compiled once at service construction. The enum deliberately excludes
// "placeholder": placeholders are owned by the splice engine and a model
// must never be able to emit one.
//
// The content rule leans on the repair order: bilingual mirroring runs
// before validation, so any element with content has a populated "en" side.
const blockElementSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["type"],
  "properties": {
    "type": {
      "enum": [
        "heading", "paragraph", "math", "code", "table",
        "ordered-list", "unordered-list", "quote", "figure", "divider"
      ]
    }
  },
  "allOf": [
    {
      "if": {
        "properties": { "type": { "enum": ["heading", "paragraph", "quote"] } },
        "required": ["type"]
      },
      "then": {
        "required": ["content"],
        "properties": {
          "content": {
            "type": "object",
            "required": ["en"],
            "properties": { "en": { "type": "array", "minItems": 1 } }
          }
        }
      }
    },
    {
      "if": {
        "properties": { "type": { "const": "heading" } },
        "required": ["type"]
      },
      "then": {
        "required": ["level"],
        "properties": { "level": { "type": "integer", "minimum": 1, "maximum": 6 } }
      }
    },
    {
      "if": {
        "properties": { "type": { "const": "math" } },
        "required": ["type"]
      },
      "then": {
        "required": ["tex"],
        "properties": { "tex": { "type": "string", "minLength": 1 } }
      }
    },
    {
      "if": {
        "properties": { "type": { "const": "code" } },
        "required": ["type"]
      },
      "then": {
        "required": ["code"],
        "properties": { "code": { "type": "string", "minLength": 1 } }
      }
    },
    {
      "if": {
        "properties": { "type": { "enum": ["ordered-list", "unordered-list"] } },
        "required": ["type"]
      },
      "then": {
        "required": ["items"],
        "properties": { "items": { "type": "array", "minItems": 1 } }
      }
    },
    {
      "if": {
        "properties": { "type": { "const": "table" } },
        "required": ["type"]
      },
      "then": {
        "required": ["rows"],
        "properties": { "rows": { "type": "array", "minItems": 1 } }
      }
    },
    {
      "if": {
        "properties": { "type": { "const": "figure" } },
        "required": ["type"]
      },
      "then": {
        "required": ["url"],
        "properties": { "url": { "type": "string", "minLength": 1 } }
      }
    }
  ]
}`
