// Package structuring converts free text into typed content blocks by
// prompting an external language model and repairing its reply. It abstracts
// the details of LLM API integration behind the TextGenerator interface
// (implemented by the gemini and openai platforms), allowing the ingestion
// pipeline to stay provider-neutral. A reply that is not a JSON array is
// fatal for the attempt and is persisted verbatim through the FailureSink;
// individual elements inside a well-formed array are repaired or dropped,
// never fatal.
package structuring
