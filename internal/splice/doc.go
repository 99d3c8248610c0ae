// Package splice mutates a section's block array around an ingestion
// placeholder: inserting it at the requested position, advancing its visible
// stage, and finally replacing it with the structured result blocks.
//
// All mutations are id-addressed single-element writes. The engine never
// rewrites a whole block array and never trusts an index across writes, so
// concurrent editors of the same section keep their blocks and their
// ordering. A small process-local TTL cache remembers each splice outcome so
// a reader polling across the replacement window can still resolve which
// blocks replaced its placeholder.
package splice
