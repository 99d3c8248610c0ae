// Package service contains the application-level use cases of the ingestion
// pipeline. It orchestrates the domain objects, the stores, the splice
// engine, and the task executor to fulfill one feature: turning submitted
// text into content blocks spliced at a position in a section, resumable
// across client disconnects and process restarts.
//
// Key components:
//
//  1. IngestionService — the in-process API façade: start, status, cancel,
//     list, and the fallback splice lookup. The HTTP layer is a thin shell
//     over this interface.
//  2. Resume coordination — reading a session's status doubles as the
//     recovery decision: a non-terminal session whose task the executor no
//     longer tracks is forced to failed rather than left hanging.
//  3. Error translation — store and executor errors are mapped to
//     service-level sentinels (or wrapped in IngestionServiceError) so the
//     API layer can map them to status codes without knowing the layers
//     beneath.
//
// The service depends on domain entities, store interfaces, and the narrow
// consumer interfaces declared in this package, never on concrete
// infrastructure.
package service
