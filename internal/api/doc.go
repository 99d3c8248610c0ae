// Package api handles incoming HTTP requests for the ingestion pipeline:
// request validation, response formatting, and the mapping from service
// errors to status codes. It acts as an adapter between external clients and
// the ingestion service; no business rules live here.
package api
