// Package gemini provides an implementation of the structuring.TextGenerator
// interface that uses Google's Gemini API.
//
// This package is an infrastructure adapter: it translates between the
// structuring pipeline's single GenerateText call and the Gemini API without
// exposing the details of the external service to the core application. It
// handles authentication, request formatting, and the classification of API
// failures into the structuring package's error taxonomy. It deliberately
// performs no retries; classification of transient failures is informational
// only.
package gemini
