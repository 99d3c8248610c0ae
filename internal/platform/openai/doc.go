// Package openai provides an implementation of the structuring.TextGenerator
// interface that uses the OpenAI chat completions API.
//
// This package is an infrastructure adapter: it translates between the
// structuring pipeline's single GenerateText call and the official OpenAI SDK
// without exposing the details of the external service to the core
// application. Requests are made in JSON mode, so the model wraps its block
// array in an enclosing object; the structuring pipeline extracts the array
// from whatever surrounds it. Like the gemini adapter, this package performs
// no retries of its own and the SDK's transport retries are disabled.
package openai
