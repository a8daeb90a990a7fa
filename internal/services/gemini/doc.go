// Package gemini is a REST client for the Gemini generateContent API.
//
// One Client serves both the text model (scripts, prompt recompilation,
// panel analysis) and the image model (candidate composites, panel
// remastering). TextModel and ImageModel bind a client to a model name and
// satisfy the generation package interfaces.
//
// # Errors
//
// Failures are tagged with services markers so callers can classify them:
// HTTP 400 maps to ErrBadRequest, 403 to ErrPermissionDenied, 429 to
// ErrRateLimited, 5xx to ErrServer, transport failures to ErrNetwork, and a
// prompt block or SAFETY finish to ErrContentFiltered. A missing API key is
// ErrConfiguration.
//
// # Retry Behaviour
//
// Requests are retried on 408/429/5xx and network timeouts with exponential
// backoff (base 1s, max 10s, 3 attempts by default), honouring Retry-After.
// Context cancellation aborts retries immediately.
package gemini
