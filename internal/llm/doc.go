// Package llm provides the HTTP client for a local Ollama-compatible
// LLM server.
//
// The client exposes a synchronous request/response primitive with a
// deliberately small failure surface: every error is one of ErrTimeout,
// ErrConnectionRefused, or ErrBadResponse, and IsUnavailable classifies
// all three. The search pipeline never retries these calls; it degrades
// to the non-LLM signal instead.
//
// BreakerClient layers a circuit breaker over any Client so repeated
// failures short-circuit quickly rather than paying a connection timeout
// per call. An open breaker reports as ErrConnectionRefused, keeping the
// caller's degradation logic uniform.
package llm
