// Package generator adapts LLM backends to the solving loop.
//
// The loop only sees the Generator interface: produce an initial candidate
// for a task, or a corrected candidate for a repair request. The shipped
// implementation speaks the OpenAI-compatible chat API, which covers
// OpenAI, Groq, and Ollama's /v1 endpoint through one client with a
// configurable base URL. Generated text is post-processed to extract the
// code itself from markdown fences or model-specific tags.
package generator
