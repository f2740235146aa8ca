// Package llm provides the external text classifier. It supports Anthropic,
// OpenAI and Gemini providers behind one Client interface, and adds retry,
// rate limiting and response caching on top.
package llm
