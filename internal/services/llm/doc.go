// Package llm provides the model transport shared by event discovery and
// verification.
//
// Two wire protocols are supported and selected by Config.Protocol:
//   - chat: OpenAI-compatible /chat/completions via go-openai; answer text is
//     the first non-empty choices[].message.content.
//   - messages: the /messages protocol with x-api-key authentication; answer
//     text is the concatenation of content blocks of type "text".
//
// Only response-text extraction differs between them; callers see a single
// Client.Complete(ctx, Request) (string, error).
//
// # Retry Behaviour
//
// By default a request is attempted once. WithRetryMaxAttempts enables
// retries for HTTP 429 and transport failures (DNS, connect, timeout) with
// exponential backoff base*2^(n-1) capped at the max delay. A Retry-After
// header larger than the computed delay raises it. Any other non-2xx status
// fails immediately. Context cancellation aborts retries.
package llm
