// Package verification fact-checks event candidates with a second model.
//
// Each candidate gets one prompt that embeds all of its known fields; the
// model answers {verified, confidence, reason}. HTTP 429 and transport
// failures are retried with exponential backoff (three attempts, 1s then 2s
// by default); any other failure, or a payload without a boolean verified,
// yields an unverified verdict. Verify never returns an error.
//
// Calls share one rate budget per Client. Scheduled runs memoize verdicts by
// dedup hash; Recheck skips the memo for on-demand verification.
package verification
