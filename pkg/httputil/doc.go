// Package httputil fetches remote inputs over HTTP.
//
// A [Fetcher] either streams a response body ([Fetcher.Open]), which the
// graph stream parser consumes chunk by chunk, or downloads it whole
// ([Fetcher.Fetch]) through a cache.Cache so the same URL is downloaded
// once per TTL.
//
// Both retry transient failures with errors.Retry:
//
//   - network errors
//   - 5xx server errors
//   - 429 rate limit responses
//
// Other 4xx responses fail immediately with NOT_FOUND (404) or
// INVALID_INPUT.
package httputil
