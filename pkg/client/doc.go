// Package client implements the connection and authentication layer shared
// by the local gateway and cloud bindings.
//
// A Client owns one HTTP connection pool and one bearer token. Tokens come
// from a TokenSource (a login call, an OAuth2 client-credentials exchange, or
// a fixed value) and are refreshed lazily:
//
//   - before a request, when the stored token is missing or within
//     ExpirySkew of its expiry
//   - after a 401 response, exactly once per request, followed by exactly one
//     repeat of that request
//
// Concurrent callers that need a refresh at the same time share a single call
// to the TokenSource.
//
// # Retries
//
// Transport failures, 5xx responses and 429 responses are retried up to
// MaxRetries times with exponential backoff starting at RetryDelay and capped
// at MaxRetryDelay. A Retry-After header on a 429 overrides the computed
// delay. Requests that are not idempotent (POSTs not marked Idempotent) are
// only repeated when the failure proves the gateway never saw them: connection
// refused, DNS failure, or rate limiting.
//
// # Errors
//
// Every failure is an *Error whose Type places it in the taxonomy:
//
//	transport       ErrTypeNetwork, ErrTypeTimeout, ErrTypeConnectionRefused, ErrTypeDNS, ErrTypeTLS
//	authentication  ErrTypeAuth (401, 403, failed login)
//	vendor          ErrTypeAPI (non-2xx with status and gateway message), ErrTypeRateLimit
//	local           ErrTypeParse (malformed body), ErrTypeValidation (bad arguments)
//
// Use the Is* predicates rather than comparing types directly; they see
// through fmt.Errorf wrapping.
//
// Example:
//
//	c := client.NewClient("https://192.168.0.10", client.StaticToken(tok))
//	c.SetTLS(false, nil)
//	var version map[string]any
//	if err := c.Get(ctx, "/get_version", nil, &version); err != nil {
//	    fmt.Println(client.ShortMessage(err))
//	}
package client
