// Package client talks to the remote memos server.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic API contract (see the Client interface) covering
//     memos, resources, users and groups.
//  2. A concrete REST implementation (see HTTPClient) for the memos v1 API.
//     It sends a bearer token, refuses to call out with a JWT that has
//     already expired, and wraps every request in a circuit breaker.
//
// # Error Handling
//
// HTTP failures are mapped to sentinel errors that callers match with
// errors.Is: ErrUnauthenticated (401/403, expired token), ErrNotFound (404),
// ErrConflict (409/412), ErrRejected (other 4xx), ErrUnavailable (5xx, 429,
// network errors, open breaker) and ErrInvalidServer (a host that does not
// serve the API). The concrete error is a *StatusError when a response was
// received.
//
// Concurrency & Contexts
//
// HTTPClient is safe for concurrent use. All operations accept
// context.Context and honor cancellation.
package client
