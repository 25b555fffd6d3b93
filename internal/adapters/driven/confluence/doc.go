// Package confluence implements the remote port against the Confluence
// REST API.
//
// The client covers the slice of the content API the engine needs:
// page CRUD, content properties, labels, title lookup and CQL search.
// It implements [driven.Remote] and is the only package that knows
// request shapes, status codes or pagination windows; everything above
// it works in terms of domain types and the domain error taxonomy.
//
// # Authentication
//
// Requests carry a bearer token (a Confluence personal access token)
// supplied through the run configuration. The token is injected by an
// oauth2 static token source, never by per-call parameters.
//
// # Base URL
//
// The configured base URL may name the site root
// ("https://wiki.example.com"), a context path
// ("https://example.com/wiki") or the API root itself
// ("https://example.com/wiki/rest/api"). The client normalises all
// three to the same API root; link construction elsewhere strips the
// same suffix, which keeps the two views of the URL consistent.
//
// # Rate limiting and retries
//
// A token bucket shared by all workers bounds the combined request
// rate. Failures classified as transient (HTTP 429, 5xx, dropped
// connections) are retried a bounded number of times with capped
// exponential backoff; a Retry-After header overrides the schedule.
// Everything else is returned to the caller after classification.
//
// # Error handling
//
// Non-2xx responses become [*APIError] values that unwrap into the
// domain sentinels: 404 is [domain.ErrNotFound], version and title
// collisions are [domain.ErrConflict], retryable statuses are
// [domain.ErrTransient] and the remaining client errors are
// [domain.ErrPermanent]. Callers use errors.Is and never see a status
// code.
package confluence
