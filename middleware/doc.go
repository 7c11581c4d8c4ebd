// Package middleware resolves the caller's session for HTTP handlers.
//
// # Guards
//
//   - [Authenticate] attaches the session, if any, to the request context.
//   - [Require] rejects requests without one, by redirect or 401.
//
// A session is read from the Authorization bearer token first, then from
// the session cookie. Validation is delegated to a [Validator], normally
// the identity engine.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly.
//   - Access Redis.
package middleware
