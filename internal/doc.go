// Package internal holds helpers private to the identity engine: random
// identifiers and single-use tokens.
//
// Sub-packages:
//
//   - audit: asynchronous event dispatch
//   - limiters: sign-in and email request throttles
//   - rate: fixed-window Redis counters
//   - stores: single-use email challenges in Redis
package internal
