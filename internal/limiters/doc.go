// Package limiters applies the engine's throttling policy on top of
// internal/rate: failed sign-ins per email and per client IP, and outgoing
// email requests (verification resend, recovery link) per address.
//
// All limiters are nil-safe.
package limiters
