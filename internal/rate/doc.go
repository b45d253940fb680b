// Package rate provides the Redis-backed fixed-window counters that throttle
// failed logins.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefixes
// (with the default Prefix "al"):
//   - al:  login per email
//   - ali: login per IP
//
// A check fails once the counter reaches MaxLoginAttempts; the counter only
// grows on failures.
//
// # What this package must NOT do
//
//   - Decide whether a credential is valid.
//   - Be imported outside the authcore module.
package rate
