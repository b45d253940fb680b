// Package authcore is the credential and token core of the Conduit blog API:
// user registration, password login, bearer token authentication and password
// change, built on the [password] and [jwt] packages.
//
// The package is designed for concurrent server workloads: Engine methods are safe to call
// from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config] and value types
// ([User], [LoginResult], [Identity], [MetricsSnapshot]). Credential persistence, login
// throttling and audit dispatch live under internal/ and are never exported.
//
// # What this package must NOT do
//
//   - Expose Redis clients, internal stores, or encoding details in its public API.
//   - Log or return passwords, PHC strings or token signing keys.
//   - Tell a caller whether a login failed on the email or on the password.
//
// # Cost model
//
// Register, Login and ChangePassword run Argon2id on the calling goroutine and
// take tens of milliseconds; callers that serve requests should bound
// their concurrency. Authenticate is CPU-only and never touches Redis.
package authcore
