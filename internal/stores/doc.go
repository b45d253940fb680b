// Package stores persists password credentials in Redis.
//
// # Design
//
// A credential is one versioned, binary-encoded record under
// <prefix>:u:<user id>, plus two index keys holding the user id:
// <prefix>:e:<normalized email> and <prefix>:n:<username>. Create writes all
// three keys in one WATCH/MULTI transaction, retried on contention, so a
// record is never visible without its indexes. UpdatePasswordHash is a
// compare-and-set on the record version.
//
// The stored password hash is opaque text here; callers parse it.
//
// # What this package must NOT do
//
//   - Import authcore or any sibling internal package.
//   - Hash, verify or log passwords.
package stores
