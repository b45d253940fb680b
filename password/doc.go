// Package password encodes, decodes and verifies password hashes in the PHC
// string format.
//
// # Output format
//
// New hashes are Argon2id, version 0x13:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Parse] also accepts argon2i, argon2d and bcrypt ("2b", or "2a" on input)
// strings, and [Hash.String] reproduces any parsed value exactly. Salt and
// hash segments use the standard base64 alphabet without padding.
//
// Verification always uses the parameters stored in the hash, so hashes made
// under older defaults keep working. [Hasher.NeedsUpgrade] reports when a
// stored hash is weaker than the current configuration so the caller can
// re-hash after the next successful login.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Password policy (minimum
// length, reuse history) is enforced by the Engine.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Import any other authcore package.
//   - Log plaintext passwords or hash parameters.
package password
