// Package password hashes and verifies passwords with Argon2id.
//
// Encoded hashes use the PHC string layout ($argon2id$v=19$m=..,t=..,p=..$salt$key).
// Verify treats the encoded hash as untrusted and refuses parameters far above the
// configured cost.
package password
