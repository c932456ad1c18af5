// Package token provides the opaque session-credential format.
//
// A credential is base64(decimal principal id) + "_" + hex(random bytes).
// The prefix lets the refresh flow find the cache entry without a lookup table;
// the random suffix carries all of the entropy.
package token
