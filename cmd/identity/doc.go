// Package identity owns principals: users with integer ids, a normalized unique username,
// and an Argon2id password hash.
//
// Stores are persistence boundaries only. Session credentials live in the cache package.
package identity
