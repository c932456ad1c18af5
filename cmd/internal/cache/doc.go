// Package cache holds the current refresh and realtime session credentials per principal.
//
// Each (kind, principal) pair maps to one key, "<kind>_token:<principalId>", whose value is
// the raw credential string and whose TTL is the credential's remaining lifetime. Writing a new
// value is the rotation mechanism: the previous value stops validating immediately.
package cache
