// Package session issues and verifies the three credential classes and drives their lifecycle.
//
// Access credentials are stateless signed tokens (RS256 JWT by default, PASETO v4.public
// optionally). Refresh and realtime credentials are opaque strings whose single live value per
// principal is held by a cache.TokenStore; refresh rotation is a compare-and-set, logout deletes.
package session
