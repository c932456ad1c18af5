// Package authapi exposes signup, login, refresh rotation, logout and realtime
// credential issuance over HTTP.
package authapi
