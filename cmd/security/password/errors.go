package password

import "errors"

// Policy rejections. Callers map all three to a weak_password response.
var (
	ErrPasswordTooShort = errors.New("password: shorter than policy minimum")
	ErrPasswordTooLong  = errors.New("password: longer than policy maximum")
	ErrWeakPassword     = errors.New("password: too predictable")
)

// ErrInvalidHash is returned by Verify for encodings it refuses to evaluate.
var ErrInvalidHash = errors.New("password: invalid argon2id encoding")
