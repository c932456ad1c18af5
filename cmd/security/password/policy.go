package password

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Validate applies the length bounds and, if enabled, the weak-shape checks.
func (c Config) Validate(password string) error {
	switch n := utf8.RuneCountInString(password); {
	case n < c.Policy.MinLength:
		return ErrPasswordTooShort
	case n > c.Policy.MaxLength:
		return ErrPasswordTooLong
	}
	if c.Policy.RejectVeryWeak && isPredictable(password) {
		return ErrWeakPassword
	}
	return nil
}

var commonPasswords = map[string]struct{}{
	"password": {}, "password1": {}, "password123": {}, "123456": {}, "12345678": {},
	"123456789": {}, "qwerty": {}, "qwerty123": {}, "11111111": {}, "letmein": {},
	"parley": {}, "parley123": {}, "iloveyou": {}, "welcome1": {},
}

// isPredictable flags blank input, one repeated rune, a run of consecutive
// runes ("abcdefgh", "98765432"), short all-digit strings and common passwords.
func isPredictable(pw string) bool {
	s := strings.TrimSpace(pw)
	runes := []rune(s)
	if len(runes) == 0 {
		return true
	}
	if _, ok := commonPasswords[strings.ToLower(s)]; ok {
		return true
	}

	same, asc, desc, digits := true, true, true, true
	for i, r := range runes {
		if !unicode.IsDigit(r) {
			digits = false
		}
		if i == 0 {
			continue
		}
		prev := runes[i-1]
		same = same && r == prev
		asc = asc && r == prev+1
		desc = desc && r == prev-1
	}
	return same || asc || desc || (digits && len(runes) < 12)
}
