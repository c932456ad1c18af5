package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

// phcVersion is argon2.Version (0x13).
const phcVersion = 19

var phcB64 = base64.RawStdEncoding

// phc is one decoded PHC string:
//
//	$argon2id$v=19$m=<mem>,t=<iter>,p=<par>$<salt>$<key>
type phc struct {
	mem  uint32
	iter uint32
	par  uint8
	salt []byte
	key  []byte
}

func (p phc) String() string {
	return "$argon2id$v=" + strconv.Itoa(phcVersion) +
		"$m=" + strconv.FormatUint(uint64(p.mem), 10) +
		",t=" + strconv.FormatUint(uint64(p.iter), 10) +
		",p=" + strconv.FormatUint(uint64(p.par), 10) +
		"$" + phcB64.EncodeToString(p.salt) +
		"$" + phcB64.EncodeToString(p.key)
}

func (p phc) derive(password string) []byte {
	return argon2.IDKey([]byte(password), p.salt, p.iter, p.mem, p.par,
		uint32(len(p.key))) // #nosec G115 -- key length bounded by parsePHC.
}

// Hash validates password against the policy and returns its PHC encoding.
func (c Config) Hash(password string) (string, error) {
	if err := c.Validate(password); err != nil {
		return "", err
	}

	p := phc{
		mem:  c.Params.MemoryKiB,
		iter: c.Params.Iterations,
		par:  c.Params.Parallelism,
		salt: make([]byte, c.Params.SaltLength),
		key:  make([]byte, c.Params.KeyLength),
	}
	if _, err := rand.Read(p.salt); err != nil {
		return "", fmt.Errorf("password: salt: %w", err)
	}
	p.key = p.derive(password)
	return p.String(), nil
}

// Verify reports whether password matches encoded. A malformed encoding, or
// one whose cost exceeds twice the configured cost, yields ErrInvalidHash.
func (c Config) Verify(encoded, password string) (bool, error) {
	p, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}
	if !c.acceptable(p) {
		return false, ErrInvalidHash
	}
	return subtle.ConstantTimeCompare(p.derive(password), p.key) == 1, nil
}

// NeedsRehash reports whether encoded was produced with parameters other
// than the current ones. Unparseable input always needs a rehash.
func (c Config) NeedsRehash(encoded string) bool {
	p, err := parsePHC(encoded)
	if err != nil {
		return true
	}
	return p.mem != c.Params.MemoryKiB ||
		p.iter != c.Params.Iterations ||
		p.par != c.Params.Parallelism ||
		uint32(len(p.salt)) != c.Params.SaltLength || // #nosec G115
		uint32(len(p.key)) != c.Params.KeyLength // #nosec G115
}

func (c Config) acceptable(p phc) bool {
	lim := c.Params
	switch {
	case p.mem > lim.MemoryKiB*2, p.iter > lim.Iterations*2, uint32(p.par) > uint32(lim.Parallelism)*2:
		return false
	case len(p.salt) < 8, len(p.salt) > 64:
		return false
	case len(p.key) < 16, len(p.key) > 128:
		return false
	}
	return true
}

func parsePHC(encoded string) (phc, error) {
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" || fields[1] != "argon2id" || fields[2] != "v=19" {
		return phc{}, ErrInvalidHash
	}

	var p phc
	for _, kv := range strings.Split(fields[3], ",") {
		name, val, ok := strings.Cut(kv, "=")
		if !ok {
			return phc{}, ErrInvalidHash
		}
		n, err := strconv.ParseUint(val, 10, 32)
		if err != nil || n == 0 {
			return phc{}, ErrInvalidHash
		}
		switch name {
		case "m":
			p.mem = uint32(n)
		case "t":
			p.iter = uint32(n)
		case "p":
			if n > 255 {
				return phc{}, ErrInvalidHash
			}
			p.par = uint8(n)
		default:
			return phc{}, ErrInvalidHash
		}
	}
	if p.mem == 0 || p.iter == 0 || p.par == 0 {
		return phc{}, ErrInvalidHash
	}

	var err error
	if p.salt, err = phcB64.DecodeString(fields[4]); err != nil {
		return phc{}, ErrInvalidHash
	}
	if p.key, err = phcB64.DecodeString(fields[5]); err != nil {
		return phc{}, ErrInvalidHash
	}
	return p, nil
}
