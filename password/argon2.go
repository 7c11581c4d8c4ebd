package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	algorithm = "argon2id"

	minMemoryKB = 8 * 1024
	minSaltLen  = 16
	minKeyLen   = 16

	// MinLength is the shortest password accepted, in bytes.
	MinLength = 8
	// MaxLength bounds the work a single hash can cost.
	MaxLength = 1024
)

var (
	ErrTooShort  = fmt.Errorf("password must be at least %d characters", MinLength)
	ErrTooLong   = fmt.Errorf("password must be at most %d bytes", MaxLength)
	ErrMalformed = errors.New("password: malformed hash")
)

// Params are the Argon2id cost parameters.
type Params struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultParams follow the OWASP Argon2id baseline.
func DefaultParams() Params {
	return Params{Memory: 64 * 1024, Time: 3, Parallelism: 2, SaltLength: 16, KeyLength: 32}
}

func (p Params) validate() error {
	switch {
	case p.Memory < minMemoryKB:
		return fmt.Errorf("password memory must be >= %d KB", minMemoryKB)
	case p.Time < 1:
		return errors.New("password time must be >= 1")
	case p.Parallelism < 1:
		return errors.New("password parallelism must be >= 1")
	case p.SaltLength < minSaltLen:
		return fmt.Errorf("password salt length must be >= %d", minSaltLen)
	case p.KeyLength < minKeyLen:
		return fmt.Errorf("password key length must be >= %d", minKeyLen)
	}
	return nil
}

// Hasher hashes and verifies passwords. It is safe for concurrent use.
type Hasher struct {
	params Params
}

// NewHasher returns a Hasher for p.
func NewHasher(p Params) (*Hasher, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &Hasher{params: p}, nil
}

func checkLength(pw string) error {
	if len(pw) < MinLength {
		return ErrTooShort
	}
	if len(pw) > MaxLength {
		return ErrTooLong
	}
	return nil
}

// Hash returns the PHC encoding of pw.
func (h *Hasher) Hash(pw string) (string, error) {
	if err := checkLength(pw); err != nil {
		return "", err
	}

	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(pw), salt, h.params.Time, h.params.Memory, h.params.Parallelism, h.params.KeyLength)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithm, argon2.Version,
		h.params.Memory, h.params.Time, h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether pw matches encoded.
func (h *Hasher) Verify(pw, encoded string) (bool, error) {
	if len(pw) > MaxLength {
		return false, ErrTooLong
	}
	d, err := decode(encoded)
	if err != nil {
		return false, err
	}
	key := argon2.IDKey([]byte(pw), d.salt, d.params.Time, d.params.Memory, d.params.Parallelism, d.params.KeyLength)
	return subtle.ConstantTimeCompare(key, d.key) == 1, nil
}

// NeedsRehash reports whether encoded was made with weaker parameters than h.
func (h *Hasher) NeedsRehash(encoded string) (bool, error) {
	d, err := decode(encoded)
	if err != nil {
		return false, err
	}
	p := d.params
	return p.Memory < h.params.Memory ||
		p.Time < h.params.Time ||
		p.Parallelism < h.params.Parallelism ||
		p.KeyLength != h.params.KeyLength, nil
}

type decoded struct {
	params Params
	salt   []byte
	key    []byte
}

func decode(encoded string) (*decoded, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != algorithm {
		return nil, ErrMalformed
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return nil, fmt.Errorf("%w: unsupported version", ErrMalformed)
	}

	var p Params
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Time, &p.Parallelism); err != nil {
		return nil, fmt.Errorf("%w: parameters", ErrMalformed)
	}
	if p.Memory < minMemoryKB || p.Time < 1 || p.Parallelism < 1 {
		return nil, fmt.Errorf("%w: parameters out of range", ErrMalformed)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) < minSaltLen {
		return nil, fmt.Errorf("%w: salt", ErrMalformed)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) < minKeyLen {
		return nil, fmt.Errorf("%w: key", ErrMalformed)
	}
	p.SaltLength = uint32(len(salt))
	p.KeyLength = uint32(len(key))

	return &decoded{params: p, salt: salt, key: key}, nil
}
