package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher turns plaintext passwords into one-way digests and checks
// candidates against them.
type PasswordHasher interface {
	// Hash returns a salted digest of password.
	Hash(password string) (string, error)

	// Verify reports whether password matches digest. A mismatch is
	// (false, nil); ErrCorruptCredential is returned only when digest
	// cannot be parsed.
	Verify(password, digest string) (bool, error)

	// NeedsRehash reports whether digest was produced with a different
	// algorithm or cost than this hasher would use today.
	NeedsRehash(digest string) bool
}

// Algorithm names accepted by NewPasswordHasher.
const (
	AlgorithmArgon2id = "argon2id"
	AlgorithmBcrypt   = "bcrypt"
)

const (
	argonKeyLen  = 32
	argonSaltLen = 16
)

// Argon2Params are the argon2id cost parameters.
type Argon2Params struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
}

// DefaultArgon2Params follow the OWASP recommendation for argon2id.
var DefaultArgon2Params = Argon2Params{Time: 3, Memory: 64 * 1024, Threads: 4}

// HasherOptions selects the algorithm used for new digests.
type HasherOptions struct {
	Algorithm  string
	Argon2     Argon2Params
	BcryptCost int
}

// Hasher hashes with the configured algorithm and verifies digests from
// either supported algorithm, dispatching on the digest prefix.
type Hasher struct {
	opts HasherOptions
}

// NewPasswordHasher validates opts and returns a Hasher.
func NewPasswordHasher(opts HasherOptions) (*Hasher, error) {
	switch opts.Algorithm {
	case "", AlgorithmArgon2id:
		opts.Algorithm = AlgorithmArgon2id
		if opts.Argon2 == (Argon2Params{}) {
			opts.Argon2 = DefaultArgon2Params
		}
		if opts.Argon2.Time == 0 || opts.Argon2.Memory == 0 || opts.Argon2.Threads == 0 {
			return nil, errors.New("argon2id parameters must be positive")
		}
	case AlgorithmBcrypt:
		if opts.BcryptCost == 0 {
			opts.BcryptCost = bcrypt.DefaultCost
		}
		if opts.BcryptCost < bcrypt.MinCost || opts.BcryptCost > bcrypt.MaxCost {
			return nil, fmt.Errorf("bcrypt cost %d out of range", opts.BcryptCost)
		}
	default:
		return nil, fmt.Errorf("unsupported password algorithm %q", opts.Algorithm)
	}
	return &Hasher{opts: opts}, nil
}

// Hash returns a digest in the configured algorithm.
func (h *Hasher) Hash(password string) (string, error) {
	if h.opts.Algorithm == AlgorithmBcrypt {
		digest, err := bcrypt.GenerateFromPassword([]byte(password), h.opts.BcryptCost)
		if err != nil {
			return "", fmt.Errorf("hashing password: %w", err)
		}
		return string(digest), nil
	}
	return hashArgon2id(password, h.opts.Argon2)
}

// Verify checks password against an argon2id PHC string or a bcrypt digest.
func (h *Hasher) Verify(password, digest string) (bool, error) {
	switch {
	case strings.HasPrefix(digest, "$argon2id$"):
		return verifyArgon2id(password, digest)
	case isBcryptDigest(digest):
		err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(password))
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			return false, nil
		default:
			return false, fmt.Errorf("%w: %w", ErrCorruptCredential, err)
		}
	default:
		return false, fmt.Errorf("%w: unrecognised digest format", ErrCorruptCredential)
	}
}

// NeedsRehash reports whether digest differs from what Hash would produce.
func (h *Hasher) NeedsRehash(digest string) bool {
	if h.opts.Algorithm == AlgorithmBcrypt {
		if !isBcryptDigest(digest) {
			return true
		}
		cost, err := bcrypt.Cost([]byte(digest))
		return err != nil || cost != h.opts.BcryptCost
	}

	if !strings.HasPrefix(digest, "$argon2id$") {
		return true
	}
	_, _, params, err := decodePHC(digest)
	return err != nil || params != h.opts.Argon2
}

func isBcryptDigest(digest string) bool {
	return strings.HasPrefix(digest, "$2a$") ||
		strings.HasPrefix(digest, "$2b$") ||
		strings.HasPrefix(digest, "$2y$")
}

// hashArgon2id returns $argon2id$v=19$m=...,t=...,p=...$<salt>$<hash>.
func hashArgon2id(password string, p Argon2Params) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, argonKeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		p.Memory, p.Time, p.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

func verifyArgon2id(password, digest string) (bool, error) {
	salt, hash, p, err := decodePHC(digest)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrCorruptCredential, err)
	}

	candidate := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, uint32(len(hash))) //nolint:gosec // hash length fits uint32

	return subtle.ConstantTimeCompare(hash, candidate) == 1, nil
}

// decodePHC parses an argon2id PHC string.
func decodePHC(encoded string) (salt, hash []byte, p Argon2Params, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 { //nolint:mnd // PHC format has exactly 6 $-delimited parts
		return nil, nil, p, errors.New("invalid PHC hash format")
	}
	if parts[1] != "argon2id" {
		return nil, nil, p, fmt.Errorf("unsupported algorithm: %s", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil { //nolint:govet // shadow
		return nil, nil, p, fmt.Errorf("parsing version: %w", err)
	}
	if version != argon2.Version {
		return nil, nil, p, fmt.Errorf("unsupported argon2 version %d", version)
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Time, &p.Threads); err != nil { //nolint:govet // shadow
		return nil, nil, p, fmt.Errorf("parsing parameters: %w", err)
	}
	if p.Memory == 0 || p.Time == 0 || p.Threads == 0 {
		return nil, nil, p, errors.New("zero cost parameter")
	}

	if salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return nil, nil, p, fmt.Errorf("decoding salt: %w", err)
	}
	if hash, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return nil, nil, p, fmt.Errorf("decoding hash: %w", err)
	}
	if len(hash) == 0 {
		return nil, nil, p, errors.New("empty hash")
	}

	return salt, hash, p, nil
}
