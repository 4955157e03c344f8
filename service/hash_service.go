package service

import (
	"crypto/rand"
	"crypto/sha256"

	"github.com/pkg/errors"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/scrypt"

	"github.com/xErkAy/audio-protection/models"
)

const saltSize = 16

// Production KDF costs. Test mode drops them to keep the test suite fast;
// the derived keys are still real keys of the requested size.
const (
	pbkdf2Iterations     = 100000
	pbkdf2TestIterations = 1
	scryptN              = 1 << 14
	scryptTestN          = 1 << 4
	scryptR              = 8
	scryptP              = 1
)

// keyDeriver turns a passphrase and salt into a symmetric key of whatever
// size the requesting cipher needs.
type keyDeriver struct {
	variant  models.KeyDerivationType
	salt     []byte
	testMode bool
}

// newKeyDeriver builds a deriver for the given variant. A nil salt is
// replaced with a fresh random one; the caller surfaces it through the
// header prelude so decoding can reconstruct the same deriver.
func newKeyDeriver(variant models.KeyDerivationType, salt []byte, testMode bool) (*keyDeriver, error) {
	if salt == nil {
		salt = make([]byte, saltSize)
		if _, err := rand.Read(salt); err != nil {
			return nil, errors.Wrap(err, "generating KDF salt")
		}
	}
	if len(salt) != saltSize {
		return nil, errors.Wrapf(models.ErrInvalidConfig, "KDF salt must be %d bytes, got %d", saltSize, len(salt))
	}
	return &keyDeriver{variant: variant, salt: salt, testMode: testMode}, nil
}

// Salt returns the salt the deriver was built with.
func (d *keyDeriver) Salt() []byte {
	return d.salt
}

// DeriveKey produces a key of exactly size bytes from the passphrase.
func (d *keyDeriver) DeriveKey(passphrase string, size int) ([]byte, error) {
	switch d.variant {
	case models.KeyDerivationNone:
		// passthrough: passphrase bytes zero-padded or truncated
		key := make([]byte, size)
		copy(key, passphrase)
		return key, nil
	case models.KeyDerivationPBKDF2:
		iterations := pbkdf2Iterations
		if d.testMode {
			iterations = pbkdf2TestIterations
		}
		return pbkdf2.Key([]byte(passphrase), d.salt, iterations, size, sha256.New), nil
	case models.KeyDerivationScrypt:
		n := scryptN
		if d.testMode {
			n = scryptTestN
		}
		key, err := scrypt.Key([]byte(passphrase), d.salt, n, scryptR, scryptP, size)
		if err != nil {
			return nil, errors.Wrap(err, "scrypt")
		}
		return key, nil
	}
	return nil, errors.Wrapf(models.ErrInvalidConfig, "unknown key derivation variant %d", d.variant)
}

// zeroize clears key or plaintext material once its owner is done with it.
func zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
