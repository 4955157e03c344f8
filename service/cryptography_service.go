package service

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"log"

	"github.com/fernet/fernet-go"
	"github.com/pkg/errors"
	"github.com/youmark/pkcs8"

	"github.com/xErkAy/audio-protection/models"
)

const (
	aesKeySize    = 32
	aesNonceSize  = 16
	fernetKeySize = 32

	rsaKeyBits = 2048
	// OAEP with SHA-256 over a 2048-bit modulus: 256 - 2*32 - 2
	rsaMaxPlaintext = 190
)

// cryptographyService implements the CryptographyService interface
type cryptographyService struct{}

// NewCryptographyService creates a new cryptography service instance
func NewCryptographyService() CryptographyService {
	return &cryptographyService{}
}

// GetEncryptor builds the encryptor the config describes. With a nil
// prelude the instance encrypts: salts and nonces are generated and exposed
// through Prelude() for the embedded header. With header prelude bytes the
// instance decrypts with the recorded material.
func (c *cryptographyService) GetEncryptor(config models.EncodingConfig, material models.KeyMaterial, passphrase string, prelude []byte) (Encryptor, error) {
	switch config.Encryption {
	case models.EncryptionNone:
		return &noneEncryptor{}, nil
	case models.EncryptionFernet:
		return newFernetEncryptor(config, passphrase, prelude)
	case models.EncryptionAES:
		return newAESEncryptor(config, passphrase, prelude)
	case models.EncryptionRSA:
		return newRSAEncryptor(material, passphrase)
	}
	return nil, errors.Wrapf(models.ErrInvalidConfig, "unknown encryption variant %d", config.Encryption)
}

// GenerateKeyMaterial creates a fresh RSA-2048 pair. The private key is
// wrapped as passphrase-protected PKCS#8 PEM; the pair is handed back for an
// external collaborator to persist.
func (c *cryptographyService) GenerateKeyMaterial(passphrase string) (models.KeyMaterial, error) {
	priv, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return models.KeyMaterial{}, errors.Wrap(err, "generating RSA key")
	}

	privDER, err := pkcs8.ConvertPrivateKeyToPKCS8(priv, []byte(passphrase))
	if err != nil {
		return models.KeyMaterial{}, errors.Wrap(err, "encrypting private key")
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return models.KeyMaterial{}, errors.Wrap(err, "marshaling public key")
	}

	return models.KeyMaterial{
		PublicKeyPEM:  pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}),
		PrivateKeyPEM: pem.EncodeToMemory(&pem.Block{Type: "ENCRYPTED PRIVATE KEY", Bytes: privDER}),
	}, nil
}

// ------------------ none ------------------

type noneEncryptor struct{}

func (e *noneEncryptor) Encrypt(data []byte) ([]byte, error) { return data, nil }
func (e *noneEncryptor) Decrypt(data []byte) ([]byte, error) { return data, nil }
func (e *noneEncryptor) Prelude() []byte                     { return nil }
func (e *noneEncryptor) Close()                              {}

// ------------------ fernet ------------------

// fernetEncryptor wraps the payload in a Fernet token (AES-128-CBC +
// HMAC-SHA256, URL-safe). Prelude layout: salt (16 bytes).
type fernetEncryptor struct {
	key  fernet.Key
	salt []byte
}

func newFernetEncryptor(config models.EncodingConfig, passphrase string, prelude []byte) (*fernetEncryptor, error) {
	var salt []byte
	if prelude != nil {
		if len(prelude) != saltSize {
			return nil, errors.Wrapf(models.ErrInvalidConfig, "fernet prelude must be %d bytes, got %d", saltSize, len(prelude))
		}
		salt = prelude
	}

	deriver, err := newKeyDeriver(config.KeyDerivation, salt, config.TestMode)
	if err != nil {
		return nil, err
	}
	raw, err := deriver.DeriveKey(passphrase, fernetKeySize)
	if err != nil {
		return nil, err
	}

	e := &fernetEncryptor{salt: deriver.Salt()}
	copy(e.key[:], raw)
	zeroize(raw)
	return e, nil
}

func (e *fernetEncryptor) Encrypt(data []byte) ([]byte, error) {
	tok, err := fernet.EncryptAndSign(data, &e.key)
	if err != nil {
		return nil, errors.Wrap(err, "fernet encrypt")
	}
	return tok, nil
}

func (e *fernetEncryptor) Decrypt(data []byte) ([]byte, error) {
	msg := fernet.VerifyAndDecrypt(data, 0, []*fernet.Key{&e.key})
	if msg == nil {
		return nil, models.ErrAuthenticationFailed
	}
	return msg, nil
}

func (e *fernetEncryptor) Prelude() []byte { return e.salt }

func (e *fernetEncryptor) Close() { zeroize(e.key[:]) }

// ------------------ aes ------------------

// aesEncryptor seals the payload with AES-256-GCM under a 16-byte nonce, so
// a wrong passphrase fails authentication instead of yielding garbage.
// Prelude layout: nonce (16 bytes) then salt (16 bytes).
type aesEncryptor struct {
	key   []byte
	nonce []byte
	salt  []byte
}

func newAESEncryptor(config models.EncodingConfig, passphrase string, prelude []byte) (*aesEncryptor, error) {
	var salt, nonce []byte
	if prelude != nil {
		if len(prelude) != aesNonceSize+saltSize {
			return nil, errors.Wrapf(models.ErrInvalidConfig, "aes prelude must be %d bytes, got %d", aesNonceSize+saltSize, len(prelude))
		}
		nonce = prelude[:aesNonceSize]
		salt = prelude[aesNonceSize:]
	} else {
		nonce = make([]byte, aesNonceSize)
		if _, err := rand.Read(nonce); err != nil {
			return nil, errors.Wrap(err, "generating nonce")
		}
	}

	deriver, err := newKeyDeriver(config.KeyDerivation, salt, config.TestMode)
	if err != nil {
		return nil, err
	}
	key, err := deriver.DeriveKey(passphrase, aesKeySize)
	if err != nil {
		return nil, err
	}

	return &aesEncryptor{key: key, nonce: nonce, salt: deriver.Salt()}, nil
}

func (e *aesEncryptor) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(e.key)
	if err != nil {
		return nil, errors.Wrap(err, "aes cipher")
	}
	return cipher.NewGCMWithNonceSize(block, aesNonceSize)
}

func (e *aesEncryptor) Encrypt(data []byte) ([]byte, error) {
	aead, err := e.aead()
	if err != nil {
		return nil, err
	}
	return aead.Seal(nil, e.nonce, data, nil), nil
}

func (e *aesEncryptor) Decrypt(data []byte) ([]byte, error) {
	aead, err := e.aead()
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, e.nonce, data, nil)
	if err != nil {
		return nil, models.ErrAuthenticationFailed
	}
	return plaintext, nil
}

func (e *aesEncryptor) Prelude() []byte {
	prelude := make([]byte, 0, aesNonceSize+saltSize)
	prelude = append(prelude, e.nonce...)
	prelude = append(prelude, e.salt...)
	return prelude
}

func (e *aesEncryptor) Close() { zeroize(e.key) }

// ------------------ rsa ------------------

// rsaEncryptor encrypts with the public key and decrypts with the
// passphrase-protected private key, both supplied by the caller. OAEP over a
// 2048-bit modulus produces fixed 256-byte ciphertexts and caps a
// single-shot payload at 190 bytes. Empty prelude.
type rsaEncryptor struct {
	material   models.KeyMaterial
	passphrase string
}

func newRSAEncryptor(material models.KeyMaterial, passphrase string) (*rsaEncryptor, error) {
	if material.PublicKeyPEM == nil && material.PrivateKeyPEM == nil {
		return nil, errors.Wrap(models.ErrInvalidKey, "no RSA key material supplied")
	}
	return &rsaEncryptor{material: material, passphrase: passphrase}, nil
}

func (e *rsaEncryptor) publicKey() (*rsa.PublicKey, error) {
	block, _ := pem.Decode(e.material.PublicKeyPEM)
	if block == nil {
		return nil, errors.Wrap(models.ErrInvalidKey, "public key is not PEM")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, errors.Wrap(models.ErrInvalidKey, err.Error())
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, errors.Wrap(models.ErrInvalidKey, "public key is not RSA")
	}
	return rsaPub, nil
}

func (e *rsaEncryptor) privateKey() (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(e.material.PrivateKeyPEM)
	if block == nil {
		return nil, errors.Wrap(models.ErrInvalidKey, "private key is not PEM")
	}
	priv, err := pkcs8.ParsePKCS8PrivateKeyRSA(block.Bytes, []byte(e.passphrase))
	if err != nil {
		log.Printf("[WARN] rsaEncryptor: private key load failed: %v", err)
		return nil, errors.Wrap(models.ErrInvalidKey, "private key passphrase mismatch")
	}
	return priv, nil
}

func (e *rsaEncryptor) Encrypt(data []byte) ([]byte, error) {
	if len(data) > rsaMaxPlaintext {
		return nil, errors.Wrapf(models.ErrPayloadTooLarge, "RSA-OAEP caps a payload at %d bytes, got %d", rsaMaxPlaintext, len(data))
	}
	pub, err := e.publicKey()
	if err != nil {
		return nil, err
	}
	return rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, data, nil)
}

func (e *rsaEncryptor) Decrypt(data []byte) ([]byte, error) {
	priv, err := e.privateKey()
	if err != nil {
		return nil, err
	}
	plaintext, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, data, nil)
	if err != nil {
		return nil, models.ErrAuthenticationFailed
	}
	return plaintext, nil
}

func (e *rsaEncryptor) Prelude() []byte { return nil }

func (e *rsaEncryptor) Close() {}
