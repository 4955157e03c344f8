package models

// ErrorCorrectionType selects the channel-coding variant applied to the
// payload before embedding.
type ErrorCorrectionType uint8

const (
	ErrorCorrectionNone ErrorCorrectionType = iota
	ErrorCorrectionHamming
	ErrorCorrectionReedSolomon
)

// IsValid checks if the error correction type is valid
func (ec ErrorCorrectionType) IsValid() bool {
	return ec <= ErrorCorrectionReedSolomon
}

// String returns the string representation of the error correction type
func (ec ErrorCorrectionType) String() string {
	switch ec {
	case ErrorCorrectionHamming:
		return "hamming"
	case ErrorCorrectionReedSolomon:
		return "rs"
	default:
		return "none"
	}
}

// ParseErrorCorrectionType maps a form/query value to its variant tag.
func ParseErrorCorrectionType(s string) (ErrorCorrectionType, bool) {
	switch s {
	case "none":
		return ErrorCorrectionNone, true
	case "hamming":
		return ErrorCorrectionHamming, true
	case "rs", "reed-solomon":
		return ErrorCorrectionReedSolomon, true
	}
	return ErrorCorrectionNone, false
}

// EncryptionType selects the cipher applied to the payload before coding.
type EncryptionType uint8

const (
	EncryptionNone EncryptionType = iota
	EncryptionFernet
	EncryptionAES
	EncryptionRSA
)

// IsValid checks if the encryption type is valid
func (e EncryptionType) IsValid() bool {
	return e <= EncryptionRSA
}

// String returns the string representation of the encryption type
func (e EncryptionType) String() string {
	switch e {
	case EncryptionFernet:
		return "fernet"
	case EncryptionAES:
		return "aes"
	case EncryptionRSA:
		return "rsa"
	default:
		return "none"
	}
}

// ParseEncryptionType maps a form/query value to its variant tag.
func ParseEncryptionType(s string) (EncryptionType, bool) {
	switch s {
	case "none":
		return EncryptionNone, true
	case "fernet":
		return EncryptionFernet, true
	case "aes":
		return EncryptionAES, true
	case "rsa":
		return EncryptionRSA, true
	}
	return EncryptionNone, false
}

// KeyDerivationType selects how a passphrase becomes a symmetric key.
type KeyDerivationType uint8

const (
	KeyDerivationNone KeyDerivationType = iota
	KeyDerivationPBKDF2
	KeyDerivationScrypt
)

// ParseKeyDerivationType maps a form/query value to its variant tag.
func ParseKeyDerivationType(s string) (KeyDerivationType, bool) {
	switch s {
	case "pbkdf2":
		return KeyDerivationPBKDF2, true
	case "none":
		return KeyDerivationNone, true
	case "scrypt":
		return KeyDerivationScrypt, true
	}
	return KeyDerivationNone, false
}

// EncodingConfig carries every parameter of one embedding. The header
// embedded alongside the payload records LSB, Stride, RedundantBits and the
// error-correction and encryption variant tags, so decode reconstructs those
// from the file itself. KeyDerivation, RepeatData and TestMode are not
// recorded; decode takes KeyDerivation and TestMode from the caller.
type EncodingConfig struct {
	LSB             int
	Stride          int
	RedundantBits   int
	ErrorCorrection ErrorCorrectionType
	Encryption      EncryptionType
	KeyDerivation   KeyDerivationType
	RepeatData      bool
	TestMode        bool // reduced KDF cost, test-only
}

// DefaultEncodingConfig uses the LSB width, stride, redundancy and
// Reed-Solomon coding of the original fingerprinting flow for ownership
// marks; encryption defaults to none.
func DefaultEncodingConfig() EncodingConfig {
	return EncodingConfig{
		LSB:             2,
		Stride:          4,
		RedundantBits:   8,
		ErrorCorrection: ErrorCorrectionReedSolomon,
		Encryption:      EncryptionNone,
		KeyDerivation:   KeyDerivationPBKDF2,
	}
}

// Validate checks the ranges of LSB, Stride and RedundantBits, the error
// correction and encryption tags, and cross-field constraints. KeyDerivation
// is not checked here; an unknown variant fails when a key is derived.
func (c *EncodingConfig) Validate() error {
	if c.LSB < 1 || c.LSB > 16 {
		return ErrInvalidConfig
	}
	if c.Stride < 1 {
		return ErrInvalidConfig
	}
	if c.RedundantBits < 0 {
		return ErrInvalidConfig
	}
	// A slot of more than 8 bits spans the following byte; consecutive
	// eligible positions must not overlap.
	if c.LSB > 8*c.Stride {
		return ErrInvalidConfig
	}
	if !c.ErrorCorrection.IsValid() || !c.Encryption.IsValid() {
		return ErrInvalidConfig
	}
	if c.ErrorCorrection == ErrorCorrectionHamming && (c.RedundantBits < 2 || c.RedundantBits > 8) {
		return ErrInvalidConfig
	}
	if c.ErrorCorrection == ErrorCorrectionReedSolomon && (c.RedundantBits < 1 || c.RedundantBits > 254) {
		return ErrInvalidConfig
	}
	return nil
}
