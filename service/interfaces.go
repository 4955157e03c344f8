package service

import (
	"github.com/xErkAy/audio-protection/models"
)

// SteganographyService defines the interface for the embedding pipeline
type SteganographyService interface {
	// CalculateCapacity calculates the payload capacity of a WAV carrier
	// for 1..4 LSBs at the given stride
	CalculateCapacity(wavData []byte, stride int) (*models.CapacityResult, error)

	// Embed hides a payload inside a WAV carrier held in memory
	Embed(req *models.EmbedRequest) (*models.EmbedResponse, error)

	// Extract recovers a payload from a stego WAV held in memory
	Extract(req *models.ExtractRequest) (*models.ExtractResponse, error)

	// EncodePayload runs the full pipeline between two files on disk
	EncodePayload(wavPath, outPath string, payload []byte, config models.EncodingConfig, material models.KeyMaterial, passphrase string, overwrite bool) error

	// DecodePayload recovers the payload from a stego file on disk
	DecodePayload(wavPath string, req *models.ExtractRequest) ([]byte, error)
}

// CryptographyService defines the interface for cryptographic operations
type CryptographyService interface {
	// GetEncryptor builds the encryptor a config describes. A nil prelude
	// means encryption direction (nonces and salts are generated); a
	// non-nil prelude reconstructs the decryption state from header bytes.
	GetEncryptor(config models.EncodingConfig, material models.KeyMaterial, passphrase string, prelude []byte) (Encryptor, error)

	// GenerateKeyMaterial creates a fresh RSA-2048 pair, the private key
	// wrapped as passphrase-protected PKCS#8 PEM
	GenerateKeyMaterial(passphrase string) (models.KeyMaterial, error)
}

// Encryptor transforms payload bytes to ciphertext and back. Prelude returns
// the variant-specific material the header must carry for decoding.
type Encryptor interface {
	Encrypt(data []byte) ([]byte, error)
	Decrypt(data []byte) ([]byte, error)
	Prelude() []byte

	// Close zeroes any symmetric key material held by the instance
	Close()
}

// ErrorCorrection transforms payload bytes to codeword bytes and back given
// a per-variant redundancy parameter.
type ErrorCorrection interface {
	Encode(data []byte, redundantBits int) ([]byte, error)
	Decode(data []byte, redundantBits int) ([]byte, error)
}

// AudioService defines the interface for WAV container operations
type AudioService interface {
	// LoadWAV reads and parses a RIFF/WAVE file from disk
	LoadWAV(path string) (*WaveFile, error)

	// ParseWAV parses RIFF/WAVE bytes held in memory
	ParseWAV(data []byte) (*WaveFile, error)

	// SerializeWAV renders the file back to bytes, bit-exact outside the
	// mutated data region
	SerializeWAV(file *WaveFile) []byte

	// SaveWAV writes the file to disk via a temporary path and atomic rename
	SaveWAV(file *WaveFile, path string, overwrite bool) error

	// CalculatePSNR calculates Peak Signal-to-Noise Ratio between original
	// and modified 16-bit sample data
	CalculatePSNR(original, modified []byte) float64
}
