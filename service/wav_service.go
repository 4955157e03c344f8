package service

import (
	"encoding/binary"
	"log"
	"math"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/xErkAy/audio-protection/models"
)

// WaveFile is a parsed RIFF/WAVE PCM file. Data is the payload of the data
// chunk and is the only region the embedder mutates; prefix and suffix hold
// every other byte of the original file unchanged, so serialization is
// bit-exact outside the data region.
type WaveFile struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
	ByteRate      int
	BlockAlign    int

	Data []byte

	prefix []byte // from "RIFF" through the last byte before the data chunk header
	suffix []byte // trailing chunks after the data payload, pad byte included
}

// audioService implements the AudioService interface
type audioService struct{}

// NewAudioService creates a new audio service instance
func NewAudioService() AudioService {
	return &audioService{}
}

// LoadWAV reads and parses a RIFF/WAVE file from disk
func (a *audioService) LoadWAV(path string) (*WaveFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	return a.ParseWAV(raw)
}

// ParseWAV parses RIFF/WAVE bytes held in memory. Auxiliary chunks before
// and after the data chunk are preserved in their original byte form.
func (a *audioService) ParseWAV(raw []byte) (*WaveFile, error) {
	if len(raw) < 12 || string(raw[:4]) != "RIFF" || string(raw[8:12]) != "WAVE" {
		return nil, models.ErrNotWAV
	}

	riffSize := binary.LittleEndian.Uint32(raw[4:8])
	if int(riffSize) != len(raw)-8 {
		return nil, errors.Wrapf(models.ErrMalformedWAV, "RIFF size %d, want %d", riffSize, len(raw)-8)
	}

	file := &WaveFile{}
	haveFmt := false
	offset := 12

	for offset+8 <= len(raw) {
		chunkID := string(raw[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(raw[offset+4 : offset+8]))

		log.Printf("[DEBUG] ParseWAV: Found chunk '%s' at offset %d, size %d", chunkID, offset, chunkSize)

		if chunkID == "data" {
			if !haveFmt {
				return nil, errors.Wrap(models.ErrMalformedWAV, "data chunk precedes fmt chunk")
			}
			end := offset + 8 + chunkSize
			if end > len(raw) {
				return nil, errors.Wrapf(models.ErrMalformedWAV, "data chunk overruns file by %d bytes", end-len(raw))
			}
			file.prefix = raw[:offset]
			file.Data = append([]byte(nil), raw[offset+8:end]...)
			file.suffix = raw[end:]
			return file, nil
		}

		if chunkID == "fmt " {
			if chunkSize < 16 || offset+8+chunkSize > len(raw) {
				return nil, errors.Wrap(models.ErrMalformedWAV, "fmt chunk too short")
			}
			body := raw[offset+8:]
			file.Channels = int(binary.LittleEndian.Uint16(body[2:4]))
			file.SampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			file.ByteRate = int(binary.LittleEndian.Uint32(body[8:12]))
			file.BlockAlign = int(binary.LittleEndian.Uint16(body[12:14]))
			file.BitsPerSample = int(binary.LittleEndian.Uint16(body[14:16]))
			haveFmt = true
		}

		// chunks are padded to even byte boundaries
		next := offset + 8 + chunkSize
		if chunkSize%2 == 1 {
			next++
		}
		if next <= offset {
			return nil, errors.Wrap(models.ErrMalformedWAV, "chunk size loops")
		}
		offset = next
	}

	return nil, errors.Wrap(models.ErrMalformedWAV, "no data chunk present")
}

// SerializeWAV renders the file back to bytes. The output is
// prefix + data chunk header + data + suffix with the RIFF size recomputed,
// which reproduces the input byte-for-byte when the data region is untouched.
func (a *audioService) SerializeWAV(file *WaveFile) []byte {
	out := make([]byte, 0, len(file.prefix)+8+len(file.Data)+len(file.suffix))
	out = append(out, file.prefix...)

	var hdr [8]byte
	copy(hdr[:4], "data")
	binary.LittleEndian.PutUint32(hdr[4:], uint32(len(file.Data)))
	out = append(out, hdr[:]...)
	out = append(out, file.Data...)
	out = append(out, file.suffix...)

	binary.LittleEndian.PutUint32(out[4:8], uint32(len(out)-8))
	return out
}

// SaveWAV writes the serialized file to disk. The bytes go to a temporary
// file in the target directory first and are renamed into place, so a failed
// write never leaves a half-modified file behind.
func (a *audioService) SaveWAV(file *WaveFile, path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return models.ErrFileExists
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".wav-*.tmp")
	if err != nil {
		return errors.Wrap(err, "creating temporary file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(a.SerializeWAV(file)); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, "writing temporary file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "closing temporary file")
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "setting permissions")
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(err, "renaming into %s", path)
	}

	log.Printf("[INFO] SaveWAV: Wrote %d bytes to %s", len(file.prefix)+8+len(file.Data)+len(file.suffix), path)
	return nil
}

// CalculatePSNR calculates Peak Signal-to-Noise Ratio between original and
// modified audio data regions (16-bit little-endian samples).
func (a *audioService) CalculatePSNR(original, modified []byte) float64 {
	if len(original) != len(modified) {
		log.Printf("[WARN] CalculatePSNR: Length mismatch - original: %d, modified: %d", len(original), len(modified))
		return 0.0
	}

	var mse float64
	sampleCount := len(original) / 2

	for i := 0; i+1 < len(original); i += 2 {
		originalSample := int16(binary.LittleEndian.Uint16(original[i : i+2]))
		modifiedSample := int16(binary.LittleEndian.Uint16(modified[i : i+2]))

		diff := float64(originalSample) - float64(modifiedSample)
		mse += diff * diff
	}

	if sampleCount == 0 {
		return 0.0
	}

	mse /= float64(sampleCount)
	if mse == 0 {
		return math.Inf(1)
	}

	maxValue := 32767.0
	psnr := 20 * math.Log10(maxValue/math.Sqrt(mse))

	log.Printf("[DEBUG] CalculatePSNR: MSE=%.6f, PSNR=%.2f dB (samples: %d)", mse, psnr, sampleCount)
	return psnr
}
