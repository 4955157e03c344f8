package service

import (
	"log"

	"github.com/xErkAy/audio-protection/models"
)

// EncodePayload runs the full pipeline between files on disk: load, embed,
// atomic save. Nothing on disk changes unless every step succeeds.
func (s *stegoService) EncodePayload(wavPath, outPath string, payload []byte, config models.EncodingConfig, material models.KeyMaterial, passphrase string, overwrite bool) error {
	wav, err := s.audio.LoadWAV(wavPath)
	if err != nil {
		return err
	}
	if err := s.embedInto(wav, payload, config, material, passphrase); err != nil {
		return err
	}
	if err := s.audio.SaveWAV(wav, outPath, overwrite); err != nil {
		return err
	}
	log.Printf("[INFO] EncodePayload: Embedded %d payload bytes from %s into %s", len(payload), wavPath, outPath)
	return nil
}

// DecodePayload recovers the payload from a stego file on disk.
func (s *stegoService) DecodePayload(wavPath string, req *models.ExtractRequest) ([]byte, error) {
	wav, err := s.audio.LoadWAV(wavPath)
	if err != nil {
		return nil, err
	}
	return s.extractFrom(wav, req)
}
