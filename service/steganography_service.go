package service

import (
	"encoding/binary"
	"log"

	"github.com/pkg/errors"

	"github.com/xErkAy/audio-protection/models"
)

// The data region is addressed as a sequence of eligible byte positions
// startByte + i*stride. Each position is a little-endian slot of
// ceil(lsb/8) bytes whose low lsb bits carry payload; for lsb <= 8 a slot is
// the single byte at the position. Config validation guarantees slots of
// consecutive positions never overlap.

// slotBytes returns the number of carrier bytes one slot occupies.
func slotBytes(lsb int) int {
	if lsb > 8 {
		return 2
	}
	return 1
}

// writeSlot replaces the low width bits of the slot at pos.
func writeSlot(data []byte, pos, width int, value uint64) {
	if width > 8 {
		current := uint64(binary.LittleEndian.Uint16(data[pos : pos+2]))
		current = current&^lsbMask(width) | value&lsbMask(width)
		binary.LittleEndian.PutUint16(data[pos:pos+2], uint16(current))
		return
	}
	data[pos] = data[pos]&^byte(lsbMask(width)) | byte(value&lsbMask(width))
}

// readSlot reads the low width bits of the slot at pos.
func readSlot(data []byte, pos, width int) uint64 {
	if width > 8 {
		return uint64(binary.LittleEndian.Uint16(data[pos:pos+2])) & lsbMask(width)
	}
	return uint64(data[pos]) & lsbMask(width)
}

// capacityBytes counts the whole payload bytes that fit at (lsb, stride)
// into the eligible positions following a header of headerSize bytes. The
// header itself rides at lsb=1, stride=1 and so occupies headerSize*8
// carrier bytes.
func capacityBytes(dataLen, headerSize, lsb, stride int) int {
	start := headerSize * 8
	sb := slotBytes(lsb)
	if dataLen-sb < start {
		return 0
	}
	slots := (dataLen-sb-start)/stride + 1
	return slots * lsb / 8
}

// embedAt writes msg into the eligible slots of data starting at startByte.
// With repeat set, msg is written again from the beginning until the
// eligible positions run out.
func embedAt(data, msg []byte, startByte, lsb, stride int, repeat bool) error {
	if len(msg) == 0 {
		return nil
	}
	sb := slotBytes(lsb)
	in := newBitCursor(msg)

	for pos := startByte; pos+sb <= len(data); pos += stride {
		if in.remaining() == 0 {
			if !repeat {
				return nil
			}
			in = newBitCursor(msg)
		}
		width := min(lsb, in.remaining())
		value, err := in.readBits(width)
		if err != nil {
			return err
		}
		writeSlot(data, pos, width, value)
	}

	// with repeat the trailing copy is allowed to be cut off
	if !repeat && in.remaining() > 0 {
		return errors.Wrapf(models.ErrPayloadTooLarge, "%d bits left after the last eligible position", in.remaining())
	}
	return nil
}

// extractAt reads numBytes back from the eligible slots of data.
func extractAt(data []byte, startByte, lsb, stride, numBytes int) ([]byte, error) {
	out := make([]byte, numBytes)
	if numBytes == 0 {
		return out, nil
	}
	sb := slotBytes(lsb)
	w := newBitCursor(out)

	for pos := startByte; pos+sb <= len(data) && w.remaining() > 0; pos += stride {
		width := min(lsb, w.remaining())
		value := readSlot(data, pos, width)
		if err := w.writeBits(value, width); err != nil {
			return nil, err
		}
	}

	if w.remaining() > 0 {
		return nil, errors.Wrapf(models.ErrMalformedWAV, "carrier ends %d bits short of the declared payload", w.remaining())
	}
	return out, nil
}

// Implementation struct which depends on Crypto and Audio services
type stegoService struct {
	crypto CryptographyService
	audio  AudioService
}

func NewStegoService(crypto CryptographyService, audio AudioService) SteganographyService {
	return &stegoService{crypto: crypto, audio: audio}
}

// CalculateCapacity calculates available payload capacity for 1..4 LSB (in
// bytes) at the given stride, assuming the minimal header with no prelude.
func (s *stegoService) CalculateCapacity(wavData []byte, stride int) (*models.CapacityResult, error) {
	if stride < 1 {
		return nil, models.ErrInvalidConfig
	}
	wav, err := s.audio.ParseWAV(wavData)
	if err != nil {
		return nil, err
	}
	res := &models.CapacityResult{
		OneLSB:   capacityBytes(len(wav.Data), headerFixedSize, 1, stride),
		TwoLSB:   capacityBytes(len(wav.Data), headerFixedSize, 2, stride),
		ThreeLSB: capacityBytes(len(wav.Data), headerFixedSize, 3, stride),
		FourLSB:  capacityBytes(len(wav.Data), headerFixedSize, 4, stride),
	}
	return res, nil
}

// embedInto runs encryption, coding and embedding against a parsed carrier.
// The carrier is not touched until the capacity check has passed.
func (s *stegoService) embedInto(wav *WaveFile, payload []byte, config models.EncodingConfig, material models.KeyMaterial, passphrase string) error {
	if err := config.Validate(); err != nil {
		return err
	}

	encryptor, err := s.crypto.GetEncryptor(config, material, passphrase, nil)
	if err != nil {
		return err
	}
	defer encryptor.Close()

	ciphertext, err := encryptor.Encrypt(payload)
	if err != nil {
		return err
	}

	coder, err := GetErrorCorrection(config.ErrorCorrection)
	if err != nil {
		return err
	}
	coded, err := coder.Encode(ciphertext, config.RedundantBits)
	if err != nil {
		return err
	}

	header := &stegoHeader{
		LSB:             uint8(config.LSB),
		Stride:          uint16(config.Stride),
		ErrorCorrection: config.ErrorCorrection,
		Encryption:      config.Encryption,
		RedundantBits:   uint16(config.RedundantBits),
		CodedLen:        uint32(len(coded)),
		Prelude:         encryptor.Prelude(),
	}
	headerBytes := header.marshal()

	if len(headerBytes)*8 > len(wav.Data) {
		return errors.Wrapf(models.ErrPayloadTooLarge, "data region of %d bytes cannot hold the %d-byte header", len(wav.Data), len(headerBytes))
	}
	capacity := capacityBytes(len(wav.Data), len(headerBytes), config.LSB, config.Stride)
	if len(coded) > capacity {
		return errors.Wrapf(models.ErrPayloadTooLarge, "coded payload is %d bytes, capacity is %d", len(coded), capacity)
	}

	if err := embedAt(wav.Data, headerBytes, 0, 1, 1, false); err != nil {
		return err
	}
	if err := embedAt(wav.Data, coded, len(headerBytes)*8, config.LSB, config.Stride, config.RepeatData); err != nil {
		return err
	}

	log.Printf("[DEBUG] embedInto: Embedded %d coded bytes (header %d bytes) at lsb=%d stride=%d repeat=%t",
		len(coded), len(headerBytes), config.LSB, config.Stride, config.RepeatData)
	return nil
}

// extractFrom reads the self-describing header and recovers the payload.
func (s *stegoService) extractFrom(wav *WaveFile, req *models.ExtractRequest) ([]byte, error) {
	fixed, err := extractAt(wav.Data, 0, 1, 1, headerFixedSize)
	if err != nil {
		return nil, models.ErrNotSteganographic
	}
	header, preludeLen, err := parseStegoHeaderFixed(fixed)
	if err != nil {
		return nil, err
	}
	prelude, err := extractAt(wav.Data, headerFixedSize*8, 1, 1, preludeLen)
	if err != nil {
		return nil, err
	}
	header.Prelude = prelude

	config := models.EncodingConfig{
		LSB:             int(header.LSB),
		Stride:          int(header.Stride),
		RedundantBits:   int(header.RedundantBits),
		ErrorCorrection: header.ErrorCorrection,
		Encryption:      header.Encryption,
		KeyDerivation:   req.KeyDerivation,
		TestMode:        req.TestMode,
	}
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(models.ErrMalformedWAV, "embedded header declares an invalid configuration")
	}

	coded, err := extractAt(wav.Data, header.size()*8, config.LSB, config.Stride, int(header.CodedLen))
	if err != nil {
		return nil, err
	}

	coder, err := GetErrorCorrection(config.ErrorCorrection)
	if err != nil {
		return nil, err
	}
	ciphertext, err := coder.Decode(coded, config.RedundantBits)
	if err != nil {
		return nil, err
	}

	encryptor, err := s.crypto.GetEncryptor(config, req.KeyMaterial, req.Passphrase, prelude)
	if err != nil {
		return nil, err
	}
	defer encryptor.Close()

	return encryptor.Decrypt(ciphertext)
}

// Embed hides a payload inside a WAV carrier held in memory.
func (s *stegoService) Embed(req *models.EmbedRequest) (*models.EmbedResponse, error) {
	wav, err := s.audio.ParseWAV(req.CoverAudio)
	if err != nil {
		return nil, err
	}
	cover := append([]byte(nil), wav.Data...)

	if err := s.embedInto(wav, req.Payload, req.Config, req.KeyMaterial, req.Passphrase); err != nil {
		return nil, err
	}

	return &models.EmbedResponse{
		StegoAudio: s.audio.SerializeWAV(wav),
		PSNR:       s.audio.CalculatePSNR(cover, wav.Data),
	}, nil
}

// Extract recovers a payload from a stego WAV held in memory.
func (s *stegoService) Extract(req *models.ExtractRequest) (*models.ExtractResponse, error) {
	wav, err := s.audio.ParseWAV(req.StegoAudio)
	if err != nil {
		return nil, err
	}
	payload, err := s.extractFrom(wav, req)
	if err != nil {
		return nil, err
	}
	return &models.ExtractResponse{Payload: payload, Size: len(payload)}, nil
}
