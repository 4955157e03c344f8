package service

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/xErkAy/audio-protection/models"
)

/*
 Embedded header (binary, fixed order, big-endian integers):
 - 4 bytes magic: "STG1"
 - 1 byte lsb width (1..16)
 - 2 bytes stride (>= 1)
 - 1 byte error-correction variant {0 none, 1 hamming, 2 rs}
 - 1 byte encryption variant {0 none, 1 fernet, 2 aes, 3 rsa}
 - 2 bytes redundant bits
 - 2 bytes prelude length
 - 4 bytes coded payload length
 - prelude bytes (cipher/KDF material)

 The header always rides at lsb=1, stride=1 so a decoder can parse it before
 knowing the configuration; the coded payload that follows uses the embedded
 (lsb, stride).
*/

var headerMagic = []byte("STG1")

const headerFixedSize = 17

// stegoHeader is the self-describing preamble of every embedded payload.
type stegoHeader struct {
	LSB             uint8
	Stride          uint16
	ErrorCorrection models.ErrorCorrectionType
	Encryption      models.EncryptionType
	RedundantBits   uint16
	CodedLen        uint32
	Prelude         []byte
}

// size returns the total embedded size of the header in bytes.
func (h *stegoHeader) size() int {
	return headerFixedSize + len(h.Prelude)
}

func (h *stegoHeader) marshal() []byte {
	buf := bytes.Buffer{}
	buf.Grow(h.size())
	buf.Write(headerMagic)
	buf.WriteByte(h.LSB)
	binary.Write(&buf, binary.BigEndian, h.Stride)
	buf.WriteByte(byte(h.ErrorCorrection))
	buf.WriteByte(byte(h.Encryption))
	binary.Write(&buf, binary.BigEndian, h.RedundantBits)
	binary.Write(&buf, binary.BigEndian, uint16(len(h.Prelude)))
	binary.Write(&buf, binary.BigEndian, h.CodedLen)
	buf.Write(h.Prelude)
	return buf.Bytes()
}

// parseStegoHeaderFixed parses the fixed-size front of the header and
// returns it with Prelude unset; the caller extracts the prelude bytes using
// the declared length.
func parseStegoHeaderFixed(raw []byte) (*stegoHeader, int, error) {
	if len(raw) < headerFixedSize {
		return nil, 0, models.ErrNotSteganographic
	}
	if !bytes.Equal(raw[0:4], headerMagic) {
		return nil, 0, models.ErrNotSteganographic
	}

	h := &stegoHeader{
		LSB:             raw[4],
		Stride:          binary.BigEndian.Uint16(raw[5:7]),
		ErrorCorrection: models.ErrorCorrectionType(raw[7]),
		Encryption:      models.EncryptionType(raw[8]),
		RedundantBits:   binary.BigEndian.Uint16(raw[9:11]),
	}
	preludeLen := int(binary.BigEndian.Uint16(raw[11:13]))
	h.CodedLen = binary.BigEndian.Uint32(raw[13:17])

	if h.LSB < 1 || h.LSB > 16 || h.Stride < 1 {
		return nil, 0, errors.Wrapf(models.ErrMalformedWAV, "embedded header declares lsb=%d stride=%d", h.LSB, h.Stride)
	}
	if !h.ErrorCorrection.IsValid() || !h.Encryption.IsValid() {
		return nil, 0, errors.Wrap(models.ErrMalformedWAV, "embedded header declares unknown variant tags")
	}

	return h, preludeLen, nil
}
