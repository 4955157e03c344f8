package service

import (
	"encoding/binary"
	"sort"

	"github.com/pkg/errors"
	"github.com/vivint/infectious"

	"github.com/xErkAy/audio-protection/models"
)

// GetErrorCorrection returns the coder for a variant tag. The set is closed;
// decode dispatches on the tag recorded in the embedded header.
func GetErrorCorrection(variant models.ErrorCorrectionType) (ErrorCorrection, error) {
	switch variant {
	case models.ErrorCorrectionNone:
		return &noneErrorCorrection{}, nil
	case models.ErrorCorrectionHamming:
		return &hammingErrorCorrection{}, nil
	case models.ErrorCorrectionReedSolomon:
		return &reedSolomonErrorCorrection{}, nil
	}
	return nil, errors.Wrapf(models.ErrInvalidConfig, "unknown error correction variant %d", variant)
}

// ------------------ none ------------------

type noneErrorCorrection struct{}

func (ec *noneErrorCorrection) Encode(data []byte, redundantBits int) ([]byte, error) {
	return data, nil
}

func (ec *noneErrorCorrection) Decode(data []byte, redundantBits int) ([]byte, error) {
	return data, nil
}

// ------------------ hamming ------------------

// hammingErrorCorrection is the classic (2^r-1, 2^r-1-r) block code over the
// payload bit stream; redundantBits is r and selects the block geometry.
// Each block corrects a single flipped bit. There is no residual detection
// budget, so corruption beyond one bit per block decodes silently to wrong
// data; the only uncorrectable-codeword error Hamming reports is a length
// frame that is missing or larger than the decoded stream.
//
// The payload is prefixed with its uint32 length before coding because block
// padding is not recoverable from the codeword stream alone.
type hammingErrorCorrection struct{}

func (ec *hammingErrorCorrection) geometry(redundantBits int) (n, k int, err error) {
	if redundantBits < 2 || redundantBits > 8 {
		return 0, 0, errors.Wrapf(models.ErrInvalidConfig, "hamming redundant bits must be 2..8, got %d", redundantBits)
	}
	n = 1<<uint(redundantBits) - 1
	return n, n - redundantBits, nil
}

func (ec *hammingErrorCorrection) Encode(data []byte, redundantBits int) ([]byte, error) {
	n, k, err := ec.geometry(redundantBits)
	if err != nil {
		return nil, err
	}

	framed := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(framed, uint32(len(data)))
	copy(framed[4:], data)

	dataBits := len(framed) * 8
	numBlocks := (dataBits + k - 1) / k
	out := make([]byte, (numBlocks*n+7)/8)

	in := newBitCursor(framed)
	w := newBitCursor(out)

	block := make([]byte, n+1) // 1-indexed positions
	for b := 0; b < numBlocks; b++ {
		for i := range block {
			block[i] = 0
		}
		// data bits occupy the non-power-of-two positions in order
		for pos := 1; pos <= n; pos++ {
			if pos&(pos-1) == 0 {
				continue
			}
			if in.remaining() > 0 {
				bit, _ := in.readBits(1)
				block[pos] = byte(bit)
			}
		}
		// even parity at each power-of-two position
		for p := 1; p <= n; p <<= 1 {
			var parity byte
			for pos := 1; pos <= n; pos++ {
				if pos != p && pos&p != 0 {
					parity ^= block[pos]
				}
			}
			block[p] = parity
		}
		for pos := 1; pos <= n; pos++ {
			if err := w.writeBits(uint64(block[pos]), 1); err != nil {
				return nil, err
			}
		}
	}

	return out, nil
}

func (ec *hammingErrorCorrection) Decode(data []byte, redundantBits int) ([]byte, error) {
	n, k, err := ec.geometry(redundantBits)
	if err != nil {
		return nil, err
	}

	numBlocks := len(data) * 8 / n
	decoded := make([]byte, (numBlocks*k+7)/8)

	in := newBitCursor(data)
	w := newBitCursor(decoded)

	block := make([]byte, n+1)
	for b := 0; b < numBlocks; b++ {
		for pos := 1; pos <= n; pos++ {
			bit, err := in.readBits(1)
			if err != nil {
				return nil, err
			}
			block[pos] = byte(bit)
		}
		syndrome := 0
		for pos := 1; pos <= n; pos++ {
			if block[pos] == 1 {
				syndrome ^= pos
			}
		}
		if syndrome != 0 && syndrome <= n {
			block[syndrome] ^= 1
		}
		for pos := 1; pos <= n; pos++ {
			if pos&(pos-1) == 0 {
				continue
			}
			if w.remaining() > 0 {
				w.writeBits(uint64(block[pos]), 1)
			}
		}
	}

	if len(decoded) < 4 {
		return nil, errors.Wrap(models.ErrUncorrectableCodeword, "hamming stream too short for length frame")
	}
	payloadLen := int(binary.BigEndian.Uint32(decoded))
	if payloadLen > len(decoded)-4 {
		return nil, errors.Wrapf(models.ErrUncorrectableCodeword, "hamming length frame %d exceeds decoded %d bytes", payloadLen, len(decoded)-4)
	}
	return decoded[4 : 4+payloadLen], nil
}

// ------------------ reed-solomon ------------------

// reedSolomonErrorCorrection codes over GF(2^8) in 255-symbol blocks with
// redundantBits parity symbols per block, correcting up to redundantBits/2
// symbol errors per block. A short trailing block keeps the full parity
// count, so the block structure is recoverable from the coded length alone.
type reedSolomonErrorCorrection struct{}

const rsBlockSize = 255

func (ec *reedSolomonErrorCorrection) Encode(data []byte, redundantBits int) ([]byte, error) {
	if redundantBits < 1 || redundantBits > rsBlockSize-1 {
		return nil, errors.Wrapf(models.ErrInvalidConfig, "rs redundant bits must be 1..%d, got %d", rsBlockSize-1, redundantBits)
	}
	if len(data) == 0 {
		return data, nil
	}

	k := rsBlockSize - redundantBits
	out := make([]byte, 0, len(data)+((len(data)+k-1)/k)*redundantBits)

	for start := 0; start < len(data); start += k {
		end := start + k
		if end > len(data) {
			end = len(data)
		}
		block := data[start:end]
		kb := len(block)

		fec, err := infectious.NewFEC(kb, kb+redundantBits)
		if err != nil {
			return nil, errors.Wrap(err, "rs encoder")
		}

		coded := make([]byte, kb+redundantBits)
		err = fec.Encode(block, func(s infectious.Share) {
			coded[s.Number] = s.Data[0]
		})
		if err != nil {
			return nil, errors.Wrap(err, "rs encode")
		}
		out = append(out, coded...)
	}

	return out, nil
}

func (ec *reedSolomonErrorCorrection) Decode(data []byte, redundantBits int) ([]byte, error) {
	if redundantBits < 1 || redundantBits > rsBlockSize-1 {
		return nil, errors.Wrapf(models.ErrInvalidConfig, "rs redundant bits must be 1..%d, got %d", rsBlockSize-1, redundantBits)
	}
	if len(data) == 0 {
		return data, nil
	}

	out := make([]byte, 0, len(data))

	for start := 0; start < len(data); start += rsBlockSize {
		end := start + rsBlockSize
		if end > len(data) {
			end = len(data)
		}
		block := data[start:end]
		kb := len(block) - redundantBits
		if kb < 1 {
			return nil, errors.Wrapf(models.ErrUncorrectableCodeword, "rs block of %d bytes is shorter than its parity", len(block))
		}

		fec, err := infectious.NewFEC(kb, len(block))
		if err != nil {
			return nil, errors.Wrap(err, "rs decoder")
		}

		shares := make([]infectious.Share, len(block))
		for i, b := range block {
			shares[i] = infectious.Share{Number: i, Data: []byte{b}}
		}
		if err := fec.Correct(shares); err != nil {
			return nil, errors.Wrap(models.ErrUncorrectableCodeword, err.Error())
		}

		sort.Slice(shares, func(i, j int) bool { return shares[i].Number < shares[j].Number })
		for _, s := range shares {
			if s.Number < kb {
				out = append(out, s.Data[0])
			}
		}
	}

	return out, nil
}
