package service

import (
	"bytes"
	"testing"

	"github.com/xErkAy/audio-protection/models"
)

func TestBitCursorWriteRead(t *testing.T) {
	buf := make([]byte, 3)
	w := newBitCursor(buf)

	if err := w.writeBits(0xFF, 8); err != nil {
		t.Fatalf("writeBits failed: %v", err)
	}
	if err := w.writeBits(0x00, 8); err != nil {
		t.Fatalf("writeBits failed: %v", err)
	}
	if err := w.writeBits(0xAA, 8); err != nil {
		t.Fatalf("writeBits failed: %v", err)
	}

	expected := []byte{0xFF, 0x00, 0xAA}
	if !bytes.Equal(buf, expected) {
		t.Errorf("bit cursor write failed: expected %v, got %v", expected, buf)
	}

	r := newBitCursor(buf)
	for i, want := range []uint64{0xFF, 0x00, 0xAA} {
		got, err := r.readBits(8)
		if err != nil {
			t.Fatalf("readBits failed at byte %d: %v", i, err)
		}
		if got != want {
			t.Errorf("readBits failed at byte %d: expected %#x, got %#x", i, want, got)
		}
	}
}

func TestBitCursorSpansByteBoundary(t *testing.T) {
	// 5 + 6 bits: the second field fills the low bits of byte 0 and the
	// high bits of byte 1
	buf := make([]byte, 2)
	w := newBitCursor(buf)

	if err := w.writeBits(0x15, 5); err != nil { // 10101
		t.Fatalf("writeBits failed: %v", err)
	}
	if err := w.writeBits(0x33, 6); err != nil { // 110011
		t.Fatalf("writeBits failed: %v", err)
	}

	// 10101110 011xxxxx
	if buf[0] != 0xAE {
		t.Errorf("first byte: expected %#x, got %#x", 0xAE, buf[0])
	}
	if buf[1]&0xE0 != 0x60 {
		t.Errorf("second byte high bits: expected %#x, got %#x", 0x60, buf[1]&0xE0)
	}

	r := newBitCursor(buf)
	first, _ := r.readBits(5)
	second, _ := r.readBits(6)
	if first != 0x15 || second != 0x33 {
		t.Errorf("round trip failed: got %#x and %#x", first, second)
	}
}

func TestBitCursorOverrun(t *testing.T) {
	w := newBitCursor(make([]byte, 1))
	if err := w.writeBits(0, 9); err == nil {
		t.Error("writeBits should fail past the end of the buffer")
	}
	r := newBitCursor(make([]byte, 1))
	if _, err := r.readBits(9); err == nil {
		t.Error("readBits should fail past the end of the buffer")
	}
}

func TestLsbMask(t *testing.T) {
	cases := map[int]uint64{0: 0, 1: 1, 2: 3, 8: 0xFF, 16: 0xFFFF}
	for width, want := range cases {
		if got := lsbMask(width); got != want {
			t.Errorf("lsbMask(%d): expected %#x, got %#x", width, want, got)
		}
	}
}

func TestSlotReadWrite(t *testing.T) {
	data := []byte{0xF0, 0x0F}

	writeSlot(data, 0, 2, 0x3)
	if data[0] != 0xF3 {
		t.Errorf("writeSlot width 2: expected %#x, got %#x", 0xF3, data[0])
	}
	if got := readSlot(data, 0, 2); got != 0x3 {
		t.Errorf("readSlot width 2: expected 3, got %d", got)
	}

	// a slot wider than 8 bits spans the little-endian byte pair
	data = []byte{0x00, 0xF0}
	writeSlot(data, 0, 12, 0xABC)
	if got := readSlot(data, 0, 12); got != 0xABC {
		t.Errorf("readSlot width 12: expected %#x, got %#x", 0xABC, got)
	}
	if data[1]&0xF0 != 0xF0 {
		t.Error("writeSlot width 12 must not touch bits above the slot")
	}
}

func TestHeaderMarshalParse(t *testing.T) {
	header := &stegoHeader{
		LSB:             2,
		Stride:          4,
		ErrorCorrection: models.ErrorCorrectionReedSolomon,
		Encryption:      models.EncryptionAES,
		RedundantBits:   8,
		CodedLen:        1056,
		Prelude:         bytes.Repeat([]byte{0x42}, 32),
	}

	raw := header.marshal()
	if len(raw) != headerFixedSize+32 {
		t.Fatalf("marshaled header size: expected %d, got %d", headerFixedSize+32, len(raw))
	}
	if !bytes.Equal(raw[:4], []byte("STG1")) {
		t.Error("marshaled header should start with the STG1 magic")
	}

	parsed, preludeLen, err := parseStegoHeaderFixed(raw)
	if err != nil {
		t.Fatalf("parseStegoHeaderFixed failed: %v", err)
	}
	if preludeLen != 32 {
		t.Errorf("prelude length: expected 32, got %d", preludeLen)
	}
	if parsed.LSB != header.LSB || parsed.Stride != header.Stride ||
		parsed.ErrorCorrection != header.ErrorCorrection || parsed.Encryption != header.Encryption ||
		parsed.RedundantBits != header.RedundantBits || parsed.CodedLen != header.CodedLen {
		t.Errorf("parsed header mismatch: %+v vs %+v", parsed, header)
	}
}

func TestHeaderParseRejectsBadMagic(t *testing.T) {
	raw := (&stegoHeader{LSB: 1, Stride: 1}).marshal()
	raw[0] = 'X'
	if _, _, err := parseStegoHeaderFixed(raw); err != models.ErrNotSteganographic {
		t.Errorf("expected ErrNotSteganographic, got %v", err)
	}
	if _, _, err := parseStegoHeaderFixed(raw[:8]); err != models.ErrNotSteganographic {
		t.Errorf("short header: expected ErrNotSteganographic, got %v", err)
	}
}

func TestCapacityMonotonicity(t *testing.T) {
	const dataLen = 10000

	prev := 0
	for lsb := 1; lsb <= 16; lsb++ {
		capacity := capacityBytes(dataLen, headerFixedSize, lsb, 2)
		if capacity < prev {
			t.Errorf("capacity should not decrease with lsb: lsb=%d capacity=%d prev=%d", lsb, capacity, prev)
		}
		prev = capacity
	}

	prev = capacityBytes(dataLen, headerFixedSize, 2, 1)
	for stride := 2; stride <= 10; stride++ {
		capacity := capacityBytes(dataLen, headerFixedSize, 2, stride)
		if capacity > prev {
			t.Errorf("capacity should not increase with stride: stride=%d capacity=%d prev=%d", stride, capacity, prev)
		}
		prev = capacity
	}
}

func TestCodedSizeGrowsWithRedundancy(t *testing.T) {
	coder, err := GetErrorCorrection(models.ErrorCorrectionReedSolomon)
	if err != nil {
		t.Fatalf("GetErrorCorrection failed: %v", err)
	}
	data := bytes.Repeat([]byte{0x5A}, 500)

	prev := 0
	for _, r := range []int{2, 4, 8, 16} {
		coded, err := coder.Encode(data, r)
		if err != nil {
			t.Fatalf("rs encode failed for r=%d: %v", r, err)
		}
		if len(coded) <= prev {
			t.Errorf("coded size should grow with redundancy: r=%d size=%d prev=%d", r, len(coded), prev)
		}
		prev = len(coded)
	}
}

func TestEncodingConfigValidation(t *testing.T) {
	valid := models.EncodingConfig{LSB: 2, Stride: 4, RedundantBits: 8, ErrorCorrection: models.ErrorCorrectionReedSolomon}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	cases := []models.EncodingConfig{
		{LSB: 0, Stride: 1},
		{LSB: 17, Stride: 4},
		{LSB: 2, Stride: 0},
		{LSB: 2, Stride: 1, RedundantBits: -1},
		{LSB: 16, Stride: 1}, // slots overlap
		{LSB: 2, Stride: 1, RedundantBits: 1, ErrorCorrection: models.ErrorCorrectionHamming},
	}
	for i, config := range cases {
		if err := config.Validate(); err == nil {
			t.Errorf("case %d: invalid config accepted: %+v", i, config)
		}
	}

	// lsb up to 16 is legal once the stride spaces the slots apart
	wide := models.EncodingConfig{LSB: 16, Stride: 2}
	if err := wide.Validate(); err != nil {
		t.Errorf("lsb=16 stride=2 rejected: %v", err)
	}
}

func TestKeyDeriverDeterminism(t *testing.T) {
	salt := bytes.Repeat([]byte{0x01}, saltSize)

	for _, variant := range []models.KeyDerivationType{models.KeyDerivationNone, models.KeyDerivationPBKDF2, models.KeyDerivationScrypt} {
		first, err := newKeyDeriver(variant, salt, true)
		if err != nil {
			t.Fatalf("newKeyDeriver failed: %v", err)
		}
		second, err := newKeyDeriver(variant, salt, true)
		if err != nil {
			t.Fatalf("newKeyDeriver failed: %v", err)
		}

		keyA, err := first.DeriveKey("passphrase", 32)
		if err != nil {
			t.Fatalf("DeriveKey failed: %v", err)
		}
		keyB, err := second.DeriveKey("passphrase", 32)
		if err != nil {
			t.Fatalf("DeriveKey failed: %v", err)
		}

		if len(keyA) != 32 {
			t.Errorf("variant %d: expected 32-byte key, got %d", variant, len(keyA))
		}
		if !bytes.Equal(keyA, keyB) {
			t.Errorf("variant %d: same salt and passphrase must derive the same key", variant)
		}
	}
}

func TestKeyDeriverGeneratesSalt(t *testing.T) {
	deriver, err := newKeyDeriver(models.KeyDerivationPBKDF2, nil, true)
	if err != nil {
		t.Fatalf("newKeyDeriver failed: %v", err)
	}
	if len(deriver.Salt()) != saltSize {
		t.Errorf("generated salt: expected %d bytes, got %d", saltSize, len(deriver.Salt()))
	}
}
