package network

import (
	"bytes"
	"testing"

	"github.com/klauspost/compress/zstd"
)

// TestFrameHeader тестирует кадрирование потока
func TestFrameHeader(t *testing.T) {
	hdr := make([]byte, frameHeaderSize)
	writeFrameHeader(hdr, 1234, flagCompressed)

	n, flags, err := parseFrameHeader(hdr)
	if err != nil {
		t.Fatalf("Ошибка разбора заголовка: %v", err)
	}
	if n != 1234 {
		t.Errorf("Ожидалась длина 1234, получено %d", n)
	}
	if flags != flagCompressed {
		t.Errorf("Ожидался флаг сжатия, получено %#x", flags)
	}
}

// TestFrameHeaderLimit тестирует предохранитель от повреждённых длин
func TestFrameHeaderLimit(t *testing.T) {
	hdr := make([]byte, frameHeaderSize)
	writeFrameHeader(hdr, maxFrameSize+1, 0)

	if _, _, err := parseFrameHeader(hdr); err == nil {
		t.Error("Ожидалась ошибка для запредельной длины")
	}
}

// TestCompressionRoundTrip тестирует сжатие полезной нагрузки тем же
// кодеком, что использует канал
func TestCompressionRoundTrip(t *testing.T) {
	compressor, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		t.Fatalf("Ошибка создания компрессора: %v", err)
	}
	defer compressor.Close()

	decompressor, err := zstd.NewReader(nil)
	if err != nil {
		t.Fatalf("Ошибка создания декомпрессора: %v", err)
	}
	defer decompressor.Close()

	payload := bytes.Repeat([]byte("netsync"), 200)
	compressed := compressor.EncodeAll(payload, nil)
	if len(compressed) >= len(payload) {
		t.Errorf("Повторяющиеся данные не сжались: %d -> %d", len(payload), len(compressed))
	}

	restored, err := decompressor.DecodeAll(compressed, nil)
	if err != nil {
		t.Fatalf("Ошибка распаковки: %v", err)
	}
	if !bytes.Equal(restored, payload) {
		t.Error("Данные не совпали после распаковки")
	}
}
