package wav

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

const (
	// HeaderSize is the fixed size of a canonical PCM header with no extra chunks.
	HeaderSize = 44

	BitsPerSample  = 16
	BytesPerSample = BitsPerSample / 8

	formatPCM      = 1
	fmtChunkSize   = 16
	riffSizeOffset = 4
	dataSizeOffset = 40

	// MaxDataSize keeps the RIFF size field (36 + data) inside a uint32.
	MaxDataSize = 1<<32 - 1 - (HeaderSize - 8)
)

// Header is the decoded form of the 44-byte container header.
type Header struct {
	RIFFSize      uint32
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	DataSize      uint32
}

// EncodeHeader lays out a little-endian PCM header field by field.
func EncodeHeader(sampleRate, channels int, dataSize uint32) [HeaderSize]byte {
	var h [HeaderSize]byte
	blockAlign := uint16(channels * BytesPerSample)

	copy(h[0:4], "RIFF")
	binary.LittleEndian.PutUint32(h[4:8], HeaderSize-8+dataSize)
	copy(h[8:12], "WAVE")

	copy(h[12:16], "fmt ")
	binary.LittleEndian.PutUint32(h[16:20], fmtChunkSize)
	binary.LittleEndian.PutUint16(h[20:22], formatPCM)
	binary.LittleEndian.PutUint16(h[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(h[24:28], uint32(sampleRate))
	// The byte-rate field carries the block align, not rate × block align.
	// Durations are derived from the sample rate and block align instead.
	binary.LittleEndian.PutUint32(h[28:32], uint32(blockAlign))
	binary.LittleEndian.PutUint16(h[32:34], blockAlign)
	binary.LittleEndian.PutUint16(h[34:36], BitsPerSample)

	copy(h[36:40], "data")
	binary.LittleEndian.PutUint32(h[40:44], dataSize)

	return h
}

// DecodeHeader parses a canonical 44-byte header. It does not walk extra chunks.
func DecodeHeader(r io.Reader) (Header, error) {
	var raw [HeaderSize]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return Header{}, fmt.Errorf("read header: %w", err)
	}

	if !bytes.Equal(raw[0:4], []byte("RIFF")) || !bytes.Equal(raw[8:12], []byte("WAVE")) {
		return Header{}, ErrNotWAV
	}
	if !bytes.Equal(raw[12:16], []byte("fmt ")) || !bytes.Equal(raw[36:40], []byte("data")) {
		return Header{}, fmt.Errorf("%w: non-canonical chunk layout", ErrNotWAV)
	}

	h := Header{
		RIFFSize:      binary.LittleEndian.Uint32(raw[4:8]),
		AudioFormat:   binary.LittleEndian.Uint16(raw[20:22]),
		Channels:      binary.LittleEndian.Uint16(raw[22:24]),
		SampleRate:    binary.LittleEndian.Uint32(raw[24:28]),
		ByteRate:      binary.LittleEndian.Uint32(raw[28:32]),
		BlockAlign:    binary.LittleEndian.Uint16(raw[32:34]),
		BitsPerSample: binary.LittleEndian.Uint16(raw[34:36]),
		DataSize:      binary.LittleEndian.Uint32(raw[40:44]),
	}
	if h.AudioFormat != formatPCM || h.BitsPerSample != BitsPerSample {
		return h, ErrUnsupportedFormat
	}
	return h, nil
}
