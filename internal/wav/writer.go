package wav

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Writer streams PCM frames into a growing container on disk. The header is
// written up front with zero lengths and patched in place once the payload
// size is known.
//
// A Writer is not safe for concurrent use; the capture worker owns it.
type Writer struct {
	path       string
	f          File
	sampleRate int
	channels   int
	blockAlign int
	dataSize   uint64
	finalized  bool
}

// File is the part of *os.File a Writer uses.
type File interface {
	io.Writer
	io.WriterAt
	Seek(offset int64, whence int) (int64, error)
	Truncate(size int64) error
	Sync() error
	Close() error
}

// Create makes any missing parent directories, truncates path and writes a
// placeholder header.
func Create(path string, sampleRate, channels int) (*Writer, error) {
	if sampleRate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("create %s: invalid format %d Hz x %d channels", path, sampleRate, channels)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create parent directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	return NewWriter(f, path, sampleRate, channels)
}

// NewWriter writes a placeholder header to an empty f and returns a Writer
// appending after it. f is closed if the header cannot be written.
func NewWriter(f File, path string, sampleRate, channels int) (*Writer, error) {
	if sampleRate <= 0 || channels <= 0 {
		_ = f.Close()
		return nil, fmt.Errorf("create %s: invalid format %d Hz x %d channels", path, sampleRate, channels)
	}

	header := EncodeHeader(sampleRate, channels, 0)
	if _, err := f.Write(header[:]); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}

	return &Writer{
		path:       path,
		f:          f,
		sampleRate: sampleRate,
		channels:   channels,
		blockAlign: channels * BytesPerSample,
	}, nil
}

func (w *Writer) Path() string { return w.path }

// DataSize is the number of PCM bytes appended so far.
func (w *Writer) DataSize() uint64 { return w.dataSize }

// Frames is DataSize expressed in whole frames.
func (w *Writer) Frames() uint64 { return w.dataSize / uint64(w.blockAlign) }

// Append writes whole frames to the end of the file. The write goes straight
// to the descriptor, so other readers see the new length immediately.
func (w *Writer) Append(p []byte) error {
	if w.finalized {
		return ErrFinalized
	}
	if len(p) == 0 {
		return nil
	}
	if len(p)%w.blockAlign != 0 {
		return fmt.Errorf("append %d bytes: %w", len(p), ErrPartialFrame)
	}
	if w.dataSize+uint64(len(p)) > MaxDataSize {
		return ErrContainerFull
	}

	n, err := w.f.Write(p)
	if err != nil {
		// Drop whatever part of the frame run made it to disk so the payload
		// stays in step with dataSize.
		if n > 0 {
			_ = w.f.Truncate(int64(HeaderSize) + int64(w.dataSize))
			_, _ = w.f.Seek(0, io.SeekEnd)
		}
		return fmt.Errorf("append pcm bytes: %w", err)
	}

	w.dataSize += uint64(n)
	return nil
}

// Checkpoint rewrites the two size fields with the current payload size.
// Positional writes leave the append offset untouched.
func (w *Writer) Checkpoint() error {
	if w.finalized {
		return ErrFinalized
	}
	return w.patchSizes()
}

// Finalize patches the size fields, syncs and closes the file.
// Call it exactly once per Writer.
func (w *Writer) Finalize() error {
	if w.finalized {
		return ErrFinalized
	}
	w.finalized = true

	patchErr := w.patchSizes()
	syncErr := w.f.Sync()
	closeErr := w.f.Close()

	switch {
	case patchErr != nil:
		return patchErr
	case syncErr != nil:
		return fmt.Errorf("sync %s: %w", w.path, syncErr)
	case closeErr != nil:
		return fmt.Errorf("close %s: %w", w.path, closeErr)
	}
	return nil
}

func (w *Writer) patchSizes() error {
	size := uint32(w.dataSize)

	var field [4]byte
	binary.LittleEndian.PutUint32(field[:], HeaderSize-8+size)
	if _, err := w.f.WriteAt(field[:], riffSizeOffset); err != nil {
		return fmt.Errorf("patch riff size: %w", err)
	}

	binary.LittleEndian.PutUint32(field[:], size)
	if _, err := w.f.WriteAt(field[:], dataSizeOffset); err != nil {
		return fmt.Errorf("patch data size: %w", err)
	}
	return nil
}
