package wav

import "errors"

var (
	ErrNotWAV            = errors.New("not a WAV file")
	ErrUnsupportedFormat = errors.New("only 16-bit linear PCM is supported")
	ErrPartialFrame      = errors.New("payload is not a whole number of frames")
	ErrContainerFull     = errors.New("payload would exceed the 4 GiB RIFF limit")
	ErrFinalized         = errors.New("container already finalized")
)
