package sound

import "errors"

var (
	// ErrUnsupportedFile is returned for files without a known audio extension.
	ErrUnsupportedFile = errors.New("unsupported sound file")
	// ErrEmptyClip is returned when a file decodes to no samples.
	ErrEmptyClip = errors.New("sound file has no audio")
)
