package session

import "errors"

// ErrNotRecording is returned by StopRecording when nothing is being captured.
var ErrNotRecording = errors.New("no recording in progress")
