//go:build !linux

package audio

import (
	"runtime"

	"github.com/sirupsen/logrus"
)

func raiseThreadPriority(log *logrus.Entry) {
	runtime.LockOSThread()
	log.Debug("capture thread priority unchanged on this platform")
}
