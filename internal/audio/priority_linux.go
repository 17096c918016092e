//go:build linux

package audio

import (
	"runtime"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// captureNice is the niceness requested for the capture thread.
const captureNice = -10

// raiseThreadPriority pins the calling goroutine to its thread and lowers
// that thread's niceness. The goroutine never unlocks, so the runtime
// discards the thread when the worker exits.
func raiseThreadPriority(log *logrus.Entry) {
	runtime.LockOSThread()
	if err := unix.Setpriority(unix.PRIO_PROCESS, unix.Gettid(), captureNice); err != nil {
		log.WithError(err).Debug("capture thread keeps default priority")
		return
	}
	log.WithField("nice", captureNice).Debug("capture thread priority raised")
}
