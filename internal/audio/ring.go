package audio

import (
	"fmt"
	"sync"

	"github.com/smallnest/ringbuffer"
)

// captureRing plays the part of a driver-side capture buffer for backends
// that deliver audio through a callback. The callback pushes frames and the
// worker drains them; frames that do not fit are dropped and reported as an
// overrun by the next read.
type captureRing struct {
	mu            sync.Mutex
	rb            *ringbuffer.RingBuffer
	bytesPerFrame int
	dropped       uint64
}

func newCaptureRing(frames, bytesPerFrame int) *captureRing {
	return &captureRing{
		rb:            ringbuffer.New(frames * bytesPerFrame),
		bytesPerFrame: bytesPerFrame,
	}
}

// push stores as many whole frames of p as fit and returns how many frames
// were accepted.
func (r *captureRing) push(p []byte) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	whole := len(p) - len(p)%r.bytesPerFrame
	fit := r.rb.Free() - r.rb.Free()%r.bytesPerFrame
	if fit > whole {
		fit = whole
	}

	n := 0
	if fit > 0 {
		n, _ = r.rb.Write(p[:fit])
	}
	if lost := (whole - n) / r.bytesPerFrame; lost > 0 {
		r.dropped += uint64(lost)
	}
	return n / r.bytesPerFrame
}

func (r *captureRing) available() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rb.Length() / r.bytesPerFrame
}

func (r *captureRing) read(frames int) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	want := frames * r.bytesPerFrame
	if have := r.rb.Length() - r.rb.Length()%r.bytesPerFrame; want > have {
		want = have
	}

	var out []byte
	if want > 0 {
		out = make([]byte, want)
		n, err := r.rb.Read(out)
		if err != nil {
			return nil, fmt.Errorf("ring read: %w", err)
		}
		out = out[:n]
	}

	if r.dropped > 0 {
		lost := r.dropped
		r.dropped = 0
		return out, fmt.Errorf("%w: %d frames", ErrOverrun, lost)
	}
	return out, nil
}

func (r *captureRing) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rb.Reset()
	r.dropped = 0
}
