package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaptureRingKeepsWholeFrames(t *testing.T) {
	r := newCaptureRing(4, 4)

	accepted := r.push([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9})
	assert.Equal(t, 2, accepted)
	assert.Equal(t, 2, r.available())

	data, err := r.read(10)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, data)
	assert.Equal(t, 0, r.available())
}

func TestCaptureRingReportsOverrunOnce(t *testing.T) {
	r := newCaptureRing(2, 4)

	assert.Equal(t, 2, r.push(make([]byte, 12)))

	data, err := r.read(2)
	require.ErrorIs(t, err, ErrOverrun)
	assert.ErrorContains(t, err, "1 frames")
	assert.Len(t, data, 8)

	_, err = r.read(2)
	require.NoError(t, err)
}

func TestCaptureRingReset(t *testing.T) {
	r := newCaptureRing(1, 4)
	r.push(make([]byte, 8))
	r.reset()

	assert.Equal(t, 0, r.available())
	data, err := r.read(1)
	require.NoError(t, err)
	assert.Empty(t, data)
}
