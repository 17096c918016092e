package sound

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjawhar/soundman/internal/audio"
	"github.com/sjawhar/soundman/internal/wav"
)

var stereo8k = audio.Format{SampleRate: 8000, Channels: 2}

func writeWAV(t *testing.T, path string, sampleRate, channels int, samples ...int16) {
	t.Helper()
	w, err := wav.Create(path, sampleRate, channels)
	require.NoError(t, err)
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	require.NoError(t, w.Append(buf))
	require.NoError(t, w.Finalize())
}

func TestLoadTableKeysByBaseName(t *testing.T) {
	dir := t.TempDir()
	writeWAV(t, filepath.Join(dir, "beep.wav"), 8000, 1, 100, 200, 300)
	writeWAV(t, filepath.Join(dir, "boop.wav"), 8000, 2, 1, 2, 3, 4)

	table, err := LoadTable(dir, stereo8k, nil)
	require.NoError(t, err)
	require.Equal(t, 2, table.Len())

	beep, ok := table.Get("beep.wav")
	require.True(t, ok)
	assert.Equal(t, stereo8k, beep.Format)
	assert.Equal(t, []int16{100, 100, 200, 200, 300, 300}, beep.Samples)

	list := table.List()
	require.Len(t, list, 2)
	assert.Equal(t, "beep.wav", list[0].Name)
	assert.Equal(t, 3, list[0].Frames)
	assert.Equal(t, "boop.wav", list[1].Name)
}

func TestLoadTableSkipsWhatItCannotUse(t *testing.T) {
	dir := t.TempDir()
	writeWAV(t, filepath.Join(dir, "ok.wav"), 8000, 2, 1, 1)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.wav"), []byte("not audio at all"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.mp3"), []byte("nope"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("hi"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.wav"), 0o755))
	writeWAV(t, filepath.Join(dir, ".hidden.wav"), 8000, 2, 1, 1)
	require.NoError(t, os.Symlink(filepath.Join(dir, "ok.wav"), filepath.Join(dir, "link.wav")))

	table, err := LoadTable(dir, stereo8k, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, table.Len())
	_, ok := table.Get("ok.wav")
	assert.True(t, ok)
}

func TestLoadTableMissingDirectory(t *testing.T) {
	table, err := LoadTable(filepath.Join(t.TempDir(), "nope"), stereo8k, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, table.Len())
	assert.Empty(t, table.List())
}

func TestDecodeFileRejectsUnknownExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.flac")
	require.NoError(t, os.WriteFile(path, []byte("fLaC"), 0o644))

	_, err := DecodeFile(path)
	require.ErrorIs(t, err, ErrUnsupportedFile)
}

func TestDecodeFileRejectsEmptyWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.wav")
	w, err := wav.Create(path, 8000, 2)
	require.NoError(t, err)
	require.NoError(t, w.Finalize())

	_, err = DecodeFile(path)
	require.Error(t, err)
}

func TestConvert(t *testing.T) {
	mono := &Clip{Format: audio.Format{SampleRate: 8000, Channels: 1}, Samples: []int16{10, 20}}
	assert.Equal(t, []int16{10, 10, 20, 20}, mono.Convert(stereo8k).Samples)

	st := &Clip{Format: stereo8k, Samples: []int16{10, 30, -10, -30}}
	down := st.Convert(audio.Format{SampleRate: 8000, Channels: 1})
	assert.Equal(t, []int16{20, -20}, down.Samples)

	up := st.Convert(audio.Format{SampleRate: 16000, Channels: 2})
	assert.Equal(t, 4, up.Frames())
	assert.Equal(t, []int16{10, 30, 0, 0, -10, -30, -10, -30}, up.Samples)
	assert.Same(t, st, st.Convert(stereo8k))
}
