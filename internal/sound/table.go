package sound

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/sjawhar/soundman/internal/audio"
	"github.com/sjawhar/soundman/internal/logger"
)

// Table maps a file's base name to its decoded clip. It is read-only once
// loaded.
type Table struct {
	format audio.Format
	clips  map[string]*Clip
}

// Info is the listing form of one clip.
type Info struct {
	Name     string  `json:"name"`
	Frames   int     `json:"frames"`
	Duration float64 `json:"duration_seconds"`
}

// LoadTable decodes every regular file directly inside dir and converts it
// to f. Subdirectories, symlinks and dotfiles are skipped. Files that fail to
// decode are logged and left out. A missing directory yields an empty table.
func LoadTable(dir string, f audio.Format, log *logrus.Entry) (*Table, error) {
	log = logger.OrDiscard(log)
	t := &Table{format: f, clips: make(map[string]*Clip)}

	if dir == "" {
		return t, nil
	}

	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		log.WithField("dir", dir).Warn("sound directory not found")
		return t, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read sound directory: %w", err)
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())

	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() || strings.HasPrefix(name, ".") {
			continue
		}
		path := filepath.Join(dir, name)
		if !Supported(path) {
			log.WithField("file", name).Debug("skipping non-audio file")
			continue
		}

		g.Go(func() error {
			clip, err := DecodeFile(path)
			if err != nil {
				log.WithError(err).WithField("file", name).Warn("could not load sound")
				return nil
			}
			clip = clip.Convert(f)

			mu.Lock()
			t.clips[name] = clip
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	log.WithFields(logrus.Fields{"dir": dir, "sounds": len(t.clips)}).Info("sound table loaded")
	return t, nil
}

// NewTable builds a table from already-decoded clips.
func NewTable(f audio.Format, clips map[string]*Clip) *Table {
	t := &Table{format: f, clips: make(map[string]*Clip, len(clips))}
	for name, c := range clips {
		t.clips[name] = c.Convert(f)
	}
	return t
}

func (t *Table) Format() audio.Format { return t.format }
func (t *Table) Len() int             { return len(t.clips) }

func (t *Table) Get(name string) (*Clip, bool) {
	c, ok := t.clips[name]
	return c, ok
}

// List returns clip descriptions sorted by name.
func (t *Table) List() []Info {
	out := make([]Info, 0, len(t.clips))
	for name, c := range t.clips {
		out = append(out, Info{Name: name, Frames: c.Frames(), Duration: c.Duration()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
