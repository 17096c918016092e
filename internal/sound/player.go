package sound

import (
	"math"
	"sync"
)

// DefaultVoices is how many sounds can overlap.
const DefaultVoices = 8

type voice struct {
	clip  *Clip
	pos   float64
	pitch float64
	gain  float64
}

func (v *voice) active() bool { return v.clip != nil }

// Player mixes fire-and-forget clips into an output stream. Voices are
// handed out round-robin, so the oldest sound is cut off when all are busy.
type Player struct {
	table *Table

	mu     sync.Mutex
	voices []voice
	next   int
}

func NewPlayer(table *Table, voices int) *Player {
	if voices <= 0 {
		voices = DefaultVoices
	}
	return &Player{table: table, voices: make([]voice, voices)}
}

func (p *Player) Table() *Table { return p.table }

func (p *Player) List() []Info { return p.table.List() }

// Play starts name at its natural pitch and full gain.
func (p *Player) Play(name string) bool {
	return p.PlayWith(name, 1, 1)
}

// PlayWith starts name with a pitch multiplier and gain. It reports false
// when name is not in the table.
func (p *Player) PlayWith(name string, pitch, gain float64) bool {
	clip, ok := p.table.Get(name)
	if !ok {
		return false
	}
	if pitch <= 0 {
		pitch = 1
	}
	if gain < 0 {
		gain = 0
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.next = (p.next + 1) % len(p.voices)
	p.voices[p.next] = voice{clip: clip, pitch: pitch, gain: gain}
	return true
}

// Active is the number of voices still sounding.
func (p *Player) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for i := range p.voices {
		if p.voices[i].active() {
			n++
		}
	}
	return n
}

// Mix renders the next len(out) interleaved samples. Voices that reach the
// end of their clip are released.
func (p *Player) Mix(out []int16) {
	ch := p.table.Format().Channels
	frames := len(out) / ch
	acc := make([]float64, frames*ch)

	p.mu.Lock()
	for i := range p.voices {
		v := &p.voices[i]
		if !v.active() {
			continue
		}
		total := v.clip.Frames()
		for f := 0; f < frames; f++ {
			idx := int(v.pos)
			if idx >= total {
				*v = voice{}
				break
			}
			for c := 0; c < ch; c++ {
				acc[f*ch+c] += float64(v.clip.Samples[idx*ch+c]) * v.gain
			}
			v.pos += v.pitch
		}
		if v.active() && int(v.pos) >= total {
			*v = voice{}
		}
	}
	p.mu.Unlock()

	for i := range out {
		if i >= len(acc) {
			out[i] = 0
			continue
		}
		out[i] = clamp16(acc[i])
	}
}

func clamp16(v float64) int16 {
	v = math.Round(v)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
