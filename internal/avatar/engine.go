package avatar

import (
	"math/rand"
	"time"
)

// Blinker schedules brief eyelid compressions at randomized intervals
type Blinker struct {
	minGap   time.Duration
	maxGap   time.Duration
	duration time.Duration
	rng      *rand.Rand

	next  time.Time
	until time.Time
}

// NewBlinker creates a blinker firing every 2–6 s for 200 ms
func NewBlinker(rng *rand.Rand) *Blinker {
	return &Blinker{
		minGap:   2 * time.Second,
		maxGap:   6 * time.Second,
		duration: 200 * time.Millisecond,
		rng:      rng,
	}
}

// Active reports whether a blink is in progress at now
func (b *Blinker) Active(now time.Time) bool {
	if b.next.IsZero() {
		b.schedule(now)
	}
	if now.Before(b.until) {
		return true
	}
	if !now.Before(b.next) {
		b.until = now.Add(b.duration)
		b.schedule(b.until)
		return true
	}
	return false
}

// Reset forgets the blink schedule
func (b *Blinker) Reset() {
	b.next = time.Time{}
	b.until = time.Time{}
}

func (b *Blinker) schedule(from time.Time) {
	gap := b.minGap + time.Duration(b.rng.Int63n(int64(b.maxGap-b.minGap)+1))
	b.next = from.Add(gap)
}

// Engine is the FormantAnimationEngine for one avatar panel.
// It owns the VisemeState carried across ticks and feeds Step.
type Engine struct {
	params     Params
	stillImage bool
	rng        *rand.Rand
	blinker    *Blinker

	state   VisemeState
	started time.Time
}

// NewEngine creates an engine. stillImage enables blinking, which only makes
// sense for a static avatar picture, not a live video feed.
func NewEngine(params Params, stillImage bool, rng *rand.Rand) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Engine{
		params:     params,
		stillImage: stillImage,
		rng:        rng,
		blinker:    NewBlinker(rng),
		state:      NeutralState(),
	}
}

// Update runs one animation tick. spectrum is nil when no frequency tap is attached.
func (e *Engine) Update(now time.Time, spectrum []byte, speaking bool, gesture GestureKind) VisemeState {
	if e.started.IsZero() {
		e.started = now
	}

	in := Input{
		Spectrum: spectrum,
		Speaking: speaking,
		Gesture:  gesture,
		Time:     now.Sub(e.started).Seconds(),
		Jitter:   e.rng.Float64() - 0.5,
	}
	if e.stillImage {
		in.Blinking = e.blinker.Active(now)
	}

	e.state = Step(e.state, in, e.params)
	return e.state
}

// State returns the current smoothed state
func (e *Engine) State() VisemeState {
	return e.state
}

// Reset returns the avatar to its rest pose
func (e *Engine) Reset() {
	e.state = NeutralState()
	e.started = time.Time{}
	e.blinker.Reset()
}
