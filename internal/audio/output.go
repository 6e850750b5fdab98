package audio

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"
)

// ErrContextClosed is returned when scheduling on a closed output context
var ErrContextClosed = errors.New("audio context is closed")

// InboundChunk is one decoded synthesis step, owned by the scheduler until it ends
type InboundChunk struct {
	Samples    []float32 // normalized mono samples
	SampleRate int       // Hz
}

// DecodeChunk turns inline PCM16 bytes into an InboundChunk
func DecodeChunk(pcmData []byte, sampleRate int) (InboundChunk, error) {
	if sampleRate <= 0 {
		return InboundChunk{}, errors.New("sample rate must be positive")
	}
	samples, err := PCM16ToFloat32(pcmData)
	if err != nil {
		return InboundChunk{}, err
	}
	return InboundChunk{Samples: samples, SampleRate: sampleRate}, nil
}

// Duration returns the chunk length in seconds
func (c InboundChunk) Duration() float64 {
	if c.SampleRate <= 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate)
}

// Source is a scheduled one-shot playback of a buffer.
// Done is closed exactly once, when the buffer has been fully rendered or Stop is called.
type Source struct {
	samples    []float32
	startFrame int64
	endFrame   int64
	sampleRate int

	stopped atomic.Bool
	done    chan struct{}
	once    sync.Once
}

// Stop cancels the source regardless of how much is left to play. Safe to call repeatedly.
func (s *Source) Stop() {
	s.stopped.Store(true)
	s.finish()
}

// Done returns the completion signal for this source
func (s *Source) Done() <-chan struct{} {
	return s.done
}

// Ended reports whether the completion signal has fired
func (s *Source) Ended() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// StartTime returns the scheduled start in context seconds
func (s *Source) StartTime() float64 {
	return float64(s.startFrame) / float64(s.sampleRate)
}

// Duration returns the buffer length in seconds
func (s *Source) Duration() float64 {
	return float64(len(s.samples)) / float64(s.sampleRate)
}

func (s *Source) finish() {
	s.once.Do(func() { close(s.done) })
}

// OutputContext is the playback graph: a sample clock, the set of scheduled
// sources, and a mixer that renders them into the device buffer.
// The clock only advances as Render is called, so CurrentTime always reflects
// what the device has actually consumed.
type OutputContext struct {
	sampleRate int
	analyser   *Analyser

	mu       sync.Mutex
	rendered int64
	sources  []*Source
	closed   bool
}

// NewOutputContext creates a context at sampleRate. analyser may be nil when no tap is wanted.
func NewOutputContext(sampleRate int, analyser *Analyser) *OutputContext {
	return &OutputContext{
		sampleRate: sampleRate,
		analyser:   analyser,
	}
}

// SampleRate returns the context rate in Hz
func (c *OutputContext) SampleRate() int {
	return c.sampleRate
}

// Analyser returns the attached analysis tap, or nil
func (c *OutputContext) Analyser() *Analyser {
	return c.analyser
}

// CurrentTime returns the output clock in seconds
func (c *OutputContext) CurrentTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return float64(c.rendered) / float64(c.sampleRate)
}

// Start schedules chunk to begin at the given context time.
// A start time already in the past plays immediately.
func (c *OutputContext) Start(chunk InboundChunk, at float64) (*Source, error) {
	samples := chunk.Samples
	if chunk.SampleRate != c.sampleRate {
		samples = Resample(samples, chunk.SampleRate, c.sampleRate)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrContextClosed
	}

	startFrame := int64(math.Round(at * float64(c.sampleRate)))
	if startFrame < c.rendered {
		startFrame = c.rendered
	}

	src := &Source{
		samples:    samples,
		startFrame: startFrame,
		endFrame:   startFrame + int64(len(samples)),
		sampleRate: c.sampleRate,
		done:       make(chan struct{}),
	}
	if len(samples) == 0 {
		src.finish()
		return src, nil
	}

	c.sources = append(c.sources, src)
	return src, nil
}

// Render mixes every active source into out and advances the clock by len(out) frames.
// Called from the device callback.
func (c *OutputContext) Render(out []float32) {
	for i := range out {
		out[i] = 0
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	frame0 := c.rendered
	frame1 := frame0 + int64(len(out))
	kept := c.sources[:0]

	for _, src := range c.sources {
		if src.stopped.Load() {
			continue
		}

		from := max(src.startFrame, frame0)
		to := min(src.endFrame, frame1)
		for f := from; f < to; f++ {
			out[f-frame0] += src.samples[f-src.startFrame]
		}

		if src.endFrame <= frame1 {
			src.finish()
			continue
		}
		kept = append(kept, src)
	}
	for i := len(kept); i < len(c.sources); i++ {
		c.sources[i] = nil
	}
	c.sources = kept
	c.rendered = frame1
	c.mu.Unlock()

	for i, v := range out {
		if v > 1 {
			out[i] = 1
		} else if v < -1 {
			out[i] = -1
		}
	}

	if c.analyser != nil {
		c.analyser.Write(out)
	}
}

// Playing returns the number of sources not yet ended
func (c *OutputContext) Playing() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sources)
}

// Close stops every source and releases the graph. Safe to call repeatedly.
func (c *OutputContext) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	for _, src := range c.sources {
		src.Stop()
	}
	c.sources = nil

	if c.analyser != nil {
		c.analyser.Reset()
	}
	return nil
}

// IsClosed reports whether Close has been called
func (c *OutputContext) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
