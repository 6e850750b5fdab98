package audio

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/lexiqai/voice-coach/internal/live"
)

// CaptureConfig holds configuration for microphone capture
type CaptureConfig struct {
	DeviceRate int // Rate the device delivers samples at
	SampleRate int // Rate sent upstream (16 kHz)
	BlockSize  int // Samples per AudioFrame
	QueueSize  int // Frames buffered between capture and encoder
}

// DefaultCaptureConfig returns the 16 kHz / 4096-sample capture configuration
func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		DeviceRate: 16000,
		SampleRate: 16000,
		BlockSize:  4096,
		QueueSize:  32,
	}
}

// AudioFrame is a fixed-size block of mono samples produced by one capture callback
type AudioFrame struct {
	Samples    []float32
	SampleRate int
}

// CaptureContext receives device samples, feeds the microphone analysis tap,
// and hands fixed-size frames to the encoder over a bounded queue.
// Feed never blocks: a full queue drops the frame.
type CaptureContext struct {
	config   CaptureConfig
	analyser *Analyser
	frames   chan AudioFrame

	mu      sync.Mutex
	pending []float32
	resumed bool
	closed  bool

	dropped atomic.Uint64
}

// NewCaptureContext creates a capture context. analyser may be nil.
func NewCaptureContext(config CaptureConfig, analyser *Analyser) *CaptureContext {
	if config.SampleRate <= 0 {
		config.SampleRate = 16000
	}
	if config.DeviceRate <= 0 {
		config.DeviceRate = config.SampleRate
	}
	if config.BlockSize <= 0 {
		config.BlockSize = 4096
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 32
	}

	return &CaptureContext{
		config:   config,
		analyser: analyser,
		frames:   make(chan AudioFrame, config.QueueSize),
		pending:  make([]float32, 0, config.BlockSize*2),
	}
}

// Config returns the effective configuration
func (c *CaptureContext) Config() CaptureConfig {
	return c.config
}

// Analyser returns the microphone analysis tap, or nil
func (c *CaptureContext) Analyser() *Analyser {
	return c.analyser
}

// Frames returns the frame queue. It is closed by Close.
func (c *CaptureContext) Frames() <-chan AudioFrame {
	return c.frames
}

// Resume starts accepting samples. Samples fed before Resume are discarded.
func (c *CaptureContext) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resumed = true
}

// Feed is the capture callback. It returns the number of frames dropped by this call.
func (c *CaptureContext) Feed(samples []float32) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || !c.resumed {
		return 0
	}

	if c.config.DeviceRate != c.config.SampleRate {
		samples = Resample(samples, c.config.DeviceRate, c.config.SampleRate)
	}

	if c.analyser != nil {
		c.analyser.Write(samples)
	}

	c.pending = append(c.pending, samples...)

	dropped := 0
	for len(c.pending) >= c.config.BlockSize {
		block := make([]float32, c.config.BlockSize)
		copy(block, c.pending[:c.config.BlockSize])
		c.pending = append(c.pending[:0], c.pending[c.config.BlockSize:]...)

		select {
		case c.frames <- AudioFrame{Samples: block, SampleRate: c.config.SampleRate}:
		default:
			dropped++
			c.dropped.Add(1)
		}
	}
	return dropped
}

// Dropped returns the total number of frames dropped on a full queue
func (c *CaptureContext) Dropped() uint64 {
	return c.dropped.Load()
}

// Close stops accepting samples and closes the frame queue. Safe to call repeatedly.
func (c *CaptureContext) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.pending = c.pending[:0]
	close(c.frames)

	if c.analyser != nil {
		c.analyser.Reset()
	}
	return nil
}

// Encoder turns AudioFrames into outbound realtime-input payloads
type Encoder struct {
	mimeType string
}

// NewEncoder creates an encoder tagging payloads with the given sample rate
func NewEncoder(sampleRate int) *Encoder {
	return &Encoder{mimeType: fmt.Sprintf("%s;rate=%d", live.PCMMimeType, sampleRate)}
}

// MimeType returns the tag attached to every payload
func (e *Encoder) MimeType() string {
	return e.mimeType
}

// Encode converts one frame to PCM16 and wraps it for the channel.
// The payload is base64 encoded when serialised.
func (e *Encoder) Encode(frame AudioFrame) live.RealtimeInput {
	return live.RealtimeInput{
		Media: &live.Blob{
			MIMEType: e.mimeType,
			Data:     Float32ToPCM16(frame.Samples),
		},
	}
}
