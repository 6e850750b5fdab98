package device

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-coach/internal/audio"
	"github.com/lexiqai/voice-coach/internal/observability"
	"github.com/lexiqai/voice-coach/internal/session"
)

// PortAudio opens the default microphone and speaker.
// Initialize must be called once before Open and Terminate once at exit.
type PortAudio struct {
	bufferFrames int
	logger       zerolog.Logger
}

// New creates a PortAudio device set rendering output in blocks of bufferFrames
func New(bufferFrames int) *PortAudio {
	if bufferFrames <= 0 {
		bufferFrames = 1024
	}
	return &PortAudio{
		bufferFrames: bufferFrames,
		logger:       observability.GetLogger().With().Str("component", "device").Logger(),
	}
}

// Initialize loads the PortAudio library
func (p *PortAudio) Initialize() error {
	return portaudio.Initialize()
}

// Terminate releases the PortAudio library
func (p *PortAudio) Terminate() error {
	return portaudio.Terminate()
}

// Check reports whether a default input and output device exist
func (p *PortAudio) Check() error {
	if _, err := portaudio.DefaultInputDevice(); err != nil {
		return fmt.Errorf("no input device: %w", err)
	}
	if _, err := portaudio.DefaultOutputDevice(); err != nil {
		return fmt.Errorf("no output device: %w", err)
	}
	return nil
}

// Open starts a mono input stream feeding capture and a mono output stream
// pulling from output. Any failure closes whatever was opened and is reported
// as session.ErrPermissionDenied.
func (p *PortAudio) Open(capture *audio.CaptureContext, output *audio.OutputContext) (session.Streams, error) {
	deviceRate := float64(capture.Config().DeviceRate)
	in, err := portaudio.OpenDefaultStream(1, 0, deviceRate, 0, func(in []float32) {
		if dropped := capture.Feed(in); dropped > 0 {
			p.logger.Warn().Int("dropped", dropped).Msg("Capture queue full, dropping frames")
		}
	})
	if err != nil {
		return nil, denied("open input stream", err)
	}

	out, err := portaudio.OpenDefaultStream(0, 1, float64(output.SampleRate()), p.bufferFrames, func(out []float32) {
		output.Render(out)
	})
	if err != nil {
		in.Close()
		return nil, denied("open output stream", err)
	}

	if err := in.Start(); err != nil {
		in.Close()
		out.Close()
		return nil, denied("start input stream", err)
	}
	if err := out.Start(); err != nil {
		in.Stop()
		in.Close()
		out.Close()
		return nil, denied("start output stream", err)
	}

	p.logger.Info().
		Float64("input_rate", deviceRate).
		Int("output_rate", output.SampleRate()).
		Msg("Audio streams started")

	return &streams{in: in, out: out}, nil
}

func denied(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(session.ErrPermissionDenied, err))
}

type streams struct {
	in  *portaudio.Stream
	out *portaudio.Stream

	stopOnce  sync.Once
	closeOnce sync.Once
}

// StopCapture stops the microphone callback
func (s *streams) StopCapture() error {
	var err error
	s.stopOnce.Do(func() {
		err = s.in.Stop()
	})
	return err
}

// Close stops and closes both streams
func (s *streams) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.StopCapture()
		err = errors.Join(s.out.Stop(), s.in.Close(), s.out.Close())
	})
	return err
}
