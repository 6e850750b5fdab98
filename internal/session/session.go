package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lexiqai/voice-coach/internal/audio"
	"github.com/lexiqai/voice-coach/internal/avatar"
	"github.com/lexiqai/voice-coach/internal/coach"
	"github.com/lexiqai/voice-coach/internal/live"
	"github.com/lexiqai/voice-coach/internal/observability"
	"github.com/lexiqai/voice-coach/internal/playback"
	"github.com/lexiqai/voice-coach/internal/resilience"
)

// Status is the user-visible session state
type Status string

const (
	StatusIdle             Status = "idle"
	StatusRequesting       Status = "requesting"
	StatusConnecting       Status = "connecting"
	StatusConnected        Status = "connected"
	StatusPermissionDenied Status = "permission_denied"
	StatusError            Status = "error"
	StatusStopped          Status = "stopped"
)

var (
	// ErrPermissionDenied is returned by Devices when the microphone or speaker cannot be opened
	ErrPermissionDenied = errors.New("session: audio device permission denied")

	// ErrAlreadyOpen is returned by Open on a session that is starting or running
	ErrAlreadyOpen = errors.New("session: already open")

	// ErrNotConnected is returned by Run before Open succeeded
	ErrNotConnected = errors.New("session: not connected")

	errStoppedWhileConnecting = errors.New("session: stopped while connecting")
	errRemoteClosed           = errors.New("session: live channel closed by remote")
)

// Streams are the running device streams behind a session
type Streams interface {
	StopCapture() error
	Close() error
}

// Devices attaches the capture and output contexts to real audio hardware
type Devices interface {
	Open(capture *audio.CaptureContext, output *audio.OutputContext) (Streams, error)
}

// Publisher receives one Frame per animation tick. Publish must not block.
type Publisher interface {
	Publish(frame avatar.Frame)
}

// Options configures a Session
type Options struct {
	Dialer    live.Dialer
	Devices   Devices
	Publisher Publisher // optional

	Coach coach.Coach
	Mode  coach.PracticeMode
	Model string

	Capture      audio.CaptureConfig
	PlaybackRate int
	FFTSize      int
	VAD          audio.VADConfig
	Avatar       avatar.Params
	TickInterval time.Duration

	// TimeDomainOnly skips spectrum reads; avatars then follow the speaking
	// flags with a breathing motion instead of formants.
	TimeDomainOnly bool

	SendFailureLimit int
	SendFailureReset time.Duration

	Clock func() time.Time // defaults to time.Now
	Rand  *rand.Rand       // seeds jitter and blinking
}

func (o *Options) setDefaults() {
	if o.Mode == "" {
		o.Mode = coach.ModeConversation
	}
	if o.Coach.Voice == "" {
		o.Coach.Voice = coach.DefaultVoice
	}
	if o.Capture == (audio.CaptureConfig{}) {
		o.Capture = audio.DefaultCaptureConfig()
	}
	if o.PlaybackRate <= 0 {
		o.PlaybackRate = live.DefaultOutputRate
	}
	if o.FFTSize <= 0 {
		o.FFTSize = audio.DefaultFFTSize
	}
	if o.VAD == (audio.VADConfig{}) {
		o.VAD = audio.DefaultVADConfig()
	}
	if o.Avatar == (avatar.Params{}) {
		o.Avatar = avatar.DefaultParams()
	}
	if o.TickInterval <= 0 {
		o.TickInterval = time.Second / 60
	}
	if o.SendFailureLimit <= 0 {
		o.SendFailureLimit = 5
	}
	if o.SendFailureReset <= 0 {
		o.SendFailureReset = 30 * time.Second
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
}

// Session owns every piece of per-conversation state: the audio contexts,
// the playback clock and active set, both speaking detectors, both avatar
// engines and the transcript. All of it is torn down through one routine.
type Session struct {
	id      string
	opts    Options
	logger  zerolog.Logger
	metrics *observability.SessionMetrics
	breaker *resilience.CircuitBreaker
	encoder *audio.Encoder

	mu         sync.Mutex
	status     Status
	lastErr    error
	done       chan struct{} // non-nil while resources are held
	channel    live.Channel
	streams    Streams
	capture    *audio.CaptureContext
	output     *audio.OutputContext
	scheduler  *playback.Scheduler
	userVAD    *audio.Detector
	agentVAD   *audio.Detector
	agentFace  *avatar.Engine
	userFace   *avatar.Engine
	gestures   *avatar.GestureDetector
	transcript *live.Transcript
	vocab      *live.VocabularyCard
	window     []byte
	agentBins  []byte
	userBins   []byte
	seq        uint64
	dropped    uint64
}

// New creates an idle session
func New(opts Options) (*Session, error) {
	if opts.Dialer == nil {
		return nil, errors.New("session: dialer is required")
	}
	if opts.Devices == nil {
		return nil, errors.New("session: devices are required")
	}
	opts.setDefaults()

	id := uuid.New().String()
	s := &Session{
		id:         id,
		opts:       opts,
		logger:     observability.SessionLogger(id, opts.Coach.Name),
		metrics:    observability.NewSessionMetrics(id),
		encoder:    audio.NewEncoder(opts.Capture.SampleRate),
		status:     StatusIdle,
		userVAD:    audio.NewDetector(opts.VAD),
		agentVAD:   audio.NewDetector(opts.VAD),
		agentFace:  avatar.NewEngine(opts.Avatar, true, opts.Rand),
		userFace:   avatar.NewEngine(opts.Avatar, false, opts.Rand),
		gestures:   avatar.NewGestureDetector(avatar.DefaultGestureDuration),
		transcript: live.NewTranscript(),
		window:     make([]byte, opts.FFTSize),
		agentBins:  make([]byte, opts.FFTSize/2),
		userBins:   make([]byte, opts.FFTSize/2),
	}
	s.breaker = resilience.NewCircuitBreaker("live_send", opts.SendFailureLimit, opts.SendFailureReset,
		resilience.WithStateChange(func(name string, from, to resilience.CircuitState) {
			observability.UpdateCircuitBreakerState(name, int(to))
			s.logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		}))
	return s, nil
}

// ID returns the session id
func (s *Session) ID() string {
	return s.id
}

// Status returns the current status
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Err returns the error that ended the session, if any
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Scheduler returns the playback scheduler, nil before the first Open
func (s *Session) Scheduler() *playback.Scheduler {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduler
}

// Transcript returns the conversation so far with every entry marked final
func (s *Session) Transcript() []live.TranscriptEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript.Finalize()
}

// Open acquires the audio devices and connects the live channel.
// A device failure leaves nothing behind. Dial has no timeout of its own;
// ctx bounds it.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	switch s.status {
	case StatusRequesting, StatusConnecting, StatusConnected:
		s.mu.Unlock()
		return ErrAlreadyOpen
	}
	s.status = StatusRequesting
	s.lastErr = nil

	inTap, err := audio.NewAnalyser(s.opts.FFTSize)
	if err != nil {
		s.status, s.lastErr = StatusError, err
		s.mu.Unlock()
		return fmt.Errorf("create input analyser: %w", err)
	}
	outTap, err := audio.NewAnalyser(s.opts.FFTSize)
	if err != nil {
		s.status, s.lastErr = StatusError, err
		s.mu.Unlock()
		return fmt.Errorf("create output analyser: %w", err)
	}
	capture := audio.NewCaptureContext(s.opts.Capture, inTap)
	output := audio.NewOutputContext(s.opts.PlaybackRate, outTap)

	streams, err := s.opts.Devices.Open(capture, output)
	if err != nil {
		capture.Close()
		output.Close()
		s.status = StatusError
		if errors.Is(err, ErrPermissionDenied) {
			s.status = StatusPermissionDenied
		}
		s.lastErr = err
		status := s.status
		s.mu.Unlock()

		s.metrics.RecordError("device_open", "session")
		s.logger.Warn().Err(err).Str("status", string(status)).Msg("Audio devices unavailable")
		return fmt.Errorf("open audio devices: %w", err)
	}

	s.capture, s.output, s.streams = capture, output, streams
	s.scheduler = playback.NewScheduler(output)
	s.done = make(chan struct{})
	s.transcript.Reset()
	s.vocab = nil
	s.seq, s.dropped = 0, 0
	s.status = StatusConnecting
	s.mu.Unlock()

	s.logger.Info().
		Str("model", s.opts.Model).
		Str("voice", s.opts.Coach.Voice).
		Str("mode", s.opts.Mode.String()).
		Msg("Connecting to live channel")

	ch, err := s.opts.Dialer.Dial(ctx, live.Setup{
		Model:             s.opts.Model,
		Voice:             s.opts.Coach.Voice,
		SystemInstruction: s.opts.Mode.Instruction(s.opts.Coach.Name),
	})

	s.mu.Lock()
	if err != nil {
		s.lastErr = err
		s.teardownLocked(StatusError)
		s.mu.Unlock()
		s.metrics.RecordError("dial", "live")
		s.logger.Error().Err(err).Msg("Failed to connect live channel")
		return fmt.Errorf("dial live channel: %w", err)
	}
	if s.status != StatusConnecting {
		s.mu.Unlock()
		ch.Close()
		return errStoppedWhileConnecting
	}
	s.channel = ch
	s.capture.Resume()
	s.status = StatusConnected
	s.mu.Unlock()

	s.breaker.Reset()
	s.metrics.RecordSessionStart()
	s.logger.Info().Msg("Session connected")
	return nil
}

// Run drives a connected session until it is stopped, ctx ends or the
// channel fails. Inbound messages and animation ticks are handled on one
// goroutine; capture frames are sent on another.
func (s *Session) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.status != StatusConnected {
		s.mu.Unlock()
		return ErrNotConnected
	}
	ch, frames, done := s.channel, s.capture.Frames(), s.done
	s.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	msgs := make(chan *live.Message, 16)

	g.Go(func() error { return s.receiveLoop(gctx, ch, msgs, done) })
	g.Go(func() error { return s.sendLoop(gctx, ch, frames) })
	g.Go(func() error { return s.tickLoop(gctx, msgs, done) })
	g.Go(func() error {
		select {
		case <-gctx.Done():
			// unblocks Receive
			s.closeChannel()
		case <-done:
		}
		return nil
	})

	err := g.Wait()
	switch {
	case err == nil, errors.Is(err, errRemoteClosed):
		s.Stop()
		return nil
	default:
		s.fail(err)
		return err
	}
}

func (s *Session) receiveLoop(ctx context.Context, ch live.Channel, msgs chan<- *live.Message, done <-chan struct{}) error {
	for {
		msg, err := ch.Receive()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-done:
				return nil
			default:
			}
			if errors.Is(err, io.EOF) {
				return errRemoteClosed
			}
			return fmt.Errorf("live channel receive: %w", err)
		}

		select {
		case msgs <- msg:
		case <-ctx.Done():
			return nil
		case <-done:
			return nil
		}
	}
}

// sendLoop forwards capture frames without waiting for any acknowledgment.
// Individual failures are logged and dropped; once the breaker opens the
// channel is failed.
func (s *Session) sendLoop(ctx context.Context, ch live.Channel, frames <-chan audio.AudioFrame) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case frame, ok := <-frames:
			if !ok {
				return nil
			}

			input := s.encoder.Encode(frame)
			err := s.breaker.Call(func() error {
				return ch.SendRealtimeInput(input)
			})
			if err == nil {
				s.metrics.RecordFrameSent(len(input.Media.Data))
				continue
			}

			s.metrics.RecordSendError()
			if errors.Is(err, resilience.ErrCircuitOpen) || s.breaker.GetState() == resilience.StateOpen {
				return fmt.Errorf("live channel send: %w", err)
			}
			s.logger.Warn().Err(err).Msg("Failed to send audio frame")
		}
	}
}

func (s *Session) tickLoop(ctx context.Context, msgs <-chan *live.Message, done <-chan struct{}) error {
	ticker := time.NewTicker(s.opts.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-done:
			return nil
		case msg := <-msgs:
			s.HandleMessage(msg)
		case now := <-ticker.C:
			s.Tick(now)
		}
	}
}

// HandleMessage applies one inbound content event: transcription first,
// then audio, then the interrupted and turn-complete markers.
func (s *Session) HandleMessage(msg *live.Message) {
	if msg == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusConnected {
		return
	}
	now := s.opts.Clock()

	if t := msg.InputTranscription; t != nil && t.Text != "" {
		s.transcript.AppendInput(t.Text)
	}
	if t := msg.OutputTranscription; t != nil && t.Text != "" {
		combined := s.transcript.AppendOutput(t.Text)
		s.gestures.Observe(t.Text, now)
		if s.opts.Mode == coach.ModeVocabulary {
			if card, ok := live.ParseVocabulary(combined); ok {
				s.vocab = &card
			}
		}
	}

	for _, blob := range msg.Audio {
		s.scheduleLocked(blob)
	}

	if msg.Interrupted {
		n := s.scheduler.Interrupt(playback.BargeIn)
		s.metrics.RecordInterruption(playback.BargeIn.String())
		s.logger.Debug().Int("stopped", n).Msg("Playback interrupted")
	}
	if msg.TurnComplete {
		s.transcript.CompleteTurn()
	}
}

// scheduleLocked plays one inline chunk. A bad chunk is skipped and the session continues.
func (s *Session) scheduleLocked(blob live.Blob) {
	rate, err := live.ParseRate(blob.MIMEType)
	if err != nil {
		s.skip("unsupported_mime", blob, err)
		return
	}

	chunk, err := audio.DecodeChunk(blob.Data, rate)
	if err != nil {
		reason := "decode"
		switch {
		case errors.Is(err, audio.ErrEmptyPCM):
			reason = "empty"
		case errors.Is(err, audio.ErrOddPCM):
			reason = "odd_length"
		}
		s.skip(reason, blob, err)
		return
	}

	entry, err := s.scheduler.Schedule(chunk)
	if err != nil {
		s.skip("schedule", blob, err)
		return
	}
	s.metrics.RecordChunkScheduled(len(blob.Data), entry.Late)
}

func (s *Session) skip(reason string, blob live.Blob, err error) {
	s.metrics.RecordChunkSkipped(reason)
	s.logger.Warn().
		Err(err).
		Str("reason", reason).
		Str("mime_type", blob.MIMEType).
		Int("bytes", len(blob.Data)).
		Msg("Skipping inbound audio chunk")
}

// Tick runs one animation step: reap finished playback, update both speaking
// flags and both avatars, and publish the frame. It reports false when the
// session is not connected.
func (s *Session) Tick(now time.Time) (avatar.Frame, bool) {
	begin := time.Now()

	s.mu.Lock()
	if s.status != StatusConnected {
		s.mu.Unlock()
		return avatar.Frame{}, false
	}

	s.scheduler.Reap()

	outTap, inTap := s.output.Analyser(), s.capture.Analyser()
	agentSpeaking := s.agentVAD.ProcessTap(outTap, s.window, now)
	userSpeaking := s.userVAD.ProcessTap(inTap, s.window, now)
	gesture := s.gestures.Current(now)

	var agentBins, userBins []byte
	if !s.opts.TimeDomainOnly {
		agentBins = readSpectrum(outTap, s.agentBins)
		userBins = readSpectrum(inTap, s.userBins)
	}
	agent := s.agentFace.Update(now, agentBins, agentSpeaking, gesture)
	user := s.userFace.Update(now, userBins, userSpeaking, avatar.GestureNone)

	s.seq++
	frame := avatar.Frame{
		Seq:        s.seq,
		At:         now,
		Status:     string(s.status),
		Agent:      avatar.Panel{Transform: agent, Speaking: agentSpeaking, Gesture: gesture},
		User:       avatar.Panel{Transform: user, Speaking: userSpeaking},
		Processing: !agentSpeaking && !userSpeaking,
	}
	if s.vocab != nil {
		frame.Vocabulary = &avatar.Card{Word: s.vocab.Word, Definition: s.vocab.Definition}
	}

	if dropped := s.capture.Dropped(); dropped > s.dropped {
		s.metrics.RecordFramesDropped(int(dropped - s.dropped))
		s.dropped = dropped
	}
	s.mu.Unlock()

	if s.opts.Publisher != nil {
		s.opts.Publisher.Publish(frame)
	}
	s.metrics.ObserveTick(time.Since(begin))
	return frame, true
}

// readSpectrum fills dst from tap, or returns nil when there is no tap
func readSpectrum(tap *audio.Analyser, dst []byte) []byte {
	if tap == nil {
		return nil
	}
	tap.ByteFrequencyData(dst)
	return dst
}

// Stop ends the session. Safe to call at any time and any number of times.
func (s *Session) Stop() {
	s.mu.Lock()
	torn := s.teardownLocked(StatusStopped)
	s.mu.Unlock()

	if torn {
		s.logger.Info().Msg("Session stopped")
	}
}

// Dispose releases the session when its owner goes away
func (s *Session) Dispose() {
	s.Stop()
}

// fail records a channel error and tears the session down
func (s *Session) fail(err error) {
	s.mu.Lock()
	torn := s.teardownLocked(StatusError)
	if torn {
		s.lastErr = err
	}
	s.mu.Unlock()

	if torn {
		s.metrics.RecordError("channel", "live")
		s.logger.Error().Err(err).Msg("Session failed")
	}
}

func (s *Session) closeChannel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.channel != nil {
		if err := s.channel.Close(); err != nil {
			s.logger.Debug().Err(err).Msg("Closing live channel")
		}
		s.channel = nil
	}
}

// teardownLocked is the single cancellation path. In order it stops capture,
// stops every playing source, releases the audio contexts and the channel, and
// resets all per-session state. It reports whether anything was torn down.
func (s *Session) teardownLocked(final Status) bool {
	if s.done == nil {
		return false
	}
	close(s.done)
	s.done = nil

	if s.streams != nil {
		if err := s.streams.StopCapture(); err != nil {
			s.logger.Debug().Err(err).Msg("Stopping capture stream")
		}
	}

	if n := s.scheduler.Interrupt(playback.Teardown); n > 0 {
		s.metrics.RecordInterruption(playback.Teardown.String())
	}

	if s.streams != nil {
		if err := s.streams.Close(); err != nil {
			s.logger.Debug().Err(err).Msg("Closing audio streams")
		}
	}
	if s.capture != nil {
		s.capture.Close()
	}
	if s.output != nil {
		s.output.Close()
	}
	if s.channel != nil {
		if err := s.channel.Close(); err != nil {
			s.logger.Debug().Err(err).Msg("Closing live channel")
		}
	}

	s.streams, s.capture, s.output, s.channel = nil, nil, nil, nil
	s.userVAD.Reset()
	s.agentVAD.Reset()
	s.agentFace.Reset()
	s.userFace.Reset()
	s.gestures.Reset()
	s.vocab = nil
	s.status = final

	s.metrics.RecordSessionEnd()
	return true
}
