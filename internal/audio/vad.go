package audio

import "time"

// VADConfig holds configuration for Voice Activity Detection.
// The same parameters are used for the microphone and for the remote voice.
type VADConfig struct {
	Threshold float64       // RMS of 128-centred byte samples above which a tick counts as voiced
	Hangover  time.Duration // Continuous quiet required before speech is marked ended
}

// DefaultVADConfig returns a default VAD configuration
func DefaultVADConfig() VADConfig {
	return VADConfig{
		Threshold: 1.5,
		Hangover:  200 * time.Millisecond,
	}
}

// Detector is a hysteresis-stabilised speaking flag.
// Silent -> Speaking happens on the first voiced tick; Speaking -> Silent only
// once the signal has stayed at or below threshold for the whole hangover.
type Detector struct {
	config             VADConfig
	isSpeaking         bool
	lastAboveThreshold time.Time
}

// NewDetector creates a new VAD detector
func NewDetector(config VADConfig) *Detector {
	if config.Threshold <= 0 {
		config.Threshold = DefaultVADConfig().Threshold
	}
	if config.Hangover < 0 {
		config.Hangover = 0
	}
	return &Detector{config: config}
}

// Process feeds one RMS reading taken at now.
// Returns: (isSpeaking, speechStarted, speechEnded)
func (v *Detector) Process(rms float64, now time.Time) (bool, bool, bool) {
	var speechStarted, speechEnded bool

	if rms > v.config.Threshold {
		v.lastAboveThreshold = now
		if !v.isSpeaking {
			speechStarted = true
			v.isSpeaking = true
		}
		return v.isSpeaking, speechStarted, speechEnded
	}

	if v.isSpeaking && now.Sub(v.lastAboveThreshold) >= v.config.Hangover {
		speechEnded = true
		v.isSpeaking = false
	}

	return v.isSpeaking, speechStarted, speechEnded
}

// ProcessTap reads the analyser's time-domain window and feeds its RMS.
// A nil tap resets the detector to silent.
func (v *Detector) ProcessTap(tap *Analyser, window []byte, now time.Time) bool {
	if tap == nil {
		v.Reset()
		return false
	}
	tap.ByteTimeDomainData(window)
	speaking, _, _ := v.Process(ByteRMS(window), now)
	return speaking
}

// Reset resets the VAD detector state
func (v *Detector) Reset() {
	v.isSpeaking = false
	v.lastAboveThreshold = time.Time{}
}

// IsSpeaking returns whether speech is currently detected
func (v *Detector) IsSpeaking() bool {
	return v.isSpeaking
}

// LastActive returns when the signal last exceeded the threshold
func (v *Detector) LastActive() time.Time {
	return v.lastAboveThreshold
}
