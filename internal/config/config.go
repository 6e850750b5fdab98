package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/lexiqai/voice-coach/internal/audio"
)

// Config holds all configuration for the voice coach
type Config struct {
	// Server configuration (avatar render stream, health, metrics)
	Port string `envconfig:"PORT" default:"8080"`

	// Gemini Live configuration
	GeminiAPIKey string `envconfig:"GEMINI_API_KEY"`
	LiveModel    string `envconfig:"LIVE_MODEL" default:"gemini-2.5-flash-native-audio-preview-09-2025"`
	LiveVoice    string `envconfig:"LIVE_VOICE" default:"Zephyr"` // used when the coach has no voice of its own

	// Coaching configuration
	Coach        string `envconfig:"COACH" default:"Eva"`
	CoachesFile  string `envconfig:"COACHES_FILE" default:""` // optional YAML with extra coaches
	PracticeMode string `envconfig:"PRACTICE_MODE" default:"conversation"`

	// Capture configuration
	CaptureSampleRate int `envconfig:"CAPTURE_SAMPLE_RATE" default:"16000"` // rate sent on the wire
	CaptureDeviceRate int `envconfig:"CAPTURE_DEVICE_RATE" default:"16000"` // rate the microphone is opened at
	CaptureBlockSize  int `envconfig:"CAPTURE_BLOCK_SIZE" default:"4096"`   // samples per outbound frame
	CaptureQueueSize  int `envconfig:"CAPTURE_QUEUE_SIZE" default:"32"`     // frames buffered before dropping

	// Playback configuration
	PlaybackSampleRate   int `envconfig:"PLAYBACK_SAMPLE_RATE" default:"24000"`
	PlaybackBufferFrames int `envconfig:"PLAYBACK_BUFFER_FRAMES" default:"1024"`

	// Analysis and animation configuration
	AnalyserFFTSize int     `envconfig:"ANALYSER_FFT_SIZE" default:"256"`
	VADThreshold    float64 `envconfig:"VAD_THRESHOLD" default:"1.5"`  // RMS of 128-centred bytes
	VADHangoverMs   int     `envconfig:"VAD_HANGOVER_MS" default:"200"` // silence before speaking ends
	TickRate        int     `envconfig:"TICK_RATE" default:"60"`       // animation ticks per second

	// Drive the avatars from the spectrum; off animates them from the speaking flags alone
	AvatarSpectrum bool `envconfig:"AVATAR_SPECTRUM" default:"true"`

	// Resilience configuration
	SendFailureLimit int `envconfig:"SEND_FAILURE_LIMIT" default:"5"`  // consecutive send failures before the channel is failed
	SendFailureReset int `envconfig:"SEND_FAILURE_RESET" default:"30"` // seconds

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()
	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required fields and value ranges
func (c *Config) Validate() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	if c.CaptureSampleRate <= 0 || c.CaptureDeviceRate <= 0 || c.PlaybackSampleRate <= 0 {
		return fmt.Errorf("sample rates must be positive")
	}
	if c.CaptureBlockSize <= 0 || c.CaptureQueueSize <= 0 {
		return fmt.Errorf("CAPTURE_BLOCK_SIZE and CAPTURE_QUEUE_SIZE must be positive")
	}
	if c.AnalyserFFTSize < 32 || c.AnalyserFFTSize&(c.AnalyserFFTSize-1) != 0 {
		return fmt.Errorf("ANALYSER_FFT_SIZE must be a power of two >= 32, got %d", c.AnalyserFFTSize)
	}
	if c.TickRate <= 0 {
		return fmt.Errorf("TICK_RATE must be positive")
	}
	if c.SendFailureLimit <= 0 {
		return fmt.Errorf("SEND_FAILURE_LIMIT must be positive")
	}
	return nil
}

// VADConfig returns the voice activity parameters shared by both speakers
func (c *Config) VADConfig() audio.VADConfig {
	return audio.VADConfig{
		Threshold: c.VADThreshold,
		Hangover:  time.Duration(c.VADHangoverMs) * time.Millisecond,
	}
}

// CaptureConfig returns the microphone pipeline parameters
func (c *Config) CaptureConfig() audio.CaptureConfig {
	return audio.CaptureConfig{
		DeviceRate: c.CaptureDeviceRate,
		SampleRate: c.CaptureSampleRate,
		BlockSize:  c.CaptureBlockSize,
		QueueSize:  c.CaptureQueueSize,
	}
}

// TickInterval returns the animation tick period
func (c *Config) TickInterval() time.Duration {
	return time.Second / time.Duration(c.TickRate)
}

// SendFailureResetTimeout returns the breaker reset timeout
func (c *Config) SendFailureResetTimeout() time.Duration {
	return time.Duration(c.SendFailureReset) * time.Second
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
