package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	os.Setenv("GEMINI_API_KEY", "test-gemini-key")
	defer os.Unsetenv("GEMINI_API_KEY")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.GeminiAPIKey != "test-gemini-key" {
		t.Errorf("Expected GeminiAPIKey 'test-gemini-key', got '%s'", cfg.GeminiAPIKey)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	os.Unsetenv("GEMINI_API_KEY")

	_, err := LoadFromEnv()
	if err == nil {
		t.Error("Expected error when GEMINI_API_KEY is missing")
	}
}

func TestLoad_Defaults(t *testing.T) {
	os.Setenv("GEMINI_API_KEY", "test-gemini-key")
	defer os.Unsetenv("GEMINI_API_KEY")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Expected default Port '8080', got '%s'", cfg.Port)
	}
	if cfg.LiveModel != "gemini-2.5-flash-native-audio-preview-09-2025" {
		t.Errorf("Expected default LiveModel, got '%s'", cfg.LiveModel)
	}
	if cfg.LiveVoice != "Zephyr" {
		t.Errorf("Expected default LiveVoice 'Zephyr', got '%s'", cfg.LiveVoice)
	}
	if cfg.Coach != "Eva" {
		t.Errorf("Expected default Coach 'Eva', got '%s'", cfg.Coach)
	}
	if cfg.PracticeMode != "conversation" {
		t.Errorf("Expected default PracticeMode 'conversation', got '%s'", cfg.PracticeMode)
	}
	if cfg.CaptureSampleRate != 16000 {
		t.Errorf("Expected default CaptureSampleRate 16000, got %d", cfg.CaptureSampleRate)
	}
	if cfg.CaptureBlockSize != 4096 {
		t.Errorf("Expected default CaptureBlockSize 4096, got %d", cfg.CaptureBlockSize)
	}
	if cfg.PlaybackSampleRate != 24000 {
		t.Errorf("Expected default PlaybackSampleRate 24000, got %d", cfg.PlaybackSampleRate)
	}
	if cfg.AnalyserFFTSize != 256 {
		t.Errorf("Expected default AnalyserFFTSize 256, got %d", cfg.AnalyserFFTSize)
	}
	if cfg.TickRate != 60 {
		t.Errorf("Expected default TickRate 60, got %d", cfg.TickRate)
	}
	if !cfg.AvatarSpectrum {
		t.Error("Expected default AvatarSpectrum true, got false")
	}
}

func TestConfig_DomainHelpers(t *testing.T) {
	os.Setenv("GEMINI_API_KEY", "test-gemini-key")
	defer os.Unsetenv("GEMINI_API_KEY")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}

	vad := cfg.VADConfig()
	if vad.Threshold != 1.5 {
		t.Errorf("Expected VAD threshold 1.5, got %f", vad.Threshold)
	}
	if vad.Hangover != 200*time.Millisecond {
		t.Errorf("Expected VAD hangover 200ms, got %s", vad.Hangover)
	}

	capture := cfg.CaptureConfig()
	if capture.QueueSize != 32 || capture.DeviceRate != 16000 {
		t.Errorf("Expected capture queue 32 at 16000 Hz, got %+v", capture)
	}

	if cfg.TickInterval() != time.Second/60 {
		t.Errorf("Expected tick interval %s, got %s", time.Second/60, cfg.TickInterval())
	}
	if cfg.SendFailureResetTimeout() != 30*time.Second {
		t.Errorf("Expected reset timeout 30s, got %s", cfg.SendFailureResetTimeout())
	}
}

func TestConfig_Validate(t *testing.T) {
	os.Setenv("GEMINI_API_KEY", "test-gemini-key")
	os.Setenv("ANALYSER_FFT_SIZE", "300")
	defer os.Unsetenv("GEMINI_API_KEY")
	defer os.Unsetenv("ANALYSER_FFT_SIZE")

	if _, err := LoadFromEnv(); err == nil {
		t.Error("Expected error for non power-of-two FFT size")
	}

	os.Setenv("ANALYSER_FFT_SIZE", "512")
	os.Setenv("TICK_RATE", "0")
	defer os.Unsetenv("TICK_RATE")
	if _, err := LoadFromEnv(); err == nil {
		t.Error("Expected error for zero tick rate")
	}
}

func TestGetEnv(t *testing.T) {
	os.Setenv("TEST_KEY", "test-value")
	defer os.Unsetenv("TEST_KEY")

	value := GetEnv("TEST_KEY", "default")
	if value != "test-value" {
		t.Errorf("Expected 'test-value', got '%s'", value)
	}

	value = GetEnv("NON_EXISTENT_KEY", "default")
	if value != "default" {
		t.Errorf("Expected 'default', got '%s'", value)
	}
}

func TestConfig_ObservabilityDefaults(t *testing.T) {
	os.Setenv("GEMINI_API_KEY", "test-gemini-key")
	os.Unsetenv("LOG_LEVEL")
	defer os.Unsetenv("GEMINI_API_KEY")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("Expected default LogLevel 'info', got '%s'", cfg.LogLevel)
	}
	if cfg.LogPretty {
		t.Error("Expected default LogPretty false, got true")
	}
	if !cfg.MetricsEnabled {
		t.Error("Expected default MetricsEnabled true, got false")
	}
	if cfg.SendFailureLimit != 5 {
		t.Errorf("Expected default SendFailureLimit 5, got %d", cfg.SendFailureLimit)
	}
}
