package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	cli "github.com/spf13/pflag"

	"github.com/lexiqai/voice-coach/internal/coach"
	"github.com/lexiqai/voice-coach/internal/config"
	"github.com/lexiqai/voice-coach/internal/device"
	"github.com/lexiqai/voice-coach/internal/live"
	"github.com/lexiqai/voice-coach/internal/observability"
	"github.com/lexiqai/voice-coach/internal/render"
	"github.com/lexiqai/voice-coach/internal/session"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code so deferred cleanup always runs
func run() int {
	coachName := cli.StringP("coach", "c", "", "Coach to talk to (overrides COACH)")
	modeName := cli.StringP("mode", "m", "", "Practice mode: conversation or vocabulary (overrides PRACTICE_MODE)")
	port := cli.StringP("port", "p", "", "HTTP port for the avatar stream (overrides PORT)")
	listCoaches := cli.Bool("list-coaches", false, "Print the available coaches and exit")
	cli.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}
	if *coachName != "" {
		cfg.Coach = *coachName
	}
	if *modeName != "" {
		cfg.PracticeMode = *modeName
	}
	if *port != "" {
		cfg.Port = *port
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	catalog := coach.NewCatalog()
	if cfg.CoachesFile != "" {
		if catalog, err = coach.LoadCatalogFile(cfg.CoachesFile); err != nil {
			logger.Error().Err(err).Msg("Failed to load coaches")
			return 1
		}
	}
	if *listCoaches {
		for _, c := range catalog.List() {
			fmt.Printf("%-12s voice=%s\n", c.Name, c.Voice)
		}
		return 0
	}

	selected, err := catalog.Lookup(cfg.Coach)
	if err != nil {
		logger.Error().Err(err).Msg("Unknown coach")
		return 1
	}
	if selected.Voice == coach.DefaultVoice && cfg.LiveVoice != "" {
		selected.Voice = cfg.LiveVoice
	}
	mode, err := coach.ParseMode(cfg.PracticeMode)
	if err != nil {
		logger.Error().Err(err).Msg("Invalid practice mode")
		return 1
	}

	logger.Info().
		Str("port", cfg.Port).
		Str("coach", selected.Name).
		Str("mode", mode.String()).
		Str("model", cfg.LiveModel).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Voice Coach starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	devices := device.New(cfg.PlaybackBufferFrames)
	if err := devices.Initialize(); err != nil {
		logger.Error().Err(err).Msg("Failed to initialize audio")
		return 1
	}
	defer devices.Terminate()

	dialer, err := live.NewGenAIDialer(ctx, cfg.GeminiAPIKey)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create live client")
		return 1
	}

	hub := render.NewHub(selected, render.DefaultQueueSize)
	defer hub.Close()

	sess, err := session.New(session.Options{
		Dialer:           dialer,
		Devices:          devices,
		Publisher:        hub,
		Coach:            selected,
		Mode:             mode,
		Model:            cfg.LiveModel,
		Capture:          cfg.CaptureConfig(),
		PlaybackRate:     cfg.PlaybackSampleRate,
		FFTSize:          cfg.AnalyserFFTSize,
		VAD:              cfg.VADConfig(),
		TickInterval:     cfg.TickInterval(),
		SendFailureLimit: cfg.SendFailureLimit,
		SendFailureReset: cfg.SendFailureResetTimeout(),
		TimeDomainOnly:   !cfg.AvatarSpectrum,
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create session")
		return 1
	}
	defer sess.Dispose()

	// Create HTTP server
	mux := http.NewServeMux()
	mux.Handle("/ws/avatar", hub)
	mux.HandleFunc("/health", observability.HealthCheckHandler())
	mux.HandleFunc("/ready", observability.ReadinessHandler(map[string]observability.HealthCheckFunc{
		"audio": func(ctx context.Context) (bool, error) {
			if err := devices.Check(); err != nil {
				return false, err
			}
			return true, nil
		},
		"session": func(ctx context.Context) (bool, error) {
			status := sess.Status()
			if status != session.StatusConnected {
				return false, fmt.Errorf("session is %s", status)
			}
			return true, nil
		},
	}))
	mux.HandleFunc("/transcript", transcriptHandler(sess.Transcript, logger))

	// Metrics endpoint (Prometheus)
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	server := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Port),
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("endpoint", fmt.Sprintf("ws://localhost:%s/ws/avatar", cfg.Port)).
			Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Server failed to start")
			stop()
		}
	}()

	exitCode := 0
	if err := sess.Open(ctx); err != nil {
		logger.Error().Err(err).Str("status", string(sess.Status())).Msg("Could not start session")
		exitCode = 1
	} else if err := sess.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("Session ended with error")
		exitCode = 1
	}
	sess.Stop()

	for _, entry := range sess.Transcript() {
		fmt.Printf("%s: %s\n", entry.Speaker, entry.Text)
	}

	logger.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	hub.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited gracefully")
	return exitCode
}

// transcriptHandler serves the conversation so far as JSON
func transcriptHandler(entries func() []live.TranscriptEntry, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(entries()); err != nil {
			logger.Warn().Err(err).Msg("Failed to write transcript")
		}
	}
}
