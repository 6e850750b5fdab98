package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-coach/internal/live"
)

func testEntries() []live.TranscriptEntry {
	return []live.TranscriptEntry{
		{Speaker: live.SpeakerUser, Text: "Hi", IsFinal: true},
		{Speaker: live.SpeakerAgent, Text: "Hello!", IsFinal: true},
	}
}

func TestTranscriptHandler(t *testing.T) {
	var logs bytes.Buffer
	handler := transcriptHandler(testEntries, zerolog.New(&logs))

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/transcript", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected application/json, got %s", ct)
	}

	var got []live.TranscriptEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("Expected JSON body, got %v", err)
	}
	if len(got) != 2 || got[1].Text != "Hello!" {
		t.Errorf("Expected both entries, got %+v", got)
	}
	if logs.Len() != 0 {
		t.Errorf("Expected no log output, got %s", logs.String())
	}
}

type brokenWriter struct {
	header http.Header
}

func (w *brokenWriter) Header() http.Header {
	return w.header
}

func (w *brokenWriter) Write([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

func (w *brokenWriter) WriteHeader(int) {}

func TestTranscriptHandler_LogsWriteFailure(t *testing.T) {
	var logs bytes.Buffer
	handler := transcriptHandler(testEntries, zerolog.New(&logs))

	handler(&brokenWriter{header: http.Header{}}, httptest.NewRequest(http.MethodGet, "/transcript", nil))

	if !strings.Contains(logs.String(), "Failed to write transcript") {
		t.Errorf("Expected write failure to be logged, got %q", logs.String())
	}
	if !strings.Contains(logs.String(), "connection reset") {
		t.Errorf("Expected cause in log, got %q", logs.String())
	}
}
