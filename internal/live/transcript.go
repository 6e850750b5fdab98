package live

import (
	"regexp"
	"strings"
)

// Speaker labels used in transcripts
const (
	SpeakerUser  = "You"
	SpeakerAgent = "AI"
)

// TranscriptEntry is one speaker's contiguous utterance
type TranscriptEntry struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
	IsFinal bool   `json:"isFinal"`
}

// Transcript accumulates transcription fragments in arrival order.
// Fragments extend the trailing entry while it belongs to the same speaker and
// is still open; a turn-complete marker closes the latest entry of each speaker.
type Transcript struct {
	entries []TranscriptEntry
}

// NewTranscript creates an empty transcript
func NewTranscript() *Transcript {
	return &Transcript{}
}

// AppendInput adds a fragment of user speech
func (t *Transcript) AppendInput(text string) {
	t.append(SpeakerUser, text)
}

// AppendOutput adds a fragment of agent speech and returns the full text of the entry it landed in
func (t *Transcript) AppendOutput(text string) string {
	return t.append(SpeakerAgent, text)
}

func (t *Transcript) append(speaker, text string) string {
	if n := len(t.entries); n > 0 {
		last := &t.entries[n-1]
		if last.Speaker == speaker && !last.IsFinal {
			last.Text += text
			return last.Text
		}
	}
	t.entries = append(t.entries, TranscriptEntry{Speaker: speaker, Text: text})
	return text
}

// CompleteTurn finalises the most recent entry of each speaker
func (t *Transcript) CompleteTurn() {
	user, agent := false, false
	for i := len(t.entries) - 1; i >= 0 && !(user && agent); i-- {
		switch t.entries[i].Speaker {
		case SpeakerUser:
			if !user {
				t.entries[i].IsFinal = true
				user = true
			}
		case SpeakerAgent:
			if !agent {
				t.entries[i].IsFinal = true
				agent = true
			}
		}
	}
}

// Entries returns a copy of the current entries
func (t *Transcript) Entries() []TranscriptEntry {
	out := make([]TranscriptEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Len returns the number of entries
func (t *Transcript) Len() int {
	return len(t.entries)
}

// Finalize returns the transcript handed over when a session ends: every entry marked final
func (t *Transcript) Finalize() []TranscriptEntry {
	out := t.Entries()
	for i := range out {
		out[i].IsFinal = true
	}
	return out
}

// Reset empties the transcript
func (t *Transcript) Reset() {
	t.entries = nil
}

// VocabularyCard is the word the coach is currently teaching
type VocabularyCard struct {
	Word       string `json:"word"`
	Definition string `json:"definition"`
}

var vocabularyPattern = regexp.MustCompile(`\*\*Word:\*\*\s*(.*?)\s*\*\*Definition:\*\*\s*(.*)`)

// ParseVocabulary extracts a "**Word:** X **Definition:** Y" card from agent text
func ParseVocabulary(text string) (VocabularyCard, bool) {
	m := vocabularyPattern.FindStringSubmatch(text)
	if m == nil {
		return VocabularyCard{}, false
	}

	card := VocabularyCard{
		Word:       strings.TrimSpace(m[1]),
		Definition: strings.TrimSpace(m[2]),
	}
	if card.Word == "" || card.Definition == "" {
		return VocabularyCard{}, false
	}
	return card, true
}
