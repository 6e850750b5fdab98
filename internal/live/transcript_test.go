package live

import (
	"testing"
)

func TestTranscript_MergesFragments(t *testing.T) {
	tr := NewTranscript()
	tr.AppendInput("How do ")
	tr.AppendInput("I say hello?")
	full := tr.AppendOutput("You can ")
	full = tr.AppendOutput("say hola.")

	if full != "You can say hola." {
		t.Errorf("Expected merged agent text, got %q", full)
	}

	entries := tr.Entries()
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].Speaker != SpeakerUser || entries[0].Text != "How do I say hello?" {
		t.Errorf("Unexpected user entry %+v", entries[0])
	}
	if entries[1].Speaker != SpeakerAgent || entries[1].IsFinal {
		t.Errorf("Unexpected agent entry %+v", entries[1])
	}
}

func TestTranscript_CompleteTurnClosesEntries(t *testing.T) {
	tr := NewTranscript()
	tr.AppendInput("Hi")
	tr.AppendOutput("Hello")
	tr.CompleteTurn()

	for _, e := range tr.Entries() {
		if !e.IsFinal {
			t.Errorf("Expected %s entry final after turn complete", e.Speaker)
		}
	}

	tr.AppendOutput("Next")
	if tr.Len() != 3 {
		t.Errorf("Expected a new entry after the turn closed, got %d entries", tr.Len())
	}
}

func TestTranscript_InterleavedSpeakers(t *testing.T) {
	tr := NewTranscript()
	tr.AppendOutput("A")
	tr.AppendInput("B")
	tr.AppendOutput("C")

	if tr.Len() != 3 {
		t.Errorf("Expected alternating speakers to open new entries, got %d", tr.Len())
	}
}

func TestTranscript_FinalizeAndReset(t *testing.T) {
	tr := NewTranscript()
	tr.AppendInput("one")
	tr.AppendOutput("two")

	final := tr.Finalize()
	for _, e := range final {
		if !e.IsFinal {
			t.Errorf("Expected finalized entry, got %+v", e)
		}
	}
	if tr.Entries()[1].IsFinal {
		t.Error("Expected Finalize to leave the live transcript untouched")
	}

	final[0].Text = "changed"
	if tr.Entries()[0].Text != "one" {
		t.Error("Expected Finalize to return a copy")
	}

	tr.Reset()
	if tr.Len() != 0 {
		t.Errorf("Expected empty transcript after reset, got %d", tr.Len())
	}
}

func TestParseVocabulary(t *testing.T) {
	card, ok := ParseVocabulary("Today's word! **Word:** Ephemeral **Definition:** Lasting a very short time.")
	if !ok {
		t.Fatal("Expected a vocabulary card")
	}
	if card.Word != "Ephemeral" {
		t.Errorf("Expected word Ephemeral, got %q", card.Word)
	}
	if card.Definition != "Lasting a very short time." {
		t.Errorf("Unexpected definition %q", card.Definition)
	}

	for _, text := range []string{
		"No card here.",
		"**Word:** Ephemeral",
		"**Word:**  **Definition:** something",
	} {
		if _, ok := ParseVocabulary(text); ok {
			t.Errorf("Expected no card for %q", text)
		}
	}
}
