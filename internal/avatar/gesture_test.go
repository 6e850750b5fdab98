package avatar

import (
	"strings"
	"testing"
	"time"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		text     string
		expected GestureKind
	}{
		{"Yes, that's exactly right!", GestureNod},
		{"No, that's not quite correct", GestureShake},
		{"Yes, but actually no", GestureNone},
		{"Great job on that sentence.", GestureNod},
		{"That isn't right.", GestureShake},
		{"Let's talk about travel.", GestureNone},
		{"", GestureNone},
	}

	for _, tt := range tests {
		if got := Classify(tt.text); got != tt.expected {
			t.Errorf("Classify(%q): expected %s, got %s", tt.text, tt.expected, got)
		}
	}
}

func TestClassify_OnlyReadsOpening(t *testing.T) {
	text := strings.Repeat("hmm ", 20) + "yes"
	if got := Classify(text); got != GestureNone {
		t.Errorf("Expected markers past the opening to be ignored, got %s", got)
	}
}

func TestGestureDetector_Expiry(t *testing.T) {
	d := NewGestureDetector(0)
	now := time.Unix(1700000000, 0)

	if got := d.Observe("Yes, that's exactly right!", now); got != GestureNod {
		t.Fatalf("Expected nod, got %s", got)
	}
	if got := d.Current(now.Add(1499 * time.Millisecond)); got != GestureNod {
		t.Errorf("Expected nod still active, got %s", got)
	}
	if got := d.Current(now.Add(DefaultGestureDuration)); got != GestureNone {
		t.Errorf("Expected gesture expired, got %s", got)
	}
	if d.State().Kind != GestureNone {
		t.Error("Expected expired state to be cleared")
	}
}

func TestGestureDetector_AmbiguousLeavesStateAlone(t *testing.T) {
	d := NewGestureDetector(time.Second)
	now := time.Unix(1700000000, 0)

	d.Observe("No, that's not quite correct", now)
	if got := d.Observe("Yes, but actually no", now.Add(100*time.Millisecond)); got != GestureNone {
		t.Errorf("Expected no new gesture, got %s", got)
	}

	state := d.State()
	if state.Kind != GestureShake {
		t.Errorf("Expected shake to remain, got %s", state.Kind)
	}
	if !state.ExpiresAt.Equal(now.Add(time.Second)) {
		t.Errorf("Expected expiry unchanged, got %v", state.ExpiresAt)
	}
}

func TestGestureDetector_NewGestureRestartsTimer(t *testing.T) {
	d := NewGestureDetector(time.Second)
	now := time.Unix(1700000000, 0)

	d.Observe("Yes!", now)
	d.Observe("Nope.", now.Add(800*time.Millisecond))

	if got := d.Current(now.Add(1500 * time.Millisecond)); got != GestureShake {
		t.Errorf("Expected shake with restarted timer, got %s", got)
	}
}

func TestGestureDetector_Reset(t *testing.T) {
	d := NewGestureDetector(time.Second)
	now := time.Unix(1700000000, 0)
	d.Observe("Perfect.", now)

	d.Reset()
	if got := d.Current(now); got != GestureNone {
		t.Errorf("Expected no gesture after reset, got %s", got)
	}
}

func TestGestureKind_Text(t *testing.T) {
	for _, kind := range []GestureKind{GestureNone, GestureNod, GestureShake} {
		text, _ := kind.MarshalText()
		var decoded GestureKind
		decoded.UnmarshalText(text)
		if decoded != kind {
			t.Errorf("Expected %s, got %s", kind, decoded)
		}
	}
}
