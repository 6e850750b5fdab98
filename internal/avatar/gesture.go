package avatar

import (
	"regexp"
	"strings"
	"time"
)

// GestureKind is the emotive head motion currently layered on the avatar
type GestureKind int

const (
	GestureNone GestureKind = iota
	GestureNod
	GestureShake
)

// String returns the wire name of the gesture
func (g GestureKind) String() string {
	switch g {
	case GestureNod:
		return "nod"
	case GestureShake:
		return "shake"
	default:
		return "none"
	}
}

// MarshalText encodes the gesture by name
func (g GestureKind) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

// UnmarshalText decodes a gesture name; unknown names decode as none
func (g *GestureKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "nod":
		*g = GestureNod
	case "shake":
		*g = GestureShake
	default:
		*g = GestureNone
	}
	return nil
}

// GestureState is the active gesture and when it lapses
type GestureState struct {
	Kind      GestureKind
	ExpiresAt time.Time
}

const (
	// DefaultGestureDuration is how long a detected gesture stays active
	DefaultGestureDuration = 1500 * time.Millisecond

	// gestureSnippetLen limits detection to the opening of a fragment,
	// where immediate reactions appear
	gestureSnippetLen = 50
)

var (
	nodPattern   = regexp.MustCompile(`(?i)\b(yes|yeah|yep|correct|exactly|right|good|great|awesome|perfect|definitely|sure|agree|well done)\b`)
	shakePattern = regexp.MustCompile(`(?i)\b(no|nope|nah|not quite|actually|however|incorrect|wrong|try again|unfortunately|but)\b`)

	// negated agreement ("not quite correct", "isn't right") is corrective
	negatedPattern = regexp.MustCompile(`(?i)\b(not|isn't|isnt|wasn't|not quite)\s+(quite\s+)?(yes|correct|exactly|right|good|great|perfect|sure)\b`)
)

// GestureDetector turns agent transcript fragments into short-lived nod/shake cues
type GestureDetector struct {
	duration time.Duration
	state    GestureState
}

// NewGestureDetector creates a detector; a non-positive duration uses DefaultGestureDuration
func NewGestureDetector(duration time.Duration) *GestureDetector {
	if duration <= 0 {
		duration = DefaultGestureDuration
	}
	return &GestureDetector{duration: duration}
}

// Classify inspects the opening of text and returns the gesture it calls for.
// Fragments with both or neither kind of marker return GestureNone.
func Classify(text string) GestureKind {
	snippet := text
	if runes := []rune(text); len(runes) > gestureSnippetLen {
		snippet = string(runes[:gestureSnippetLen])
	}
	snippet = strings.ToLower(snippet)

	negated := negatedPattern.MatchString(snippet)
	hasShake := negated || shakePattern.MatchString(snippet)
	hasNod := nodPattern.MatchString(negatedPattern.ReplaceAllString(snippet, " "))

	switch {
	case hasNod && !hasShake:
		return GestureNod
	case hasShake && !hasNod:
		return GestureShake
	default:
		return GestureNone
	}
}

// Observe processes one fragment at now. An unambiguous fragment sets the
// gesture and restarts the expiry timer; anything else leaves the state alone.
// Returns the gesture triggered by this fragment, if any.
func (d *GestureDetector) Observe(text string, now time.Time) GestureKind {
	kind := Classify(text)
	if kind == GestureNone {
		return GestureNone
	}
	d.state = GestureState{Kind: kind, ExpiresAt: now.Add(d.duration)}
	return kind
}

// Current returns the gesture active at now
func (d *GestureDetector) Current(now time.Time) GestureKind {
	if d.state.Kind == GestureNone {
		return GestureNone
	}
	if !now.Before(d.state.ExpiresAt) {
		d.state = GestureState{}
		return GestureNone
	}
	return d.state.Kind
}

// State returns the raw state without applying expiry
func (d *GestureDetector) State() GestureState {
	return d.state
}

// Reset clears any active gesture
func (d *GestureDetector) Reset() {
	d.state = GestureState{}
}
