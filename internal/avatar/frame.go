package avatar

import (
	"fmt"
	"time"
)

// Panel is what the presentation layer needs to draw one participant
type Panel struct {
	Transform VisemeState `json:"transform"`
	Speaking  bool        `json:"speaking"`
	Gesture   GestureKind `json:"gesture"`
}

// CSS renders the transform as a CSS transform value
func (p Panel) CSS() string {
	t := p.Transform
	return fmt.Sprintf("translate(%.2fpx, %.2fpx) rotate(%.2fdeg) scale(%.4f, %.4f)",
		t.TranslateX, t.TranslateY, t.RotateDeg, t.ScaleX, t.ScaleY)
}

// Filter renders the brightness multiplier as a CSS filter value
func (p Panel) Filter() string {
	return fmt.Sprintf("brightness(%.3f)", p.Transform.Brightness)
}

// Variant selects between the two avatar images for renderers that cannot transform
func (p Panel) Variant() string {
	if p.Speaking {
		return "talking"
	}
	return "neutral"
}

// Frame is one animation tick's output
type Frame struct {
	Seq        uint64    `json:"seq"`
	At         time.Time `json:"at"`
	Status     string    `json:"status"`
	Agent      Panel     `json:"agent"`
	User       Panel     `json:"user"`
	Processing bool      `json:"processing"` // connected and nobody is speaking
	Vocabulary *Card     `json:"vocabulary,omitempty"`
}

// Card is the vocabulary word on display, if any
type Card struct {
	Word       string `json:"word"`
	Definition string `json:"definition"`
}
