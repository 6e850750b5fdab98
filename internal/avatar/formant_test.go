package avatar

import (
	"math"
	"testing"
)

func filledSpectrum(v byte) []byte {
	s := make([]byte, 128)
	for i := range s {
		s[i] = v
	}
	return s
}

func nearRest(s VisemeState, tol float64) bool {
	return math.Abs(s.ScaleX-1) < tol &&
		math.Abs(s.ScaleY-1) < tol &&
		math.Abs(s.TranslateX) < tol &&
		math.Abs(s.TranslateY) < tol &&
		math.Abs(s.RotateDeg) < tol
}

func TestStep_ConvergesToRestOnSilence(t *testing.T) {
	p := DefaultParams()
	starts := []VisemeState{
		{ScaleX: 1.5, ScaleY: 0.5, TranslateX: 40, TranslateY: -40, RotateDeg: 20, Brightness: 2},
		{ScaleX: 0.5, ScaleY: 1.5, TranslateX: -40, TranslateY: 40, RotateDeg: -20, Brightness: 0.5},
	}

	for _, speaking := range []bool{false, true} {
		for _, start := range starts {
			s := start
			in := Input{Spectrum: make([]byte, 128), Speaking: speaking}
			for i := 0; i < 200; i++ {
				in.Time = float64(i) / 60
				s = Step(s, in, p)
			}
			if !nearRest(s, 1e-3) {
				t.Errorf("Expected rest pose after 200 ticks (speaking=%v), got %+v", speaking, s)
			}
		}
	}
}

func TestStep_IsPure(t *testing.T) {
	p := DefaultParams()
	in := Input{Spectrum: filledSpectrum(180), Speaking: true, Time: 0.3, Jitter: 0.2}

	a := Step(NeutralState(), in, p)
	b := Step(NeutralState(), in, p)
	if a != b {
		t.Errorf("Expected identical output for identical input, got %+v and %+v", a, b)
	}
}

func TestStep_BoundsNonFiniteState(t *testing.T) {
	p := DefaultParams()
	bad := VisemeState{
		ScaleX:     math.NaN(),
		ScaleY:     math.Inf(1),
		TranslateX: math.Inf(-1),
		TranslateY: math.NaN(),
		RotateDeg:  math.NaN(),
		Brightness: math.Inf(1),
	}

	s := Step(bad, Input{Spectrum: filledSpectrum(255), Speaking: true, Jitter: 0.5}, p)
	for name, v := range map[string]float64{
		"scaleX":     s.ScaleX,
		"scaleY":     s.ScaleY,
		"translateX": s.TranslateX,
		"translateY": s.TranslateY,
		"rotateDeg":  s.RotateDeg,
		"brightness": s.Brightness,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("Expected finite %s, got %v", name, v)
		}
	}
	if s.ScaleX < minScale || s.ScaleX > maxScale || s.ScaleY < minScale || s.ScaleY > maxScale {
		t.Errorf("Expected scale within bounds, got %+v", s)
	}
}

func TestTarget_SpeechOpensMouth(t *testing.T) {
	target := Target(Input{Spectrum: filledSpectrum(200), Speaking: true}, DefaultParams())

	if target.ScaleY <= 1 {
		t.Errorf("Expected jaw open (scaleY > 1), got %v", target.ScaleY)
	}
	if target.TranslateY >= 0 {
		t.Errorf("Expected upward bounce, got %v", target.TranslateY)
	}
	if target.Brightness <= 1 {
		t.Errorf("Expected brightness boost, got %v", target.Brightness)
	}
}

func TestTarget_SilentSpeakerRests(t *testing.T) {
	target := Target(Input{Spectrum: filledSpectrum(200), Speaking: false}, DefaultParams())
	if target != NeutralState() {
		t.Errorf("Expected neutral target when not speaking, got %+v", target)
	}
}

func TestTarget_BreathingFallback(t *testing.T) {
	p := DefaultParams()

	peak := Target(Input{Speaking: true, Time: p.BreathPeriod / 4}, p)
	if math.Abs(peak.ScaleY-(1+p.BreathAmplitude)) > 1e-9 {
		t.Errorf("Expected breathing peak %v, got %v", 1+p.BreathAmplitude, peak.ScaleY)
	}
	if math.Abs(peak.TranslateY+p.BreathLiftPx) > 1e-9 {
		t.Errorf("Expected lift %v, got %v", -p.BreathLiftPx, peak.TranslateY)
	}

	idle := Target(Input{Speaking: false, Time: p.BreathPeriod / 4}, p)
	if idle != NeutralState() {
		t.Errorf("Expected neutral when not speaking, got %+v", idle)
	}
}

func TestTarget_Gestures(t *testing.T) {
	p := DefaultParams()

	nod := Target(Input{Gesture: GestureNod, Time: p.NodPeriod / 4}, p)
	if math.Abs(nod.TranslateY-p.NodPx) > 1e-9 || math.Abs(nod.RotateDeg-p.NodDeg) > 1e-9 {
		t.Errorf("Expected nod peak, got %+v", nod)
	}
	if nod.TranslateX != 0 {
		t.Errorf("Expected no horizontal motion for nod, got %v", nod.TranslateX)
	}

	shake := Target(Input{Gesture: GestureShake, Time: p.ShakePeriod / 4}, p)
	if math.Abs(shake.TranslateX-p.ShakePx) > 1e-9 {
		t.Errorf("Expected shake peak, got %+v", shake)
	}
	if shake.TranslateY != 0 {
		t.Errorf("Expected no vertical motion for shake, got %v", shake.TranslateY)
	}
}

func TestTarget_Blink(t *testing.T) {
	p := DefaultParams()
	target := Target(Input{Blinking: true}, p)
	if target.ScaleY != p.BlinkSquash {
		t.Errorf("Expected squash %v, got %v", p.BlinkSquash, target.ScaleY)
	}
	if target.Brightness != p.BlinkDim {
		t.Errorf("Expected dim %v, got %v", p.BlinkDim, target.Brightness)
	}
}

func TestAnalyzeSpectrum(t *testing.T) {
	p := DefaultParams()

	quiet := AnalyzeSpectrum(make([]byte, 128), p)
	if quiet != (Bands{}) {
		t.Errorf("Expected zero bands for silence, got %+v", quiet)
	}

	loud := AnalyzeSpectrum(filledSpectrum(255), p)
	if loud.Intensity != p.IntensityMax {
		t.Errorf("Expected intensity capped at %v, got %v", p.IntensityMax, loud.Intensity)
	}
	if loud.F1 != 1 || loud.F2 != 1 || loud.F3 != 1 {
		t.Errorf("Expected saturated bands, got %+v", loud)
	}

	short := AnalyzeSpectrum([]byte{255, 255}, p)
	if short.F3 != 0 {
		t.Errorf("Expected bins beyond the spectrum to read as zero, got %v", short.F3)
	}
}
