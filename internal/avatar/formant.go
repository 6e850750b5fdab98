package avatar

import "math"

// VisemeState is the smoothed 2D transform applied to an avatar each tick
type VisemeState struct {
	ScaleX     float64 `json:"scaleX"`
	ScaleY     float64 `json:"scaleY"`
	TranslateX float64 `json:"translateX"` // px
	TranslateY float64 `json:"translateY"` // px, negative is up
	RotateDeg  float64 `json:"rotateDeg"`
	Brightness float64 `json:"brightness"`
}

// NeutralState is the rest pose
func NeutralState() VisemeState {
	return VisemeState{ScaleX: 1, ScaleY: 1, Brightness: 1}
}

// Bands are the loudness and formant-band energies read from one spectrum
type Bands struct {
	Intensity float64 // [0, IntensityMax]
	F1        float64 // [0, 1] open/back vowels
	F2        float64 // [0, 1] front/spread vowels
	F3        float64 // [0, 1] sibilants
}

// BinRange is an inclusive range of spectrum bins
type BinRange struct {
	Lo, Hi int
}

// Params tunes the formant mapping and smoothing
type Params struct {
	VoiceBand BinRange
	F1Band    BinRange
	F2Band    BinRange
	F3Band    BinRange

	NoiseFloor    float64 // subtracted from normalized bin averages
	IntensityGain float64
	IntensityMax  float64
	BandGain      float64

	JawIntensityWeight float64
	JawF1Weight        float64
	WidthF2Weight      float64
	WidthF1Weight      float64
	JawScale           float64 // scaleY per unit of jaw-open
	WidthScale         float64 // scaleX per unit of mouth-width

	OShapeF1Min  float64
	OShapeF2Max  float64
	OShapeScaleY float64
	OShapeScaleX float64
	EShapeF2Min  float64
	EShapeScaleX float64
	EShapeScaleY float64
	JitterF3Min  float64
	JitterPx     float64
	BouncePx     float64
	TiltDeg      float64

	NodPeriod   float64 // seconds
	NodPx       float64
	NodDeg      float64
	ShakePeriod float64 // seconds
	ShakePx     float64
	ShakeDeg    float64

	BlinkSquash float64 // scaleY multiplier while blinking
	BlinkDim    float64 // brightness multiplier while blinking

	BreathPeriod    float64 // seconds
	BreathAmplitude float64 // scale delta at peak
	BreathLiftPx    float64

	Attack         float64
	Release        float64
	RotateRate     float64
	BrightnessRate float64
	BrightnessGain float64
}

// DefaultParams returns the tuning used for a 128-bin spectrum from a 256-point transform
func DefaultParams() Params {
	return Params{
		VoiceBand: BinRange{1, 30},
		F1Band:    BinRange{2, 8},
		F2Band:    BinRange{10, 25},
		F3Band:    BinRange{40, 60},

		NoiseFloor:    0.15,
		IntensityGain: 2.0,
		IntensityMax:  1.5,
		BandGain:      1.6,

		JawIntensityWeight: 0.6,
		JawF1Weight:        0.4,
		WidthF2Weight:      0.6,
		WidthF1Weight:      0.3,
		JawScale:           0.12,
		WidthScale:         0.08,

		OShapeF1Min:  0.6,
		OShapeF2Max:  0.3,
		OShapeScaleY: 1.05,
		OShapeScaleX: 0.95,
		EShapeF2Min:  0.6,
		EShapeScaleX: 1.05,
		EShapeScaleY: 0.97,
		JitterF3Min:  0.3,
		JitterPx:     3,
		BouncePx:     4,
		TiltDeg:      3,

		NodPeriod:   0.5,
		NodPx:       5,
		NodDeg:      2,
		ShakePeriod: 0.4,
		ShakePx:     6,
		ShakeDeg:    3,

		BlinkSquash: 0.92,
		BlinkDim:    0.9,

		BreathPeriod:    0.6,
		BreathAmplitude: 0.03,
		BreathLiftPx:    2,

		Attack:         0.35,
		Release:        0.12,
		RotateRate:     0.1,
		BrightnessRate: 0.2,
		BrightnessGain: 0.15,
	}
}

// Input is everything one tick contributes to the step function
type Input struct {
	Spectrum []byte // magnitude bins; nil when no frequency tap is attached
	Speaking bool
	Gesture  GestureKind
	Time     float64 // seconds since the animation started, drives periodic layers
	Blinking bool    // only set for still-image avatars
	Jitter   float64 // uniform in [-0.5, 0.5)
}

// bounds keep every parameter finite no matter what the input was
const (
	minScale     = 0.5
	maxScale     = 1.5
	maxTranslate = 40
	maxRotate    = 20
	minBright    = 0.5
	maxBright    = 2
)

// AnalyzeSpectrum computes intensity and the three formant-band energies
func AnalyzeSpectrum(spectrum []byte, p Params) Bands {
	intensity := (bandAverage(spectrum, p.VoiceBand) - p.NoiseFloor) * p.IntensityGain
	return Bands{
		Intensity: clamp(intensity, 0, p.IntensityMax),
		F1:        bandEnergy(spectrum, p.F1Band, p),
		F2:        bandEnergy(spectrum, p.F2Band, p),
		F3:        bandEnergy(spectrum, p.F3Band, p),
	}
}

func bandEnergy(spectrum []byte, r BinRange, p Params) float64 {
	return clamp((bandAverage(spectrum, r)-p.NoiseFloor)*p.BandGain, 0, 1)
}

// bandAverage returns the mean of the bins in r normalized to [0, 1]
func bandAverage(spectrum []byte, r BinRange) float64 {
	lo, hi := max(r.Lo, 0), min(r.Hi, len(spectrum)-1)
	if hi < lo {
		return 0
	}
	sum := 0
	for i := lo; i <= hi; i++ {
		sum += int(spectrum[i])
	}
	return float64(sum) / float64(hi-lo+1) / 255
}

// Target computes where the avatar should be heading this tick, before smoothing
func Target(in Input, p Params) VisemeState {
	target := NeutralState()
	intensity := 0.0

	switch {
	case in.Spectrum == nil:
		if in.Speaking {
			breath := (math.Sin(2*math.Pi*in.Time/p.BreathPeriod) + 1) / 2
			target.ScaleX = 1 + p.BreathAmplitude*breath
			target.ScaleY = 1 + p.BreathAmplitude*breath
			target.TranslateY = -p.BreathLiftPx * breath
		}
	case in.Speaking:
		b := AnalyzeSpectrum(in.Spectrum, p)
		intensity = b.Intensity

		jaw := p.JawIntensityWeight*b.Intensity + p.JawF1Weight*b.F1
		width := p.WidthF2Weight*b.F2 - p.WidthF1Weight*b.F1

		target.ScaleY = 1 + jaw*p.JawScale
		target.ScaleX = 1 + width*p.WidthScale

		if b.F1 > p.OShapeF1Min && b.F2 < p.OShapeF2Max {
			target.ScaleY *= p.OShapeScaleY
			target.ScaleX *= p.OShapeScaleX
		} else if b.F2 > p.EShapeF2Min {
			target.ScaleX *= p.EShapeScaleX
			target.ScaleY *= p.EShapeScaleY
		}

		if b.F3 > p.JitterF3Min {
			target.TranslateX = in.Jitter * b.F3 * p.JitterPx
		}
		target.TranslateY = -b.Intensity * p.BouncePx
		target.RotateDeg = (b.F2 - b.F1) * p.TiltDeg
	}

	switch in.Gesture {
	case GestureNod:
		wave := math.Sin(2 * math.Pi * in.Time / p.NodPeriod)
		target.TranslateY += wave * p.NodPx
		target.RotateDeg += wave * p.NodDeg
	case GestureShake:
		wave := math.Sin(2 * math.Pi * in.Time / p.ShakePeriod)
		target.TranslateX += wave * p.ShakePx
		target.RotateDeg += wave * p.ShakeDeg
	}

	if in.Blinking {
		target.ScaleY *= p.BlinkSquash
	}

	target.Brightness = 1 + intensity*p.BrightnessGain
	if in.Blinking {
		target.Brightness *= p.BlinkDim
	}

	return target
}

// Step advances the smoothed state one tick toward the target for in.
// It is pure: the same state and input always give the same result.
func Step(s VisemeState, in Input, p Params) VisemeState {
	target := Target(in, p)
	s = sanitize(s)

	next := VisemeState{
		ScaleX:     approach(s.ScaleX, target.ScaleX, p.Attack, p.Release),
		ScaleY:     approach(s.ScaleY, target.ScaleY, p.Attack, p.Release),
		TranslateX: approach(s.TranslateX, target.TranslateX, p.Attack, p.Release),
		TranslateY: approach(s.TranslateY, target.TranslateY, p.Attack, p.Release),
		RotateDeg:  approach(s.RotateDeg, target.RotateDeg, p.RotateRate, p.RotateRate),
		Brightness: approach(s.Brightness, target.Brightness, p.BrightnessRate, p.BrightnessRate),
	}
	return sanitize(next)
}

// approach moves cur toward target: attack when rising, release when falling
func approach(cur, target, attack, release float64) float64 {
	rate := release
	if target > cur {
		rate = attack
	}
	return cur + (target-cur)*rate
}

func sanitize(s VisemeState) VisemeState {
	return VisemeState{
		ScaleX:     finite(clamp(s.ScaleX, minScale, maxScale), 1),
		ScaleY:     finite(clamp(s.ScaleY, minScale, maxScale), 1),
		TranslateX: finite(clamp(s.TranslateX, -maxTranslate, maxTranslate), 0),
		TranslateY: finite(clamp(s.TranslateY, -maxTranslate, maxTranslate), 0),
		RotateDeg:  finite(clamp(s.RotateDeg, -maxRotate, maxRotate), 0),
		Brightness: finite(clamp(s.Brightness, minBright, maxBright), 1),
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func finite(v, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}
