package audio

import (
	"errors"
	"math"
)

var (
	// ErrEmptyPCM is returned when a PCM payload carries no samples
	ErrEmptyPCM = errors.New("empty PCM data")

	// ErrOddPCM is returned when a PCM16 payload is not a whole number of samples
	ErrOddPCM = errors.New("PCM data length must be even (16-bit samples)")
)

// Float32ToPCM16 converts normalized float samples to 16-bit signed little-endian PCM.
// Samples outside [-1, 1] are clamped before conversion.
func Float32ToPCM16(samples []float32) []byte {
	pcmData := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}

		var v int16
		if s < 0 {
			v = int16(s * 32768)
		} else {
			v = int16(s * 32767)
		}

		pcmData[i*2] = byte(v)
		pcmData[i*2+1] = byte(v >> 8)
	}
	return pcmData
}

// PCM16ToFloat32 decodes 16-bit signed little-endian PCM into floats in [-1, 1)
func PCM16ToFloat32(pcmData []byte) ([]float32, error) {
	if len(pcmData) == 0 {
		return nil, ErrEmptyPCM
	}
	if len(pcmData)%2 != 0 {
		return nil, ErrOddPCM
	}

	samples := make([]float32, len(pcmData)/2)
	for i := range samples {
		// Little-endian 16-bit signed integer
		v := int16(pcmData[i*2]) | int16(pcmData[i*2+1])<<8
		samples[i] = float32(v) / 32768
	}
	return samples, nil
}

// Resample performs simple linear interpolation resampling.
// Good enough for speech; the capture path only ever converts between
// common device rates and 16 kHz.
func Resample(samples []float32, inputRate, outputRate int) []float32 {
	if inputRate == outputRate || inputRate <= 0 || outputRate <= 0 || len(samples) == 0 {
		return samples
	}

	ratio := float64(outputRate) / float64(inputRate)
	outputLength := int(float64(len(samples)) * ratio)
	output := make([]float32, outputLength)

	for i := 0; i < outputLength; i++ {
		srcPos := float64(i) / ratio

		idx0 := int(srcPos)
		if idx0 >= len(samples) {
			idx0 = len(samples) - 1
		}
		idx1 := idx0 + 1
		if idx1 >= len(samples) {
			idx1 = len(samples) - 1
		}

		fraction := float32(srcPos - float64(idx0))
		output[i] = samples[idx0]*(1-fraction) + samples[idx1]*fraction
	}

	return output
}

// CalculateRMS calculates the root mean square (RMS) of normalized samples
func CalculateRMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0.0
	}

	sum := 0.0
	for _, sample := range samples {
		sum += float64(sample) * float64(sample)
	}

	return math.Sqrt(sum / float64(len(samples)))
}

// ByteRMS calculates the RMS of unsigned 8-bit time-domain samples centred at 128,
// the representation produced by Analyser.ByteTimeDomainData.
func ByteRMS(data []byte) float64 {
	if len(data) == 0 {
		return 0.0
	}

	sum := 0.0
	for _, b := range data {
		v := float64(b) - 128
		sum += v * v
	}

	return math.Sqrt(sum / float64(len(data)))
}
