// Package audio decodes G.711 mu-law payloads and measures their levels.
package audio

import "math"

const (
	// SampleRate of telephony mu-law audio.
	SampleRate = 8000

	// FrameSize is one 20ms frame of 8kHz mono mu-law.
	FrameSize = 160

	// MaxLevel is the largest magnitude DecodeMuLaw returns.
	MaxLevel = 8031

	// DefaultSilenceThreshold is the frame RMS below which a frame counts as silent.
	DefaultSilenceThreshold = 100.0
)

// DecodeMuLaw converts an 8-bit mu-law sample to a 14-bit linear sample
func DecodeMuLaw(b byte) int16 {
	// mu-law stores every bit inverted
	b = ^b

	sign := b & 0x80
	segment := int32((b >> 4) & 0x07)
	mantissa := int32(b & 0x0F)

	// magnitude = ((mantissa << 1) + 33) << segment, minus the bias of 33
	step := mantissa << (segment + 1)
	step += int32(33) << segment
	magnitude := step - 33

	if sign != 0 {
		return int16(-magnitude)
	}
	return int16(magnitude)
}

// RMS calculates the root mean square of linear samples
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0.0
	}

	sum := 0.0
	for _, sample := range samples {
		sum += float64(sample) * float64(sample)
	}

	return math.Sqrt(sum / float64(len(samples)))
}
