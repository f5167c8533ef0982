package audio

import (
	"math"
	"time"
)

// Levels summarizes a mu-law payload.
type Levels struct {
	Samples      int           `json:"samples"`
	Duration     time.Duration `json:"duration_ns"`
	Peak         int16         `json:"peak"`
	RMS          float64       `json:"rms"`
	Frames       int           `json:"frames"`
	SilentFrames int           `json:"silent_frames"`
}

// SilenceRatio returns the share of frames below the silence threshold
func (l Levels) SilenceRatio() float64 {
	if l.Frames == 0 {
		return 0
	}
	return float64(l.SilentFrames) / float64(l.Frames)
}

// Meter accumulates Levels over a payload fed in arbitrary pieces.
// Frames are cut every FrameSize samples; a trailing partial frame is
// counted when Levels is called.
type Meter struct {
	threshold float64
	sumSquare float64
	levels    Levels
	frame     []int16
}

// NewMeter creates a meter. A threshold <= 0 uses DefaultSilenceThreshold.
func NewMeter(threshold float64) *Meter {
	if threshold <= 0 {
		threshold = DefaultSilenceThreshold
	}
	return &Meter{
		threshold: threshold,
		frame:     make([]int16, 0, FrameSize),
	}
}

// Write feeds mu-law bytes to the meter. It never fails.
func (m *Meter) Write(p []byte) (int, error) {
	for _, b := range p {
		sample := DecodeMuLaw(b)
		abs := sample
		if abs < 0 {
			abs = -abs
		}
		if abs > m.levels.Peak {
			m.levels.Peak = abs
		}
		m.sumSquare += float64(sample) * float64(sample)
		m.levels.Samples++

		m.frame = append(m.frame, sample)
		if len(m.frame) == FrameSize {
			m.closeFrame()
		}
	}
	return len(p), nil
}

func (m *Meter) closeFrame() {
	m.levels.Frames++
	if RMS(m.frame) < m.threshold {
		m.levels.SilentFrames++
	}
	m.frame = m.frame[:0]
}

// Levels returns the totals so far, including any partial frame
func (m *Meter) Levels() Levels {
	l := m.levels
	if len(m.frame) > 0 {
		l.Frames++
		if RMS(m.frame) < m.threshold {
			l.SilentFrames++
		}
	}
	if l.Samples > 0 {
		l.RMS = math.Sqrt(m.sumSquare / float64(l.Samples))
		l.Duration = time.Duration(l.Samples) * time.Second / SampleRate
	}
	return l
}

// Measure returns the Levels of a complete mu-law payload
func Measure(payload []byte, threshold float64) Levels {
	m := NewMeter(threshold)
	m.Write(payload)
	return m.Levels()
}
