// Package inspect reads back a recording and reports whether its data
// length was finalized.
package inspect

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/riff"
	"github.com/go-audio/wav"
	"github.com/lexiqai/media-recorder/internal/audio"
	"github.com/lexiqai/media-recorder/internal/recorder"
)

// ErrNoDataChunk is returned when the file has no data chunk.
var ErrNoDataChunk = errors.New("no data chunk")

// Report describes a recording on disk.
type Report struct {
	Path        string `json:"path"`
	Size        int64  `json:"size_bytes"`
	AudioFormat uint16 `json:"audio_format"`
	Channels    uint16 `json:"channels"`
	SampleRate  uint32 `json:"sample_rate"`

	// DataOffset is where the payload starts.
	DataOffset int64 `json:"data_offset"`
	// DeclaredLength is the data chunk length stored in the header.
	DeclaredLength uint32 `json:"declared_length"`
	// PayloadLength is the number of bytes actually following the header.
	PayloadLength int64 `json:"payload_length"`
	// Finalized is true when DeclaredLength matches PayloadLength mod 2^32.
	Finalized bool `json:"finalized"`

	// Levels is only set for mu-law recordings.
	Levels *audio.Levels `json:"levels,omitempty"`
	// SilenceRatio is the share of 20ms frames below the silence threshold.
	SilenceRatio float64 `json:"silence_ratio"`
}

// File inspects the recording at path.
func File(path string) (*Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	report := &Report{Path: path, Size: info.Size()}

	d := wav.NewDecoder(f)
	d.ReadInfo()
	if err := d.Err(); err != nil {
		return nil, fmt.Errorf("read format of %s: %w", path, err)
	}
	report.AudioFormat = d.WavAudioFormat
	report.Channels = d.NumChans
	report.SampleRate = d.SampleRate

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	offset, err := findData(f)
	if err != nil {
		return nil, fmt.Errorf("walk chunks of %s: %w", path, err)
	}

	// Read the length field directly; the chunk parser pads odd sizes.
	var field [4]byte
	if _, err := f.ReadAt(field[:], offset-4); err != nil {
		return nil, fmt.Errorf("read data length of %s: %w", path, err)
	}
	declared := binary.LittleEndian.Uint32(field[:])

	report.DataOffset = offset
	report.DeclaredLength = declared
	report.PayloadLength = report.Size - offset
	report.Finalized = report.PayloadLength >= 0 && declared == uint32(report.PayloadLength)

	if report.AudioFormat == recorder.FormatMuLaw {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			return nil, err
		}
		meter := audio.NewMeter(audio.DefaultSilenceThreshold)
		if _, err := io.Copy(meter, f); err != nil {
			return nil, fmt.Errorf("measure %s: %w", path, err)
		}
		levels := meter.Levels()
		report.Levels = &levels
		report.SilenceRatio = levels.SilenceRatio()
	}
	return report, nil
}

// findData walks the RIFF chunks up to the data chunk and returns the
// payload offset.
func findData(r io.Reader) (int64, error) {
	p := riff.New(r)
	if err := p.ParseHeaders(); err != nil {
		return 0, err
	}

	offset := int64(12) // RIFF id, size, WAVE
	for {
		ch, err := p.NextChunk()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return 0, ErrNoDataChunk
			}
			return 0, err
		}
		offset += 8

		if ch.ID == riff.DataFormatID {
			return offset, nil
		}

		ch.Drain()
		offset += int64(ch.Size)
	}
}
