package inspect

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/lexiqai/media-recorder/internal/audio"
	"github.com/lexiqai/media-recorder/internal/recorder"
)

func record(t *testing.T, name string, chunks [][]byte, stop bool) string {
	t.Helper()
	w, err := recorder.New(recorder.Options{OutputDir: t.TempDir(), BaseName: name})
	if err != nil {
		t.Fatalf("recorder.New() failed: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	for _, c := range chunks {
		if err := w.Append(base64.StdEncoding.EncodeToString(c)); err != nil {
			t.Fatalf("Append() failed: %v", err)
		}
	}
	if stop {
		if err := w.Stop(); err != nil {
			t.Fatalf("Stop() failed: %v", err)
		}
	}
	return w.Path()
}

func TestFile_Finalized(t *testing.T) {
	path := record(t, "done", [][]byte{make([]byte, 160), make([]byte, 161)}, true)

	report, err := File(path)
	if err != nil {
		t.Fatalf("File() failed: %v", err)
	}

	if report.AudioFormat != recorder.FormatMuLaw {
		t.Errorf("AudioFormat = %d, want %d", report.AudioFormat, recorder.FormatMuLaw)
	}
	if report.Channels != recorder.Channels {
		t.Errorf("Channels = %d, want %d", report.Channels, recorder.Channels)
	}
	if report.SampleRate != recorder.SampleRate {
		t.Errorf("SampleRate = %d, want %d", report.SampleRate, recorder.SampleRate)
	}
	if report.DataOffset != recorder.HeaderSize {
		t.Errorf("DataOffset = %d, want %d", report.DataOffset, recorder.HeaderSize)
	}
	if report.DeclaredLength != 321 || report.PayloadLength != 321 {
		t.Errorf("DeclaredLength = %d, PayloadLength = %d, want 321", report.DeclaredLength, report.PayloadLength)
	}
	if !report.Finalized {
		t.Error("Finalized = false, want true")
	}
	// zero bytes decode to full-scale negative samples
	if report.Levels == nil || report.Levels.Samples != 321 || report.Levels.Peak != audio.MaxLevel {
		t.Errorf("Levels = %+v, want 321 samples at peak %d", report.Levels, audio.MaxLevel)
	}
	if report.SilenceRatio != 0 {
		t.Errorf("SilenceRatio = %v, want 0", report.SilenceRatio)
	}
}

func TestFile_SilentRecording(t *testing.T) {
	silence := make([]byte, 320)
	for i := range silence {
		silence[i] = 0xFF
	}
	report, err := File(record(t, "quiet", [][]byte{silence}, true))
	if err != nil {
		t.Fatalf("File() failed: %v", err)
	}
	if report.Levels == nil || report.Levels.Frames != 2 {
		t.Fatalf("Levels = %+v, want 2 frames", report.Levels)
	}
	if report.SilenceRatio != 1 {
		t.Errorf("SilenceRatio = %v, want 1", report.SilenceRatio)
	}
}

func TestFile_HeaderOnly(t *testing.T) {
	report, err := File(record(t, "empty", nil, true))
	if err != nil {
		t.Fatalf("File() failed: %v", err)
	}
	if report.Size != recorder.HeaderSize || report.PayloadLength != 0 || !report.Finalized {
		t.Errorf("Unexpected report for header-only file: %+v", report)
	}
}

func TestFile_Unfinalized(t *testing.T) {
	report, err := File(record(t, "partial", [][]byte{{1, 2, 3, 4}}, false))
	if err != nil {
		t.Fatalf("File() failed: %v", err)
	}
	if report.DeclaredLength != 0 {
		t.Errorf("DeclaredLength = %d, want 0", report.DeclaredLength)
	}
	if report.PayloadLength != 4 {
		t.Errorf("PayloadLength = %d, want 4", report.PayloadLength)
	}
	if report.Finalized {
		t.Error("Finalized = true, want false")
	}
}

func TestFile_NotWav(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.wav")
	if err := os.WriteFile(path, []byte("this is not a riff file at all, just text padding it out"), 0o644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}
	if _, err := File(path); err == nil {
		t.Error("File() error = nil, want error")
	}
}

func TestFile_Missing(t *testing.T) {
	if _, err := File(filepath.Join(t.TempDir(), "missing.wav")); !os.IsNotExist(err) {
		t.Errorf("File() error = %v, want not-exist", err)
	}
}
