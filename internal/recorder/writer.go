// Package recorder writes a live media stream to a mu-law WAV file.
//
// A Writer moves through three phases. Start creates the file and writes
// the 58-byte header with a zero data length, Append decodes base64 media
// chunks and appends them in call order, and Stop patches the real data
// length into the header and releases the file. Calls on one Writer must
// be serialized by the caller; separate Writers share nothing.
package recorder

import (
	"encoding/base64"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Phase is the lifecycle state of a Writer.
type Phase int

const (
	PhaseIdle      Phase = iota // Created, nothing on disk yet
	PhaseStreaming              // Header written, accepting chunks
	PhaseFinalized              // Length patched, file released
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseStreaming:
		return "streaming"
	case PhaseFinalized:
		return "finalized"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Options configures a Writer.
type Options struct {
	// OutputDir is the directory the recording is written to.
	// Empty means the current working directory at construction time.
	OutputDir string

	// BaseName is the file name without the .wav extension.
	// Empty means the current Unix time in milliseconds.
	BaseName string

	// OnSaved, if set, is called once with the file path after Stop succeeds.
	OnSaved func(path string)

	// Logger receives lifecycle events. The zero value discards them.
	Logger zerolog.Logger
}

// Writer streams one recording to disk.
type Writer struct {
	path         string
	file         *os.File
	bytesWritten int64
	phase        Phase
	onSaved      func(path string)
	logger       zerolog.Logger
}

// New resolves the output path and returns an idle Writer. Nothing is
// created on disk until Start.
func New(opts Options) (*Writer, error) {
	dir := opts.OutputDir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, &IOError{Op: "resolve directory", Path: ".", Err: err}
		}
		dir = wd
	}

	name := opts.BaseName
	if name == "" {
		name = strconv.FormatInt(time.Now().UnixMilli(), 10)
	}
	if name == "." || name == ".." || strings.ContainsAny(name, "/\\\x00") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseName, name)
	}

	path, err := filepath.Abs(filepath.Join(dir, name+".wav"))
	if err != nil {
		return nil, &IOError{Op: "resolve path", Path: dir, Err: err}
	}

	return &Writer{
		path:    path,
		phase:   PhaseIdle,
		onSaved: opts.OnSaved,
		logger:  opts.Logger.With().Str("path", path).Logger(),
	}, nil
}

// Path returns the absolute path of the recording.
func (w *Writer) Path() string {
	return w.path
}

// Phase returns the current lifecycle phase.
func (w *Writer) Phase() Phase {
	return w.phase
}

// BytesWritten returns the bytes written since Start, header included.
func (w *Writer) BytesWritten() int64 {
	return w.bytesWritten
}

// DataLength returns the payload bytes written so far, excluding the header.
func (w *Writer) DataLength() int64 {
	if w.bytesWritten < HeaderSize {
		return 0
	}
	return w.bytesWritten - HeaderSize
}

// Start creates (or truncates) the output file and writes the header.
func (w *Writer) Start() error {
	if w.phase != PhaseIdle {
		return &StateError{Op: "start", Phase: w.phase}
	}

	f, err := os.OpenFile(w.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return &IOError{Op: "create", Path: w.path, Err: err}
	}
	if _, err := f.Write(Header()); err != nil {
		f.Close()
		return &IOError{Op: "write header", Path: w.path, Err: err}
	}

	w.file = f
	w.bytesWritten = HeaderSize
	w.phase = PhaseStreaming

	w.logger.Debug().Msg("Recording started")
	return nil
}

// Append decodes a base64 media chunk and appends it to the file.
// A chunk that fails to decode is rejected without touching the file.
func (w *Writer) Append(payload string) error {
	if w.phase != PhaseStreaming {
		return &StateError{Op: "append", Phase: w.phase}
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return &DecodeError{Err: err}
	}
	if w.file == nil {
		return &IOError{Op: "write", Path: w.path, Err: os.ErrClosed}
	}
	if len(data) == 0 {
		return nil
	}

	if _, err := w.file.Write(data); err != nil {
		w.rewind()
		return &IOError{Op: "write", Path: w.path, Err: err}
	}
	w.bytesWritten += int64(len(data))
	return nil
}

// rewind drops whatever a failed write left past bytesWritten so the file
// size keeps matching the count.
func (w *Writer) rewind() {
	if err := w.file.Truncate(w.bytesWritten); err != nil {
		w.logger.Warn().Err(err).Msg("Failed to truncate after short write")
	}
	if _, err := w.file.Seek(w.bytesWritten, io.SeekStart); err != nil {
		w.logger.Warn().Err(err).Msg("Failed to seek after short write")
	}
}

// Stop syncs the payload, writes the data length at offset 54, releases the
// file and calls OnSaved. On an IOError the writer stays in PhaseStreaming
// and Stop may be called again.
func (w *Writer) Stop() error {
	if w.phase != PhaseStreaming {
		return &StateError{Op: "stop", Phase: w.phase}
	}

	if w.file != nil {
		if err := w.file.Sync(); err != nil {
			return &IOError{Op: "sync", Path: w.path, Err: err}
		}
	}

	dataLength := w.DataLength()
	if dataLength > math.MaxUint32 {
		w.logger.Warn().
			Int64("data_length", dataLength).
			Msg("Payload exceeds 32-bit length field, stored length wraps")
	}
	if err := w.patchDataLength(dataLength); err != nil {
		return err
	}

	if w.file != nil {
		err := w.file.Close()
		w.file = nil
		if err != nil {
			return &IOError{Op: "close", Path: w.path, Err: err}
		}
	}

	w.phase = PhaseFinalized
	w.logger.Info().
		Int64("data_length", dataLength).
		Msg("Recording finalized")

	if w.onSaved != nil {
		w.onSaved(w.path)
	}
	return nil
}

// patchDataLength opens its own handle on the file, writes the 4-byte
// length at DataLengthOffset and closes the handle on every path.
func (w *Writer) patchDataLength(n int64) (err error) {
	f, err := os.OpenFile(w.path, os.O_WRONLY, 0)
	if err != nil {
		return &IOError{Op: "open for finalize", Path: w.path, Err: err}
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = &IOError{Op: "close after finalize", Path: w.path, Err: cerr}
		}
	}()

	if _, err := f.WriteAt(encodeDataLength(n), DataLengthOffset); err != nil {
		return &IOError{Op: "write data length", Path: w.path, Err: err}
	}
	if err := f.Sync(); err != nil {
		return &IOError{Op: "sync data length", Path: w.path, Err: err}
	}
	return nil
}
