package telephony

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lexiqai/media-recorder/internal/config"
	"github.com/lexiqai/media-recorder/internal/observability"
	"github.com/lexiqai/media-recorder/internal/recorder"
	"github.com/lexiqai/media-recorder/internal/resilience"
	"github.com/rs/zerolog"
)

// ErrStorageUnavailable is returned for a start event while the storage
// breaker is open
var ErrStorageUnavailable = errors.New("recording storage unavailable")

// SessionOptions configures how a media stream is recorded
type SessionOptions struct {
	RecordingsDir        string
	NameSource           string // config.NameSource*
	FinalizeOnDisconnect bool
	Retry                *resilience.RetryConfig

	// Breaker is shared by all sessions; nil disables it
	Breaker *resilience.CircuitBreaker

	// BaseName, if set, overrides NameSource for every recording
	BaseName string

	// OnSaved is called with the recording path once it is finalized
	OnSaved func(path string)
}

// SessionOptionsFromConfig builds session options from service configuration
func SessionOptionsFromConfig(cfg *config.Config) SessionOptions {
	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = cfg.FinalizeRetryMaxAttempts
	retry.InitialBackoff = cfg.FinalizeBackoff()

	opts := SessionOptions{
		RecordingsDir:        cfg.RecordingsDir,
		NameSource:           cfg.RecordingNameSource,
		FinalizeOnDisconnect: cfg.FinalizeOnDisconnect,
		Retry:                retry,
	}
	if cfg.StorageBreakerMaxFailures > 0 {
		opts.Breaker = resilience.NewCircuitBreaker("storage",
			cfg.StorageBreakerMaxFailures, cfg.StorageBreakerTimeout(), observability.GetLogger())
	}
	return opts
}

// Session records one media stream. Messages must be handed to it in the
// order they arrive on the stream.
type Session struct {
	opts SessionOptions

	mu        sync.RWMutex
	writer    *recorder.Writer
	callSid   string
	streamSid string
	stopped   bool
	refused   bool
	stopSeen  bool // a stop event already ran Finalize

	correlationID string
	metrics       *observability.Metrics
	logger        zerolog.Logger
}

// NewSession creates a session that has not seen any events yet
func NewSession(opts SessionOptions) *Session {
	correlationID := observability.NewCorrelationID()
	return &Session{
		opts:          opts,
		correlationID: correlationID,
		metrics:       observability.NewRecordingMetrics(correlationID),
		logger:        observability.WithCorrelationID(correlationID),
	}
}

// HandleMessage applies one raw stream message. done reports that the stream
// has stopped and no further messages are expected. Malformed messages and
// undecodable media chunks are logged and skipped; recorder state and I/O
// errors are returned.
func (s *Session) HandleMessage(ctx context.Context, raw []byte) (done bool, err error) {
	var msg MediaStreamMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		s.logger.Error().Err(err).Msg("Failed to parse media stream message")
		s.metrics.RecordError("protocol")
		return false, nil
	}

	switch msg.Event {
	case EventConnected:
		s.logger.Info().
			Str("protocol", msg.Protocol).
			Str("version", msg.Version).
			Msg("Media stream connected")
		return false, nil

	case EventStart:
		return false, s.handleStart(&msg)

	case EventMedia:
		if msg.Media == nil {
			s.logger.Warn().Str("sequence", msg.SequenceNumber).Msg("Media event missing payload")
			s.metrics.RecordError("protocol")
			return false, nil
		}
		return false, s.handleMedia(msg.Media)

	case EventStop:
		s.logger.Info().
			Str("call_sid", msg.callSid()).
			Msg("Media stream stopped")
		s.mu.Lock()
		s.stopSeen = true
		s.mu.Unlock()
		return true, s.Finalize(ctx)

	case EventMark, EventDTMF:
		s.logger.Debug().Str("event", msg.Event).Msg("Ignoring media stream event")
		return false, nil

	default:
		s.logger.Warn().Str("event", msg.Event).Msg("Unknown media stream event")
		return false, nil
	}
}

func (s *Session) handleStart(msg *MediaStreamMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writer != nil {
		err := s.writer.Start()
		s.metrics.RecordError(recorder.Kind(err))
		return err
	}
	if s.refused {
		s.logger.Warn().Msg("Duplicate start on a refused stream, ignoring")
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, resilience.ErrCircuitOpen)
	}

	s.callSid = msg.callSid()
	s.streamSid = msg.streamSid()
	s.logger = s.logger.With().
		Str("call_sid", s.callSid).
		Str("stream_sid", s.streamSid).
		Logger()

	if b := s.opts.Breaker; b != nil && !b.Allow() {
		s.refused = true
		s.metrics.RecordError("storage")
		s.logger.Error().Msg("Storage breaker is open, not recording this stream")
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, resilience.ErrCircuitOpen)
	}

	if f := msg.Start; f != nil && f.MediaFormat != nil {
		if !strings.EqualFold(f.MediaFormat.Encoding, "audio/x-mulaw") ||
			f.MediaFormat.SampleRate != recorder.SampleRate ||
			f.MediaFormat.Channels != recorder.Channels {
			s.logger.Warn().
				Str("encoding", f.MediaFormat.Encoding).
				Int("sample_rate", f.MediaFormat.SampleRate).
				Int("channels", f.MediaFormat.Channels).
				Msg("Media format differs from the 8kHz mono mu-law recording header")
		}
	}

	writer, err := recorder.New(recorder.Options{
		OutputDir: s.opts.RecordingsDir,
		BaseName:  s.recordingName(),
		OnSaved:   s.opts.OnSaved,
		Logger:    s.logger,
	})
	if err != nil {
		s.recordStorage(err)
		s.metrics.RecordError(recorder.Kind(err))
		return fmt.Errorf("failed to create recording: %w", err)
	}
	if err := writer.Start(); err != nil {
		s.recordStorage(err)
		s.metrics.RecordError(recorder.Kind(err))
		return err
	}

	s.writer = writer
	s.metrics.RecordStart()
	s.logger.Info().Str("path", writer.Path()).Msg("Recording started")
	return nil
}

func (s *Session) handleMedia(media *MediaPayload) error {
	s.mu.RLock()
	writer, refused := s.writer, s.refused
	s.mu.RUnlock()

	if refused {
		return nil
	}
	if writer == nil {
		s.metrics.RecordError("state")
		return &recorder.StateError{Op: "append", Phase: recorder.PhaseIdle}
	}

	before := writer.BytesWritten()
	if err := writer.Append(media.Payload); err != nil {
		s.metrics.RecordError(recorder.Kind(err))
		if recorder.IsDecodeError(err) {
			s.logger.Warn().
				Err(err).
				Str("chunk", media.Chunk).
				Msg("Skipping undecodable media chunk")
			return nil
		}
		return err
	}

	s.metrics.RecordChunk(writer.BytesWritten() - before)
	return nil
}

// Finalize stops the recording, retrying when the failure is an I/O error
func (s *Session) Finalize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writer == nil {
		if s.refused {
			return nil
		}
		s.metrics.RecordError("state")
		return &recorder.StateError{Op: "stop", Phase: recorder.PhaseIdle}
	}

	retry := *s.retryConfig()
	onRetry := retry.OnRetry
	retry.OnRetry = func(attempt int, err error, backoff time.Duration) {
		s.logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("backoff", backoff).
			Msg("Finalizing recording failed, retrying")
		if onRetry != nil {
			onRetry(attempt, err, backoff)
		}
	}

	start := time.Now()
	err := resilience.Retry(ctx, s.writer.Stop, &retry, recorder.IsIOError)
	s.metrics.RecordFinalize(time.Since(start))

	if !recorder.IsStateError(err) {
		s.recordStorage(err)
	}
	if err != nil {
		s.metrics.RecordError(recorder.Kind(err))
		if recorder.IsStateError(err) {
			return err
		}
		s.logger.Error().Err(err).Str("path", s.writer.Path()).Msg("Failed to finalize recording")
		s.metrics.RecordEnd(observability.StatusFailed)
		return err
	}

	s.stopped = true
	s.metrics.RecordEnd(observability.StatusSaved)
	s.logger.Info().
		Str("path", s.writer.Path()).
		Int64("data_length", s.writer.DataLength()).
		Msg("Recording saved")
	return nil
}

// Close is called when the transport ends. A recording that never saw a
// stop event is finalized when FinalizeOnDisconnect is set and otherwise
// left on disk with a zero data length.
func (s *Session) Close(ctx context.Context) error {
	s.mu.RLock()
	writer, stopSeen := s.writer, s.stopSeen
	s.mu.RUnlock()

	if writer == nil || writer.Phase() != recorder.PhaseStreaming {
		return nil
	}

	// The stop event's Finalize already failed and was counted
	if stopSeen {
		s.logger.Warn().Str("path", writer.Path()).Msg("Stream ended after a failed finalize, recording left unfinalized")
		return nil
	}

	if s.opts.FinalizeOnDisconnect {
		s.logger.Warn().Msg("Stream ended without stop event, finalizing recording")
		return s.Finalize(ctx)
	}

	s.logger.Warn().Str("path", writer.Path()).Msg("Stream ended without stop event, recording left unfinalized")
	s.recordStorage(nil)
	s.metrics.RecordEnd(observability.StatusUnfinalized)
	return nil
}

// recordStorage feeds the outcome of a storage operation to the breaker.
// Only I/O errors count as failures.
func (s *Session) recordStorage(err error) {
	if s.opts.Breaker == nil {
		return
	}
	s.opts.Breaker.RecordResult(!recorder.IsIOError(err))
}

func (s *Session) retryConfig() *resilience.RetryConfig {
	if s.opts.Retry != nil {
		return s.opts.Retry
	}
	return resilience.DefaultRetryConfig()
}

// recordingName picks the base name for the recording file
func (s *Session) recordingName() string {
	if s.opts.BaseName != "" {
		return s.opts.BaseName
	}

	switch s.opts.NameSource {
	case config.NameSourceTimestamp:
		return "" // recorder default: Unix milliseconds
	case config.NameSourceStreamSid:
		if s.streamSid != "" {
			return s.streamSid
		}
	default:
		if s.callSid != "" {
			return s.callSid
		}
		if s.streamSid != "" {
			return s.streamSid
		}
	}
	return fmt.Sprintf("rec-%s", uuid.New().String())
}

// CallSid returns the call SID
func (s *Session) CallSid() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.callSid
}

// StreamSid returns the stream SID
func (s *Session) StreamSid() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.streamSid
}

// RecordingPath returns the recording path, or "" before the start event
func (s *Session) RecordingPath() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.writer == nil {
		return ""
	}
	return s.writer.Path()
}

// Stopped reports whether the recording was finalized
func (s *Session) Stopped() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stopped
}

// HandleMediaStreamWS is the entry point for Twilio Media Streams WebSocket connections
func HandleMediaStreamWS(opts SessionOptions, bufferSize int) http.HandlerFunc {
	if bufferSize <= 0 {
		bufferSize = 4096
	}
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			// Twilio does not send an Origin header
			return true
		},
		ReadBufferSize:  bufferSize,
		WriteBufferSize: bufferSize,
	}

	return func(w http.ResponseWriter, r *http.Request) {
		logger := observability.GetLogger()

		// Upgrade HTTP connection to WebSocket
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already replied to the client
			logger.Error().Err(err).Msg("Failed to upgrade connection to WebSocket")
			return
		}
		defer conn.Close()

		// Finalization must outlive the request
		ctx := context.WithoutCancel(r.Context())

		session := NewSession(opts)
		defer func() {
			if err := session.Close(ctx); err != nil {
				session.logger.Error().Err(err).Msg("Error closing media stream session")
			}
		}()

		session.logger.Info().Str("remote_addr", r.RemoteAddr).Msg("New media stream connection established")

		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					session.logger.Warn().Err(err).Msg("WebSocket read error")
				}
				return
			}

			done, err := session.HandleMessage(ctx, message)
			if err != nil {
				session.logger.Error().Err(err).Str("kind", recorder.Kind(err)).Msg("Error handling media stream message")
			}
			if done {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(time.Second))
				return
			}
		}
	}
}
