package telephony

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
)

// maxReplayLine bounds a single JSON event in a replay log
const maxReplayLine = 1 << 20

// Replay feeds a newline-delimited log of media stream messages to the
// session, as if they had arrived on a WebSocket. It stops at the first
// stop event or the end of input, then closes the session.
func Replay(ctx context.Context, r io.Reader, s *Session) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxReplayLine)

	var replayErr error
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		if err := ctx.Err(); err != nil {
			replayErr = err
			break
		}

		done, err := s.HandleMessage(ctx, raw)
		if err != nil {
			replayErr = fmt.Errorf("line %d: %w", line, err)
			break
		}
		if done {
			break
		}
	}
	if replayErr == nil {
		if err := scanner.Err(); err != nil {
			replayErr = fmt.Errorf("failed to read replay input: %w", err)
		}
	}

	return errors.Join(replayErr, s.Close(context.WithoutCancel(ctx)))
}
