package telephony

import (
	"encoding/base64"
	"encoding/binary"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lexiqai/media-recorder/internal/config"
	"github.com/lexiqai/media-recorder/internal/recorder"
)

func dialTestServer(t *testing.T, opts SessionOptions) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(HandleMediaStreamWS(opts, 1024))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial test server: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForSave(t *testing.T, saved <-chan string) string {
	t.Helper()
	select {
	case path := <-saved:
		return path
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for recording to be saved")
		return ""
	}
}

func TestHandleMediaStreamWS(t *testing.T) {
	saved := make(chan string, 1)
	opts := SessionOptions{
		RecordingsDir:        t.TempDir(),
		NameSource:           config.NameSourceStreamSid,
		FinalizeOnDisconnect: true,
		OnSaved:              func(path string) { saved <- path },
	}
	conn := dialTestServer(t, opts)

	frame := make([]byte, 160)
	for i := range frame {
		frame[i] = byte(i)
	}
	payload := base64.StdEncoding.EncodeToString(frame)

	messages := []any{
		MediaStreamMessage{Event: EventConnected, Protocol: "Call", Version: "1.0.0"},
		MediaStreamMessage{Event: EventStart, StreamSid: "MZws", Start: &StartPayload{CallSid: "CAws", StreamSid: "MZws"}},
		MediaStreamMessage{Event: EventMedia, StreamSid: "MZws", Media: &MediaPayload{Chunk: "1", Payload: payload}},
		MediaStreamMessage{Event: EventMedia, StreamSid: "MZws", Media: &MediaPayload{Chunk: "2", Payload: payload}},
		MediaStreamMessage{Event: EventStop, StreamSid: "MZws", Stop: &StopPayload{CallSid: "CAws"}},
	}
	for _, msg := range messages {
		if err := conn.WriteJSON(msg); err != nil {
			t.Fatalf("WriteJSON() failed: %v", err)
		}
	}

	path := waitForSave(t, saved)
	if !strings.HasSuffix(path, "MZws.wav") {
		t.Errorf("Expected recording named after stream SID, got %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read recording: %v", err)
	}
	if len(data) != recorder.HeaderSize+320 {
		t.Errorf("Expected %d byte recording, got %d", recorder.HeaderSize+320, len(data))
	}
	if got := binary.LittleEndian.Uint32(data[54:58]); got != 320 {
		t.Errorf("Expected data length 320, got %d", got)
	}
}

func TestHandleMediaStreamWS_DisconnectWithoutStop(t *testing.T) {
	saved := make(chan string, 1)
	opts := SessionOptions{
		RecordingsDir:        t.TempDir(),
		NameSource:           config.NameSourceCallSid,
		FinalizeOnDisconnect: true,
		OnSaved:              func(path string) { saved <- path },
	}
	conn := dialTestServer(t, opts)

	conn.WriteJSON(MediaStreamMessage{Event: EventStart, Start: &StartPayload{CallSid: "CAdrop"}})
	conn.WriteJSON(MediaStreamMessage{Event: EventMedia, Media: &MediaPayload{Payload: "AQIDBAU="}})
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
	conn.Close()

	path := waitForSave(t, saved)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read recording: %v", err)
	}
	if got := binary.LittleEndian.Uint32(data[54:58]); got != 5 {
		t.Errorf("Expected data length 5, got %d", got)
	}
}
