package telephony

// Media stream event names
const (
	EventConnected = "connected"
	EventStart     = "start"
	EventMedia     = "media"
	EventStop      = "stop"
	EventMark      = "mark"
	EventDTMF      = "dtmf"
)

// MediaStreamMessage represents a message from Twilio Media Streams
type MediaStreamMessage struct {
	Event          string        `json:"event"`
	SequenceNumber string        `json:"sequenceNumber,omitempty"`
	StreamSid      string        `json:"streamSid,omitempty"`
	Protocol       string        `json:"protocol,omitempty"` // connected only
	Version        string        `json:"version,omitempty"`  // connected only
	Start          *StartPayload `json:"start,omitempty"`
	Media          *MediaPayload `json:"media,omitempty"`
	Stop           *StopPayload  `json:"stop,omitempty"`
}

// StartPayload represents the start event payload
type StartPayload struct {
	AccountSid       string            `json:"accountSid"`
	CallSid          string            `json:"callSid"`
	StreamSid        string            `json:"streamSid"`
	Tracks           []string          `json:"tracks"`
	CustomParameters map[string]string `json:"customParameters,omitempty"`
	MediaFormat      *MediaFormat      `json:"mediaFormat,omitempty"`
}

// MediaFormat describes the encoding of media payloads
type MediaFormat struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sampleRate"`
	Channels   int    `json:"channels"`
}

// MediaPayload represents the media payload in a media event
type MediaPayload struct {
	Track     string `json:"track"`
	Chunk     string `json:"chunk"`     // Chunk sequence number
	Timestamp string `json:"timestamp"` // Milliseconds since stream start
	Payload   string `json:"payload"`   // Base64 encoded mu-law audio
}

// StopPayload represents the stop event payload
type StopPayload struct {
	AccountSid string `json:"accountSid"`
	CallSid    string `json:"callSid"`
}

// callSid returns the call SID carried by a start or stop event
func (m *MediaStreamMessage) callSid() string {
	switch {
	case m.Start != nil && m.Start.CallSid != "":
		return m.Start.CallSid
	case m.Stop != nil:
		return m.Stop.CallSid
	}
	return ""
}

// streamSid returns the stream SID from the envelope or the start payload
func (m *MediaStreamMessage) streamSid() string {
	if m.StreamSid != "" {
		return m.StreamSid
	}
	if m.Start != nil {
		return m.Start.StreamSid
	}
	return ""
}
