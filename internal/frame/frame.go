package frame

import (
	"encoding/json"
	"time"
)

// Kind enumerates outbound frame types. The set is closed: every frame the
// server writes is built through one of the constructors below.
type Kind string

const (
	KindSessionStarted Kind = "session_started"
	KindText           Kind = "text"
	KindProblem        Kind = "problem"
	KindTranscript     Kind = "transcript"
	KindAudio          Kind = "audio"
	KindScene          Kind = "scene"
	KindReadAlong      Kind = "read_along"
	KindError          Kind = "error"
)

// Speaker identifies the source of a transcript segment.
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

// TranscriptData carries one transcription segment.
type TranscriptData struct {
	Text      string `json:"text"`
	IsPartial bool   `json:"is_partial"`
}

// Transcript is the payload of a transcript frame.
type Transcript struct {
	Speaker Speaker        `json:"speaker"`
	Data    TranscriptData `json:"data"`
}

// DefaultSampleRate is assumed when an audio producer does not specify one.
const DefaultSampleRate = 24000

// AudioChunk is a timed slice of session audio. Producers may emit either
// this structured form or a bare PCM16 byte buffer; NormalizeAudio converts
// both to a fully populated chunk.
type AudioChunk struct {
	Data         []byte
	TimestampMS  int64
	DurationMS   int64
	SampleRateHz int32
}

// Outbound is the wire form of one server-to-client frame. Exactly one kind
// of payload is populated per frame, enforced by the constructors.
type Outbound struct {
	Type      Kind            `json:"type"`
	SessionID string          `json:"session_id,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	Message   string          `json:"message,omitempty"`

	// audio only
	Data       []byte `json:"data,omitempty"`
	MimeType   string `json:"mime_type,omitempty"`
	Timestamp  int64  `json:"timestamp,omitempty"`
	Duration   int64  `json:"duration,omitempty"`
	SampleRate int32  `json:"sample_rate,omitempty"`
}

// SessionStarted builds the control frame sent once after session creation.
func SessionStarted(sessionID string) Outbound {
	return Outbound{Type: KindSessionStarted, SessionID: sessionID}
}

// Text builds a text frame.
func Text(content string) Outbound {
	b, _ := json.Marshal(content)
	return Outbound{Type: KindText, Content: b}
}

// Problem builds a problem frame from an already-encoded payload.
func Problem(content json.RawMessage) Outbound {
	return Outbound{Type: KindProblem, Content: content}
}

// TranscriptFrame builds a transcript frame.
func TranscriptFrame(t Transcript) Outbound {
	b, _ := json.Marshal(t)
	return Outbound{Type: KindTranscript, Content: b}
}

// Audio builds an audio frame from a normalized chunk.
func Audio(c AudioChunk) Outbound {
	return Outbound{
		Type:       KindAudio,
		Data:       c.Data,
		MimeType:   "audio/pcm",
		Timestamp:  c.TimestampMS,
		Duration:   c.DurationMS,
		SampleRate: c.SampleRateHz,
	}
}

// Scene builds a scene frame from an already-encoded payload.
func Scene(content json.RawMessage) Outbound {
	return Outbound{Type: KindScene, Content: content}
}

// ReadAlong builds a read-along frame from an already-encoded payload.
func ReadAlong(content json.RawMessage) Outbound {
	return Outbound{Type: KindReadAlong, Content: content}
}

// Error builds an error frame.
func Error(message string) Outbound {
	return Outbound{Type: KindError, Message: message}
}

// NormalizeAudio fills the defaulted fields of a structured chunk, or lifts a
// legacy bare byte buffer into the structured form. A bare buffer is read as
// 16-bit mono PCM at the default rate, so its duration follows from its
// length. The timestamp defaults to now.
func NormalizeAudio(v any, now time.Time) (AudioChunk, bool) {
	var c AudioChunk
	switch a := v.(type) {
	case AudioChunk:
		c = a
	case []byte:
		c = AudioChunk{Data: a}
	default:
		return AudioChunk{}, false
	}
	if c.SampleRateHz == 0 {
		c.SampleRateHz = DefaultSampleRate
	}
	if c.TimestampMS == 0 {
		c.TimestampMS = now.UnixMilli()
	}
	if c.DurationMS == 0 && len(c.Data) > 0 {
		c.DurationMS = int64(len(c.Data)) * 1000 / (int64(c.SampleRateHz) * 2)
	}
	return c, true
}
