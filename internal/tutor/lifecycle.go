// Package tutor provides a built-in, dependency-free session.Lifecycle used
// in standalone mode and in end-to-end tests. It scripts a tiny
// deterministic tutor; real deployments plug in a lifecycle backed by the
// model and speech services instead.
package tutor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/classflow/livetutor/internal/frame"
	"github.com/classflow/livetutor/internal/logx"
	"github.com/classflow/livetutor/internal/session"
)

const streamBuf = 16

// Lifecycle implements session.Lifecycle with a scripted local tutor.
type Lifecycle struct {
	mu       sync.Mutex
	sessions map[string]*scripted
}

// NewLifecycle returns an empty Lifecycle.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{sessions: make(map[string]*scripted)}
}

// Create starts a scripted session and greets the student.
func (l *Lifecycle) Create(ctx context.Context, p frame.SessionParams) (session.Handle, error) {
	s := &scripted{
		id:          uuid.NewString(),
		params:      p,
		ctx:         ctx,
		text:        session.NewChan[string](streamBuf),
		problems:    session.NewChan[json.RawMessage](streamBuf),
		transcripts: session.NewChan[frame.Transcript](streamBuf),
		audio:       session.NewChan[any](streamBuf),
		scenes:      session.NewChan[json.RawMessage](streamBuf),
		readAlongs:  session.NewChan[json.RawMessage](streamBuf),
		quit:        make(chan struct{}),
	}
	l.mu.Lock()
	l.sessions[s.id] = s
	l.mu.Unlock()

	greeting := fmt.Sprintf("Hi! Let's work on %s today.", p.Subject)
	if p.Subject == "" {
		greeting = "Hi! What would you like to work on today?"
	}
	if err := s.text.Send(ctx, greeting); err != nil {
		return nil, err
	}
	return s, nil
}

// Cleanup releases the session. It is idempotent.
func (l *Lifecycle) Cleanup(ctx context.Context, sessionID string) error {
	l.mu.Lock()
	_, ok := l.sessions[sessionID]
	delete(l.sessions, sessionID)
	l.mu.Unlock()
	if ok {
		logx.Log.Debug().Str("session_id", sessionID).Msg("scripted session released")
	}
	return nil
}

// Count returns the number of live scripted sessions.
func (l *Lifecycle) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.sessions)
}

type scripted struct {
	id     string
	params frame.SessionParams
	ctx    context.Context

	text        *session.Chan[string]
	problems    *session.Chan[json.RawMessage]
	transcripts *session.Chan[frame.Transcript]
	audio       *session.Chan[any]
	scenes      *session.Chan[json.RawMessage]
	readAlongs  *session.Chan[json.RawMessage]

	quit     chan struct{}
	quitOnce sync.Once

	turns    int
	passages int
}

func (s *scripted) ID() string { return s.id }

func (s *scripted) Text() session.Stream[string] { return s.text }

func (s *scripted) Problems() session.Stream[json.RawMessage] { return s.problems }

func (s *scripted) Transcripts() session.Stream[frame.Transcript] { return s.transcripts }

func (s *scripted) Audio() session.Stream[any] { return s.audio }

func (s *scripted) Scenes() session.Stream[json.RawMessage] { return s.scenes }

func (s *scripted) ReadAlongs() session.Stream[json.RawMessage] { return s.readAlongs }

func (s *scripted) Quit() <-chan struct{} { return s.quit }

// ProcessMessage is called by the input pump, one frame at a time.
func (s *scripted) ProcessMessage(ctx context.Context, msg json.RawMessage) error {
	var env struct {
		Type        string `json:"type"`
		MediaChunks []struct {
			MimeType string `json:"mime_type"`
			Data     string `json:"data"`
		} `json:"media_chunks"`
	}
	if err := json.Unmarshal(msg, &env); err != nil {
		return fmt.Errorf("decode input: %w", err)
	}
	switch env.Type {
	case frame.InboundReadAlongRequest:
		return s.sendReadAlong(ctx)
	case frame.InboundRealtimeInput:
		for _, ch := range env.MediaChunks {
			if !strings.HasPrefix(ch.MimeType, "text/") {
				continue
			}
			if err := s.respond(ctx, ch.Data); err != nil {
				return err
			}
		}
		return nil
	default:
		return nil
	}
}

func (s *scripted) respond(ctx context.Context, utterance string) error {
	t := frame.Transcript{
		Speaker: frame.SpeakerUser,
		Data:    frame.TranscriptData{Text: utterance},
	}
	if err := s.transcripts.Send(ctx, t); err != nil {
		return err
	}
	if strings.Contains(strings.ToLower(utterance), "goodbye") {
		s.end()
		return nil
	}

	s.turns++
	reply := replies[(s.turns-1)%len(replies)]
	if err := s.text.Send(ctx, reply); err != nil {
		return err
	}
	// a short silent PCM16 clip in the legacy bare-bytes shape, so the
	// transport's audio normalization sees real traffic in standalone mode
	if err := s.audio.Send(ctx, any(make([]byte, 4800))); err != nil {
		return err
	}
	if s.turns == 1 {
		if err := s.scenes.Send(ctx, scene(s.params.Subject)); err != nil {
			return err
		}
	}
	if s.turns%2 == 0 {
		p := problems[(s.turns/2-1)%len(problems)]
		if err := s.problems.Send(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (s *scripted) sendReadAlong(ctx context.Context) error {
	p := passages[s.passages%len(passages)]
	s.passages++
	return s.readAlongs.Send(ctx, p)
}

// end finishes the session from the tutor's side: all streams close
// normally and the quit signal fires.
func (s *scripted) end() {
	s.quitOnce.Do(func() {
		s.text.Close()
		s.problems.Close()
		s.transcripts.Close()
		s.audio.Close()
		s.scenes.Close()
		s.readAlongs.Close()
		close(s.quit)
	})
}
