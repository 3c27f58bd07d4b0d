// Package session defines the contract between the connection transport and
// the collaborators that produce tutoring content. The transport only ever
// consumes these interfaces; how text, problems, audio or transcripts are
// generated is a collaborator concern.
package session

import (
	"context"
	"encoding/json"

	"github.com/classflow/livetutor/internal/frame"
)

// Stream is a lazy, non-restartable sequence of values. Recv blocks until
// the next value is available, the stream ends, or ctx is cancelled. A
// normal end is reported as io.EOF; any other error is a stream failure.
// A stream may be finite or run for the life of the session.
type Stream[T any] interface {
	Recv(ctx context.Context) (T, error)
}

// Handle is one live tutoring session. The six output streams are owned
// exclusively by the connection that created the session; each may end
// independently of the others.
//
// The audio stream yields either a frame.AudioChunk or a bare []byte buffer
// (legacy producer shape); the transport normalizes both to the structured
// wire form.
type Handle interface {
	ID() string

	Text() Stream[string]
	Problems() Stream[json.RawMessage]
	Transcripts() Stream[frame.Transcript]
	Audio() Stream[any]
	Scenes() Stream[json.RawMessage]
	ReadAlongs() Stream[json.RawMessage]

	// ProcessMessage accepts one validated inbound client frame.
	ProcessMessage(ctx context.Context, msg json.RawMessage) error

	// Quit is closed when the session's own collaborators decide the
	// session is over (e.g. the tutor ends the conversation).
	Quit() <-chan struct{}
}

// Lifecycle creates and destroys session handles.
//
// Create receives the per-connection context; its cancellation is the
// session's termination signal, observable by the handle's producers so they
// stop generating work promptly. Create may be slow (it typically reaches
// out to model and speech services) and is called at most once per
// connection.
//
// Cleanup is invoked exactly once per created session, on every exit path.
// It should be idempotent; errors are logged by the caller and never block
// transport close.
type Lifecycle interface {
	Create(ctx context.Context, p frame.SessionParams) (Handle, error)
	Cleanup(ctx context.Context, sessionID string) error
}
