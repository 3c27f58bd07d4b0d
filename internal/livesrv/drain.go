package livesrv

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/classflow/livetutor/internal/frame"
	"github.com/classflow/livetutor/internal/session"
)

// drainStream pulls values from one session output stream and writes each as
// an outbound frame, until the stream ends or the connection is terminated.
// A stream ending normally is not a failure and does not affect its
// siblings; any pull, encode, or write error is, and stops the session.
func drainStream[T any](ctx context.Context, w *connWriter, name string, s session.Stream[T], encode func(T) (frame.Outbound, error), log zerolog.Logger) error {
	for {
		v, err := s.Recv(ctx)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				log.Debug().Str("stream", name).Msg("stream ended")
				return nil
			case ctx.Err() != nil:
				return nil
			default:
				return fmt.Errorf("%s stream: %w", name, err)
			}
		}
		// re-check termination before writing a pulled value
		if ctx.Err() != nil {
			return nil
		}
		f, err := encode(v)
		if err != nil {
			return fmt.Errorf("%s stream: %w", name, err)
		}
		if err := w.WriteFrame(ctx, f); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("write %s frame: %w", name, err)
		}
	}
}

func encodeText(s string) (frame.Outbound, error) { return frame.Text(s), nil }

func encodeTranscript(t frame.Transcript) (frame.Outbound, error) {
	return frame.TranscriptFrame(t), nil
}

// encodeAudio accepts both producer shapes (structured chunk or bare PCM16
// buffer) and normalizes to the structured wire form.
func encodeAudio(v any) (frame.Outbound, error) {
	c, ok := frame.NormalizeAudio(v, time.Now())
	if !ok {
		return frame.Outbound{}, fmt.Errorf("unsupported audio payload type %T", v)
	}
	return frame.Audio(c), nil
}
