package livesrv

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/classflow/livetutor/internal/frame"
	"github.com/classflow/livetutor/internal/logx"
	"github.com/classflow/livetutor/internal/metrics"
	"github.com/classflow/livetutor/internal/session"
	"github.com/classflow/livetutor/internal/serverstate"
)

// Options configure per-connection behavior.
type Options struct {
	// HandshakeTimeout bounds the wait for the InitSession frame.
	HandshakeTimeout time.Duration
	// ShutdownGrace bounds the wait for session tasks to return after the
	// termination signal fires, before they are abandoned.
	ShutdownGrace time.Duration
}

func (o *Options) setDefaults() {
	if o.HandshakeTimeout == 0 {
		o.HandshakeTimeout = 10 * time.Second
	}
	if o.ShutdownGrace == 0 {
		o.ShutdownGrace = 2 * time.Second
	}
}

// Termination causes that are expected session endings, not faults.
var (
	errClientDisconnect = errors.New("client disconnected")
	errStreamsDrained   = errors.New("all output streams ended")
	errSessionQuit      = errors.New("session requested quit")
	errConnClosed       = errors.New("connection closed")
)

// WSHandler owns one client websocket connection end-to-end: it runs the
// init handshake, creates the session, fans out the input pump and the six
// output drainers, and guarantees the session is cleaned up exactly once on
// every exit path.
func WSHandler(lc session.Lifecycle, reg *Registry, opts Options) http.HandlerFunc {
	opts.setDefaults()
	return func(w http.ResponseWriter, r *http.Request) {
		if serverstate.IsDraining() {
			http.Error(w, "draining", http.StatusServiceUnavailable)
			return
		}
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			logx.Log.Error().Err(err).Str("remote", r.RemoteAddr).Msg("ws accept")
			return
		}
		ctx := r.Context()
		defer func() {
			_ = c.Close(websocket.StatusInternalError, "server error")
		}()

		hctx, hcancel := context.WithTimeout(ctx, opts.HandshakeTimeout)
		_, data, err := c.Read(hctx)
		hcancel()
		if err != nil {
			metrics.HandshakeFailure()
			logx.Log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("ws read handshake")
			_ = c.Close(websocket.StatusPolicyViolation, "expected InitSession")
			return
		}
		params, err := frame.DecodeInit(data)
		if err != nil {
			metrics.HandshakeFailure()
			logx.Log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("ws invalid first message; expected InitSession")
			_ = c.Close(websocket.StatusPolicyViolation, "expected InitSession")
			return
		}

		// The session context is the termination signal: cancelled on the
		// first task failure, client disconnect, drained streams, session
		// quit, or server shutdown. Producers observe it through Create.
		sctx, cancel := context.WithCancelCause(ctx)
		defer cancel(errConnClosed)

		handle, err := lc.Create(sctx, params)
		if err != nil {
			metrics.HandshakeFailure()
			logx.Log.Error().Err(err).Str("remote", r.RemoteAddr).Int64("student_id", params.StudentID).Msg("create session")
			writeBestEffort(c, frame.Error("failed to initialize session"))
			_ = c.Close(websocket.StatusInternalError, "session init failed")
			return
		}
		log := logx.Log.With().Str("session_id", handle.ID()).Int64("student_id", params.StudentID).Logger()

		var cleanupOnce sync.Once
		cleanup := func() {
			cleanupOnce.Do(func() {
				cctx, ccancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer ccancel()
				if err := lc.Cleanup(cctx, handle.ID()); err != nil {
					log.Error().Err(err).Msg("session cleanup")
				}
			})
		}
		defer cleanup()

		conn := &Conn{
			SessionID: handle.ID(),
			StudentID: params.StudentID,
			Subject:   params.Subject,
			Remote:    r.RemoteAddr,
			StartedAt: time.Now(),
		}
		reg.Add(conn)
		metrics.SessionStart()
		var fault bool
		defer func() {
			metrics.SessionEnd(fault)
			reg.Remove(conn.SessionID)
		}()
		log.Info().Str("subject", params.Subject).Msg("session started")

		cw := &connWriter{c: c, conn: conn}
		if err := cw.WriteFrame(sctx, frame.SessionStarted(handle.ID())); err != nil {
			log.Error().Err(err).Msg("write session_started")
			return
		}

		// Fan out one pump and six drainers. The first task to fail cancels
		// everyone through the session context; the group collects results.
		var g errgroup.Group
		var drainers sync.WaitGroup
		spawn := func(fn func() error) {
			g.Go(func() error {
				if err := fn(); err != nil {
					cancel(err)
					return err
				}
				return nil
			})
		}
		drain := func(fn func() error) {
			drainers.Add(1)
			spawn(func() error {
				defer drainers.Done()
				return fn()
			})
		}

		drain(func() error {
			return drainStream(sctx, cw, "text", handle.Text(), encodeText, log)
		})
		drain(func() error {
			return drainStream(sctx, cw, "problem", handle.Problems(), func(p json.RawMessage) (frame.Outbound, error) {
				return frame.Problem(p), nil
			}, log)
		})
		drain(func() error {
			return drainStream(sctx, cw, "transcript", handle.Transcripts(), encodeTranscript, log)
		})
		drain(func() error {
			return drainStream(sctx, cw, "audio", handle.Audio(), encodeAudio, log)
		})
		drain(func() error {
			return drainStream(sctx, cw, "scene", handle.Scenes(), func(p json.RawMessage) (frame.Outbound, error) {
				return frame.Scene(p), nil
			}, log)
		})
		drain(func() error {
			return drainStream(sctx, cw, "read_along", handle.ReadAlongs(), func(p json.RawMessage) (frame.Outbound, error) {
				return frame.ReadAlong(p), nil
			}, log)
		})
		spawn(func() error {
			return pumpInput(sctx, c, handle, func() { cancel(errClientDisconnect) }, log)
		})

		// All six streams ending is a normal session end, even though the
		// pump may still be blocked on a read.
		go func() {
			drainers.Wait()
			cancel(errStreamsDrained)
		}()
		go func() {
			select {
			case <-handle.Quit():
				cancel(errSessionQuit)
			case <-sctx.Done():
			}
		}()

		done := make(chan error, 1)
		go func() { done <- g.Wait() }()

		<-sctx.Done()
		conn.setState(StateDraining)

		var runErr error
		select {
		case runErr = <-done:
		case <-time.After(opts.ShutdownGrace):
			log.Warn().Dur("grace", opts.ShutdownGrace).Msg("session tasks did not stop in time; abandoning")
		}

		cleanup()
		conn.setState(StateClosed)

		fault = runErr != nil
		if fault {
			log.Error().Err(runErr).Msg("session ended abnormally")
			writeBestEffort(c, frame.Error("session error"))
			_ = c.Close(websocket.StatusInternalError, "session error")
			return
		}
		log.Info().Str("reason", closeReason(context.Cause(sctx))).Int64("frames", conn.FramesWritten()).Msg("session ended")
		_ = c.Close(websocket.StatusNormalClosure, "")
	}
}

// writeBestEffort writes a frame outside the session context, for error
// reporting on paths where the session context is absent or already
// cancelled.
func writeBestEffort(c *websocket.Conn, f frame.Outbound) {
	b, err := json.Marshal(f)
	if err != nil {
		return
	}
	wctx, wcancel := context.WithTimeout(context.Background(), time.Second)
	defer wcancel()
	_ = c.Write(wctx, websocket.MessageText, b)
}

func closeReason(cause error) string {
	switch {
	case errors.Is(cause, errClientDisconnect):
		return "client_disconnect"
	case errors.Is(cause, errStreamsDrained):
		return "streams_drained"
	case errors.Is(cause, errSessionQuit):
		return "session_quit"
	case errors.Is(cause, context.Canceled):
		return "server_shutdown"
	case cause == nil:
		return "unknown"
	default:
		return cause.Error()
	}
}
