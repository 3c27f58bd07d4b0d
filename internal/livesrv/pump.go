package livesrv

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/classflow/livetutor/internal/frame"
	"github.com/classflow/livetutor/internal/session"
)

// pumpInput forwards validated client frames into the session until the
// client disconnects or the connection is terminated. A disconnect is the
// expected way a session ends: it triggers shutdown via disconnected() but
// is not an error. Any other read or forward failure is the pump's only
// error path and stops the session.
func pumpInput(ctx context.Context, c *websocket.Conn, h session.Handle, disconnected func(), log zerolog.Logger) error {
	for {
		_, data, err := c.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if isDisconnect(err) {
				logDisconnect(log, err)
				disconnected()
				return nil
			}
			return fmt.Errorf("read client frame: %w", err)
		}
		in, err := frame.DecodeInbound(data)
		if err != nil {
			log.Debug().Err(err).Msg("undecodable client frame; ignoring")
			continue
		}
		if !in.Recognized() {
			log.Debug().Str("type", in.Type).Msg("unrecognized client frame; ignoring")
			continue
		}
		if err := h.ProcessMessage(ctx, in.Raw); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("forward %s: %w", in.Type, err)
		}
	}
}

func isDisconnect(err error) bool {
	var ce websocket.CloseError
	return errors.As(err, &ce) || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed)
}

func logDisconnect(log zerolog.Logger, err error) {
	var ce websocket.CloseError
	if errors.As(err, &ce) {
		lvl := log.Info()
		if ce.Code != websocket.StatusNormalClosure && ce.Code != websocket.StatusGoingAway {
			lvl = log.Warn()
		}
		lvl.Str("reason", ce.Reason).Msg("client disconnected")
		return
	}
	log.Info().Msg("client disconnected")
}
