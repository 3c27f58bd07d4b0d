package livesrv

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/coder/websocket"

	"github.com/classflow/livetutor/internal/frame"
	"github.com/classflow/livetutor/internal/metrics"
)

// connWriter serializes all writes to the shared outbound transport. Up to
// seven tasks write concurrently (the supervisor plus six drainers); the
// mutex keeps frames whole on the wire.
type connWriter struct {
	mu   sync.Mutex
	c    *websocket.Conn
	conn *Conn
}

// WriteFrame encodes and writes one outbound frame. It refuses to write once
// ctx is cancelled, so a cancelled drainer cannot emit frames after the
// termination signal is observed.
func (w *connWriter) WriteFrame(ctx context.Context, f frame.Outbound) error {
	b, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode %s frame: %w", f.Type, err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := w.c.Write(ctx, websocket.MessageText, b); err != nil {
		return err
	}
	metrics.FrameWritten(string(f.Type))
	if w.conn != nil {
		w.conn.frames.Add(1)
	}
	return nil
}
