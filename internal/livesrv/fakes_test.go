package livesrv

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/classflow/livetutor/internal/frame"
	"github.com/classflow/livetutor/internal/session"
)

// fakeHandle is a scriptable session handle whose six streams are driven
// directly by tests.
type fakeHandle struct {
	id          string
	text        *session.Chan[string]
	problems    *session.Chan[json.RawMessage]
	transcripts *session.Chan[frame.Transcript]
	audio       *session.Chan[any]
	scenes      *session.Chan[json.RawMessage]
	readAlongs  *session.Chan[json.RawMessage]
	quit        chan struct{}

	mu         sync.Mutex
	processed  []frame.Inbound
	processErr error
}

func newFakeHandle(id string) *fakeHandle {
	return &fakeHandle{
		id:          id,
		text:        session.NewChan[string](8),
		problems:    session.NewChan[json.RawMessage](8),
		transcripts: session.NewChan[frame.Transcript](8),
		audio:       session.NewChan[any](8),
		scenes:      session.NewChan[json.RawMessage](8),
		readAlongs:  session.NewChan[json.RawMessage](8),
		quit:        make(chan struct{}),
	}
}

func (h *fakeHandle) ID() string { return h.id }

func (h *fakeHandle) Text() session.Stream[string] { return h.text }

func (h *fakeHandle) Problems() session.Stream[json.RawMessage] { return h.problems }

func (h *fakeHandle) Transcripts() session.Stream[frame.Transcript] { return h.transcripts }

func (h *fakeHandle) Audio() session.Stream[any] { return h.audio }

func (h *fakeHandle) Scenes() session.Stream[json.RawMessage] { return h.scenes }

func (h *fakeHandle) ReadAlongs() session.Stream[json.RawMessage] { return h.readAlongs }

func (h *fakeHandle) Quit() <-chan struct{} { return h.quit }

func (h *fakeHandle) ProcessMessage(_ context.Context, msg json.RawMessage) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.processErr != nil {
		return h.processErr
	}
	in, err := frame.DecodeInbound(msg)
	if err != nil {
		return err
	}
	h.processed = append(h.processed, in)
	return nil
}

func (h *fakeHandle) setProcessErr(err error) {
	h.mu.Lock()
	h.processErr = err
	h.mu.Unlock()
}

func (h *fakeHandle) processedCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.processed)
}

func (h *fakeHandle) closeAllStreams() {
	h.text.Close()
	h.problems.Close()
	h.transcripts.Close()
	h.audio.Close()
	h.scenes.Close()
	h.readAlongs.Close()
}

// fakeLifecycle hands out fakeHandles and counts cleanups per session.
type fakeLifecycle struct {
	mu        sync.Mutex
	handle    *fakeHandle
	factory   func() *fakeHandle
	createErr error
	createCtx context.Context
	creates   int
	cleanups  map[string]int
	cleanupCh chan string
}

func newFakeLifecycle(h *fakeHandle) *fakeLifecycle {
	return &fakeLifecycle{
		handle:    h,
		cleanups:  map[string]int{},
		cleanupCh: make(chan string, 128),
	}
}

func (l *fakeLifecycle) Create(ctx context.Context, _ frame.SessionParams) (session.Handle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.creates++
	l.createCtx = ctx
	if l.createErr != nil {
		return nil, l.createErr
	}
	if l.factory != nil {
		l.handle = l.factory()
	}
	return l.handle, nil
}

func (l *fakeLifecycle) Cleanup(_ context.Context, sessionID string) error {
	l.mu.Lock()
	l.cleanups[sessionID]++
	l.mu.Unlock()
	l.cleanupCh <- sessionID
	return nil
}

func (l *fakeLifecycle) currentHandle() *fakeHandle {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.handle
}

func (l *fakeLifecycle) totalCleanups() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, c := range l.cleanups {
		n += c
	}
	return n
}

func (l *fakeLifecycle) createCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.creates
}

func (l *fakeLifecycle) cleanupCount(sessionID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cleanups[sessionID]
}

func (l *fakeLifecycle) terminationSet() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.createCtx != nil && l.createCtx.Err() != nil
}

// wireFrame is the union of outbound wire fields, for test decoding.
type wireFrame struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id"`
	Content   json.RawMessage `json:"content"`
	Message   string          `json:"message"`
	Data      []byte          `json:"data"`
	MimeType  string          `json:"mime_type"`
	Duration  int64           `json:"duration"`
}

type harness struct {
	url string
	reg *Registry
}

func startWS(t *testing.T, lc session.Lifecycle, opts Options) harness {
	t.Helper()
	reg := NewRegistry()
	srv := httptest.NewServer(WSHandler(lc, reg, opts))
	t.Cleanup(srv.Close)
	return harness{url: "ws" + strings.TrimPrefix(srv.URL, "http"), reg: reg}
}

const initFrame = `{"text":"InitSession","data":{"subject":"math","skill_description":"fractions","student_id":7,"competency_score":0.5}}`

func dialInit(t *testing.T, ctx context.Context, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, []byte(initFrame)); err != nil {
		t.Fatalf("write init: %v", err)
	}
	f := readFrame(t, ctx, conn)
	if f.Type != "session_started" {
		t.Fatalf("first frame type = %q; want session_started", f.Type)
	}
	if f.SessionID == "" {
		t.Fatal("session_started missing session_id")
	}
	return conn
}

func readFrame(t *testing.T, ctx context.Context, conn *websocket.Conn) wireFrame {
	t.Helper()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	var f wireFrame
	if err := json.Unmarshal(data, &f); err != nil {
		t.Fatalf("decode frame %q: %v", data, err)
	}
	return f
}

func waitCleanup(t *testing.T, lc *fakeLifecycle) string {
	t.Helper()
	select {
	case id := <-lc.cleanupCh:
		return id
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for session cleanup")
		return ""
	}
}
