package tutor

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/classflow/livetutor/internal/frame"
	"github.com/classflow/livetutor/internal/session"
)

func testParams() frame.SessionParams {
	return frame.SessionParams{
		Subject:          "math",
		SkillDescription: "fractions",
		StudentID:        42,
		CompetencyScore:  0.6,
	}
}

func recvOne[T any](t *testing.T, s session.Stream[T]) T {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	v, err := s.Recv(ctx)
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	return v
}

func realtimeText(text string) json.RawMessage {
	msg := map[string]any{
		"type": frame.InboundRealtimeInput,
		"media_chunks": []map[string]string{
			{"mime_type": "text/plain", "data": text},
		},
	}
	b, _ := json.Marshal(msg)
	return b
}

func TestCreateGreetsStudent(t *testing.T) {
	lc := NewLifecycle()
	ctx := context.Background()

	h, err := lc.Create(ctx, testParams())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if h.ID() == "" {
		t.Fatal("empty session id")
	}
	if lc.Count() != 1 {
		t.Fatalf("Count = %d; want 1", lc.Count())
	}

	greeting := recvOne(t, h.Text())
	if !strings.Contains(greeting, "math") {
		t.Fatalf("greeting %q does not mention the subject", greeting)
	}
}

func TestRespondFlow(t *testing.T) {
	lc := NewLifecycle()
	ctx := context.Background()

	h, err := lc.Create(ctx, testParams())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	recvOne(t, h.Text()) // greeting

	if err := h.ProcessMessage(ctx, realtimeText("I think it is 7/8")); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}

	tr := recvOne(t, h.Transcripts())
	if tr.Speaker != frame.SpeakerUser || tr.Data.Text != "I think it is 7/8" {
		t.Fatalf("unexpected transcript %+v", tr)
	}
	if reply := recvOne(t, h.Text()); reply == "" {
		t.Fatal("empty tutor reply")
	}
	clip := recvOne(t, h.Audio())
	if b, ok := clip.([]byte); !ok || len(b) == 0 {
		t.Fatalf("audio clip = %T; want non-empty []byte", clip)
	}
	// the first turn also sets the scene
	var sc map[string]any
	if err := json.Unmarshal(recvOne(t, h.Scenes()), &sc); err != nil {
		t.Fatalf("scene: %v", err)
	}
	if sc["caption"] != "Today: math" {
		t.Fatalf("scene caption = %v", sc["caption"])
	}

	// a second turn brings a practice problem
	if err := h.ProcessMessage(ctx, realtimeText("ok, next")); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	recvOne(t, h.Transcripts())
	recvOne(t, h.Text())
	recvOne(t, h.Audio())
	var p map[string]any
	if err := json.Unmarshal(recvOne(t, h.Problems()), &p); err != nil {
		t.Fatalf("problem: %v", err)
	}
	if p["prompt"] == "" {
		t.Fatal("problem has no prompt")
	}
}

func TestReadAlongRequest(t *testing.T) {
	lc := NewLifecycle()
	ctx := context.Background()

	h, err := lc.Create(ctx, testParams())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	req := json.RawMessage(`{"type":"read_along_request"}`)
	if err := h.ProcessMessage(ctx, req); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if err := h.ProcessMessage(ctx, req); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}

	first := recvOne(t, h.ReadAlongs())
	second := recvOne(t, h.ReadAlongs())
	if string(first) == string(second) {
		t.Fatal("consecutive passages should differ")
	}
}

func TestGoodbyeEndsSession(t *testing.T) {
	lc := NewLifecycle()
	ctx := context.Background()

	h, err := lc.Create(ctx, testParams())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	recvOne(t, h.Text())

	if err := h.ProcessMessage(ctx, realtimeText("goodbye!")); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}

	select {
	case <-h.Quit():
	case <-time.After(2 * time.Second):
		t.Fatal("quit signal never fired")
	}

	recvOne(t, h.Transcripts()) // the farewell transcript is still delivered
	if _, err := h.Text().Recv(ctx); !errors.Is(err, io.EOF) {
		t.Fatalf("text Recv after goodbye = %v; want io.EOF", err)
	}
}

func TestCleanupIdempotent(t *testing.T) {
	lc := NewLifecycle()
	ctx := context.Background()

	h, err := lc.Create(ctx, testParams())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := lc.Cleanup(ctx, h.ID()); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if err := lc.Cleanup(ctx, h.ID()); err != nil {
		t.Fatalf("second Cleanup: %v", err)
	}
	if lc.Count() != 0 {
		t.Fatalf("Count = %d; want 0", lc.Count())
	}
}

func TestUnknownMediaIgnored(t *testing.T) {
	lc := NewLifecycle()
	ctx := context.Background()

	h, err := lc.Create(ctx, testParams())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	recvOne(t, h.Text())

	msg := json.RawMessage(`{"type":"realtime_input","media_chunks":[{"mime_type":"audio/pcm","data":"AAAA"}]}`)
	if err := h.ProcessMessage(ctx, msg); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}

	ctx2, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, err := h.Transcripts().Recv(ctx2); err == nil {
		t.Fatal("non-text chunk produced a transcript")
	}
}
