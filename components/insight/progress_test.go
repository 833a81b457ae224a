package insight

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressHubPublishAndReplay(t *testing.T) {
	hub := NewProgressHub()
	report := hub.Reporter("u1")
	report(50, 200)

	events, cancel := hub.Subscribe("u1")
	defer cancel()

	select {
	case ev := <-events:
		assert.Equal(t, PhaseUploading, ev.Phase)
		assert.Equal(t, 25, ev.Percent)
	case <-time.After(time.Second):
		t.Fatal("expected replayed event")
	}

	hub.Publish(ProgressEvent{UploadID: "u1", Phase: PhaseDone})
	ev := <-events
	assert.Equal(t, 100, ev.Percent)

	late, cancelLate := hub.Subscribe("u1")
	defer cancelLate()
	select {
	case ev := <-late:
		assert.Equal(t, PhaseDone, ev.Phase)
	default:
		t.Fatal("a finished upload must replay its terminal event")
	}
}

func TestProgressHubForgetsFinishedUploads(t *testing.T) {
	hub := NewProgressHub()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	hub.now = func() time.Time { return now }
	hub.Publish(ProgressEvent{UploadID: "u1", Phase: PhaseFailed, Message: "bad file"})

	now = now.Add(FinishedRetention + time.Second)
	late, cancel := hub.Subscribe("u1")
	defer cancel()
	select {
	case ev := <-late:
		t.Fatalf("expired upload replayed %+v", ev)
	default:
	}
}

func TestProgressHubStreamSSEAfterUploadFinished(t *testing.T) {
	hub := NewProgressHub()
	hub.Publish(ProgressEvent{UploadID: "u1", Phase: PhaseDone})

	var buf bytes.Buffer
	done := make(chan struct{})
	go func() {
		hub.StreamSSE(context.Background(), "u1", bufio.NewWriter(&buf))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stream must end right away for a finished upload")
	}
	assert.Contains(t, buf.String(), `"phase":"done"`)
}

func TestProgressHubIgnoresOtherUploads(t *testing.T) {
	hub := NewProgressHub()
	events, cancel := hub.Subscribe("u1")
	defer cancel()
	hub.Publish(ProgressEvent{UploadID: "u2", Phase: PhaseProcessing})
	select {
	case ev := <-events:
		t.Fatalf("unexpected event %+v", ev)
	default:
	}
}

func TestProgressHubCancelClosesChannel(t *testing.T) {
	hub := NewProgressHub()
	events, cancel := hub.Subscribe("u1")
	cancel()
	cancel()
	_, ok := <-events
	assert.False(t, ok)
	hub.Publish(ProgressEvent{UploadID: "u1", Phase: PhaseProcessing})
}

func TestProgressHubStreamSSE(t *testing.T) {
	hub := NewProgressHub()
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	done := make(chan struct{})
	go func() {
		hub.StreamSSE(context.Background(), "u1", w)
		close(done)
	}()

	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return len(hub.subs["u1"]) == 1
	}, time.Second, 5*time.Millisecond)

	hub.Publish(ProgressEvent{UploadID: "u1", Phase: PhaseProcessing, Message: "parsing"})
	hub.Publish(ProgressEvent{UploadID: "u1", Phase: PhaseFailed, Message: "bad file"})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stream did not stop on terminal event")
	}
	out := buf.String()
	assert.Equal(t, 2, strings.Count(out, "data: "))
	assert.Contains(t, out, `"phase":"processing"`)
	assert.Contains(t, out, `"message":"bad file"`)
}

func TestProgressHubStreamSSEStopsOnCancel(t *testing.T) {
	hub := NewProgressHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.StreamSSE(ctx, "u1", bufio.NewWriter(&bytes.Buffer{}))
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stream ignored cancellation")
	}
}
