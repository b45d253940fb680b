package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blockingSink struct {
	release chan struct{}
	mu      sync.Mutex
	events  []Event
}

func (s *blockingSink) Emit(_ context.Context, event Event) {
	<-s.release
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
}

func TestDispatcherDisabledIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, NoOpSink{})
	assert.Nil(t, d)
	d.Emit(context.Background(), Event{EventType: "x"})
	d.Close()
	assert.Zero(t, d.Dropped())
}

func TestDispatcherDeliversAndDrains(t *testing.T) {
	sink := NewChannelSink(4)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, sink)

	d.Emit(context.Background(), Event{EventType: "login_success", Success: true})
	d.Emit(context.Background(), Event{EventType: "login_failure"})
	d.Close()

	require.Len(t, sink.Events(), 2)
	assert.Equal(t, "login_success", (<-sink.Events()).EventType)
	assert.Equal(t, "login_failure", (<-sink.Events()).EventType)

	d.Emit(context.Background(), Event{EventType: "after_close"})
	assert.Empty(t, sink.Events())
	assert.Equal(t, Stats{Delivered: 2, Dropped: 1}, d.Stats())
}

func TestDispatcherDropIfFull(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	// One event may be held by the sink, one by the buffer; the rest drop.
	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{EventType: "register"})
	}
	assert.GreaterOrEqual(t, d.Dropped(), uint64(8))

	close(sink.release)
	d.Close()
	assert.Equal(t, uint64(10), d.Dropped()+uint64(len(sink.events)))
}

func TestDispatcherBlockingRespectsContext(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1}, sink)
	defer func() {
		close(sink.release)
		d.Close()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	for i := 0; i < 3; i++ {
		d.Emit(ctx, Event{EventType: "register"})
	}
	assert.ErrorIs(t, ctx.Err(), context.DeadlineExceeded)
}

func TestLoggerSinkWritesStructuredEntry(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLoggerSink(zerolog.New(&buf))

	sink.Emit(context.Background(), Event{
		Timestamp: time.Unix(1_700_000_000, 0).UTC(),
		EventType: "login_failure",
		UserID:    "u-1",
		IP:        "10.0.0.1",
		Error:     "invalid_credentials",
		Metadata:  map[string]string{"reason": "password"},
	})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "audit", entry["component"])
	assert.Equal(t, "login_failure", entry["event_type"])
	assert.Equal(t, "u-1", entry["user_id"])
	assert.Equal(t, "10.0.0.1", entry["ip"])
	assert.Equal(t, "invalid_credentials", entry["error_code"])
	assert.Equal(t, false, entry["success"])
	assert.Equal(t, map[string]any{"reason": "password"}, entry["metadata"])
}

type panickingSink struct{}

func (panickingSink) Emit(_ context.Context, event Event) {
	if event.EventType == "boom" {
		panic("sink failure")
	}
}

func TestDispatcherSurvivesSinkPanic(t *testing.T) {
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, panickingSink{})

	d.Emit(context.Background(), Event{EventType: "boom"})
	d.Emit(context.Background(), Event{EventType: "login_success"})
	d.Close()

	assert.Equal(t, Stats{Delivered: 1, SinkPanics: 1}, d.Stats())
}

func TestDispatcherShutdownDeadline(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 2}, sink)
	d.Emit(context.Background(), Event{EventType: "register"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, d.Shutdown(ctx), context.DeadlineExceeded)

	close(sink.release)
	require.NoError(t, d.Shutdown(context.Background()))
	assert.EqualValues(t, 1, d.Stats().Delivered)
}

func TestDispatcherAccountsForEmitsRacingShutdown(t *testing.T) {
	for _, dropIfFull := range []bool{false, true} {
		sink := NewChannelSink(4096)
		d := NewDispatcher(Config{Enabled: true, BufferSize: 8, DropIfFull: dropIfFull}, sink)

		const emitters, perEmitter = 8, 200
		var wg sync.WaitGroup
		start := make(chan struct{})
		for i := 0; i < emitters; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				for j := 0; j < perEmitter; j++ {
					d.Emit(context.Background(), Event{EventType: "login_failure"})
				}
			}()
		}
		close(start)
		d.Close()
		wg.Wait()

		stats := d.Stats()
		assert.EqualValues(t, emitters*perEmitter, stats.Delivered+stats.Dropped, "dropIfFull=%v", dropIfFull)
		assert.EqualValues(t, stats.Delivered, len(sink.Events()), "dropIfFull=%v", dropIfFull)
	}
}

func TestNilDispatcherStats(t *testing.T) {
	var d *Dispatcher
	assert.Equal(t, Stats{}, d.Stats())
	require.NoError(t, d.Shutdown(context.Background()))
}
