package sse

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterGeneratesID(t *testing.T) {
	m := NewManager(4, nil)
	defer m.Close()

	id, ch := m.Register("")
	assert.NotEmpty(t, id)
	assert.NotNil(t, ch)
	assert.Equal(t, 1, m.ClientCount())
}

func TestSendAndUnregister(t *testing.T) {
	m := NewManager(4, nil)
	defer m.Close()

	id, ch := m.Register("client-1")
	require.Equal(t, "client-1", id)

	ok := m.Send("client-1", Event{Type: "test", Data: map[string]interface{}{"n": 1}})
	assert.True(t, ok)

	event := <-ch
	assert.Equal(t, "test", event.Type)

	m.Unregister("client-1")
	assert.Equal(t, 0, m.ClientCount())
	assert.False(t, m.Send("client-1", Event{Type: "test"}))

	_, open := <-ch
	assert.False(t, open, "channel closes on unregister")
}

func TestSendDropsWhenQueueFull(t *testing.T) {
	m := NewManager(2, nil)
	defer m.Close()

	m.Register("slow")
	assert.True(t, m.Send("slow", Event{Type: "a"}))
	assert.True(t, m.Send("slow", Event{Type: "b"}))
	assert.False(t, m.Send("slow", Event{Type: "c"}), "third send exceeds the queue")
}

func TestBroadcast(t *testing.T) {
	m := NewManager(4, nil)
	defer m.Close()

	_, ch1 := m.Register("a")
	_, ch2 := m.Register("b")

	delivered := m.Broadcast(Event{Type: "announce", Data: "hello"})
	assert.Equal(t, 2, delivered)

	assert.Equal(t, "announce", (<-ch1).Type)
	assert.Equal(t, "announce", (<-ch2).Type)
}

func TestClientGaugeTracksConnections(t *testing.T) {
	m := NewManager(4, nil)
	defer m.Close()

	var mu sync.Mutex
	var counts []int
	m.SetClientGauge(func(n int) {
		mu.Lock()
		counts = append(counts, n)
		mu.Unlock()
	})

	m.Register("a")
	m.Register("b")
	m.Unregister("a")
	m.Unregister("a") // unknown client leaves the gauge untouched

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2, 1}, counts)
}

func TestSendDuringDisconnectDoesNotPanic(t *testing.T) {
	m := NewManager(1, nil)
	defer m.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				m.Register("churn")
				m.Unregister("churn")
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				m.Send("churn", Event{Type: "ping"})
			}
		}()
	}
	wg.Wait()
	m.Unregister("churn")
	assert.False(t, m.Send("churn", Event{Type: "ping"}))
}

func TestEventFormat(t *testing.T) {
	payload, err := Event{
		ID:    "5",
		Type:  "tool_result",
		Data:  map[string]interface{}{"ok": true},
		Retry: 3000,
	}.Format()
	require.NoError(t, err)

	text := string(payload)
	assert.Contains(t, text, "retry: 3000\n")
	assert.Contains(t, text, "id: 5\n")
	assert.Contains(t, text, "event: tool_result\n")
	assert.Contains(t, text, `data: {"ok":true}`)
	assert.True(t, strings.HasSuffix(text, "\n\n"), "event ends with a blank line")
}

func TestHandlerStreamsEvents(t *testing.T) {
	m := NewManager(4, nil)
	defer m.Close()
	handler := NewHandler(m, 3000, nil, nil)

	req := httptest.NewRequest("GET", "/events", nil)
	ctx, cancel := context.WithTimeout(req.Context(), 100*time.Millisecond)
	defer cancel()
	req = req.WithContext(ctx)

	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		handler.ServeHTTP(rec, req)
	}()

	// Wait for registration, then push one event.
	require.Eventually(t, func() bool { return m.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
	m.Broadcast(Event{Type: "tool_result", Data: map[string]interface{}{"ok": true}})

	<-done
	body := rec.Body.String()
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Contains(t, body, "event: connected")
	assert.Contains(t, body, "retry: 3000")
	assert.Contains(t, body, "event: tool_result")
}
