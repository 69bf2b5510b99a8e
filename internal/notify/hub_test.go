package notify

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celerix-dev/celerix-sensors/pkg/schema"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHub_BroadcastsEvents(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	a := dial(t, srv)
	b := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Clients() == 2 }, time.Second, 10*time.Millisecond)

	hub.Publish(schema.Event{
		ID:         "evt-1",
		Type:       schema.EventSensorDisabled,
		Sensor:     &schema.Sensor{ID: "0809"},
		OccurredAt: time.Date(2019, 3, 14, 9, 30, 0, 0, time.UTC),
	})

	for _, conn := range []*websocket.Conn{a, b} {
		_ = conn.SetReadDeadline(time.Now().Add(time.Second))
		var got schema.Event
		require.NoError(t, conn.ReadJSON(&got))
		assert.Equal(t, "evt-1", got.ID)
		assert.Equal(t, schema.EventSensorDisabled, got.Type)
		require.NotNil(t, got.Sensor)
		assert.Equal(t, "0809", got.Sensor.ID)
	}
}

func TestHub_PublishWithoutClients(t *testing.T) {
	hub := NewHub()
	done := make(chan struct{})
	go func() {
		hub.Publish(schema.Event{Type: schema.EventSensorsAllocated, WorkoutID: "123"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked without observers")
	}
}

func TestHub_ForgetsClosedClients(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, time.Second, 10*time.Millisecond)
}

func TestHub_DropsSlowClients(t *testing.T) {
	hub := NewHub()
	hub.queueSize = 1
	srv := httptest.NewServer(hub)
	defer srv.Close()

	_ = dial(t, srv)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	// The client never reads; once its queue and socket buffers fill up it is dropped.
	big := schema.Event{Type: schema.EventSensorsAllocated, WorkoutID: strings.Repeat("x", 64*1024)}
	require.Eventually(t, func() bool {
		hub.Publish(big)
		return hub.Clients() == 0
	}, 5*time.Second, time.Millisecond)
}
