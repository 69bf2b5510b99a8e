package server

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celerix-dev/celerix-sensors/internal/engine"
	"github.com/celerix-dev/celerix-sensors/internal/service"
	"github.com/celerix-dev/celerix-sensors/pkg/schema"
	"github.com/celerix-dev/celerix-sensors/pkg/sdk"
)

func newAllocator() *service.Service {
	store := engine.NewMemStore(&engine.Dataset{
		Sensors: []schema.Sensor{
			{ID: "0809", IsAllocatable: true},
			{ID: "55", OwnerID: "max", IsAllocatable: true},
			{ID: "1234", IsAllocatable: true},
			{ID: "4321", IsAllocatable: true},
		},
		Workouts: []schema.Workout{{ID: "123"}},
	}, nil)
	return service.New(store, store)
}

func startRouter(t *testing.T) (*Router, string) {
	t.Helper()
	router := NewRouter(newAllocator())

	go router.Listen("0")

	var port string
	for i := 0; i < 20; i++ {
		time.Sleep(25 * time.Millisecond)
		if addr := router.Addr(); addr != nil {
			port = fmt.Sprintf("%d", addr.(*net.TCPAddr).Port)
			break
		}
	}
	if port == "" {
		t.Fatalf("Server did not start in time")
	}
	t.Cleanup(func() { router.Stop() })
	return router, port
}

type session struct {
	t      *testing.T
	conn   net.Conn
	reader *bufio.Reader
}

func dial(t *testing.T, port string) *session {
	t.Helper()
	conn, err := net.Dial("tcp", "127.0.0.1:"+port)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &session{t: t, conn: conn, reader: bufio.NewReader(conn)}
}

func (s *session) send(cmd string) string {
	s.t.Helper()
	fmt.Fprintf(s.conn, "%s\n", cmd)
	line, err := s.reader.ReadString('\n')
	require.NoError(s.t, err)
	return strings.TrimSuffix(line, "\n")
}

func TestRouter_TCP_Commands(t *testing.T) {
	_, port := startRouter(t)
	s := dial(t, port)

	assert.Equal(t, "PONG", s.send("PING"))
	assert.Equal(t, `OK [{"id":"123"}]`, s.send("LIST_WORKOUTS"))

	line := s.send("ALLOCATE 123 aaa max bbb")
	require.True(t, strings.HasPrefix(line, "OK "), line)
	var w schema.Workout
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "OK ")), &w))
	assert.Equal(t, []string{"max", "aaa", "bbb"}, w.Participants())

	line = s.send("REASSIGN 123 bbb")
	require.True(t, strings.HasPrefix(line, "OK "), line)
	var res sdk.ReassignResult
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "OK ")), &res))
	assert.Equal(t, "4321", res.SensorID)

	line = s.send("DISABLE 0809")
	assert.True(t, strings.HasPrefix(line, "OK "), line)

	// bbb moved off 1234, so it is free again.
	line = s.send("ADD_PARTICIPANT 123 ccc")
	require.True(t, strings.HasPrefix(line, "OK "), line)
	assert.Contains(t, line, `"user_id":"ccc","sensor_id":"1234"`)

	line = s.send("ADD_PARTICIPANT 123 ddd")
	assert.True(t, strings.HasPrefix(line, "ERR INSUFFICIENT_SENSORS"), line)

	line = s.send("GET_WORKOUT 7777")
	assert.Equal(t, "ERR WORKOUT_NOT_FOUND workout not found", line)

	line = s.send("REASSIGN 123 xxx")
	assert.True(t, strings.HasPrefix(line, "ERR USER_IS_NOT_PARTICIPANT"), line)
}

func TestRouter_ConcurrentConnections(t *testing.T) {
	_, port := startRouter(t)

	conns := make([]net.Conn, 0)
	for i := 0; i < 110; i++ {
		conn, err := net.DialTimeout("tcp", "127.0.0.1:"+port, 100*time.Millisecond)
		if err == nil {
			conns = append(conns, conn)
		}
	}

	for _, c := range conns {
		c.Close()
	}

	s := dial(t, port)
	assert.Equal(t, "PONG", s.send("PING"))
}

func TestRouter_MalformedCommands(t *testing.T) {
	_, port := startRouter(t)
	s := dial(t, port)

	assert.True(t, strings.HasPrefix(s.send("REASSIGN 123"), "ERR BAD_REQUEST"))
	assert.True(t, strings.HasPrefix(s.send("FROBNICATE"), "ERR BAD_REQUEST"))
	assert.True(t, strings.HasPrefix(s.send("DISABLE"), "ERR BAD_REQUEST"))

	fmt.Fprintf(s.conn, "   \n")
	assert.Equal(t, "PONG", s.send("PING"))
}

func TestRouter_RejectsControlCharactersInIDs(t *testing.T) {
	_, port := startRouter(t)
	s := dial(t, port)

	assert.True(t, strings.HasPrefix(s.send("ALLOCATE 123 ann\x00lee"), "ERR BAD_REQUEST"))
	assert.True(t, strings.HasPrefix(s.send("DISABLE 08\x0709"), "ERR BAD_REQUEST"))
	assert.Equal(t, `OK {"id":"123","allocations":[]}`, s.send("GET_WORKOUT 123"))
}

func TestRouter_StopBeforeListen(t *testing.T) {
	router := NewRouter(newAllocator())
	require.NoError(t, router.Stop())

	done := make(chan error, 1)
	go func() { done <- router.Listen("0") }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Listen did not return after Stop")
	}
}
