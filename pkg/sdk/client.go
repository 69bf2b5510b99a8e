// Package sdk provides the client-side library for the Celerix sensor allocator.
// It supports both remote connections via TCP/TLS and local embedded mode.
package sdk

import (
	"bufio"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/celerix-dev/celerix-sensors/pkg/schema"
)

// Client is a remote client for the allocation daemon.
// It implements the SensorAllocator interface.
type Client struct {
	addr   string
	useTLS bool
	conn   net.Conn
	reader *bufio.Reader
	mu     sync.Mutex // Protects concurrent access to the connection
}

// Connect establishes a TLS-encrypted connection to a remote daemon.
// If CELERIX_DISABLE_TLS is set to "true", it falls back to plain TCP.
func Connect(addr string) (*Client, error) {
	return ConnectWithTLS(addr, os.Getenv("CELERIX_DISABLE_TLS") != "true")
}

// ConnectWithTLS is Connect with an explicit transport choice.
func ConnectWithTLS(addr string, useTLS bool) (*Client, error) {
	c := &Client{addr: addr, useTLS: useTLS}
	if err := c.reconnect(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) reconnect() error {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	var conn net.Conn
	var err error

	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 60 * time.Second,
	}

	if c.useTLS {
		config := &tls.Config{
			InsecureSkipVerify: true, // The daemon uses a self-signed certificate
		}
		conn, err = tls.DialWithDialer(dialer, "tcp", c.addr, config)
	} else {
		conn, err = dialer.Dial("tcp", c.addr)
	}

	if err != nil {
		return err
	}

	c.conn = conn
	c.reader = bufio.NewReader(conn)
	return nil
}

// sendAndReceive sends one command line and returns the payload after "OK".
//
// A failed write is retried on a fresh connection. A failed read is only
// retried for commands that are safe to run twice; otherwise the daemon may
// already have applied the change and the error is returned as is.
func (c *Client) sendAndReceive(cmd string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	var resp string

	// Try up to 3 times with backoff
	for i := 0; i < 3; i++ {
		if c.conn == nil {
			if reconnectErr := c.reconnect(); reconnectErr != nil {
				err = fmt.Errorf("reconnect failed: %w", reconnectErr)
				time.Sleep(time.Duration(i*100) * time.Millisecond)
				continue
			}
		}

		c.conn.SetDeadline(time.Now().Add(30 * time.Second))

		if _, err = fmt.Fprint(c.conn, cmd+"\n"); err == nil {
			resp, err = c.reader.ReadString('\n')
			if err == nil {
				resp = strings.TrimSpace(resp)
				if rest, ok := strings.CutPrefix(resp, "ERR"); ok {
					return "", ParseError(rest)
				}
				return strings.TrimSpace(strings.TrimPrefix(resp, "OK")), nil
			}

			if !retryable(cmd) {
				// Drop the stream so a late reply is never read by the next call.
				c.conn.Close()
				c.conn = nil
				return "", fmt.Errorf("no reply to %s: %w", verb(cmd), err)
			}
		}

		log.WithError(err).WithField("attempt", i+1).Warn("celerix sdk: request failed, reconnecting")

		if closeErr := c.reconnect(); closeErr != nil {
			log.WithError(closeErr).Warn("celerix sdk: reconnect attempt failed")
		}

		time.Sleep(time.Duration((i+1)*200) * time.Millisecond)
	}

	return "", fmt.Errorf("failed after 3 attempts. last error: %v", err)
}

// retryable reports whether cmd can be sent again after its reply was lost.
// ALLOCATE replaces the whole sequence, so repeating it is harmless.
func retryable(cmd string) bool {
	switch verb(cmd) {
	case "PING", "LIST_WORKOUTS", "GET_WORKOUT", "LIST_SENSORS", "ALLOCATE":
		return true
	}
	return false
}

func verb(cmd string) string {
	v, _, _ := strings.Cut(cmd, " ")
	return v
}

// command renders a protocol line, rejecting ids that would not survive
// the whitespace split on the daemon side.
func command(name string, ids ...string) (string, error) {
	for _, id := range ids {
		if err := ValidateID(id); err != nil {
			return "", err
		}
	}
	return strings.Join(append([]string{name}, ids...), " "), nil
}

func (c *Client) call(cmd string, out any) error {
	resp, err := c.sendAndReceive(cmd)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal([]byte(resp), out)
}

// Ping checks that the daemon answers.
func (c *Client) Ping() error {
	resp, err := c.sendAndReceive("PING")
	if err != nil {
		return err
	}
	if resp != "PONG" {
		return fmt.Errorf("unexpected ping reply %q", resp)
	}
	return nil
}

func (c *Client) ListWorkouts() ([]schema.WorkoutSummary, error) {
	var list []schema.WorkoutSummary
	err := c.call("LIST_WORKOUTS", &list)
	return list, err
}

func (c *Client) GetWorkout(workoutID string) (schema.Workout, error) {
	var w schema.Workout
	cmd, err := command("GET_WORKOUT", workoutID)
	if err != nil {
		return w, err
	}
	err = c.call(cmd, &w)
	return w, err
}

func (c *Client) ListSensors() ([]schema.Sensor, error) {
	var list []schema.Sensor
	err := c.call("LIST_SENSORS", &list)
	return list, err
}

func (c *Client) AllocateSensors(workoutID string, participants []string) (schema.Workout, error) {
	var w schema.Workout
	cmd, err := command("ALLOCATE", append([]string{workoutID}, participants...)...)
	if err != nil {
		return w, err
	}
	err = c.call(cmd, &w)
	return w, err
}

func (c *Client) ReassignSensor(workoutID, userID string) (schema.Workout, string, error) {
	var out ReassignResult
	cmd, err := command("REASSIGN", workoutID, userID)
	if err != nil {
		return out.Workout, "", err
	}
	err = c.call(cmd, &out)
	return out.Workout, out.SensorID, err
}

func (c *Client) AddParticipant(workoutID, userID string) (schema.Workout, error) {
	var w schema.Workout
	cmd, err := command("ADD_PARTICIPANT", workoutID, userID)
	if err != nil {
		return w, err
	}
	err = c.call(cmd, &w)
	return w, err
}

func (c *Client) DisableSensor(sensorID string) (schema.Sensor, error) {
	var s schema.Sensor
	cmd, err := command("DISABLE", sensorID)
	if err != nil {
		return s, err
	}
	err = c.call(cmd, &s)
	return s, err
}

// Close says goodbye and closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	fmt.Fprintln(c.conn, "QUIT")
	return c.conn.Close()
}

// ReassignResult is the payload of a REASSIGN reply.
type ReassignResult struct {
	Workout  schema.Workout `json:"workout"`
	SensorID string         `json:"sensor_id"`
}
