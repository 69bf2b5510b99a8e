// Package server exposes the allocator over a line-based TCP protocol.
//
// Each request is one line "COMMAND arg..."; each reply is one line, either
// "OK <json>" or "ERR <CODE> <message>".
package server

import (
	"bufio"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/celerix-dev/celerix-sensors/pkg/sdk"
)

const maxConnections = 100

// Router dispatches TCP commands to a SensorAllocator.
type Router struct {
	store    sdk.SensorAllocator
	cert     *tls.Certificate
	mu       sync.Mutex
	listener net.Listener
	closed   bool
	log      *log.Entry
}

func NewRouter(s sdk.SensorAllocator) *Router {
	return &Router{store: s, log: log.WithField("component", "tcp-router")}
}

// SetCertificate sets the TLS certificate for the router
func (r *Router) SetCertificate(cert tls.Certificate) {
	r.cert = &cert
}

// Addr returns the listening address, or nil before Listen.
func (r *Router) Addr() net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listener == nil {
		return nil
	}
	return r.listener.Addr()
}

// Listen starts the TCP server and blocks until Stop is called.
func (r *Router) Listen(port string) error {
	var listener net.Listener
	var err error

	if r.cert != nil {
		config := &tls.Config{Certificates: []tls.Certificate{*r.cert}}
		listener, err = tls.Listen("tcp", ":"+port, config)
	} else {
		listener, err = net.Listen("tcp", ":"+port)
	}
	if err != nil {
		return err
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		listener.Close()
		return nil
	}
	r.listener = listener
	r.mu.Unlock()
	defer listener.Close()

	semaphore := make(chan struct{}, maxConnections)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if r.isClosed() {
				return nil
			}
			r.log.WithError(err).Warn("accept failed")
			continue
		}

		// Set aggressive timeouts for light traffic to prevent resource exhaustion
		conn.SetDeadline(time.Now().Add(5 * time.Minute))

		go func(c net.Conn) {
			semaphore <- struct{}{}
			defer func() {
				<-semaphore
				c.Close()
			}()
			r.HandleConnection(c)
		}(conn)
	}
}

// Stop closes the listener; Listen returns nil afterwards.
func (r *Router) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	if r.listener == nil {
		return nil
	}
	return r.listener.Close()
}

func (r *Router) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// HandleConnection serves commands on conn until QUIT, EOF or an idle timeout.
func (r *Router) HandleConnection(conn net.Conn) {
	reader := bufio.NewReader(conn)

	for {
		// Set a deadline for the next command
		conn.SetReadDeadline(time.Now().Add(30 * time.Second))

		line, err := reader.ReadString('\n')
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				r.log.WithError(err).Debug("connection closed")
			}
			return
		}

		parts := strings.Fields(line)
		if len(parts) < 1 {
			continue
		}

		command := strings.ToUpper(parts[0])
		args := parts[1:]

		switch command {
		case "PING":
			fmt.Fprintln(conn, "PONG")

		case "QUIT":
			return

		default:
			out, err := r.dispatch(command, args)
			if err != nil {
				fmt.Fprintln(conn, "ERR", sdk.FormatError(err))
				continue
			}
			res, err := json.Marshal(out)
			if err != nil {
				fmt.Fprintln(conn, "ERR", sdk.CodeInternal, "internal error")
				continue
			}
			fmt.Fprintln(conn, "OK", string(res))
		}
	}
}

func usageError(usage string) error {
	return fmt.Errorf("%w: usage: %s", sdk.ErrBadRequest, usage)
}

func (r *Router) dispatch(command string, args []string) (any, error) {
	for _, arg := range args {
		if err := sdk.ValidateID(arg); err != nil {
			return nil, err
		}
	}

	switch command {
	case "LIST_WORKOUTS":
		return r.store.ListWorkouts()

	case "GET_WORKOUT":
		if len(args) < 1 {
			return nil, usageError("GET_WORKOUT <workoutID>")
		}
		return r.store.GetWorkout(args[0])

	case "LIST_SENSORS":
		return r.store.ListSensors()

	case "ALLOCATE":
		if len(args) < 1 {
			return nil, usageError("ALLOCATE <workoutID> [userID...]")
		}
		return r.store.AllocateSensors(args[0], args[1:])

	case "REASSIGN":
		if len(args) < 2 {
			return nil, usageError("REASSIGN <workoutID> <userID>")
		}
		w, sensorID, err := r.store.ReassignSensor(args[0], args[1])
		if err != nil {
			return nil, err
		}
		return sdk.ReassignResult{Workout: w, SensorID: sensorID}, nil

	case "ADD_PARTICIPANT":
		if len(args) < 2 {
			return nil, usageError("ADD_PARTICIPANT <workoutID> <userID>")
		}
		return r.store.AddParticipant(args[0], args[1])

	case "DISABLE":
		if len(args) < 1 {
			return nil, usageError("DISABLE <sensorID>")
		}
		return r.store.DisableSensor(args[0])
	}
	return nil, usageError("unknown command " + command)
}
