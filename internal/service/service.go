// Package service runs the allocation engine against the stores.
//
// Each mutation reads the current snapshots, computes the new state with the
// pure functions of pkg/allocation, commits it, and only then publishes an
// event. Mutations on the same workout are serialized.
package service

import (
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/puzpuzpuz/xsync/v4"
	log "github.com/sirupsen/logrus"

	"github.com/celerix-dev/celerix-sensors/internal/engine"
	"github.com/celerix-dev/celerix-sensors/pkg/allocation"
	"github.com/celerix-dev/celerix-sensors/pkg/schema"
)

// Publisher receives events after a change has been committed.
// Implementations must not block the caller.
type Publisher interface {
	Publish(evt schema.Event)
}

type discard struct{}

func (discard) Publish(schema.Event) {}

// Service coordinates the sensor directory, the workout store and the relay.
type Service struct {
	sensors   engine.SensorDirectory
	workouts  engine.WorkoutStore
	publisher Publisher
	clock     clockwork.Clock
	metrics   *Metrics
	locks     *xsync.Map[string, *sync.Mutex]
	log       *log.Entry
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher sets the event relay. Events are discarded by default.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithClock replaces the wall clock, mostly for tests.
func WithClock(c clockwork.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithMetrics records operation outcomes.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New creates a Service.
func New(sensors engine.SensorDirectory, workouts engine.WorkoutStore, opts ...Option) *Service {
	s := &Service{
		sensors:   sensors,
		workouts:  workouts,
		publisher: discard{},
		clock:     clockwork.NewRealClock(),
		locks:     xsync.NewMap[string, *sync.Mutex](),
		log:       log.WithField("component", "allocation-service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListWorkouts returns all workouts without their allocations.
func (s *Service) ListWorkouts() ([]schema.WorkoutSummary, error) {
	workouts, err := s.workouts.ListWorkouts()
	if err != nil {
		return nil, err
	}
	out := make([]schema.WorkoutSummary, 0, len(workouts))
	for _, w := range workouts {
		out = append(out, schema.WorkoutSummary{ID: w.ID})
	}
	return out, nil
}

// GetWorkout returns a workout with its allocations.
func (s *Service) GetWorkout(workoutID string) (schema.Workout, error) {
	return s.workouts.GetWorkout(workoutID)
}

// ListSensors returns the sensor directory in enumeration order.
func (s *Service) ListSensors() ([]schema.Sensor, error) {
	sensors, err := s.sensors.ListSensors()
	if err != nil {
		return nil, err
	}
	if sensors == nil {
		sensors = []schema.Sensor{}
	}
	return sensors, nil
}

// AllocateSensors replaces the workout's allocations with a full owner-priority allocation.
// On failure the workout is left untouched.
func (s *Service) AllocateSensors(workoutID string, participants []string) (w schema.Workout, err error) {
	defer s.metrics.observe(opAllocate, &err)

	unlock, err := s.lockWorkout(workoutID)
	if err != nil {
		return schema.Workout{}, err
	}
	defer unlock()

	sensors, err := s.sensors.ListAllocatableSensors()
	if err != nil {
		return schema.Workout{}, err
	}

	allocations, err := allocation.Allocate(participants, sensors, s.clock.Now().UTC())
	if err != nil {
		s.log.WithError(err).WithField("workout-id", workoutID).Info("allocation rejected")
		return schema.Workout{}, err
	}

	w, err = s.workouts.ReplaceAllocations(workoutID, allocations)
	if err != nil {
		return schema.Workout{}, err
	}

	s.log.WithFields(log.Fields{
		"workout-id":   workoutID,
		"participants": len(allocations),
	}).Info("sensors allocated")
	s.publish(schema.Event{
		Type:        schema.EventSensorsAllocated,
		WorkoutID:   workoutID,
		Allocations: w.Allocations,
	})
	return w, nil
}

// ReassignSensor gives userID a different sensor within the workout and
// returns the updated workout and the new sensor id.
func (s *Service) ReassignSensor(workoutID, userID string) (w schema.Workout, sensorID string, err error) {
	defer s.metrics.observe(opReassign, &err)

	unlock, err := s.lockWorkout(workoutID)
	if err != nil {
		return schema.Workout{}, "", err
	}
	defer unlock()

	current, err := s.workouts.GetWorkout(workoutID)
	if err != nil {
		return schema.Workout{}, "", err
	}
	sensors, err := s.sensors.ListAllocatableSensors()
	if err != nil {
		return schema.Workout{}, "", err
	}

	sensorID, err = allocation.Reassign(current, userID, sensors)
	if err != nil {
		s.log.WithError(err).WithFields(log.Fields{
			"workout-id": workoutID,
			"user-id":    userID,
		}).Info("reassignment rejected")
		return schema.Workout{}, "", err
	}

	allocations := allocation.ApplyReassignment(current.Allocations, userID, sensorID, s.clock.Now().UTC())
	w, err = s.workouts.ReplaceAllocations(workoutID, allocations)
	if err != nil {
		return schema.Workout{}, "", err
	}

	s.log.WithFields(log.Fields{
		"workout-id": workoutID,
		"user-id":    userID,
		"sensor-id":  sensorID,
	}).Info("sensor reassigned")
	s.publish(schema.Event{
		Type:        schema.EventSensorReassigned,
		WorkoutID:   workoutID,
		Allocations: allocationsOf(w, userID),
	})
	return w, sensorID, nil
}

// AddParticipant appends an allocation for a user joining an allocated workout.
func (s *Service) AddParticipant(workoutID, userID string) (w schema.Workout, err error) {
	defer s.metrics.observe(opAdmit, &err)

	unlock, err := s.lockWorkout(workoutID)
	if err != nil {
		return schema.Workout{}, err
	}
	defer unlock()

	current, err := s.workouts.GetWorkout(workoutID)
	if err != nil {
		return schema.Workout{}, err
	}
	directory, err := s.sensors.ListSensors()
	if err != nil {
		return schema.Workout{}, err
	}

	added, err := allocation.Admit(current, userID, directory, s.clock.Now().UTC())
	if err != nil {
		s.log.WithError(err).WithFields(log.Fields{
			"workout-id": workoutID,
			"user-id":    userID,
		}).Info("admission rejected")
		return schema.Workout{}, err
	}

	w, err = s.workouts.AppendAllocation(workoutID, added)
	if err != nil {
		return schema.Workout{}, err
	}

	s.log.WithFields(log.Fields{
		"workout-id": workoutID,
		"user-id":    userID,
		"sensor-id":  added.SensorID,
	}).Info("participant added")
	s.publish(schema.Event{
		Type:        schema.EventParticipantAdded,
		WorkoutID:   workoutID,
		Allocations: []schema.Allocation{added},
	})
	return w, nil
}

// DisableSensor marks a sensor as no longer allocatable.
func (s *Service) DisableSensor(sensorID string) (sensor schema.Sensor, err error) {
	defer s.metrics.observe(opDisable, &err)

	sensor, err = s.sensors.DisableSensor(sensorID)
	if err != nil {
		return schema.Sensor{}, err
	}

	s.log.WithField("sensor-id", sensorID).Info("sensor disabled")
	disabled := sensor
	s.publish(schema.Event{
		Type:   schema.EventSensorDisabled,
		Sensor: &disabled,
	})
	return sensor, nil
}

// lockWorkout takes the workout's exclusive section. Unknown workouts are
// rejected before a lock is created for them.
func (s *Service) lockWorkout(workoutID string) (func(), error) {
	if _, err := s.workouts.GetWorkout(workoutID); err != nil {
		return nil, err
	}
	mu, _ := s.locks.LoadOrStore(workoutID, &sync.Mutex{})
	mu.Lock()
	return mu.Unlock, nil
}

func (s *Service) publish(evt schema.Event) {
	evt.ID = uuid.NewString()
	evt.OccurredAt = s.clock.Now().UTC()
	s.publisher.Publish(evt)
}

func allocationsOf(w schema.Workout, userID string) []schema.Allocation {
	var out []schema.Allocation
	for _, a := range w.Allocations {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out
}
