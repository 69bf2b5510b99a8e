package sdk

import (
	"github.com/celerix-dev/celerix-sensors/internal/engine"
	"github.com/celerix-dev/celerix-sensors/pkg/allocation"
	"github.com/celerix-dev/celerix-sensors/pkg/schema"
)

var (
	// ErrWorkoutNotFound is returned when a requested workout does not exist.
	ErrWorkoutNotFound = engine.ErrWorkoutNotFound
	// ErrSensorNotFound is returned when a requested sensor does not exist.
	ErrSensorNotFound = engine.ErrSensorNotFound
	// ErrSensorAlreadyDisabled is returned when disabling a disabled sensor.
	ErrSensorAlreadyDisabled = engine.ErrSensorAlreadyDisabled
	// ErrInsufficientSensors is returned when not enough eligible sensors remain.
	ErrInsufficientSensors = allocation.ErrInsufficientSensors
	// ErrUserIsNotParticipant is returned when reassigning a user absent from the workout.
	ErrUserIsNotParticipant = allocation.ErrUserIsNotParticipant
)

// --- Functional Interfaces (Interface Segregation) ---

// WorkoutBrowser reads workouts.
type WorkoutBrowser interface {
	ListWorkouts() ([]schema.WorkoutSummary, error)
	GetWorkout(workoutID string) (schema.Workout, error)
}

// SensorBrowser reads the sensor directory.
type SensorBrowser interface {
	ListSensors() ([]schema.Sensor, error)
}

// Allocator mutates the allocations of a workout.
type Allocator interface {
	// AllocateSensors replaces the workout's allocations, owners first.
	AllocateSensors(workoutID string, participants []string) (schema.Workout, error)
	// ReassignSensor moves one participant to another sensor and returns it.
	ReassignSensor(workoutID, userID string) (schema.Workout, string, error)
	// AddParticipant appends an allocation for a newcomer.
	AddParticipant(workoutID, userID string) (schema.Workout, error)
}

// SensorAdmin takes broken sensors out of the pool.
type SensorAdmin interface {
	DisableSensor(sensorID string) (schema.Sensor, error)
}

// --- Composite Interfaces ---

// SensorAllocator is the full contract. The embedded service and the remote
// Client both implement it.
type SensorAllocator interface {
	WorkoutBrowser
	SensorBrowser
	Allocator
	SensorAdmin
}
