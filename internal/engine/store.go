// Package engine holds the sensor directory and the workout store behind the allocation service.
package engine

import (
	"errors"

	"github.com/celerix-dev/celerix-sensors/pkg/schema"
)

var (
	// ErrWorkoutNotFound is returned when a requested workout does not exist.
	ErrWorkoutNotFound = errors.New("workout not found")
	// ErrSensorNotFound is returned when a requested sensor does not exist.
	ErrSensorNotFound = errors.New("sensor not found")
	// ErrSensorAlreadyDisabled is returned when disabling a sensor that is not allocatable.
	ErrSensorAlreadyDisabled = errors.New("the sensor is already disabled")
)

// SensorReader answers which sensors exist, in directory enumeration order.
type SensorReader interface {
	ListSensors() ([]schema.Sensor, error)
	ListAllocatableSensors() ([]schema.Sensor, error)
	GetSensor(sensorID string) (schema.Sensor, error)
}

// SensorWriter is the only mutation the directory supports.
type SensorWriter interface {
	// DisableSensor flips is_allocatable to false. It never reverses.
	DisableSensor(sensorID string) (schema.Sensor, error)
}

// SensorDirectory is the full sensor contract.
type SensorDirectory interface {
	SensorReader
	SensorWriter
}

// WorkoutReader reads workout snapshots.
type WorkoutReader interface {
	ListWorkouts() ([]schema.Workout, error)
	GetWorkout(workoutID string) (schema.Workout, error)
}

// WorkoutWriter commits allocation changes computed by the engine.
type WorkoutWriter interface {
	// ReplaceAllocations overwrites the workout's allocation sequence.
	ReplaceAllocations(workoutID string, allocations []schema.Allocation) (schema.Workout, error)
	// AppendAllocation adds one allocation at the end of the sequence.
	AppendAllocation(workoutID string, allocation schema.Allocation) (schema.Workout, error)
}

// WorkoutStore is the full workout contract.
type WorkoutStore interface {
	WorkoutReader
	WorkoutWriter
}
