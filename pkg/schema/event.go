package schema

import "time"

// EventType names a change observers can subscribe to.
type EventType string

const (
	EventSensorsAllocated EventType = "sensors-allocated"
	EventSensorReassigned EventType = "sensor-reassigned"
	EventParticipantAdded EventType = "participant-added"
	EventSensorDisabled   EventType = "sensor-disabled"
)

// Event is a notification emitted after a committed change.
type Event struct {
	ID          string       `json:"id"`
	Type        EventType    `json:"type"`
	WorkoutID   string       `json:"workout_id,omitempty"`
	Allocations []Allocation `json:"allocations,omitempty"`
	Sensor      *Sensor      `json:"sensor,omitempty"`
	OccurredAt  time.Time    `json:"occurred_at"`
}
