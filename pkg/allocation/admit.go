package allocation

import (
	"time"

	"github.com/celerix-dev/celerix-sensors/pkg/schema"
)

// Admit finds a sensor for a participant joining an already-allocated workout.
//
// directory is the whole sensor directory, in enumeration order. A sensor owned
// by the participant is preferred whatever its allocatable flag. Otherwise the
// first allocatable sensor that is neither bound in the workout nor owned by
// someone else is used. The returned allocation is meant to be appended; no
// check is made that the participant is already in the workout.
func Admit(workout schema.Workout, participantID string, directory []schema.Sensor, now time.Time) (schema.Allocation, error) {
	sensor, ok := preferredSensor(workout, participantID, directory)
	if !ok {
		return schema.Allocation{}, insufficient("no sensor available for %s", participantID)
	}

	return schema.Allocation{
		UserID:               participantID,
		SensorID:             sensor.ID,
		SensorIsUserProperty: sensor.IsOwnedBy(participantID),
		CreatedAt:            now,
	}, nil
}

func preferredSensor(workout schema.Workout, participantID string, directory []schema.Sensor) (schema.Sensor, bool) {
	for _, s := range directory {
		if s.IsOwnedBy(participantID) {
			return s, true
		}
	}

	used := workout.UsedSensorIDs()
	for _, s := range directory {
		if !s.IsAllocatable || s.IsOwned() {
			continue
		}
		if _, taken := used[s.ID]; taken {
			continue
		}
		return s, true
	}
	return schema.Sensor{}, false
}
