package allocation

import (
	"slices"
	"time"

	"github.com/celerix-dev/celerix-sensors/pkg/schema"
)

// Reassign picks a replacement sensor for a participant of workout.
//
// Candidates are allocatable sensors not bound anywhere in the workout (the
// participant's current sensor included) that are either unowned or owned by
// the participant. The first candidate in directory order wins.
func Reassign(workout schema.Workout, participantID string, sensors []schema.Sensor) (string, error) {
	if !slices.Contains(workout.Participants(), participantID) {
		return "", ErrUserIsNotParticipant
	}

	used := workout.UsedSensorIDs()
	for _, s := range sensors {
		if !s.IsAllocatable {
			continue
		}
		if _, taken := used[s.ID]; taken {
			continue
		}
		if s.IsOwned() && !s.IsOwnedBy(participantID) {
			continue
		}
		return s.ID, nil
	}
	return "", insufficient("no free sensor left in workout %s", workout.ID)
}

// ApplyReassignment returns a copy of allocations where the participant's
// allocation points at sensorID. Other records are left as they are;
// sensor_is_user_property and created_at are not recomputed.
func ApplyReassignment(allocations []schema.Allocation, participantID, sensorID string, now time.Time) []schema.Allocation {
	out := slices.Clone(allocations)
	for i := range out {
		if out[i].UserID != participantID {
			continue
		}
		out[i].SensorID = sensorID
		updated := now
		out[i].UpdatedAt = &updated
		break
	}
	return out
}
