package schema

import "time"

// Allocation binds one participant to one sensor within a workout.
type Allocation struct {
	UserID               string     `json:"user_id"`
	SensorID             string     `json:"sensor_id"`
	SensorIsUserProperty bool       `json:"sensor_is_user_property"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            *time.Time `json:"updated_at,omitempty"`
}

// Workout is a time-boxed session and its ordered allocations.
type Workout struct {
	ID          string       `json:"id"`
	Allocations []Allocation `json:"allocations"`
}

// WorkoutSummary is the listing view of a workout, without allocations.
type WorkoutSummary struct {
	ID string `json:"id"`
}

// Clone returns a deep copy of the workout.
func (w Workout) Clone() Workout {
	out := Workout{ID: w.ID, Allocations: make([]Allocation, len(w.Allocations))}
	for i, a := range w.Allocations {
		if a.UpdatedAt != nil {
			t := *a.UpdatedAt
			a.UpdatedAt = &t
		}
		out.Allocations[i] = a
	}
	return out
}

// Participants returns the user ids of the workout's allocations, in order.
func (w Workout) Participants() []string {
	ids := make([]string, 0, len(w.Allocations))
	for _, a := range w.Allocations {
		ids = append(ids, a.UserID)
	}
	return ids
}

// UsedSensorIDs returns the set of sensor ids bound in the workout.
func (w Workout) UsedSensorIDs() map[string]struct{} {
	used := make(map[string]struct{}, len(w.Allocations))
	for _, a := range w.Allocations {
		used[a.SensorID] = struct{}{}
	}
	return used
}
