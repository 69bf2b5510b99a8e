package allocation

import (
	"time"

	"github.com/celerix-dev/celerix-sensors/pkg/schema"
)

// Allocate computes a full allocation of sensors to participants.
//
// Owners get their reserved sensor; everyone else is zipped positionally with
// the unowned sensors in directory order. Owner allocations come first, then
// non-owner allocations, both in participant order. All records share now as
// created_at. Either everyone is assigned or ErrInsufficientSensors is returned.
//
// Repeated participant ids are collapsed to their first occurrence, so the
// result holds exactly one record per distinct participant rather than one
// per listed entry. Listing a user twice never binds two sensors to them.
func Allocate(participants []string, sensors []schema.Sensor, now time.Time) ([]schema.Allocation, error) {
	reserved, free := partition(allocatable(sensors))
	owners, others := splitOwners(dedupe(participants), reserved)

	if len(others) > len(free) {
		return nil, insufficient("%d participants without a sensor, %d free sensors", len(others), len(free))
	}

	allocations := make([]schema.Allocation, 0, len(owners)+len(others))
	for _, userID := range owners {
		allocations = append(allocations, schema.Allocation{
			UserID:               userID,
			SensorID:             reserved[userID].ID,
			SensorIsUserProperty: true,
			CreatedAt:            now,
		})
	}
	for i, userID := range others {
		allocations = append(allocations, schema.Allocation{
			UserID:               userID,
			SensorID:             free[i].ID,
			SensorIsUserProperty: false,
			CreatedAt:            now,
		})
	}
	return allocations, nil
}

func allocatable(sensors []schema.Sensor) []schema.Sensor {
	out := make([]schema.Sensor, 0, len(sensors))
	for _, s := range sensors {
		if s.IsAllocatable {
			out = append(out, s)
		}
	}
	return out
}

// partition splits sensors into reserved (indexed by owner) and free, keeping
// directory order for the free ones. The first reserved sensor wins when an
// owner appears twice.
func partition(sensors []schema.Sensor) (map[string]schema.Sensor, []schema.Sensor) {
	reserved := make(map[string]schema.Sensor)
	var free []schema.Sensor
	for _, s := range sensors {
		if !s.IsOwned() {
			free = append(free, s)
			continue
		}
		if _, ok := reserved[s.OwnerID]; !ok {
			reserved[s.OwnerID] = s
		}
	}
	return reserved, free
}

func splitOwners(participants []string, reserved map[string]schema.Sensor) (owners, others []string) {
	for _, p := range participants {
		if _, ok := reserved[p]; ok {
			owners = append(owners, p)
		} else {
			others = append(others, p)
		}
	}
	return owners, others
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
