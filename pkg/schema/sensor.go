// Package schema defines the records shared by the allocation engine, the stores and the SDK.
package schema

// Sensor is a physical sensor in the directory.
// A non-empty OwnerID means the sensor is permanently reserved for that user.
type Sensor struct {
	ID            string `json:"id"`
	OwnerID       string `json:"owner_id,omitempty"`
	IsAllocatable bool   `json:"is_allocatable"`
}

// IsOwned reports whether the sensor is reserved for a user.
func (s Sensor) IsOwned() bool {
	return s.OwnerID != ""
}

// IsOwnedBy reports whether the sensor is reserved for userID.
func (s Sensor) IsOwnedBy(userID string) bool {
	return s.OwnerID != "" && s.OwnerID == userID
}
