package allocation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celerix-dev/celerix-sensors/pkg/schema"
)

func TestAdmit_OwnerGetsOwnSensor(t *testing.T) {
	w := allocatedWorkout(t, "aaa")

	a, err := Admit(w, "sam", beatlesSensors(), batchTime)
	require.NoError(t, err)
	assert.Equal(t, schema.Allocation{
		UserID:               "sam",
		SensorID:             "13",
		SensorIsUserProperty: true,
		CreatedAt:            batchTime,
	}, a)
}

func TestAdmit_OwnedSensorWinsEvenWhenDisabled(t *testing.T) {
	sensors := []schema.Sensor{
		{ID: "1", IsAllocatable: true},
		{ID: "broken", OwnerID: "sam", IsAllocatable: false},
	}

	a, err := Admit(schema.Workout{ID: "w"}, "sam", sensors, batchTime)
	require.NoError(t, err)
	assert.Equal(t, "broken", a.SensorID)
	assert.True(t, a.SensorIsUserProperty)
}

func TestAdmit_NonOwnerGetsFirstFreeSensor(t *testing.T) {
	w := allocatedWorkout(t, "aaa", "bbb")

	a, err := Admit(w, "ddd", beatlesSensors(), batchTime)
	require.NoError(t, err)
	assert.Equal(t, "4321", a.SensorID)
	assert.False(t, a.SensorIsUserProperty)
	assert.Equal(t, batchTime, a.CreatedAt)
}

func TestAdmit_InsufficientSensors(t *testing.T) {
	w := allocatedWorkout(t, "aaa", "bbb", "ccc")

	_, err := Admit(w, "ddd", beatlesSensors(), batchTime)
	assert.ErrorIs(t, err, ErrInsufficientSensors)
}

func TestAdmit_NoDuplicateGuard(t *testing.T) {
	w := schema.Workout{ID: "w"}

	first, err := Admit(w, "sam", beatlesSensors(), batchTime)
	require.NoError(t, err)
	w.Allocations = append(w.Allocations, first)

	second, err := Admit(w, "sam", beatlesSensors(), batchTime)
	require.NoError(t, err)
	w.Allocations = append(w.Allocations, second)

	assert.Equal(t, []string{"sam", "sam"}, w.Participants())
}
