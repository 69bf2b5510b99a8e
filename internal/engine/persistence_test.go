package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celerix-dev/celerix-sensors/pkg/schema"
)

func TestPersistence_SaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	p, err := NewPersistence(dir, nil)
	require.NoError(t, err)

	ds := fixture()
	require.NoError(t, p.SaveSensors(1, ds.Sensors))
	require.NoError(t, p.SaveWorkout(2, ds.Workouts[1]))

	_, err = os.Stat(filepath.Join(dir, "workouts", "48582.json"))
	require.NoError(t, err)

	loaded, err := p.LoadAll()
	require.NoError(t, err)
	assert.Equal(t, ds.Sensors, loaded.Sensors)
	require.Len(t, loaded.Workouts, 1)
	assert.Equal(t, "48582", loaded.Workouts[0].ID)
	assert.True(t, loaded.Workouts[0].Allocations[0].CreatedAt.Equal(now))
}

func TestPersistence_SkipsStaleSnapshots(t *testing.T) {
	p, err := NewPersistence(t.TempDir(), nil)
	require.NoError(t, err)

	newer := schema.Workout{ID: "w", Allocations: []schema.Allocation{{UserID: "new", SensorID: "1", CreatedAt: now}}}
	older := schema.Workout{ID: "w", Allocations: []schema.Allocation{{UserID: "old", SensorID: "1", CreatedAt: now}}}

	require.NoError(t, p.SaveWorkout(5, newer))
	require.NoError(t, p.SaveWorkout(3, older))

	loaded, err := p.LoadAll()
	require.NoError(t, err)
	require.Len(t, loaded.Workouts, 1)
	assert.Equal(t, "new", loaded.Workouts[0].Allocations[0].UserID)
}

func TestPersistence_Encrypted(t *testing.T) {
	dir := t.TempDir()
	key := []byte("thisis32byteslongsecretkey123456")
	p, err := NewPersistence(dir, key)
	require.NoError(t, err)

	require.NoError(t, p.SaveSensors(1, fixture().Sensors))

	raw, err := os.ReadFile(filepath.Join(dir, "sensors.json"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "is_allocatable")

	loaded, err := p.LoadAll()
	require.NoError(t, err)
	assert.Equal(t, fixture().Sensors, loaded.Sensors)

	wrong, err := NewPersistence(dir, []byte("another32byteslongsecretkey65432"))
	require.NoError(t, err)
	_, err = wrong.LoadAll()
	assert.Error(t, err)
}

func TestPersistence_RejectsShortKey(t *testing.T) {
	_, err := NewPersistence(t.TempDir(), []byte("short"))
	assert.Error(t, err)
}

func TestPersistence_EscapesWorkoutIDs(t *testing.T) {
	dir := t.TempDir()
	p, err := NewPersistence(dir, nil)
	require.NoError(t, err)

	require.NoError(t, p.SaveWorkout(1, schema.Workout{ID: "a/b"}))

	loaded, err := p.LoadAll()
	require.NoError(t, err)
	require.Len(t, loaded.Workouts, 1)
	assert.Equal(t, "a/b", loaded.Workouts[0].ID)
}

func TestMemStore_Persistence(t *testing.T) {
	dir := t.TempDir()
	p, err := NewPersistence(dir, nil)
	require.NoError(t, err)

	ms := NewMemStore(nil, p)
	require.NoError(t, Migrate(fixture(), ms))
	_, err = ms.AppendAllocation("123", schema.Allocation{UserID: "aaa", SensorID: "0809", CreatedAt: now})
	require.NoError(t, err)
	_, err = ms.DisableSensor("1234")
	require.NoError(t, err)
	ms.Wait()

	loaded, err := p.LoadAll()
	require.NoError(t, err)
	ms2 := NewMemStore(loaded, p)

	w, err := ms2.GetWorkout("123")
	require.NoError(t, err)
	assert.Equal(t, []string{"aaa"}, w.Participants())

	s, err := ms2.GetSensor("1234")
	require.NoError(t, err)
	assert.False(t, s.IsAllocatable)
}

func TestMemStore_WorkoutOrderSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	p, err := NewPersistence(dir, nil)
	require.NoError(t, err)

	ms := NewMemStore(nil, p)
	for _, id := range []string{"zulu", "alpha", "mike"} {
		require.NoError(t, ms.PutWorkout(schema.Workout{ID: id}))
	}
	ms.Wait()

	loaded, err := p.LoadAll()
	require.NoError(t, err)
	list, err := NewMemStore(loaded, p).ListWorkouts()
	require.NoError(t, err)

	ids := make([]string, 0, len(list))
	for _, w := range list {
		ids = append(ids, w.ID)
	}
	assert.Equal(t, []string{"zulu", "alpha", "mike"}, ids)
}

func TestSortWorkouts_UnknownIDsLast(t *testing.T) {
	workouts := []schema.Workout{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	sortWorkouts(workouts, []string{"c", "a"})
	assert.Equal(t, "c", workouts[0].ID)
	assert.Equal(t, "a", workouts[1].ID)
	assert.Equal(t, "b", workouts[2].ID)
}
