package engine

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/celerix-dev/celerix-sensors/pkg/schema"
)

// MemStore is a thread-safe in-memory sensor directory and workout store.
// Every mutation is persisted in the background when a Persistence is attached.
type MemStore struct {
	mu sync.RWMutex
	// sensors keeps directory enumeration order; sensorIdx maps id to position.
	sensors   []schema.Sensor
	sensorIdx map[string]int
	workouts  map[string]schema.Workout
	order     []string
	persister *Persistence
	version   uint64
	wg        sync.WaitGroup
}

// NewMemStore initializes a store.
// It accepts existing data (from LoadAll) and a persister; both may be nil.
func NewMemStore(initial *Dataset, p *Persistence) *MemStore {
	m := &MemStore{
		sensorIdx: make(map[string]int),
		workouts:  make(map[string]schema.Workout),
		persister: p,
	}
	if initial != nil {
		for _, s := range initial.Sensors {
			m.putSensorLocked(s)
		}
		for _, w := range initial.Workouts {
			m.putWorkoutLocked(w)
		}
	}
	return m
}

// Wait waits for all background persistence tasks to complete.
func (m *MemStore) Wait() {
	m.wg.Wait()
}

// Empty reports whether the store holds neither sensors nor workouts.
func (m *MemStore) Empty() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sensors) == 0 && len(m.workouts) == 0
}

// --- Sensor directory ---

func (m *MemStore) ListSensors() ([]schema.Sensor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]schema.Sensor, len(m.sensors))
	copy(out, m.sensors)
	return out, nil
}

func (m *MemStore) ListAllocatableSensors() ([]schema.Sensor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []schema.Sensor
	for _, s := range m.sensors {
		if s.IsAllocatable {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *MemStore) GetSensor(sensorID string) (schema.Sensor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i, ok := m.sensorIdx[sensorID]
	if !ok {
		return schema.Sensor{}, ErrSensorNotFound
	}
	return m.sensors[i], nil
}

func (m *MemStore) DisableSensor(sensorID string) (schema.Sensor, error) {
	m.mu.Lock()
	i, ok := m.sensorIdx[sensorID]
	if !ok {
		m.mu.Unlock()
		return schema.Sensor{}, ErrSensorNotFound
	}
	if !m.sensors[i].IsAllocatable {
		m.mu.Unlock()
		return schema.Sensor{}, ErrSensorAlreadyDisabled
	}
	m.sensors[i].IsAllocatable = false
	sensor := m.sensors[i]
	m.persistSensorsLocked()
	m.mu.Unlock()

	return sensor, nil
}

// PutSensor inserts or replaces a sensor, keeping its position when it already exists.
func (m *MemStore) PutSensor(s schema.Sensor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putSensorLocked(s)
	m.persistSensorsLocked()
	return nil
}

func (m *MemStore) putSensorLocked(s schema.Sensor) {
	if i, ok := m.sensorIdx[s.ID]; ok {
		m.sensors[i] = s
		return
	}
	m.sensorIdx[s.ID] = len(m.sensors)
	m.sensors = append(m.sensors, s)
}

// --- Workout store ---

func (m *MemStore) ListWorkouts() ([]schema.Workout, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]schema.Workout, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.workouts[id].Clone())
	}
	return out, nil
}

func (m *MemStore) GetWorkout(workoutID string) (schema.Workout, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	w, ok := m.workouts[workoutID]
	if !ok {
		return schema.Workout{}, ErrWorkoutNotFound
	}
	return w.Clone(), nil
}

// PutWorkout inserts or replaces a workout.
func (m *MemStore) PutWorkout(w schema.Workout) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putWorkoutLocked(w) {
		m.persistOrderLocked()
	}
	m.persistWorkoutLocked(w.ID)
	return nil
}

// putWorkoutLocked reports whether w is a new workout.
func (m *MemStore) putWorkoutLocked(w schema.Workout) bool {
	_, exists := m.workouts[w.ID]
	if !exists {
		m.order = append(m.order, w.ID)
	}
	w = w.Clone()
	if w.Allocations == nil {
		w.Allocations = []schema.Allocation{}
	}
	m.workouts[w.ID] = w
	return !exists
}

func (m *MemStore) ReplaceAllocations(workoutID string, allocations []schema.Allocation) (schema.Workout, error) {
	return m.mutateWorkout(workoutID, func(w *schema.Workout) error {
		w.Allocations = append([]schema.Allocation{}, allocations...)
		return nil
	})
}

func (m *MemStore) AppendAllocation(workoutID string, allocation schema.Allocation) (schema.Workout, error) {
	return m.mutateWorkout(workoutID, func(w *schema.Workout) error {
		w.Allocations = append(w.Allocations, allocation)
		return nil
	})
}

func (m *MemStore) mutateWorkout(workoutID string, fn func(w *schema.Workout) error) (schema.Workout, error) {
	m.mu.Lock()
	w, ok := m.workouts[workoutID]
	if !ok {
		m.mu.Unlock()
		return schema.Workout{}, ErrWorkoutNotFound
	}
	w = w.Clone()
	if err := fn(&w); err != nil {
		m.mu.Unlock()
		return schema.Workout{}, err
	}
	m.workouts[workoutID] = w
	m.persistWorkoutLocked(workoutID)
	m.mu.Unlock()

	return w.Clone(), nil
}

// --- Background persistence ---
// These helpers MUST be called while holding m.mu.Lock.

func (m *MemStore) persistSensorsLocked() {
	if m.persister == nil {
		return
	}
	m.version++
	snapshot := make([]schema.Sensor, len(m.sensors))
	copy(snapshot, m.sensors)

	m.wg.Add(1)
	go func(version uint64, sensors []schema.Sensor) {
		defer m.wg.Done()
		if err := m.persister.SaveSensors(version, sensors); err != nil {
			log.WithError(err).Error("failed to persist sensors")
		}
	}(m.version, snapshot)
}

func (m *MemStore) persistWorkoutLocked(workoutID string) {
	if m.persister == nil {
		return
	}
	m.version++
	snapshot := m.workouts[workoutID].Clone()

	m.wg.Add(1)
	go func(version uint64, w schema.Workout) {
		defer m.wg.Done()
		if err := m.persister.SaveWorkout(version, w); err != nil {
			log.WithError(err).WithField("workout-id", w.ID).Error("failed to persist workout")
		}
	}(m.version, snapshot)
}

func (m *MemStore) persistOrderLocked() {
	if m.persister == nil {
		return
	}
	m.version++
	ids := append([]string(nil), m.order...)

	m.wg.Add(1)
	go func(version uint64, ids []string) {
		defer m.wg.Done()
		if err := m.persister.SaveWorkoutOrder(version, ids); err != nil {
			log.WithError(err).Error("failed to persist workout order")
		}
	}(m.version, ids)
}
