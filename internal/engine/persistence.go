package engine

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/celerix-dev/celerix-sensors/internal/vault"
	"github.com/celerix-dev/celerix-sensors/pkg/schema"
)

const (
	sensorsFile      = "sensors.json"
	workoutOrderFile = "workouts.json"
	workoutsDir      = "workouts"
)

// Persistence handles the disk I/O for the MemStore.
//
// Layout: <dir>/sensors.json holds the directory in enumeration order,
// <dir>/workouts.json the workout ids in insertion order and
// <dir>/workouts/<id>.json one workout each. When a key is set, file
// contents are AES-GCM encrypted.
type Persistence struct {
	DataDir string
	key     []byte
	mu      sync.Mutex // Protects concurrent writes to the filesystem
	// written tracks the newest snapshot version saved per file so that a
	// late background write never overwrites a newer one.
	written map[string]uint64
}

// NewPersistence initializes a persistence handler. key may be nil.
func NewPersistence(dir string, key []byte) (*Persistence, error) {
	if err := os.MkdirAll(filepath.Join(dir, workoutsDir), 0755); err != nil {
		return nil, err
	}
	if len(key) != 0 && len(key) != 32 {
		return nil, fmt.Errorf("data key must be 32 bytes, got %d", len(key))
	}
	return &Persistence{DataDir: dir, key: key, written: make(map[string]uint64)}, nil
}

// SaveSensors writes the sensor directory atomically.
func (p *Persistence) SaveSensors(version uint64, sensors []schema.Sensor) error {
	return p.save(filepath.Join(p.DataDir, sensorsFile), version, sensors)
}

// SaveWorkout writes a single workout atomically.
func (p *Persistence) SaveWorkout(version uint64, w schema.Workout) error {
	name := url.PathEscape(w.ID) + ".json"
	return p.save(filepath.Join(p.DataDir, workoutsDir, name), version, w)
}

// SaveWorkoutOrder writes the workout ids in insertion order.
func (p *Persistence) SaveWorkoutOrder(version uint64, ids []string) error {
	return p.save(filepath.Join(p.DataDir, workoutOrderFile), version, ids)
}

func (p *Persistence) save(filePath string, version uint64, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if version < p.written[filePath] {
		return nil
	}

	bytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if len(p.key) > 0 {
		bytes, err = vault.Seal(bytes, p.key)
		if err != nil {
			return fmt.Errorf("encrypt %s: %w", filepath.Base(filePath), err)
		}
	}

	// Write to a temporary file first, then rename so a crash leaves either
	// the old file or the new one.
	tempPath := filePath + ".tmp"
	if err := os.WriteFile(tempPath, bytes, 0644); err != nil {
		return err
	}
	if err := os.Rename(tempPath, filePath); err != nil {
		return err
	}
	p.written[filePath] = version
	return nil
}

// LoadAll returns the dataset found in the data directory.
// Unreadable workout files are skipped with a warning.
func (p *Persistence) LoadAll() (*Dataset, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ds := &Dataset{}

	if err := p.read(filepath.Join(p.DataDir, sensorsFile), &ds.Sensors); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load sensors: %w", err)
	}

	files, err := os.ReadDir(filepath.Join(p.DataDir, workoutsDir))
	if err != nil {
		return nil, err
	}
	for _, file := range files {
		if filepath.Ext(file.Name()) != ".json" {
			continue
		}
		var w schema.Workout
		if err := p.read(filepath.Join(p.DataDir, workoutsDir, file.Name()), &w); err != nil {
			log.WithError(err).Warnf("could not load workout file %s", file.Name())
			continue
		}
		if w.ID == "" {
			w.ID, _ = url.PathUnescape(strings.TrimSuffix(file.Name(), ".json"))
		}
		ds.Workouts = append(ds.Workouts, w)
	}

	var order []string
	if err := p.read(filepath.Join(p.DataDir, workoutOrderFile), &order); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load workout order: %w", err)
	}
	sortWorkouts(ds.Workouts, order)
	return ds, nil
}

// sortWorkouts puts workouts in the recorded order. Workouts missing from
// order keep their file name order after the known ones.
func sortWorkouts(workouts []schema.Workout, order []string) {
	rank := make(map[string]int, len(order))
	for i, id := range order {
		rank[id] = i
	}
	position := func(id string) int {
		if r, ok := rank[id]; ok {
			return r
		}
		return len(order)
	}
	sort.SliceStable(workouts, func(i, j int) bool {
		return position(workouts[i].ID) < position(workouts[j].ID)
	})
}

func (p *Persistence) read(filePath string, target any) error {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	if len(p.key) > 0 {
		content, err = vault.Open(content, p.key)
		if err != nil {
			return err
		}
	}
	return json.Unmarshal(content, target)
}
