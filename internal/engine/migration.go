package engine

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/celerix-dev/celerix-sensors/pkg/schema"
)

// Dataset is a full snapshot of sensors and workouts. It is the shape of a
// seed file: {"sensors": [...], "workouts": [...]}.
type Dataset struct {
	Sensors  []schema.Sensor  `json:"sensors"`
	Workouts []schema.Workout `json:"workouts"`
}

// ListSensors implements Source.
func (d *Dataset) ListSensors() ([]schema.Sensor, error) {
	return d.Sensors, nil
}

// ListWorkouts implements Source.
func (d *Dataset) ListWorkouts() ([]schema.Workout, error) {
	return d.Workouts, nil
}

// LoadDataset reads a seed file.
func LoadDataset(path string) (*Dataset, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ds Dataset
	if err := json.Unmarshal(content, &ds); err != nil {
		return nil, fmt.Errorf("parse dataset %s: %w", path, err)
	}
	return &ds, nil
}

// Source is anything that can enumerate sensors and workouts.
type Source interface {
	ListSensors() ([]schema.Sensor, error)
	ListWorkouts() ([]schema.Workout, error)
}

// Sink is anything that accepts whole sensor and workout records.
type Sink interface {
	PutSensor(s schema.Sensor) error
	PutWorkout(w schema.Workout) error
}

// Migrate copies every sensor and workout from src to dst.
// This works for:
// - Seed file -> MemStore (first boot)
// - MemStore -> MemStore (backup)
func Migrate(src Source, dst Sink) error {
	sensors, err := src.ListSensors()
	if err != nil {
		return fmt.Errorf("failed to list sensors: %w", err)
	}
	for _, s := range sensors {
		if err := dst.PutSensor(s); err != nil {
			return fmt.Errorf("failed to put sensor %s: %w", s.ID, err)
		}
	}

	workouts, err := src.ListWorkouts()
	if err != nil {
		return fmt.Errorf("failed to list workouts: %w", err)
	}
	for _, w := range workouts {
		if err := dst.PutWorkout(w); err != nil {
			return fmt.Errorf("failed to put workout %s: %w", w.ID, err)
		}
	}
	return nil
}
