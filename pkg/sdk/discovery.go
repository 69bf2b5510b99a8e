package sdk

import (
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/celerix-dev/celerix-sensors/internal/engine"
	"github.com/celerix-dev/celerix-sensors/internal/service"
)

// New initializes an allocator based on the environment.
// It returns the interface, so the app doesn't care if it's local or remote.
func New(dataDir string) (SensorAllocator, error) {
	if remoteAddr := os.Getenv("CELERIX_STORE_ADDR"); remoteAddr != "" {
		client, err := Connect(remoteAddr)
		if err == nil {
			return client, nil
		}
		log.WithError(err).WithField("addr", remoteAddr).Warn("remote daemon unreachable, using embedded mode")
	}

	// Embedded mode: the same engine the daemon uses, inside the app process.
	p, err := engine.NewPersistence(dataDir, nil)
	if err != nil {
		return nil, err
	}

	data, err := p.LoadAll()
	if err != nil {
		return nil, err
	}

	store := engine.NewMemStore(data, p)
	return service.New(store, store), nil
}
