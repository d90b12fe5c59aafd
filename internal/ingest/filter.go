package ingest

import (
	"fmt"
	"sync"

	"github.com/christoofar/FogLAMP/internal/models"
)

// OutputFunc forwards a reading set to the next pipeline stage. The callee
// takes ownership of the set: it must either forward it downstream or
// consume it.
type OutputFunc func(*models.ReadingSet)

// Filter is one transformation stage of the ingest pipeline. Init binds the
// filter's output; Ingest receives ownership of each batch; Reconfigure is
// called with the raw category contents when the filter's configuration
// category changes.
type Filter interface {
	Name() string
	Init(config models.Category, output OutputFunc) error
	Ingest(set *models.ReadingSet)
	Reconfigure(newConfig string)
	Shutdown()
}

// DataPersister is implemented by filters that carry opaque state across
// service restarts. StartData delivers the last-saved blob before the first
// batch; SaveData is collected at shutdown and written through the storage
// layer's plugin-data channel.
type DataPersister interface {
	StartData(stored string)
	SaveData() string
}

// FilterFactory builds a filter instance for the named configuration
// category.
type FilterFactory func(categoryName string) Filter

var (
	registryMu sync.RWMutex
	registry   = map[string]FilterFactory{}
)

// RegisterFilter makes a filter plugin available under its plugin name.
// Filter categories select their plugin through the "plugin" item.
func RegisterFilter(pluginName string, factory FilterFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[pluginName] = factory
}

func lookupFilter(pluginName string) (FilterFactory, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	factory, ok := registry[pluginName]
	if !ok {
		return nil, fmt.Errorf("unknown filter plugin %q", pluginName)
	}
	return factory, nil
}
