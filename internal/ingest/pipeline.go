package ingest

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/christoofar/FogLAMP/internal/models"
	srvErrors "github.com/christoofar/FogLAMP/pkg/errors"
)

// Pipeline is the ordered chain of filters between the drained queue and the
// storage append. It is built front-to-back: each filter's output is bound
// to the next filter's Ingest, and the last filter's output to the sink the
// engine provides.
type Pipeline struct {
	service string
	mgmt    ManagementClient
	storage StorageClient
	log     *zap.SugaredLogger

	mu         sync.Mutex
	filters    []Filter
	categories map[string]Filter
}

func NewPipeline(service string, mgmt ManagementClient, storage StorageClient) *Pipeline {
	return &Pipeline{
		service:    service,
		mgmt:       mgmt,
		storage:    storage,
		log:        zap.S().Named("pipeline"),
		categories: make(map[string]Filter),
	}
}

// Load reads the service category's filter list and instantiates each filter
// from the registry. A service with no filter item is a valid, empty
// pipeline.
func (p *Pipeline) Load(ctx context.Context, categoryName string) error {
	category, err := p.mgmt.GetCategory(ctx, categoryName)
	if err != nil {
		return srvErrors.NewConfigurationError(categoryName, err)
	}
	names := category.FilterPipeline()
	if len(names) == 0 {
		p.log.Infow("no filters configured", "category", categoryName)
		return nil
	}

	for _, name := range names {
		filterCategory, err := p.mgmt.GetCategory(ctx, name)
		if err != nil {
			return srvErrors.NewConfigurationError(name, err)
		}
		pluginName := filterCategory.ItemString("plugin")
		factory, err := lookupFilter(pluginName)
		if err != nil {
			return srvErrors.NewConfigurationError(name, err)
		}
		p.filters = append(p.filters, factory(name))
	}
	p.log.Infow("filters loaded", "category", categoryName, "count", len(p.filters))
	return nil
}

// Setup initializes the loaded filters and binds the pipeline together,
// terminating in sink. Each filter's category is fetched fresh, registered
// as a child of the service category and tracked for configuration-change
// routing. Filters that persist data receive their stored blob. On an init
// failure the already-initialized prefix is torn down and the error is
// fatal to service start.
func (p *Pipeline) Setup(ctx context.Context, sink OutputFunc) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for idx, filter := range p.filters {
		config, err := p.mgmt.GetCategory(ctx, filter.Name())
		if err != nil {
			p.teardown(idx)
			return srvErrors.NewConfigurationError(filter.Name(), err)
		}
		if err := p.mgmt.AddChildCategories(ctx, p.service, []string{filter.Name()}); err != nil {
			p.log.Warnw("failed to register filter category as child",
				"category", filter.Name(), "error", err)
		}

		output := sink
		if idx+1 < len(p.filters) {
			next := p.filters[idx+1]
			output = next.Ingest
		}
		if err := filter.Init(config, output); err != nil {
			p.teardown(idx)
			return srvErrors.NewConfigurationError(filter.Name(), err)
		}
		p.categories[filter.Name()] = filter

		if persister, ok := filter.(DataPersister); ok {
			stored, err := p.storage.PluginDataLoad(ctx, p.service+filter.Name())
			if err != nil && !srvErrors.IsResourceNotFoundError(err) {
				p.log.Warnw("failed to load persisted filter data",
					"filter", filter.Name(), "error", err)
			}
			persister.StartData(stored)
		}
	}
	return nil
}

func (p *Pipeline) teardown(initialized int) {
	for i := 0; i < initialized; i++ {
		p.filters[i].Shutdown()
	}
	p.filters = nil
	p.categories = make(map[string]Filter)
}

// HasFilters reports whether any filter is configured.
func (p *Pipeline) HasFilters() bool {
	return len(p.filters) > 0
}

// Ingest hands a reading set to the first filter. Ownership of the set
// transfers to the pipeline; it re-emerges through the sink.
func (p *Pipeline) Ingest(set *models.ReadingSet) {
	p.filters[0].Ingest(set)
}

// ConfigChange routes a configuration-change event to the filter owning the
// category. Unknown categories are ignored.
func (p *Pipeline) ConfigChange(category, newConfig string) {
	p.mu.Lock()
	filter, ok := p.categories[category]
	p.mu.Unlock()
	if ok {
		filter.Reconfigure(newConfig)
	}
}

// Shutdown saves persisted filter state and releases every filter.
func (p *Pipeline) Shutdown(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, filter := range p.filters {
		if persister, ok := filter.(DataPersister); ok {
			if err := p.storage.PluginDataSave(ctx, p.service+filter.Name(), persister.SaveData()); err != nil {
				p.log.Errorw("failed to save filter data", "filter", filter.Name(), "error", err)
			}
		}
		filter.Shutdown()
	}
	p.filters = nil
	p.categories = make(map[string]Filter)
}
