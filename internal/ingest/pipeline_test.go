package ingest_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/christoofar/FogLAMP/internal/ingest"
	"github.com/christoofar/FogLAMP/internal/models"
	srvErrors "github.com/christoofar/FogLAMP/pkg/errors"
)

// scaleFilter multiplies every numeric "value" in place and forwards the
// set downstream.
type scaleFilter struct {
	name   string
	factor float64
	next   ingest.OutputFunc

	mu         sync.Mutex
	reconfigs  []string
	shutdowns  int
	started    string
	savedState string
}

func (f *scaleFilter) Name() string { return f.name }

func (f *scaleFilter) Init(config models.Category, output ingest.OutputFunc) error {
	f.factor = 2
	f.next = output
	return nil
}

func (f *scaleFilter) Ingest(set *models.ReadingSet) {
	for _, r := range set.Readings() {
		if v, ok := r.Reading["value"].(float64); ok {
			r.Reading["value"] = v * f.factor
		}
	}
	f.next(set)
}

func (f *scaleFilter) Reconfigure(newConfig string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reconfigs = append(f.reconfigs, newConfig)
}

func (f *scaleFilter) Shutdown() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shutdowns++
}

func (f *scaleFilter) StartData(stored string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = stored
}

func (f *scaleFilter) SaveData() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return `{"processed":true}`
}

// dropFilter empties every set it sees.
type dropFilter struct {
	name string
	next ingest.OutputFunc
}

func (f *dropFilter) Name() string { return f.name }

func (f *dropFilter) Init(config models.Category, output ingest.OutputFunc) error {
	f.next = output
	return nil
}

func (f *dropFilter) Ingest(set *models.ReadingSet) {
	set.SetReadings(nil)
	f.next(set)
}

func (f *dropFilter) Reconfigure(string) {}
func (f *dropFilter) Shutdown()         {}

// failFilter refuses to initialize.
type failFilter struct {
	name string
}

func (f *failFilter) Name() string { return f.name }

func (f *failFilter) Init(config models.Category, output ingest.OutputFunc) error {
	return errors.New("bad configuration")
}

func (f *failFilter) Ingest(*models.ReadingSet) {}
func (f *failFilter) Reconfigure(string)        {}
func (f *failFilter) Shutdown()                 {}

var (
	filtersOnce sync.Once
	lastScale   *scaleFilter
)

func registerTestFilters() {
	filtersOnce.Do(func() {
		ingest.RegisterFilter("scale", func(name string) ingest.Filter {
			lastScale = &scaleFilter{name: name}
			return lastScale
		})
		ingest.RegisterFilter("drop", func(name string) ingest.Filter {
			return &dropFilter{name: name}
		})
		ingest.RegisterFilter("fail", func(name string) ingest.Filter {
			return &failFilter{name: name}
		})
	})
}

func filterCategory(plugin string) models.Category {
	return models.Category{
		Items: map[string]models.CategoryItem{
			"plugin": {Value: json.RawMessage(`"` + plugin + `"`)},
		},
	}
}

func serviceCategory(pipeline ...string) models.Category {
	doc, _ := json.Marshal(map[string]any{"pipeline": pipeline})
	quoted, _ := json.Marshal(string(doc))
	return models.Category{
		Items: map[string]models.CategoryItem{
			"filter": {Value: json.RawMessage(quoted)},
		},
	}
}

var _ = Describe("Pipeline", func() {
	var (
		ctx     context.Context
		storage *stubStorage
		mgmt    *stubManagement
		engine  *ingest.Ingest
	)

	BeforeEach(func() {
		registerTestFilters()
		ctx = context.Background()
		storage = newStubStorage()
		mgmt = newStubManagement()
	})

	AfterEach(func() {
		if engine != nil && engine.Running() {
			engine.Shutdown(ctx)
		}
	})

	newEngine := func() *ingest.Ingest {
		return ingest.New(storage, mgmt, ingest.Config{
			Timeout:     50 * time.Millisecond,
			Threshold:   2,
			Requeue:     true,
			ServiceName: "south-test",
			PluginName:  "test-plugin",
		})
	}

	// Given a configured scale filter
	// When readings drain through the pipeline
	// Then the stored readings carry the transformed values
	It("should run drained batches through the filters", func() {
		mgmt.categories["south-test"] = serviceCategory("scaleA")
		mgmt.categories["scaleA"] = filterCategory("scale")

		engine = newEngine()
		Expect(engine.LoadFilters(ctx, "south-test")).To(Succeed())
		engine.Start(ctx)

		engine.IngestMany([]*models.Reading{
			makeReading("A", 1),
			makeReading("A", 2),
		})

		Eventually(storage.appended, 2*time.Second).Should(HaveLen(1))
		batch := storage.appended()[0]
		Expect(batch[0].Reading["value"]).To(BeNumerically("==", 2))
		Expect(batch[1].Reading["value"]).To(BeNumerically("==", 4))
	})

	// Given a filter that drops everything
	// When a batch drains
	// Then nothing reaches storage and nothing is discarded
	It("should treat a fully filtered batch as complete", func() {
		mgmt.categories["south-test"] = serviceCategory("dropA")
		mgmt.categories["dropA"] = filterCategory("drop")

		engine = newEngine()
		Expect(engine.LoadFilters(ctx, "south-test")).To(Succeed())
		engine.Start(ctx)

		engine.IngestMany([]*models.Reading{
			makeReading("A", 1),
			makeReading("A", 2),
		})

		Consistently(storage.appended, 300*time.Millisecond).Should(BeEmpty())
		Expect(storage.counterTotal("DISCARDED")).To(BeZero())
	})

	It("should chain filters front to back", func() {
		mgmt.categories["south-test"] = serviceCategory("scaleA", "dropA")
		mgmt.categories["scaleA"] = filterCategory("scale")
		mgmt.categories["dropA"] = filterCategory("drop")

		engine = newEngine()
		Expect(engine.LoadFilters(ctx, "south-test")).To(Succeed())
		engine.Start(ctx)

		engine.IngestMany([]*models.Reading{makeReading("A", 1), makeReading("A", 2)})

		// The drop filter sits after scale, so storage sees nothing.
		Consistently(storage.appended, 300*time.Millisecond).Should(BeEmpty())
	})

	// Given a filter that fails to initialize
	// When the pipeline is built
	// Then the service start is refused with a configuration error
	It("should fail fatally when a filter cannot initialize", func() {
		mgmt.categories["south-test"] = serviceCategory("failA")
		mgmt.categories["failA"] = filterCategory("fail")

		engine = newEngine()
		err := engine.LoadFilters(ctx, "south-test")
		Expect(err).To(HaveOccurred())
		Expect(srvErrors.IsConfigurationError(err)).To(BeTrue())
	})

	It("should reject an unknown filter plugin", func() {
		mgmt.categories["south-test"] = serviceCategory("mystery")
		mgmt.categories["mystery"] = filterCategory("no-such-plugin")

		engine = newEngine()
		err := engine.LoadFilters(ctx, "south-test")
		Expect(err).To(HaveOccurred())
		Expect(srvErrors.IsConfigurationError(err)).To(BeTrue())
	})

	// Given a running pipeline
	// When a configuration change arrives for a filter category
	// Then only the owning filter is reconfigured
	It("should route configuration changes by category name", func() {
		mgmt.categories["south-test"] = serviceCategory("scaleA")
		mgmt.categories["scaleA"] = filterCategory("scale")

		engine = newEngine()
		Expect(engine.LoadFilters(ctx, "south-test")).To(Succeed())
		engine.Start(ctx)

		engine.ConfigChange("scaleA", `{"factor":"3"}`)
		engine.ConfigChange("unrelated", `{}`)

		Eventually(func() []string {
			lastScale.mu.Lock()
			defer lastScale.mu.Unlock()
			return append([]string(nil), lastScale.reconfigs...)
		}).Should(Equal([]string{`{"factor":"3"}`}))
	})

	// Given a persisting filter with previously stored state
	// When the pipeline starts and later shuts down
	// Then the blob is delivered at start and saved at shutdown
	It("should restore and persist filter data", func() {
		mgmt.categories["south-test"] = serviceCategory("scaleA")
		mgmt.categories["scaleA"] = filterCategory("scale")
		storage.pluginData["south-testscaleA"] = `{"seen":41}`

		engine = newEngine()
		Expect(engine.LoadFilters(ctx, "south-test")).To(Succeed())
		engine.Start(ctx)

		lastScale.mu.Lock()
		started := lastScale.started
		lastScale.mu.Unlock()
		Expect(started).To(Equal(`{"seen":41}`))

		engine.Shutdown(ctx)
		Expect(storage.pluginData["south-testscaleA"]).To(Equal(`{"processed":true}`))

		lastScale.mu.Lock()
		defer lastScale.mu.Unlock()
		Expect(lastScale.shutdowns).To(Equal(1))
	})

	It("should register filter categories as service children", func() {
		mgmt.categories["south-test"] = serviceCategory("scaleA")
		mgmt.categories["scaleA"] = filterCategory("scale")

		engine = newEngine()
		Expect(engine.LoadFilters(ctx, "south-test")).To(Succeed())
		Expect(mgmt.children["south-test"]).To(ContainElement("scaleA"))
	})
})
