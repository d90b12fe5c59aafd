package ingest_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/christoofar/FogLAMP/internal/ingest"
	"github.com/christoofar/FogLAMP/internal/models"
)

var _ = Describe("AssetTracker", func() {
	var (
		ctx     context.Context
		mgmt    *stubManagement
		tracker *ingest.AssetTracker
	)

	BeforeEach(func() {
		ctx = context.Background()
		mgmt = newStubManagement()
		tracker = ingest.NewAssetTracker(mgmt, "south-test", "test-plugin")
	})

	Context("Populate", func() {
		// Given management tuples for several plugins and events
		// When the cache is primed
		// Then only this plugin's Ingest tuples are cached
		It("should drop tuples for other plugins or events", func() {
			mgmt.tuples = []models.AssetTrackingTuple{
				models.NewAssetTrackingTuple("south-test", "test-plugin", "A", "Ingest"),
				models.NewAssetTrackingTuple("south-test", "other-plugin", "B", "Ingest"),
				models.NewAssetTrackingTuple("south-test", "test-plugin", "C", "Egress"),
			}

			tracker.Populate(ctx)

			Expect(tracker.Check(mgmt.tuples[0])).To(BeTrue())
			Expect(tracker.Check(mgmt.tuples[1])).To(BeFalse())
			Expect(tracker.Check(mgmt.tuples[2])).To(BeFalse())
		})
	})

	Context("Add", func() {
		tuple := models.NewAssetTrackingTuple("south-test", "test-plugin", "A", "Ingest")

		// Given an empty cache
		// When a tuple is added and then checked
		// Then the check succeeds and the tuple was registered once
		It("should register and cache a new tuple", func() {
			Expect(tracker.Check(tuple)).To(BeFalse())
			Expect(tracker.Add(ctx, tuple)).To(Succeed())
			Expect(tracker.Check(tuple)).To(BeTrue())
			Expect(mgmt.addedTuples()).To(HaveLen(1))
		})

		It("should not register a cached tuple again", func() {
			Expect(tracker.Add(ctx, tuple)).To(Succeed())
			Expect(tracker.Add(ctx, tuple)).To(Succeed())
			Expect(mgmt.addedTuples()).To(HaveLen(1))
		})

		// Given a management plane that refuses registration
		// When the add fails
		// Then the tuple is not cached and a later add retries
		It("should not cache a tuple whose registration failed", func() {
			mgmt.addErr = errors.New("management unavailable")
			Expect(tracker.Add(ctx, tuple)).NotTo(Succeed())
			Expect(tracker.Check(tuple)).To(BeFalse())

			mgmt.addErr = nil
			Expect(tracker.Add(ctx, tuple)).To(Succeed())
			Expect(tracker.Check(tuple)).To(BeTrue())
		})

		It("should return false for a never-added tuple", func() {
			other := models.NewAssetTrackingTuple("south-test", "test-plugin", "Z", "Ingest")
			Expect(tracker.Check(other)).To(BeFalse())
		})
	})
})
