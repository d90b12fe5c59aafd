package store_test

import (
	"context"
	"database/sql"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/christoofar/FogLAMP/internal/models"
	"github.com/christoofar/FogLAMP/internal/store"
	"github.com/christoofar/FogLAMP/internal/store/migrations"
	srvErrors "github.com/christoofar/FogLAMP/pkg/errors"
)

var _ = Describe("ReadingsStore", func() {
	var (
		ctx context.Context
		db  *sql.DB
		s   *store.Store
	)

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		db, err = store.NewDB(":memory:")
		Expect(err).NotTo(HaveOccurred())

		err = migrations.Run(ctx, db)
		Expect(err).NotTo(HaveOccurred())

		s = store.NewStore(db)
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	Context("Append", func() {
		// Given a batch of readings
		// When we append it
		// Then every reading is stored with its JSON payload intact
		It("should append a batch atomically", func() {
			readings := []*models.Reading{
				{AssetCode: "pump1", ReadKey: "k1", Reading: map[string]any{"flow": 1.5}, UserTS: "now()"},
				{AssetCode: "pump1", ReadKey: "k2", Reading: map[string]any{"flow": 1.7}, UserTS: "now()"},
				{AssetCode: "valve", ReadKey: "k3", Reading: map[string]any{"open": true}, UserTS: "2026-01-05 10:00:00"},
			}
			err := s.Readings().Append(ctx, readings)
			Expect(err).NotTo(HaveOccurred())

			var count int
			err = db.QueryRowContext(ctx, "SELECT count(*) FROM readings").Scan(&count)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(3))
		})

		It("should accept an empty batch", func() {
			Expect(s.Readings().Append(ctx, nil)).To(Succeed())
		})

		// Given a reading whose values contain a single quote
		// When we append it
		// Then it is stored verbatim (parameter binding, no injection)
		It("should store quoted characters safely", func() {
			readings := []*models.Reading{
				{AssetCode: "o'brien", ReadKey: "k1", Reading: map[string]any{"v": 1}, UserTS: "now()"},
			}
			Expect(s.Readings().Append(ctx, readings)).To(Succeed())

			var asset string
			err := db.QueryRowContext(ctx, "SELECT asset_code FROM readings").Scan(&asset)
			Expect(err).NotTo(HaveOccurred())
			Expect(asset).To(Equal("o'brien"))
		})

		It("should reject a payload without a readings array", func() {
			_, err := s.Readings().AppendPayload(ctx, []byte(`{"rows":[]}`))
			Expect(err).To(HaveOccurred())
			Expect(srvErrors.IsTranslationError(err)).To(BeTrue())
		})

		It("should append a wire payload", func() {
			appended, err := s.Readings().AppendPayload(ctx, []byte(`{"readings":[
				{"asset_code":"pump1","read_key":"k1","reading":{"flow":2.2},"user_ts":"now()"}]}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(appended).To(Equal(1))
		})
	})

	Context("Fetch", func() {
		BeforeEach(func() {
			for i := 0; i < 5; i++ {
				_, err := db.ExecContext(ctx, `
					INSERT INTO readings (asset_code, read_key, reading, user_ts)
					VALUES (?, ?, ?, now())`,
					"pump1", fmt.Sprintf("key-%d", i), `{"flow":1.0}`)
				Expect(err).NotTo(HaveOccurred())
			}
		})

		// Given five stored readings
		// When we fetch from the start with a block size of three
		// Then we get the first three rows and can resume at max id + 1
		It("should fetch a block from the cursor", func() {
			result, err := s.Readings().Fetch(ctx, 1, 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Count()).To(Equal(3))
			Expect(result.Value(0, "id")).To(Equal(int64(1)))
			Expect(result.Value(2, "id")).To(Equal(int64(3)))

			next, err := s.Readings().Fetch(ctx, 4, 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(next.Count()).To(Equal(2))
		})

		It("should parse the reading JSON column", func() {
			result, err := s.Readings().Fetch(ctx, 1, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Count()).To(Equal(1))
			reading, ok := result.Value(0, "reading").(map[string]any)
			Expect(ok).To(BeTrue())
			Expect(reading["flow"]).To(BeNumerically("==", 1.0))
		})

		It("should return an empty result past the end", func() {
			result, err := s.Readings().Fetch(ctx, 100, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Count()).To(Equal(0))
		})
	})

	Context("Purge", func() {
		insertAged := func(n int, old bool) {
			age := 0
			if old {
				age = 3600
			}
			for i := 0; i < n; i++ {
				_, err := db.ExecContext(ctx, `
					INSERT INTO readings (asset_code, read_key, reading, user_ts)
					VALUES ('pump1', 'k', '{"v":1}', now() - to_seconds(CAST(? AS BIGINT)))`, age)
				Expect(err).NotTo(HaveOccurred())
			}
		}

		// Given 100 rows: ids 1-50 fresh, 51-90 aged, 91-100 fresh,
		// with a sent watermark of 61
		// When we purge with unsent protection (flags != 0)
		// Then only the aged rows below the watermark go away
		It("should honour the sent watermark when flags are set", func() {
			insertAged(50, false) // ids 1-50
			insertAged(40, true)  // ids 51-90, age-matching
			insertAged(10, false) // ids 91-100

			report, err := s.Readings().Purge(ctx, 600, 1, 61)
			Expect(err).NotTo(HaveOccurred())

			Expect(report.Removed).To(Equal(int64(10)))        // ids 51-60
			Expect(report.UnsentPurged).To(Equal(int64(10)))   // same filter, pre-delete
			Expect(report.UnsentRetained).To(Equal(int64(39))) // ids 62-100
			Expect(report.Readings).To(Equal(int64(90)))
		})

		// Given aged and fresh rows
		// When we purge with flags zero
		// Then every aged row is removed regardless of the watermark
		It("should remove all aged rows when flags are zero", func() {
			insertAged(3, false)
			insertAged(7, true)

			report, err := s.Readings().Purge(ctx, 600, 0, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Removed).To(Equal(int64(7)))
			Expect(report.UnsentPurged).To(BeZero())
			Expect(report.Readings).To(Equal(int64(3)))
		})

		It("should report zero removals on an empty table", func() {
			report, err := s.Readings().Purge(ctx, 600, 0, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Removed).To(BeZero())
			Expect(report.Readings).To(BeZero())
		})
	})
})
