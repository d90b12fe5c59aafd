package models_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/christoofar/FogLAMP/internal/models"
)

var _ = Describe("ResultSet", func() {
	It("should marshal with columns in declared order", func() {
		rs := &models.ResultSet{
			Columns: []string{"z", "a", "m"},
			Rows: []models.Row{
				{Values: []any{1, "two", 3.5}},
			},
		}

		doc, err := json.Marshal(rs)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(doc)).To(Equal(`{"count":1,"rows":[{"z":1,"a":"two","m":3.5}]}`))
	})

	It("should skip omitted cells instead of emitting null", func() {
		rs := &models.ResultSet{
			Columns: []string{"good", "bad"},
			Rows: []models.Row{
				{Values: []any{1, models.OmittedValue}},
			},
		}

		doc, err := json.Marshal(rs)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(doc)).To(Equal(`{"count":1,"rows":[{"good":1}]}`))
	})

	// The canonical document must survive a marshal/unmarshal round trip
	// modulo the documented type mapping.
	It("should round-trip values through the canonical document", func() {
		rs := &models.ResultSet{
			Columns: []string{"id", "asset_code", "reading"},
			Rows: []models.Row{
				{Values: []any{int64(7), "pump1", map[string]any{"flow": 2.5}}},
				{Values: []any{int64(8), "valve", map[string]any{"open": true}}},
			},
		}

		doc, err := json.Marshal(rs)
		Expect(err).NotTo(HaveOccurred())

		var parsed models.ResultSet
		Expect(json.Unmarshal(doc, &parsed)).To(Succeed())
		Expect(parsed.Count()).To(Equal(2))
		Expect(parsed.Value(0, "asset_code")).To(Equal("pump1"))
		Expect(parsed.Value(1, "id")).To(BeNumerically("==", 8))
		reading, ok := parsed.Value(0, "reading").(map[string]any)
		Expect(ok).To(BeTrue())
		Expect(reading["flow"]).To(BeNumerically("==", 2.5))
	})

	It("should report a zero count for an empty result", func() {
		rs := &models.ResultSet{Columns: []string{"id"}}
		doc, err := json.Marshal(rs)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(doc)).To(Equal(`{"count":0,"rows":[]}`))
	})
})

var _ = Describe("Reading", func() {
	It("should fill a fresh read key and timestamp", func() {
		r := models.NewReading("pump1", map[string]any{"flow": 1.0})
		Expect(r.AssetCode).To(Equal("pump1"))
		Expect(r.ReadKey).NotTo(BeEmpty())
		Expect(r.UserTS).NotTo(BeEmpty())
	})

	It("should marshal with the wire field names", func() {
		r := &models.Reading{
			AssetCode: "pump1",
			ReadKey:   "k1",
			Reading:   map[string]any{"flow": 1.0},
			UserTS:    "now()",
		}
		doc, err := json.Marshal(r)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(doc)).To(MatchJSON(`{
			"asset_code": "pump1",
			"read_key": "k1",
			"reading": {"flow": 1.0},
			"user_ts": "now()"
		}`))
	})
})

var _ = Describe("Category", func() {
	It("should decode the filter pipeline item", func() {
		c := models.Category{
			Items: map[string]models.CategoryItem{
				"filter": {Value: json.RawMessage(`"{\"pipeline\":[\"scaleA\",\"dropB\"]}"`)},
			},
		}
		Expect(c.FilterPipeline()).To(Equal([]string{"scaleA", "dropB"}))
	})

	It("should return nil for a missing filter item", func() {
		Expect(models.Category{}.FilterPipeline()).To(BeNil())
	})
})
