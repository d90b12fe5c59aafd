package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Reading is a single time-stamped sensor observation. UserTS carries either
// an ISO-8601 timestamp or a server-side function expression such as "now()";
// the storage layer inlines function expressions and binds everything else.
type Reading struct {
	ID        int64          `json:"id,omitempty"`
	AssetCode string         `json:"asset_code"`
	ReadKey   string         `json:"read_key"`
	Reading   map[string]any `json:"reading"`
	UserTS    string         `json:"user_ts"`
}

// NewReading builds a reading for the given asset with a fresh read key and
// the current time as user timestamp.
func NewReading(assetCode string, values map[string]any) *Reading {
	return &Reading{
		AssetCode: assetCode,
		ReadKey:   uuid.NewString(),
		Reading:   values,
		UserTS:    time.Now().UTC().Format("2006-01-02 15:04:05.000000"),
	}
}

// ReadingPayload is the appendReadings wire format.
type ReadingPayload struct {
	Readings []*Reading `json:"readings"`
}

func (p *ReadingPayload) UnmarshalFrom(data []byte) error {
	return json.Unmarshal(data, p)
}

// ReadingSet is an ordered batch of readings handed between filter stages.
// Whoever holds the set owns the readings; a filter must either forward the
// set downstream or consume it. A filter may drop readings, mutate them in
// place, or replace the whole batch.
type ReadingSet struct {
	readings []*Reading
}

func NewReadingSet(readings []*Reading) *ReadingSet {
	return &ReadingSet{readings: readings}
}

// Readings returns the readings in insertion order.
func (s *ReadingSet) Readings() []*Reading {
	return s.readings
}

// SetReadings replaces the batch with an entirely new one.
func (s *ReadingSet) SetReadings(readings []*Reading) {
	s.readings = readings
}

func (s *ReadingSet) Append(r *Reading) {
	s.readings = append(s.readings, r)
}

func (s *ReadingSet) Len() int {
	return len(s.readings)
}

// Clear empties the set without touching the readings it used to hold.
func (s *ReadingSet) Clear() {
	s.readings = nil
}
