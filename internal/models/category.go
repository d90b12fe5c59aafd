package models

import "encoding/json"

// CategoryItem is one entry of a configuration category as served by the
// management plane.
type CategoryItem struct {
	Description string          `json:"description,omitempty"`
	Type        string          `json:"type,omitempty"`
	Default     string          `json:"default,omitempty"`
	Value       json.RawMessage `json:"value,omitempty"`
}

// Category is a named configuration category. Filters receive their category
// verbatim at init and again on configuration-change events.
type Category struct {
	Key         string                  `json:"key"`
	Description string                  `json:"description,omitempty"`
	Items       map[string]CategoryItem `json:"value,omitempty"`
}

// ItemString returns the string form of an item's value, or the empty string
// when the item is absent.
func (c Category) ItemString(name string) string {
	item, ok := c.Items[name]
	if !ok || len(item.Value) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(item.Value, &s); err != nil {
		// Not a JSON string, hand back the raw text.
		return string(item.Value)
	}
	return s
}

// FilterPipeline decodes the category's "filter" item, which holds the
// ordered list of filter category names as {"pipeline": ["a", "b"]}.
func (c Category) FilterPipeline() []string {
	raw := c.ItemString("filter")
	if raw == "" {
		return nil
	}
	var doc struct {
		Pipeline []string `json:"pipeline"`
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil
	}
	return doc.Pipeline
}
