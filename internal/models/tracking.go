package models

import "fmt"

// TrackingEventIngest is the event name recorded for tuples discovered on the
// ingest path.
const TrackingEventIngest = "Ingest"

// AssetTrackingTuple identifies a (service, plugin, asset, event)
// relationship registered with the management plane. Identity is the full
// quadruple, so the zero-cost comparable form doubles as the cache key.
type AssetTrackingTuple struct {
	Service string
	Plugin  string
	Asset   string
	Event   string
}

func NewAssetTrackingTuple(service, plugin, asset, event string) AssetTrackingTuple {
	return AssetTrackingTuple{
		Service: service,
		Plugin:  plugin,
		Asset:   asset,
		Event:   event,
	}
}

func (t AssetTrackingTuple) String() string {
	return fmt.Sprintf("service:%s, plugin:%s, asset:%s, event:%s",
		t.Service, t.Plugin, t.Asset, t.Event)
}
