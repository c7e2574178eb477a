package gateway

import "encoding/json"

// WeaponCache keeps the latest weapon list each faction published.
// Lists are opaque JSON arrays replayed verbatim. Guarded by the Hub.
type WeaponCache struct {
	snapshots map[int64]json.RawMessage
}

// NewWeaponCache creates an empty cache
func NewWeaponCache() *WeaponCache {
	return &WeaponCache{snapshots: make(map[int64]json.RawMessage)}
}

// Replace stores a copy of data as the faction's snapshot
func (c *WeaponCache) Replace(factionID int64, data json.RawMessage) {
	c.snapshots[factionID] = append(json.RawMessage(nil), data...)
}

// Get returns the faction's snapshot if one was ever published
func (c *WeaponCache) Get(factionID int64) (json.RawMessage, bool) {
	data, ok := c.snapshots[factionID]
	return data, ok
}
