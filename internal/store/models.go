package store

import (
	"encoding/json"
	"time"
)

// EntityState is the last value of one entity.
type EntityState struct {
	Address string          `json:"address"`
	Key     string          `json:"key"`
	Role    string          `json:"role"`
	Kind    string          `json:"kind"`
	Value   json.RawMessage `json:"value"`
	Updated time.Time       `json:"updated"`
}

func (s *EntityState) storageKey() []byte {
	return []byte(s.Address + "/" + s.Key)
}

// DiscoveredDevice is an address seen on the bus that is not configured.
type DiscoveredDevice struct {
	Address   string    `json:"address"`
	Kind      string    `json:"kind"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}
