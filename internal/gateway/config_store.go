package gateway

import (
	"context"
	"encoding/json"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"charting-systemv1/internal/model"
)

const indicatorConfigKeyPrefix = "gateway:indicators:"

// ConfigStore persists per-panel indicator configurations so a restarted
// process (or a second client) comes up with the same active set. Redis is
// optional; without it the store is memory only.
type ConfigStore struct {
	hub *Hub
	rdb *goredis.Client
}

// NewConfigStore creates a ConfigStore and wires it into the hub.
func NewConfigStore(hub *Hub, rdb *goredis.Client) *ConfigStore {
	cs := &ConfigStore{hub: hub, rdb: rdb}
	hub.Configs = cs
	return cs
}

// Load restores the persisted config for one panel and applies it to the
// panel's controller. Returns false when nothing was persisted.
func (cs *ConfigStore) Load(ctx context.Context, panel string) bool {
	if cs.rdb == nil {
		return false
	}
	data, err := cs.rdb.Get(ctx, indicatorConfigKeyPrefix+panel).Result()
	if err != nil {
		return false
	}
	var cfgs []model.IndicatorConfig
	if json.Unmarshal([]byte(data), &cfgs) != nil {
		return false
	}
	if ctrl := cs.hub.controlFor(panel); ctrl != nil {
		ctrl.SetIndicators(cfgs)
	}
	log.Printf("[gateway] restored %d indicator configs for panel %s", len(cfgs), panel)
	return true
}

// Set applies a new indicator set to the panel, persists it, and notifies
// connected clients.
func (cs *ConfigStore) Set(panel string, cfgs []model.IndicatorConfig) {
	if ctrl := cs.hub.controlFor(panel); ctrl != nil {
		ctrl.SetIndicators(cfgs)
	}

	// Persist fire-and-forget; the in-memory engine state is authoritative.
	if cs.rdb != nil {
		if data, err := json.Marshal(cfgs); err == nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := cs.rdb.Set(ctx, indicatorConfigKeyPrefix+panel, data, 0).Err(); err != nil {
				log.Printf("[gateway] WARNING: failed to persist indicator configs: %v", err)
			}
		}
	}

	payload, _ := json.Marshal(indicatorsMsg{Type: msgIndicators, Panel: panel, Configs: cfgs})
	cs.hub.broadcast(payload)
}
