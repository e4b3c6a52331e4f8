// Package cache adapts the shared short-lived key-value store (redis) used
// by the coordination core: typed put/get with mandatory TTLs, position
// records, and the blocking command-channel subscription.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// ErrTTLRequired is returned by Put when called without a positive TTL.
// Every key this core writes must expire so dead sessions cannot leak
// entries.
var ErrTTLRequired = errors.New("cache writes require a positive ttl")

// Store is the typed put/get surface of the shared cache.
type Store interface {
	// Put writes value under key with the given TTL. TTL must be > 0.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Get reads key. Absence is reported via the bool, not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error
	Close() error
}

// PositionKeyPrefix prefixes the per-connection telemetry keys.
const PositionKeyPrefix = "drone_position:"

// PositionKey returns the cache key holding the latest position of the
// given connection.
func PositionKey(connectionID string) string {
	return PositionKeyPrefix + connectionID
}

// PositionRecord is the latest telemetry snapshot for one connected drone,
// cached under PositionKey(connection id) with a short TTL.
type PositionRecord struct {
	ConnectionID string  `json:"connection_id"`
	DroneID      string  `json:"drone_id,omitempty"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	Altitude     float64 `json:"altitude"`
	Timestamp    float64 `json:"timestamp"`
}

// Encode serialises the record for storage.
func (r PositionRecord) Encode() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, errors.Wrap(err, "encoding position record")
	}
	return data, nil
}

// DecodePositionRecord parses a stored position record.
func DecodePositionRecord(data []byte) (PositionRecord, error) {
	var r PositionRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return PositionRecord{}, errors.Wrap(err, "decoding position record")
	}
	return r, nil
}
