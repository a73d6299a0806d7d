package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// BytesCache is a minimal cache API storing raw bytes with TTL.
type BytesCache interface {
	GetBytes(key string) (b []byte, ok bool, err error)
	SetBytes(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
}

// ForecastKey derives a stable cache key from the parameters that shape a
// forecast. Two requests with the same key would produce the same forecast
// for the same underlying poll data.
func ForecastKey(params any) string {
	b, err := json.Marshal(params)
	if err != nil {
		return "forecast:unkeyed"
	}
	sum := sha256.Sum256(b)
	return "forecast:" + hex.EncodeToString(sum[:16])
}
