package cache

import (
	"context"
	"fmt"
	"time"
)

// Cache is the shared cache used for short-lived coordination state, most
// importantly booking holds taken while a slot is being committed.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// SetNX stores the value only when the key is free and reports whether
	// it was acquired.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
}

// ErrCacheMiss is returned when a key is not found in cache
var ErrCacheMiss = fmt.Errorf("cache miss")

// HoldKey builds the booking-hold key for a station and slot window
func HoldKey(stationAET, date, startTime string) string {
	return "hold:" + stationAET + ":" + date + ":" + startTime
}
