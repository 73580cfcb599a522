package repository

import "time"

// CacheRepository is an optional read-through cache for aggregate queries.
type CacheRepository interface {
	GetJSON(key string, dest interface{}) error
	SetJSON(key string, value interface{}, expiration time.Duration) error
	Delete(key string) error
}
