package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// AttemptStateKey returns the cache key for the last snapshot of a live exam session
func (r *CacheKeyStruct) AttemptStateKey(attemptID string) string {
	return fmt.Sprintf("attempt:%s:state", attemptID)
}

// AttemptStatePattern matches every stored session snapshot (for SCAN)
func (r *CacheKeyStruct) AttemptStatePattern() string {
	return "attempt:*:state"
}

// AdminLoginKey returns the cache key tracking an issued admin token
func (r *CacheKeyStruct) AdminLoginKey(jti string) string {
	return fmt.Sprintf("admin:login:%s", jti)
}

// ExamMonitorChannel returns the Redis PubSub channel carrying live session snapshots
func (r *CacheKeyStruct) ExamMonitorChannel() string {
	return "exam:monitor"
}

var CacheKey = NewCacheKeyStruct()
