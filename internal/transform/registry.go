package transform

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
)

// Registry is the run-scoped pseudonym state: one partition per column,
// all sharing a random per-run HMAC key. It is created at the start of an
// anonymization run and discarded with it; raw values never outlive the
// run. Partitions are independent, so concurrent workers only contend when
// pseudonymizing the same column.
type Registry struct {
	key []byte

	mu         sync.Mutex
	partitions map[string]*ColumnRegistry
}

// NewRegistry creates a registry with a fresh random key. Two runs over
// the same data produce different pseudonyms.
func NewRegistry() (*Registry, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate registry key: %w", err)
	}
	return &Registry{
		key:        key,
		partitions: make(map[string]*ColumnRegistry),
	}, nil
}

// Column returns the partition for a column, creating it on first use.
func (r *Registry) Column(name string) *ColumnRegistry {
	r.mu.Lock()
	defer r.mu.Unlock()

	partition, ok := r.partitions[name]
	if !ok {
		partition = &ColumnRegistry{key: r.key, entries: make(map[string]string)}
		r.partitions[name] = partition
	}
	return partition
}

// ColumnRegistry is one column's value -> pseudonym mapping.
type ColumnRegistry struct {
	key []byte

	mu      sync.Mutex
	entries map[string]string
}

// Pseudonym returns the stable code for a value within this run, assigning
// it on first sight. Safe for concurrent use.
func (c *ColumnRegistry) Pseudonym(value, prefix string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if code, ok := c.entries[value]; ok {
		return code
	}

	mac := hmac.New(sha256.New, c.key)
	mac.Write([]byte(value))
	code := prefix + hex.EncodeToString(mac.Sum(nil))[:10]
	c.entries[value] = code
	return code
}

// Len reports how many distinct values the partition has seen.
func (c *ColumnRegistry) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
