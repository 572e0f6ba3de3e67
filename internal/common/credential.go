package common

import (
	"log/slog"
	"strings"
	"sync"
)

const redacted = "[REDACTED]"

// Credential holds a provider API key in memory for the lifetime of one session or CLI run.
// It has no serialization path: every formatter, JSON encoder, and slog handler sees "[REDACTED]".
type Credential struct {
	mu  sync.RWMutex
	key []byte
}

// NewCredential copies key (trimmed) into a new Credential.
func NewCredential(key string) *Credential {
	k := strings.TrimSpace(key)
	return &Credential{key: []byte(k)}
}

// Empty reports whether no usable key is present. A nil Credential is empty.
func (c *Credential) Empty() bool {
	if c == nil {
		return true
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.key) == 0
}

// Reveal returns the raw key for placing on an outbound request.
func (c *Credential) Reveal() string {
	if c == nil {
		return ""
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return string(c.key)
}

// Release zeroes the key. The Credential is empty afterwards.
func (c *Credential) Release() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.key {
		c.key[i] = 0
	}
	c.key = nil
}

func (c *Credential) String() string   { return redacted }
func (c *Credential) GoString() string { return redacted }

func (c *Credential) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}

func (c *Credential) MarshalText() ([]byte, error) {
	return []byte(redacted), nil
}

func (c *Credential) LogValue() slog.Value {
	return slog.StringValue(redacted)
}
