package behavior

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Config is one behavior's live configuration. Ticks read it with Get and
// may change it with Update (patrol advances its waypoint index this way);
// Start with overrides patches it in place.
type Config[C any] struct {
	mu sync.Mutex
	v  C
}

func newConfig[C any](defaults C) (*Config[C], error) {
	v, err := cloneValue(defaults)
	if err != nil {
		return nil, err
	}
	return &Config[C]{v: v}, nil
}

// Get returns a deep copy of the current value.
func (c *Config[C]) Get() C {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, err := cloneValue(c.v)
	if err != nil {
		return c.v
	}
	return v
}

func (c *Config[C]) Update(fn func(*C)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.v)
}

// patch applies each override key on its own. A key that is unknown or has
// the wrong type leaves the value untouched and is reported back.
func (c *Config[C]) patch(overrides map[string]any) (ignored []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		next, err := cloneValue(c.v)
		if err != nil {
			ignored = append(ignored, k)
			continue
		}
		if err := decodeStrict(map[string]any{k: overrides[k]}, &next); err != nil {
			ignored = append(ignored, k)
			continue
		}
		c.v = next
	}
	return ignored
}

func (c *Config[C]) snapshot() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := map[string]any{}
	raw, err := json.Marshal(c.v)
	if err != nil {
		return out
	}
	_ = json.Unmarshal(raw, &out)
	return out
}

func (c *Config[C]) marshal() (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return json.Marshal(c.v)
}

// configValue is the type-erased view the scheduler keeps per run.
type configValue interface {
	patch(overrides map[string]any) []string
	snapshot() map[string]any
	marshal() (json.RawMessage, error)
}

func cloneValue[C any](v C) (C, error) {
	var out C
	raw, err := json.Marshal(v)
	if err != nil {
		return out, fmt.Errorf("clone config: %w", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("clone config: %w", err)
	}
	return out, nil
}

func decodeStrict(in map[string]any, dst any) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
