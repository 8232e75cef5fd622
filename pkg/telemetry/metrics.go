package telemetry

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Labels qualify a counter. Keys are lowercased; values must be short ASCII.
type Labels map[string]string

const (
	MaxLabelPairs  = 8
	MaxLabelKeyLen = 64
	MaxLabelValLen = 128
)

var ErrInvalidMetric = errors.New("telemetry: invalid metric")

// Counters is an in-process counter registry. The zero value is not usable;
// call NewCounters.
type Counters struct {
	mu     sync.Mutex
	values map[string]int64
}

func NewCounters() *Counters {
	return &Counters{values: map[string]int64{}}
}

// Inc adds one to name{labels}. Invalid names or labels are ignored.
func (c *Counters) Inc(name string, labels Labels) {
	c.Add(name, 1, labels)
}

func (c *Counters) Add(name string, delta int64, labels Labels) {
	key, err := MetricKey(name, labels)
	if err != nil {
		return
	}
	c.mu.Lock()
	c.values[key] += delta
	c.mu.Unlock()
}

func (c *Counters) Get(name string, labels Labels) int64 {
	key, err := MetricKey(name, labels)
	if err != nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values[key]
}

// Snapshot copies every counter keyed by its rendered name.
func (c *Counters) Snapshot() map[string]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int64, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

// MetricKey renders name{k="v",...} with keys sorted.
func MetricKey(name string, labels Labels) (string, error) {
	if err := ValidateMetricName(name); err != nil {
		return "", err
	}
	if len(labels) == 0 {
		return name, nil
	}
	if len(labels) > MaxLabelPairs {
		return "", fmt.Errorf("%w: too many labels", ErrInvalidMetric)
	}
	keys := make([]string, 0, len(labels))
	norm := make(map[string]string, len(labels))
	for k, v := range labels {
		k2 := strings.ToLower(strings.TrimSpace(k))
		if k2 == "" || len(k2) > MaxLabelKeyLen || !isValidLabelKey(k2) {
			return "", fmt.Errorf("%w: invalid label key %q", ErrInvalidMetric, k)
		}
		v = strings.TrimSpace(v)
		if len(v) > MaxLabelValLen {
			v = v[:MaxLabelValLen]
		}
		if !isValidLabelValue(v) {
			return "", fmt.Errorf("%w: invalid label value for %q", ErrInvalidMetric, k2)
		}
		keys = append(keys, k2)
		norm[k2] = v
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s=%q", k, norm[k])
	}
	b.WriteByte('}')
	return b.String(), nil
}

// ValidateMetricName enforces [a-z][a-z0-9_:]{0,127}.
func ValidateMetricName(name string) error {
	if name == "" || len(name) > 128 {
		return fmt.Errorf("%w: bad metric name length", ErrInvalidMetric)
	}
	for i, r := range name {
		ok := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == ':'
		if !ok || (i == 0 && (r < 'a' || r > 'z')) {
			return fmt.Errorf("%w: invalid metric name %q", ErrInvalidMetric, name)
		}
	}
	return nil
}

func isValidLabelKey(k string) bool {
	for _, r := range k {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '_' || r == '-' || r == '.' || r == ':':
		default:
			return false
		}
	}
	return true
}

func isValidLabelValue(v string) bool {
	for _, r := range v {
		switch {
		case r >= 'A' && r <= 'Z':
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == ' ' || r == '_' || r == '-' || r == '.' || r == ':' || r == '/':
		default:
			return false
		}
	}
	return true
}
