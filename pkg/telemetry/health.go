package telemetry

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"time"
)

type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
	StatusFatal    Status = "fatal"
)

const maxCheckMessageLen = 256

// ComponentStatus describes a single subsystem check.
type ComponentStatus struct {
	Name      string            `json:"name"`
	Status    Status            `json:"status"`
	CheckedAt time.Time         `json:"checked_at"`
	Message   string            `json:"message,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

// HealthSnapshot is the health document emitted by a service.
type HealthSnapshot struct {
	Service     string            `json:"service"`
	GeneratedAt time.Time         `json:"generated_at"`
	Overall     Status            `json:"overall"`
	Components  []ComponentStatus `json:"components"`
}

// HealthCheck probes one subsystem. A failing critical check makes the
// service fatal; any other failure degrades it.
type HealthCheck struct {
	Name     string
	Critical bool
	Check    func(ctx context.Context) (details map[string]string, err error)
}

// CheckHealth runs checks in order and returns components sorted by name.
// A zero now uses time.Now().UTC().
func CheckHealth(ctx context.Context, service string, now time.Time, checks []HealthCheck) HealthSnapshot {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	s := HealthSnapshot{Service: service, GeneratedAt: now.UTC(), Overall: StatusOK, Components: []ComponentStatus{}}
	for _, hc := range checks {
		c := ComponentStatus{Name: strings.TrimSpace(hc.Name), Status: StatusOK, CheckedAt: s.GeneratedAt}
		details, err := hc.Check(ctx)
		c.Details = details
		if err != nil {
			c.Status = StatusDegraded
			if hc.Critical {
				c.Status = StatusFatal
			}
			c.Message = sanitize(err.Error(), maxCheckMessageLen)
		}
		if statusRank(c.Status) > statusRank(s.Overall) {
			s.Overall = c.Status
		}
		s.Components = append(s.Components, c)
	}
	sort.SliceStable(s.Components, func(i, j int) bool { return s.Components[i].Name < s.Components[j].Name })
	return s
}

// HTTPStatus is 503 for a fatal snapshot, 200 otherwise.
func (s HealthSnapshot) HTTPStatus() int {
	if s.Overall == StatusFatal {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

func statusRank(s Status) int {
	switch s {
	case StatusOK:
		return 0
	case StatusDegraded:
		return 1
	case StatusFatal:
		return 2
	default:
		return 1
	}
}
