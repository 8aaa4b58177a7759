package types

import (
	"context"
	"time"
)

// HealthStatus values are ordered; a report carries the worst status of
// its checks.
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusDegraded  HealthStatus = "degraded"
	StatusUnhealthy HealthStatus = "unhealthy"
)

// Worse reports whether s ranks below other.
func (s HealthStatus) Worse(other HealthStatus) bool {
	return s.rank() > other.rank()
}

func (s HealthStatus) rank() int {
	switch s {
	case StatusHealthy:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

type HealthManager interface {
	RegisterChecker(name string, checker HealthChecker)
	Check(ctx context.Context) HealthReport
}

type HealthChecker func(ctx context.Context) HealthCheck

type HealthCheck struct {
	Name    string                 `json:"name"`
	Status  HealthStatus           `json:"status"`
	Message string                 `json:"message,omitempty"`
	Latency time.Duration          `json:"latency_ns"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// HealthReport lists checks sorted by name.
type HealthReport struct {
	Status    HealthStatus  `json:"status"`
	Service   string        `json:"service"`
	Version   string        `json:"version"`
	CheckedAt time.Time     `json:"checked_at"`
	Uptime    string        `json:"uptime"`
	Checks    []HealthCheck `json:"checks"`
}

// Check returns the result of the named check.
func (r HealthReport) Check(name string) (HealthCheck, bool) {
	for _, check := range r.Checks {
		if check.Name == name {
			return check, true
		}
	}
	return HealthCheck{}, false
}

// Count returns how many checks ended with status.
func (r HealthReport) Count(status HealthStatus) int {
	n := 0
	for _, check := range r.Checks {
		if check.Status == status {
			n++
		}
	}
	return n
}
