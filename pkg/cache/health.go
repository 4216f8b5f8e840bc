package cache

// HealthStatus is the overall cache health.
type HealthStatus string

const (
	// StatusHealthy means both tiers are usable.
	StatusHealthy HealthStatus = "healthy"

	// StatusDegraded means exactly one tier is usable.
	StatusDegraded HealthStatus = "degraded"

	// StatusUnhealthy means neither tier is usable.
	StatusUnhealthy HealthStatus = "unhealthy"
)

// Health is the result of a health check.
type Health struct {
	Status            HealthStatus `json:"status"`
	RemoteAvailable   bool         `json:"remote_available"`
	LocalWithinBounds bool         `json:"local_within_bounds"`
}

func healthFrom(remoteOK, localOK bool) Health {
	h := Health{RemoteAvailable: remoteOK, LocalWithinBounds: localOK}
	switch {
	case remoteOK && localOK:
		h.Status = StatusHealthy
	case !remoteOK && !localOK:
		h.Status = StatusUnhealthy
	default:
		h.Status = StatusDegraded
	}
	return h
}
