package redisx

const (
	// Shared gremlin request counter. One key per deployment so the Nth-call
	// cadence holds across every process hitting the same redis.
	KeyGremlinCounter = "fault:gremlin:counter"

	// Chaos event tally, kept alongside the in-process snapshot so dashboards
	// can read it without hitting the service.
	KeyChaosEvents = "fault:chaos:events"
)
