package ports

import "neurodyn/domain/run"

// EventPublisher receives cohort progress events. Publish must not block.
type EventPublisher interface {
	Publish(event run.CohortEvent)
}
