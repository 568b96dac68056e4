package events

import (
	platformevents "bluereach_backend/platform/events"
	"bluereach_backend/platform/logger"
)

// InMemoryBus is the process-local bus shared by the API, the worker and the
// maintenance commands. Call Wait before exit so run history is persisted.
type InMemoryBus = platformevents.InMemoryBus

func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return platformevents.NewInMemoryBus(log)
}
