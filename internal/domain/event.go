package domain

import "github.com/google/uuid"

// EventType enumerates the domain events published on the event bus.
type EventType string

const (
	EventNewReading        EventType = "NewReading"
	EventAnomalyDetected    EventType = "AnomalyDetected"
	EventAlertTriggered     EventType = "AlertTriggered"
	EventSensorOnline       EventType = "SensorOnline"
	EventSensorOffline      EventType = "SensorOffline"
	EventIncidentCreated    EventType = "IncidentCreated"
	EventSensorStatusChange EventType = "SensorStatusChange"
	EventHealthUpdate       EventType = "HealthUpdate"
)

// DomainEvent is the envelope published on the event bus and persisted to the
// warm tier's audit log. Payload is an opaque structured blob whose shape
// depends on EventType.
type DomainEvent struct {
	EventID     uuid.UUID
	EventType   EventType
	AggregateID string
	Payload     map[string]any
	Timestamp   int64
}

// NewDomainEvent builds a DomainEvent with a freshly generated EventID.
func NewDomainEvent(eventType EventType, aggregateID string, payload map[string]any, timestamp int64) DomainEvent {
	return DomainEvent{
		EventID:     uuid.New(),
		EventType:   eventType,
		AggregateID: aggregateID,
		Payload:     payload,
		Timestamp:   timestamp,
	}
}
