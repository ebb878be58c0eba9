package domain

import "github.com/google/uuid"

// CorrelatedEventType tags the kind of upstream signal feeding the correlation
// engine; it is distinct from EventType, which describes bus events.
type CorrelatedEventType string

const (
	CorrelatedSeismic          CorrelatedEventType = "seismic"
	CorrelatedRadiationAnomaly CorrelatedEventType = "radiation_anomaly"
	CorrelatedFacilityAlert    CorrelatedEventType = "facility_alert"
)

// CorrelatedEvent is a single signal fed into the correlation engine's buffer:
// a seismic reading, a radiation anomaly, or a facility alert.
type CorrelatedEvent struct {
	EventID   uuid.UUID
	Type      CorrelatedEventType
	Magnitude float64
	Latitude  float64
	Longitude float64
	Timestamp int64
	SensorID  uuid.UUID
}

// ClusterType classifies an EventCluster by the combination of event types it
// contains.
type ClusterType string

const (
	ClusterSeismicRadiation    ClusterType = "seismic_radiation"
	ClusterFacilityIncident    ClusterType = "facility_incident"
	ClusterEnvironmentalRelease ClusterType = "environmental_release"
	ClusterUnknown             ClusterType = "unknown"
)

// EventCluster is a set of CorrelatedEvents whose pairwise centroid falls
// within a temporal window and spatial radius of each other.
type EventCluster struct {
	ClusterID           uuid.UUID
	Events               []CorrelatedEvent
	CenterTime           float64
	CenterLatitude       float64
	CenterLongitude      float64
	Type                 ClusterType
	SeverityScore        float64
	Confidence           float64
	ContributingFactors  []string
	RecommendedActions   []string
}
