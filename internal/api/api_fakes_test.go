package api

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/tworjaga/cherenkov-engine/internal/domain"
	"github.com/tworjaga/cherenkov-engine/internal/storage"
)

// fakeStorage is a minimal query.Storage implementation for api-package
// handler tests, mirroring internal/query's own test fake.
type fakeStorage struct {
	mu        sync.Mutex
	latest    map[uuid.UUID]domain.NormalizedReading
	latestErr error
	hot       []domain.NormalizedReading
	warm      []domain.NormalizedReading
	anomalies []domain.Anomaly
	sensors   []uuid.UUID
	health    storage.TierHealth
	events    []domain.DomainEvent
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{latest: make(map[uuid.UUID]domain.NormalizedReading)}
}

func (f *fakeStorage) WriteReading(_ context.Context, r domain.NormalizedReading) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latest[r.SensorID] = r
	return nil
}

func (f *fakeStorage) SensorLatest(_ context.Context, sensorID uuid.UUID) (domain.NormalizedReading, bool, error) {
	if f.latestErr != nil {
		return domain.NormalizedReading{}, false, f.latestErr
	}
	r, ok := f.latest[sensorID]
	return r, ok, nil
}

func (f *fakeStorage) HotRange(_ context.Context, start, end int64) ([]domain.NormalizedReading, error) {
	var out []domain.NormalizedReading
	for _, r := range f.hot {
		if r.Timestamp >= start && r.Timestamp <= end {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStorage) WarmRange(_ context.Context, start, end int64) ([]domain.NormalizedReading, error) {
	var out []domain.NormalizedReading
	for _, r := range f.warm {
		if r.Timestamp >= start && r.Timestamp <= end {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStorage) ColdRange(_ context.Context, _, _ int64) ([]domain.NormalizedReading, error) {
	return nil, storage.ErrNotYetImplemented
}

func (f *fakeStorage) HotByCellPrefix(_ context.Context, _ string, _, _ int64) ([]domain.NormalizedReading, error) {
	return nil, nil
}

func (f *fakeStorage) WarmByBoundingBox(_ context.Context, _, _, _, _ float64, _, _ int64) ([]domain.NormalizedReading, error) {
	return f.warm, nil
}

func (f *fakeStorage) StoreEvent(_ context.Context, e domain.DomainEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return nil
}

func (f *fakeStorage) InsertAnomaly(_ context.Context, a domain.Anomaly) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.anomalies = append(f.anomalies, a)
	return nil
}

func (f *fakeStorage) GetAnomalies(_ context.Context, since int64, limit int) ([]domain.Anomaly, error) {
	var out []domain.Anomaly
	for _, a := range f.anomalies {
		if a.DetectedAt >= since {
			out = append(out, a)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStorage) ListSensors(_ context.Context) ([]uuid.UUID, error) {
	return f.sensors, nil
}

func (f *fakeStorage) HealthCheck(_ context.Context) storage.TierHealth {
	return f.health
}
