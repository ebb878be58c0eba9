package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/tworjaga/cherenkov-engine/internal/domain"
)

const safecastURL = "https://api.safecast.org/measurements.json?limit=100"

type safecastMeasurement struct {
	ID          uint64  `json:"id"`
	CapturedAt  string  `json:"captured_at"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Value       float64 `json:"value"`
	Unit        string  `json:"unit"`
	DeviceID    string  `json:"device_id"`
}

func fetchSafecast(ctx context.Context, client *http.Client, log zerolog.Logger) ([]domain.NormalizedReading, error) {
	req, err := newRequest(ctx, safecastURL)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("safecast: fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, nil
	}

	var measurements []safecastMeasurement
	if err := json.NewDecoder(resp.Body).Decode(&measurements); err != nil {
		log.Warn().Err(err).Msg("safecast: response decode failed")
		return nil, nil
	}

	readings := make([]domain.NormalizedReading, 0, len(measurements))
	for _, m := range measurements {
		capturedAt, err := time.Parse(time.RFC3339, m.CapturedAt)
		if err != nil {
			log.Debug().Str("captured_at", m.CapturedAt).Msg("safecast: skipping record with unparseable timestamp")
			continue
		}

		doseRate := m.Value
		if m.Unit == "cpm" {
			doseRate = m.Value * domain.CPMToMicrosieverts
		}

		sensorID := domain.SensorID("safecast", m.DeviceID)
		reading := domain.NewReading(sensorID, capturedAt.Unix(), m.Latitude, m.Longitude, doseRate, 0, domain.QualityValid, "safecast")
		if err := reading.Validate(); err != nil {
			log.Debug().Err(err).Msg("safecast: skipping invalid reading")
			continue
		}
		readings = append(readings, reading)
	}
	return readings, nil
}
