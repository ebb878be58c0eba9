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

const eurdepURL = "https://eurdep.jrc.ec.europa.eu/eurdep/services/getLastMeasurements"

type eurdepMeasurement struct {
	StationID string  `json:"station_id"`
	Timestamp string  `json:"timestamp"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	DoseRate  float64 `json:"dose_rate"`
}

func fetchEURDEP(ctx context.Context, client *http.Client, log zerolog.Logger) ([]domain.NormalizedReading, error) {
	req, err := newRequest(ctx, eurdepURL)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("eurdep: fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, nil
	}

	var measurements []eurdepMeasurement
	if err := json.NewDecoder(resp.Body).Decode(&measurements); err != nil {
		log.Warn().Err(err).Msg("eurdep: response decode failed")
		return nil, nil
	}

	readings := make([]domain.NormalizedReading, 0, len(measurements))
	for _, m := range measurements {
		ts, err := time.Parse(time.RFC3339, m.Timestamp)
		if err != nil {
			continue
		}
		sensorID := domain.SensorID("eurdep", m.StationID)
		reading := domain.NewReading(sensorID, ts.Unix(), m.Latitude, m.Longitude, m.DoseRate, 0, domain.QualityValid, "eurdep")
		if err := reading.Validate(); err != nil {
			log.Debug().Err(err).Msg("eurdep: skipping invalid reading")
			continue
		}
		readings = append(readings, reading)
	}
	return readings, nil
}
