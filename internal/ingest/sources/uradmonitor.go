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

const uradmonitorURL = "https://data.uradmonitor.com/api/v1/devices"

type uradmonitorDevice struct {
	ID        string  `json:"id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Radiation float64 `json:"radiation"`
	Timestamp string  `json:"timestamp"`
}

func fetchURADMonitor(ctx context.Context, client *http.Client, log zerolog.Logger) ([]domain.NormalizedReading, error) {
	req, err := newRequest(ctx, uradmonitorURL)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("uradmonitor: fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, nil
	}

	var devices []uradmonitorDevice
	if err := json.NewDecoder(resp.Body).Decode(&devices); err != nil {
		log.Warn().Err(err).Msg("uradmonitor: response decode failed")
		return nil, nil
	}

	readings := make([]domain.NormalizedReading, 0, len(devices))
	for _, d := range devices {
		ts, err := time.Parse(time.RFC3339, d.Timestamp)
		if err != nil {
			continue
		}
		sensorID := domain.SensorID("uradmonitor", d.ID)
		reading := domain.NewReading(sensorID, ts.Unix(), d.Latitude, d.Longitude, d.Radiation, 0, domain.QualityValid, "uradmonitor")
		if err := reading.Validate(); err != nil {
			log.Debug().Err(err).Msg("uradmonitor: skipping invalid reading")
			continue
		}
		readings = append(readings, reading)
	}
	return readings, nil
}
