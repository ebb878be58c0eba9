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

const iaeaPRISURL = "https://pris.iaea.org/PRIS/home.aspx"

type reactorStatus struct {
	PlantID     string  `json:"plant_id"`
	PlantName   string  `json:"plant_name"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Status      string  `json:"status"`
	PowerOutput float64 `json:"power_output"`
	LastUpdated string  `json:"last_updated"`
}

// fetchIAEAPRIS polls facility status, not a dose reading: these rows carry
// dose_rate=0 and quality_flag Suspect, so they never enter the anomaly
// detector's statistics. Nothing in this repository builds NuclearFacility
// reference data from these rows.
func fetchIAEAPRIS(ctx context.Context, client *http.Client, log zerolog.Logger) ([]domain.NormalizedReading, error) {
	req, err := newRequest(ctx, iaeaPRISURL)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("iaea_pris: fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, nil
	}

	var reactors []reactorStatus
	if err := json.NewDecoder(resp.Body).Decode(&reactors); err != nil {
		log.Warn().Err(err).Msg("iaea_pris: response decode failed")
		return nil, nil
	}

	readings := make([]domain.NormalizedReading, 0, len(reactors))
	for _, r := range reactors {
		ts, err := time.Parse(time.RFC3339, r.LastUpdated)
		if err != nil {
			continue
		}
		sensorID := domain.SensorID("iaea_pris", r.PlantID)
		reading := domain.NewReading(sensorID, ts.Unix(), r.Latitude, r.Longitude, 0, 0, domain.QualitySuspect, "iaea_pris")
		if err := reading.Validate(); err != nil {
			log.Debug().Err(err).Msg("iaea_pris: skipping invalid reading")
			continue
		}
		readings = append(readings, reading)
	}
	return readings, nil
}
