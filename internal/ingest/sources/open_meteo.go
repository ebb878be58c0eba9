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

const openMeteoURL = "https://api.open-meteo.com/v1/forecast?latitude=0&longitude=0&current=wind_speed_10m&format=json"

type openMeteoResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Current   struct {
		Time      string  `json:"time"`
		WindSpeed float64 `json:"wind_speed_10m"`
	} `json:"current"`
}

// fetchOpenMeteo reports wind speed (km/h) as a Suspect proxy reading,
// feeding downstream plume/dispersion consumers without claiming to be a
// dose measurement. Grounded on the same defensive single-endpoint JSON fetch
// shape as eurdep; open_meteo.rs was not present in the retrieved
// original_source pack, so the exact field mapping is this adapter's own.
func fetchOpenMeteo(ctx context.Context, client *http.Client, log zerolog.Logger) ([]domain.NormalizedReading, error) {
	req, err := newRequest(ctx, openMeteoURL)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open_meteo: fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, nil
	}

	var body openMeteoResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		log.Warn().Err(err).Msg("open_meteo: response decode failed")
		return nil, nil
	}

	ts, err := time.Parse("2006-01-02T15:04", body.Current.Time)
	if err != nil {
		return nil, nil
	}

	sensorID := domain.SensorID("open_meteo", fmt.Sprintf("%f-%f", body.Latitude, body.Longitude))
	reading := domain.NewReading(sensorID, ts.Unix(), body.Latitude, body.Longitude, body.Current.WindSpeed, 0, domain.QualitySuspect, "open_meteo")
	if err := reading.Validate(); err != nil {
		log.Debug().Err(err).Msg("open_meteo: skipping invalid reading")
		return nil, nil
	}
	return []domain.NormalizedReading{reading}, nil
}
