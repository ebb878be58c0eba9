package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/tworjaga/cherenkov-engine/internal/domain"
)

const openAQURL = "https://api.openaq.org/v3/latest?parameter=pm25&limit=100"

type openAQResult struct {
	Results []struct {
		LocationID int     `json:"locationId"`
		Coordinates struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"coordinates"`
		Measurements []struct {
			Parameter string  `json:"parameter"`
			Value     float64 `json:"value"`
			LastUpdated string `json:"lastUpdated"`
		} `json:"measurements"`
	} `json:"results"`
}

// fetchOpenAQ reports PM2.5 (micrograms per cubic meter) as a Suspect proxy
// reading; grounded on the same defensive single-endpoint JSON fetch shape as
// eurdep, since openaq.rs was not present in the retrieved original_source
// pack.
func fetchOpenAQ(ctx context.Context, client *http.Client, log zerolog.Logger) ([]domain.NormalizedReading, error) {
	req, err := newRequest(ctx, openAQURL)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openaq: fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, nil
	}

	var body openAQResult
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		log.Warn().Err(err).Msg("openaq: response decode failed")
		return nil, nil
	}

	readings := make([]domain.NormalizedReading, 0, len(body.Results))
	for _, r := range body.Results {
		for _, m := range r.Measurements {
			if m.Parameter != "pm25" {
				continue
			}
			ts, err := parseOpenAQTimestamp(m.LastUpdated)
			if err != nil {
				continue
			}
			sensorID := domain.SensorID("openaq", fmt.Sprintf("%d", r.LocationID))
			reading := domain.NewReading(sensorID, ts, r.Coordinates.Latitude, r.Coordinates.Longitude, m.Value, 0, domain.QualitySuspect, "openaq")
			if err := reading.Validate(); err != nil {
				log.Debug().Err(err).Msg("openaq: skipping invalid reading")
				continue
			}
			readings = append(readings, reading)
		}
	}
	return readings, nil
}
