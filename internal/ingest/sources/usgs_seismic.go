package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/tworjaga/cherenkov-engine/internal/domain"
)

const usgsSeismicURL = "https://earthquake.usgs.gov/fdsnws/event/1/query?format=geojson&minmagnitude=4.0&limit=100"

type usgsFeatureCollection struct {
	Features []usgsFeature `json:"features"`
}

type usgsFeature struct {
	ID         string `json:"id"`
	Geometry   struct {
		Coordinates []float64 `json:"coordinates"`
	} `json:"geometry"`
	Properties struct {
		Mag  float64 `json:"mag"`
		Place string `json:"place"`
		Time  int64  `json:"time"` // milliseconds since epoch
	} `json:"properties"`
}

// fetchUSGSSeismic reports earthquake magnitude as a Suspect proxy reading
// (the magnitude is carried in the dose-rate field); these feed the correlation engine as Seismic events,
// never as direct dose readings.
func fetchUSGSSeismic(ctx context.Context, client *http.Client, log zerolog.Logger) ([]domain.NormalizedReading, error) {
	req, err := newRequest(ctx, usgsSeismicURL)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("usgs_seismic: fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, nil
	}

	var collection usgsFeatureCollection
	if err := json.NewDecoder(resp.Body).Decode(&collection); err != nil {
		log.Warn().Err(err).Msg("usgs_seismic: response decode failed")
		return nil, nil
	}

	readings := make([]domain.NormalizedReading, 0, len(collection.Features))
	for _, f := range collection.Features {
		if len(f.Geometry.Coordinates) < 2 {
			continue
		}
		lon, lat := f.Geometry.Coordinates[0], f.Geometry.Coordinates[1]
		ts := f.Properties.Time / 1000

		sensorID := domain.SensorID("usgs_seismic", f.ID)
		reading := domain.NewReading(sensorID, ts, lat, lon, f.Properties.Mag, 0, domain.QualitySuspect, "usgs_seismic")
		if err := reading.Validate(); err != nil {
			log.Debug().Err(err).Msg("usgs_seismic: skipping invalid reading")
			continue
		}
		readings = append(readings, reading)
	}
	return readings, nil
}
