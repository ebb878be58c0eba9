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

const nasaFIRMSURL = "https://firms.modaps.eosdis.nasa.gov/api/area/csv/VIIRS_NOAA20_NRT"

type thermalAnomaly struct {
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Brightness float64 `json:"brightness"`
	AcqDate    string  `json:"acq_date"`
	AcqTime    string  `json:"acq_time"`
}

// fetchNASAFIRMS reports thermal brightness (Kelvin) as a Suspect proxy
// reading — it never masquerades as a direct dose measurement.
func fetchNASAFIRMS(ctx context.Context, client *http.Client, log zerolog.Logger) ([]domain.NormalizedReading, error) {
	req, err := newRequest(ctx, nasaFIRMSURL)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nasa_firms: fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, nil
	}

	var anomalies []thermalAnomaly
	if err := json.NewDecoder(resp.Body).Decode(&anomalies); err != nil {
		log.Warn().Err(err).Msg("nasa_firms: response decode failed")
		return nil, nil
	}

	readings := make([]domain.NormalizedReading, 0, len(anomalies))
	for _, a := range anomalies {
		ts, err := time.Parse("2006-01-02 1504", fmt.Sprintf("%s %s", a.AcqDate, a.AcqTime))
		if err != nil {
			continue
		}
		sensorID := domain.SensorID("nasa_firms", fmt.Sprintf("%f-%f", a.Latitude, a.Longitude))
		reading := domain.NewReading(sensorID, ts.Unix(), a.Latitude, a.Longitude, a.Brightness, 0, domain.QualitySuspect, "nasa_firms")
		if err := reading.Validate(); err != nil {
			log.Debug().Err(err).Msg("nasa_firms: skipping invalid reading")
			continue
		}
		readings = append(readings, reading)
	}
	return readings, nil
}
