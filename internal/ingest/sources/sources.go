// Package sources implements the ten upstream source adapters (C2): Safecast,
// uRADMonitor, EPA RadNet, EURDEP, IAEA PRIS, USGS seismic, NASA FIRMS, NOAA
// GFS, Open-Meteo, and OpenAQ. Each adapter is a stateless, statically
// registered capability set {Name, PollInterval, Fetch}, dispatched uniformly
// by the ingestion pipeline rather than through runtime polymorphism.
package sources

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/tworjaga/cherenkov-engine/internal/domain"
)

// UserAgent identifies this process to upstream HTTP services, as required by
// the adapter contract.
const UserAgent = "cherenkov-engine/1.0 (+telemetry ingestion)"

// DefaultTimeout bounds every adapter HTTP fetch.
const DefaultTimeout = 30 * time.Second

// FetchFunc performs one poll of an upstream source. It must never panic;
// upstream 4xx/5xx responses and malformed records are handled defensively
// and only genuinely exceptional conditions (network failure, timeout) are
// returned as an error alongside an empty reading slice.
type FetchFunc func(ctx context.Context, client *http.Client, log zerolog.Logger) ([]domain.NormalizedReading, error)

// Source is the capability set a pipeline adapter task dispatches through.
type Source struct {
	Name         string
	PollInterval time.Duration
	Fetch        FetchFunc
}

// NewHTTPClient builds the shared client used by every adapter, bounded by
// DefaultTimeout.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: DefaultTimeout}
}

// newRequest builds a GET request identifying this process via User-Agent.
func newRequest(ctx context.Context, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// Registry is the statically-registered list of all source adapters. The
// pipeline runs one task per entry.
var Registry = []Source{
	{Name: "safecast", PollInterval: 60 * time.Second, Fetch: fetchSafecast},
	{Name: "uradmonitor", PollInterval: 30 * time.Second, Fetch: fetchURADMonitor},
	{Name: "epa_radnet", PollInterval: 300 * time.Second, Fetch: fetchEPARadNet},
	{Name: "eurdep", PollInterval: 600 * time.Second, Fetch: fetchEURDEP},
	{Name: "iaea_pris", PollInterval: 86400 * time.Second, Fetch: fetchIAEAPRIS},
	{Name: "usgs_seismic", PollInterval: 60 * time.Second, Fetch: fetchUSGSSeismic},
	{Name: "nasa_firms", PollInterval: 300 * time.Second, Fetch: fetchNASAFIRMS},
	{Name: "noaa_gfs", PollInterval: 21600 * time.Second, Fetch: fetchNOAAGFS},
	{Name: "open_meteo", PollInterval: 900 * time.Second, Fetch: fetchOpenMeteo},
	{Name: "openaq", PollInterval: 900 * time.Second, Fetch: fetchOpenAQ},
}
