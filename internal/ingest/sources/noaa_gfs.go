package sources

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/tworjaga/cherenkov-engine/internal/domain"
)

// NOAA GFS is distributed as a GRIB2 index over a filter CGI endpoint; parsing
// that format is out of scope for this adapter today. Like epa_radnet, this
// is a grounded stub returning an empty sequence rather than an error, so the
// slot exists in the registry without the pipeline treating the source as
// failed.
func fetchNOAAGFS(ctx context.Context, client *http.Client, log zerolog.Logger) ([]domain.NormalizedReading, error) {
	log.Debug().Msg("noaa_gfs: GRIB2 index parsing not implemented, skipping poll")
	return nil, nil
}
