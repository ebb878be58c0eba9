package sources

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/tworjaga/cherenkov-engine/internal/domain"
)

// EPA RadNet has no stable public JSON feed at the time of writing; the
// upstream page is HTML-only. This adapter is a grounded stub matching the
// original implementation's behavior (returns an empty sequence rather than
// an error) so the adapter slot exists and can be filled in once a feed is
// available, without the pipeline treating the source as failed.
func fetchEPARadNet(ctx context.Context, client *http.Client, log zerolog.Logger) ([]domain.NormalizedReading, error) {
	log.Debug().Msg("epa_radnet: no structured feed available, skipping poll")
	return nil, nil
}
