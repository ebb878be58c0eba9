package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/tworjaga/cherenkov-engine/internal/config"
	"github.com/tworjaga/cherenkov-engine/internal/correlate"
	"github.com/tworjaga/cherenkov-engine/internal/database"
	"github.com/tworjaga/cherenkov-engine/internal/detect"
	"github.com/tworjaga/cherenkov-engine/internal/ingest"
	"github.com/tworjaga/cherenkov-engine/internal/metrics"
	"github.com/tworjaga/cherenkov-engine/internal/query"
)

type Server struct {
	http *http.Server
	log  zerolog.Logger
}

type ServerOptions struct {
	Config     *config.Config
	DB         *database.DB
	Query      *query.Service
	EventBus   EventBus
	Pipeline   *ingest.Pipeline
	Detector   *detect.Detector
	Correlator *correlate.Engine
	Version    string
	StartTime  time.Time
	Log        zerolog.Logger
}

// NewServer wires the chi router exposing the query port, the admin port,
// and the SSE event stream, behind the shared middleware stack.
func NewServer(opts ServerOptions) *Server {
	r := chi.NewRouter()

	var corsOrigins []string
	if opts.Config.CORSOrigins != "" {
		for _, o := range strings.Split(opts.Config.CORSOrigins, ",") {
			if s := strings.TrimSpace(o); s != "" {
				corsOrigins = append(corsOrigins, s)
			}
		}
	}

	r.Use(RequestID)
	r.Use(CORSWithOrigins(corsOrigins))
	r.Use(RateLimiter(opts.Config.RateLimitRPS, opts.Config.RateLimitBurst))
	r.Use(Recoverer)
	r.Use(Logger(opts.Log))

	// Unauthenticated: health check and Prometheus scrape.
	health := NewHealthHandler(opts.Query, opts.Version, opts.StartTime)
	r.Get("/v1/health", health.ServeHTTP)

	if opts.Config.MetricsEnabled {
		var pool *pgxpool.Pool
		if opts.DB != nil {
			pool = opts.DB.Pool
		}
		collector := metrics.NewCollector(pool, opts.Pipeline, opts.Detector, opts.Correlator)
		prometheus.MustRegister(collector)
		r.Get("/metrics", promhttp.Handler().ServeHTTP)
	}

	r.Group(func(r chi.Router) {
		r.Use(MaxBodySize(1 << 20)) // 1 MB; this API has no upload endpoints
		if opts.Config.MetricsEnabled {
			r.Use(metrics.InstrumentHandler)
		}
		r.Use(BearerAuth(opts.Config.AuthToken, opts.Config.WriteToken))
		r.Use(WriteAuth(opts.Config.WriteToken))
		r.Use(ResponseTimeout(opts.Config.WriteTimeout))

		r.Route("/v1", func(r chi.Router) {
			NewSensorsHandler(opts.Query).Routes(r)
			NewReadingsHandler(opts.Query).Routes(r)
			NewAnomaliesHandler(opts.Query).Routes(r)
			NewEventsHandler(opts.EventBus).Routes(r)
			NewCorrelateHandler(opts.Correlator).Routes(r)

			// Admin endpoints require AUTH_TOKEN to be configured unless auth
			// is disabled entirely for local development.
			r.Group(func(r chi.Router) {
				if opts.Config.AuthEnabled {
					r.Use(RequireAuth(opts.Config.AuthToken))
				}
				NewAdminHandler(opts.DB, opts.Pipeline).Routes(r)
			})
		})
	})

	srv := &http.Server{
		Addr:        opts.Config.HTTPAddr,
		Handler:     r,
		ReadTimeout: opts.Config.ReadTimeout,
		IdleTimeout: opts.Config.IdleTimeout,
		// WriteTimeout left at 0 to allow the long-lived SSE stream;
		// ResponseTimeout bounds every other handler instead.
		WriteTimeout: 0,
	}

	return &Server{
		http: srv,
		log:  opts.Log,
	}
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server starting")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	return s.http.Shutdown(ctx)
}
