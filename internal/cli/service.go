package cli

import (
	"fmt"
	"log/slog"

	"github.com/roach88/iadas/internal/analysis"
	"github.com/roach88/iadas/internal/config"
	"github.com/roach88/iadas/internal/endpoint"
	"github.com/roach88/iadas/internal/hierarchy"
	"github.com/roach88/iadas/internal/querybuild"
	"github.com/roach88/iadas/internal/server"
	"github.com/roach88/iadas/internal/store"
)

// Service holds the components built from a configuration.
type Service struct {
	Config   *config.Config
	Client   *endpoint.Client
	Builder  *querybuild.Builder
	Cache    *analysis.Cache
	Resolver *hierarchy.Resolver

	// Journal is opened only when the service needs it.
	Journal *store.Store

	logger *slog.Logger
}

// WireService creates the endpoint client, builder, cache and resolver of
// cfg, and opens the journal when withJournal is set. A nil logger means
// slog.Default().
func WireService(cfg *config.Config, logger *slog.Logger, withJournal bool) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client, err := newClient(cfg, logger)
	if err != nil {
		return nil, err
	}
	b, err := newBuilder(cfg.Query.Limit)
	if err != nil {
		return nil, fmt.Errorf("loading ontology: %w", err)
	}

	svc := &Service{
		Config:  cfg,
		Client:  client,
		Builder: b,
		Cache: analysis.New(analysis.NewQueryFetcher(b, client),
			analysis.WithOntology(b.Ontology()),
			analysis.WithTTL(cfg.Cache.TTL),
			analysis.WithLogger(logger),
		),
		Resolver: hierarchy.New(hierarchy.WithLogger(logger)),
		logger:   logger,
	}

	if withJournal {
		if svc.Journal, err = store.Open(cfg.Journal.Path); err != nil {
			return nil, fmt.Errorf("opening journal %s: %w", cfg.Journal.Path, err)
		}
	}
	return svc, nil
}

// Server creates the HTTP server over the service.
func (s *Service) Server() (*server.Server, error) {
	deps := server.Deps{
		Builder:  s.Builder,
		Endpoint: s.Client,
		Cache:    s.Cache,
		Resolver: s.Resolver,
		Logger:   s.logger,
	}
	if s.Journal != nil {
		deps.Journal = s.Journal
	}
	return server.New(server.Config{
		ListenAddr:      s.Config.Server.Addr,
		CORSOrigins:     s.Config.Server.CORSOrigins,
		RequestTimeout:  s.Config.Server.RequestTimeout,
		ShutdownTimeout: s.Config.Server.ShutdownTimeout,
	}, deps)
}

// Close releases the journal.
func (s *Service) Close() error {
	if s.Journal == nil {
		return nil
	}
	return s.Journal.Close()
}

func newClient(cfg *config.Config, logger *slog.Logger) (*endpoint.Client, error) {
	client, err := endpoint.New(cfg.Endpoint.URLs,
		endpoint.WithTimeout(cfg.Endpoint.Timeout),
		endpoint.WithUpdateURL(cfg.Endpoint.UpdateURL),
		endpoint.WithRateLimit(cfg.Endpoint.RateLimit, cfg.Endpoint.Burst),
		endpoint.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("creating endpoint client: %w", err)
	}
	return client, nil
}
