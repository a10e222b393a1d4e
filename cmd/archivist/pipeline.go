package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"archivist/pkg/archiver"
	"archivist/pkg/auth"
	"archivist/pkg/client"
	"archivist/pkg/config"
	errs "archivist/pkg/errors"
	"archivist/pkg/fanbox"
	"archivist/pkg/logger"
	"archivist/pkg/patreon"
	"archivist/pkg/retry"
	"archivist/pkg/runstate"
	"archivist/pkg/sources"
	"archivist/pkg/storage"
	"archivist/pkg/store"
)

// API endpoints, replaced in tests
var (
	fanboxAPI  = fanbox.BaseURL
	patreonAPI = patreon.BaseURL
)

// pipeline holds everything a sync run needs. It outlives one run so the
// schedule command can reuse the database connection.
type pipeline struct {
	cfg    *config.Config
	log    logger.Logger
	client *client.Client
	store  *store.Store
	files  *storage.FileManager
	state  *runstate.Manager
	source archiver.Source
}

func openPipeline(ctx context.Context, cfg *config.Config, log logger.Logger) (*pipeline, error) {
	cookie, userAgent, err := resolveSession(cfg, log)
	if err != nil {
		return nil, err
	}

	c := newClient(cfg, cookie, userAgent, log)

	source, err := newSource(cfg, c, log)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.Output.Directory, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	db, err := store.Open(ctx, store.Config{Driver: cfg.Storage.Driver, DSN: cfg.DatabaseDSN()})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	state, err := runstate.NewManager(cfg.Platform, log)
	if err != nil {
		log.WithError(err).Warn("Run state disabled")
	}

	return &pipeline{
		cfg:    cfg,
		log:    log,
		client: c,
		store:  db,
		files: storage.NewFileManager(cfg.Output.Directory, c, storage.Options{
			Overwrite:   cfg.Output.Overwrite,
			Concurrency: cfg.Download.Concurrency,
			Logger:      log,
		}),
		state:  state,
		source: source,
	}, nil
}

// run performs one sync. progress may be nil.
func (p *pipeline) run(ctx context.Context, progress archiver.Progress) (*archiver.Tally, error) {
	a, err := archiver.New(archiver.Options{
		Source:   p.source,
		Store:    p.store,
		Files:    p.files,
		Filter:   p.cfg.Filter,
		Limit:    p.client.Concurrency(),
		Logger:   p.log,
		RunState: p.state,
		Progress: progress,
	})
	if err != nil {
		return nil, err
	}

	tally, err := a.Run(ctx)

	stats := p.client.Stats()
	p.log.DebugWithFields("Request stats", map[string]interface{}{
		"requests":      stats.Acquired,
		"limit":         stats.Limit,
		"max_in_flight": stats.MaxInFlight,
	})
	return tally, err
}

func (p *pipeline) Close() error {
	return p.store.Close()
}

// resolveSession picks the session cookie: configuration (flag, env or
// file) first, then the credential stores
func resolveSession(cfg *config.Config, log logger.Logger) (string, string, error) {
	if cookie := cfg.SessionFor(cfg.Platform); cookie != "" {
		log.Debug("Using session from configuration")
		return cookie, cfg.Session.UserAgent, nil
	}

	manager, err := auth.NewManager()
	if err != nil {
		return "", "", fmt.Errorf("open credential stores: %w", err)
	}

	var session *auth.Session
	if cfg.Session.Account != "" {
		session, err = manager.Retrieve(cfg.Platform, cfg.Session.Account)
	} else {
		session, err = manager.RetrieveDefault(cfg.Platform)
	}
	if err != nil {
		if errors.Is(err, auth.ErrCredentialsNotFound) {
			return "", "", errs.Wrap(errs.ErrorTypeAuth, err,
				fmt.Sprintf("no %s session; run 'archivist auth login --platform %s' or pass --session", cfg.Platform, cfg.Platform))
		}
		return "", "", err
	}

	userAgent := cfg.Session.UserAgent
	if userAgent == "" {
		userAgent = session.UserAgent
	}
	log.WithField("account", session.Account).Info("Using stored session")
	return session.Cookie, userAgent, nil
}

func newClient(cfg *config.Config, cookie, userAgent string, log logger.Logger) *client.Client {
	identity := client.FanboxIdentity(cookie, userAgent)
	if cfg.Platform == "patreon" {
		identity = client.PatreonIdentity(cookie, userAgent)
	}

	return client.New(client.Options{
		Identity:    identity,
		Concurrency: cfg.Download.Concurrency,
		MaxAttempts: cfg.RateLimit.MaxAttempts,
		Backoff: &retry.ExponentialBackoff{
			BaseDelay:    cfg.RateLimit.BaseDelay,
			MaxDelay:     cfg.RateLimit.MaxDelay,
			Multiplier:   2.0,
			JitterFactor: 0.1,
		},
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		Overwrite:         cfg.Output.Overwrite,
		Timeout:           cfg.Download.Timeout,
		Logger:            log,
	})
}

func newSource(cfg *config.Config, c *client.Client, log logger.Logger) (archiver.Source, error) {
	switch cfg.Platform {
	case "fanbox":
		return sources.NewFanbox(fanbox.NewAPI(c, fanboxAPI, log), cfg.Filter, log), nil
	case "patreon":
		return sources.NewPatreon(patreon.NewAPI(c, patreonAPI, log), cfg.Filter, log), nil
	default:
		return nil, fmt.Errorf("unknown platform %q", cfg.Platform)
	}
}
