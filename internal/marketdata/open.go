package marketdata

import (
	"fmt"

	"github.com/rs/zerolog"

	"stock-analyzer/internal/config"
	"stock-analyzer/internal/models"
	"stock-analyzer/internal/store"
)

// Open builds the source named by cfg.Data.Source. The returned close
// function releases any database the source opened.
func Open(cfg *config.Config, logger zerolog.Logger) (Source, func() error, error) {
	noop := func() error { return nil }

	if cfg.Data.Source == "store" {
		db, err := store.NewSQLiteStore(cfg.Data.DBPath)
		if err != nil {
			return nil, nil, err
		}
		var upstream store.Fetcher
		if cfg.Data.Upstream != "" {
			up, err := open(cfg.Data.Upstream, cfg, logger)
			if err != nil {
				db.Close()
				return nil, nil, err
			}
			upstream = up
		}
		sm := store.NewSyncManager(db, upstream, nil, logger)
		return NewStoreSource(sm), db.Close, nil
	}

	src, err := open(cfg.Data.Source, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return src, noop, nil
}

func open(name string, cfg *config.Config, logger zerolog.Logger) (Source, error) {
	switch name {
	case "csv":
		return NewCSVSource(cfg.Data.CSVDir), nil
	case "synthetic":
		return NewSyntheticSource(), nil
	case "kite":
		return NewKiteSource(KiteConfig{
			APIKey:      cfg.Credentials.Kite.APIKey,
			AccessToken: cfg.Credentials.Kite.AccessToken,
			Exchange:    models.Exchange(cfg.Data.Exchange),
		}, logger)
	default:
		return nil, fmt.Errorf("unknown data source %q", name)
	}
}

// OpenUpstream builds the source that feeds the bar store: Data.Upstream
// when set, otherwise Data.Source unless that is the store itself.
func OpenUpstream(cfg *config.Config, logger zerolog.Logger) (Source, error) {
	name := cfg.Data.Upstream
	if name == "" {
		name = cfg.Data.Source
	}
	if name == "store" {
		return nil, fmt.Errorf("data.upstream must be set when data.source is store")
	}
	return open(name, cfg, logger)
}
