package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/forest-watch/internal/firedanger"
	"github.com/sells-group/forest-watch/internal/reconcile"
	"github.com/sells-group/forest-watch/internal/refresh"
	"github.com/sells-group/forest-watch/internal/registry"
	"github.com/sells-group/forest-watch/internal/source"
	"github.com/sells-group/forest-watch/internal/store"
	"github.com/sells-group/forest-watch/pkg/geocode"
)

// env holds the wired application components for one command invocation.
type env struct {
	Store       store.Store
	Coordinator *refresh.Coordinator
	Registry    registry.Registry

	enricher *geocode.Enricher
}

// Close flushes the background enrichment queue and closes the store.
func (e *env) Close() {
	if e.enricher != nil {
		e.enricher.Close()
	}
	if e.Store != nil {
		if err := e.Store.Close(); err != nil {
			zap.L().Warn("close store", zap.Error(err))
		}
	}
}

// initEnv wires store, geocoder, fire-danger lookup, reconciler, and the
// refresh coordinator from the loaded config.
func initEnv(ctx context.Context) (*env, error) {
	e := &env{}

	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	e.Store = st
	if err := st.Migrate(ctx); err != nil {
		e.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	e.Registry = registry.Default()
	if cfg.Registry.Path != "" {
		reg, err := registry.Load(cfg.Registry.Path)
		if err != nil {
			e.Close()
			return nil, err
		}
		e.Registry = reg
	}

	cache := store.GeocodeCache{Store: st}
	free := geocode.NewNominatimProvider(cfg.Geocode.Nominatim.UserAgent,
		geocode.WithNominatimBaseURL(cfg.Geocode.Nominatim.BaseURL),
		geocode.WithNominatimCountryCodes(cfg.Geocode.Nominatim.CountryCodes),
	)

	resolverOpts := []geocode.ResolverOption{}
	if cfg.Geocode.Google.Key != "" {
		premium := geocode.NewGoogleProvider(cfg.Geocode.Google.Key,
			geocode.WithGoogleRegion(cfg.Geocode.Google.Region))
		budget := geocode.NewBudget(cfg.Geocode.PremiumBudget)
		e.enricher = geocode.NewEnricher(cache, premium, budget, cfg.Geocode.EnrichQueueSize)
		resolverOpts = append(resolverOpts,
			geocode.WithPremiumProvider(premium, budget),
			geocode.WithEnricher(e.enricher),
		)
	}
	resolver := geocode.NewResolver(cache, free, resolverOpts...)

	lookup, err := fireDangerLookup(ctx)
	if err != nil {
		e.Close()
		return nil, err
	}

	reconciler := reconcile.New(resolver, lookup, e.Registry,
		reconcile.WithRegion(cfg.Refresh.Region),
		reconcile.WithFacilityThreshold(cfg.Match.FacilityThreshold),
		reconcile.WithClosureThreshold(cfg.Match.ClosureThreshold),
	)

	scraper := source.NewFileScraper(cfg.Source.Dir)
	e.Coordinator = refresh.New(st, scraper, reconciler, e.Registry,
		refresh.WithTTL(time.Duration(cfg.Refresh.TTLHours)*time.Hour),
		refresh.WithSourceLabel("file:"+cfg.Source.Dir))

	return e, nil
}

func openStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	case "sqlite", "":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// fireDangerLookup builds the rating lookup from the configured source: the
// live GeoJSON feed when set, else a local shapefile, else a stub that
// reports every point as unknown.
func fireDangerLookup(ctx context.Context) (source.FireDangerLookup, error) {
	var districts []firedanger.District

	switch {
	case cfg.FireDanger.FeedURL != "":
		client := firedanger.NewClient(cfg.FireDanger.FeedURL)
		fetched, err := client.FetchDistricts(ctx)
		if err != nil {
			return nil, eris.Wrap(err, "fetch fire-danger districts")
		}
		districts = fetched
	case cfg.FireDanger.ShapefilePath != "":
		loaded, err := firedanger.LoadShapefile(cfg.FireDanger.ShapefilePath,
			cfg.FireDanger.ShapefileNameField, cfg.FireDanger.ShapefileCodeField)
		if err != nil {
			return nil, err
		}
		districts = loaded
	default:
		zap.L().Warn("no fire-danger source configured, ratings will be unknown")
	}

	return firedanger.NewService(districts).Lookup, nil
}
