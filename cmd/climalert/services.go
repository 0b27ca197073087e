package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/nhle/climate-alerts/internal/credential"
	"github.com/nhle/climate-alerts/internal/logging"
	"github.com/nhle/climate-alerts/internal/model"
	"github.com/nhle/climate-alerts/internal/recommend"
	"github.com/nhle/climate-alerts/internal/source"
	"github.com/nhle/climate-alerts/internal/source/alerts"
	"github.com/nhle/climate-alerts/internal/source/crops"
	"github.com/nhle/climate-alerts/internal/source/weather"
	"github.com/nhle/climate-alerts/internal/store"
	appsync "github.com/nhle/climate-alerts/internal/sync"
)

// loadConfig reads the config file named by --config and applies the
// persistent flag overrides.
func loadConfig() (*model.AppConfig, error) {
	cfg, err := model.LoadConfig(rootFlags.configPath)
	if err != nil {
		return nil, err
	}
	if rootFlags.logLevel != "" {
		cfg.Logging.Level = rootFlags.logLevel
	}
	return cfg, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// setupLogging installs the default slog logger. With toFile set, output
// goes to cfg.Logging.File so it does not draw over the dashboard.
func setupLogging(cfg model.LoggingConfig, stderr io.Writer, toFile bool) (io.Closer, error) {
	level := logging.ParseLevel(cfg.Level)
	if toFile && cfg.File != "" {
		f, err := logging.InitFile(level, cfg.Format, cfg.File)
		if err != nil {
			return nil, err
		}
		return f, nil
	}
	logging.Init(level, cfg.Format, stderr)
	return nopCloser{}, nil
}

// openStore opens the configured persister and loads the recommendation
// list as of now.
func openStore(ctx context.Context, cfg model.StoreConfig, now time.Time) (*store.Store, error) {
	p, err := store.OpenPersister(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	st := store.New(p, logging.New("store"))
	if err := st.Load(ctx, now); err != nil {
		logging.New("store").Warn("starting with an empty list that will not be saved", "error", err)
	}
	return st, nil
}

// services is the fully wired engine with its sources.
type services struct {
	cfg     *model.AppConfig
	clock   model.Clock
	store   *store.Store
	crops   *crops.Registry
	alerts  *alerts.Feed
	weather source.WeatherProvider
	engine  *recommend.Engine
	poller  *appsync.Poller
}

// keyLookup fetches a stored credential. Tests replace it.
var keyLookup = func(key string) (string, error) {
	return credential.NewStore().Lookup(key)
}

// probeWeather fetches one reading with wc for the settings view.
func probeWeather(ctx context.Context, wc model.WeatherConfig, apiKey string) (model.Weather, error) {
	wp, err := weather.New(wc, apiKey, model.RealClock{})
	if err != nil {
		return model.Weather{}, err
	}
	return wp.Current(ctx)
}

// openServices wires the store, the three sources, the engine and the
// poller from cfg. Close releases everything it opened.
func openServices(ctx context.Context, cfg *model.AppConfig, clock model.Clock) (*services, error) {
	if clock == nil {
		clock = model.RealClock{}
	}

	st, err := openStore(ctx, cfg.Store, clock.Now())
	if err != nil {
		return nil, err
	}

	reg, err := crops.Open(cfg.Crops.Path, logging.New("crops"))
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("opening crop registry: %w", err)
	}

	var apiKey string
	if cfg.Weather.Provider == "open-meteo" {
		apiKey, err = keyLookup(credential.WeatherAPIKey)
		if err != nil {
			logging.New("weather").Warn("weather API key unavailable", "error", err)
		}
	}
	wp, err := weather.New(cfg.Weather, apiKey, clock)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	feed := alerts.NewSeededFeed(cfg.Alerts.Seed, clock, logging.New("alerts"))

	engine := recommend.NewEngine(st, recommend.Options{
		MinInterval: time.Duration(cfg.Engine.MinIntervalSec) * time.Second,
		Clock:       clock,
		Logger:      logging.New("engine"),
	})

	poller := appsync.New(appsync.Config{
		Crops:           reg,
		Alerts:          feed,
		Weather:         wp,
		Engine:          engine,
		Logger:          logging.New("poller"),
		AlertInterval:   time.Duration(cfg.Alerts.PollIntervalSec) * time.Second,
		WeatherInterval: time.Duration(cfg.Weather.PollIntervalSec) * time.Second,
	})

	return &services{
		cfg:     cfg,
		clock:   clock,
		store:   st,
		crops:   reg,
		alerts:  feed,
		weather: wp,
		engine:  engine,
		poller:  poller,
	}, nil
}

// watchCrops starts the registry file watch when enabled.
func (s *services) watchCrops(ctx context.Context) error {
	if !s.cfg.Crops.Watch {
		return nil
	}
	return s.crops.Start(ctx, crops.DefaultDebounce)
}

// Close stops the poller and the registry watch, then flushes the store.
func (s *services) Close() error {
	s.poller.Stop()
	s.crops.Stop()
	return s.store.Close()
}
