// Package app wires digipin's components from configuration. Both binaries
// build on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/digipin/internal/clipboard"
	"github.com/fyrsmithlabs/digipin/internal/config"
	"github.com/fyrsmithlabs/digipin/internal/conversion"
	"github.com/fyrsmithlabs/digipin/internal/geocode"
	"github.com/fyrsmithlabs/digipin/internal/history"
	"github.com/fyrsmithlabs/digipin/internal/location"
	"github.com/fyrsmithlabs/digipin/internal/logging"
	"github.com/fyrsmithlabs/digipin/internal/mapview"
	"github.com/fyrsmithlabs/digipin/internal/notify"
	"github.com/fyrsmithlabs/digipin/internal/storage"
	"github.com/fyrsmithlabs/digipin/internal/telemetry"
	"github.com/fyrsmithlabs/digipin/internal/trigger"
)

// App holds the wired components.
type App struct {
	Config    *config.Config
	Logger    *logging.Logger
	Telemetry *telemetry.Telemetry
	Storage   storage.KV
	History   *history.Store
	Notifier  notify.Notifier
	Clipboard clipboard.Clipboard
	Workflow  *conversion.Workflow
	Trigger   *trigger.Trigger
	Locator   location.Locator
	Maps      *mapview.Viewer

	natsConn *nats.Conn
}

// Option adjusts how an App is built.
type Option func(*options)

type options struct {
	logWriter     io.Writer
	version       string
	clipboard     clipboard.Clipboard
	pageClipboard clipboard.Clipboard
	kv            storage.KV
}

// WithLogWriter sends console logs to w instead of stderr.
func WithLogWriter(w io.Writer) Option {
	return func(o *options) { o.logWriter = w }
}

// WithVersion sets the service version reported to telemetry.
func WithVersion(v string) Option {
	return func(o *options) { o.version = v }
}

// WithClipboard overrides the configured clipboard.
func WithClipboard(c clipboard.Clipboard) Option {
	return func(o *options) { o.clipboard = c }
}

// WithPageClipboard sets the clipboard the selection trigger copies to.
func WithPageClipboard(c clipboard.Clipboard) Option {
	return func(o *options) { o.pageClipboard = c }
}

// WithStorage overrides the configured storage backend.
func WithStorage(kv storage.KV) Option {
	return func(o *options) { o.kv = kv }
}

// New builds every component from cfg.
//
// Initialization order:
//  1. Telemetry, then the logger bridged to it
//  2. Storage backend and history store
//  3. Notifier (log and optional NATS publisher) and clipboard
//  4. Conversion workflow, selection trigger, locator and map viewer
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	o := options{logWriter: os.Stderr, version: "dev"}
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{Config: cfg}

	tel, err := telemetry.New(ctx, telemetry.FromObservability(cfg.Observability, o.version))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	a.Telemetry = tel

	logCfg, err := logging.FromObservability(cfg.Observability)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("failed to configure logging: %w", err)
	}
	logger, err := logging.NewLogger(logCfg, tel.LoggerProvider(), logging.WithWriter(o.logWriter))
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.Logger = logger

	if err := a.initStorage(cfg, o.kv); err != nil {
		a.Close(ctx)
		return nil, err
	}

	if err := a.initOutputs(ctx, cfg, o.clipboard); err != nil {
		a.Close(ctx)
		return nil, err
	}

	if err := a.initServices(cfg, o.pageClipboard); err != nil {
		a.Close(ctx)
		return nil, err
	}

	a.Logger.Debug(ctx, "digipin initialized",
		zap.String("storage", cfg.Storage.Backend),
		zap.String("clipboard", cfg.Clipboard.Mode),
		zap.String("location", cfg.Location.Provider),
		zap.Bool("telemetry", tel.IsEnabled()),
	)
	return a, nil
}

func (a *App) initStorage(cfg *config.Config, kv storage.KV) error {
	if kv == nil {
		var err error
		kv, err = storage.Open(cfg.Storage, a.Logger)
		if err != nil {
			return fmt.Errorf("failed to open %s storage: %w", cfg.Storage.Backend, err)
		}
	}
	a.Storage = kv

	store, err := history.NewStore(kv,
		history.WithLogger(a.Logger.Named("history")),
		history.WithDefaultLimit(cfg.History.DefaultLimit),
		history.WithTracerProvider(a.Telemetry.TracerProvider()),
	)
	if err != nil {
		return fmt.Errorf("failed to create history store: %w", err)
	}
	a.History = store
	return nil
}

func (a *App) initOutputs(ctx context.Context, cfg *config.Config, clip clipboard.Clipboard) error {
	var notifiers notify.Multi
	if cfg.Notify.Log {
		notifiers = append(notifiers, notify.NewLog(a.Logger.Named("notify")))
	}
	if cfg.Notify.NATS {
		nc, err := storage.DialNATS(cfg.Storage.NATSURL, cfg.Storage.NATSToken.Value())
		if err != nil {
			return fmt.Errorf("failed to connect notifications to NATS: %w", err)
		}
		a.natsConn = nc
		a.Logger.Debug(ctx, "publishing notifications to NATS",
			zap.String("url", cfg.Storage.NATSURL),
			zap.String("subject", cfg.Notify.NATSSubject),
			logging.Secret("nats_token", cfg.Storage.NATSToken),
		)
		pub, err := notify.NewNATS(nc, cfg.Notify.NATSSubject)
		if err != nil {
			return err
		}
		notifiers = append(notifiers, pub)
	}
	a.Notifier = notifiers

	if clip == nil {
		var err error
		clip, err = clipboard.New(cfg.Clipboard)
		if err != nil {
			return fmt.Errorf("failed to create clipboard: %w", err)
		}
	}
	a.Clipboard = clip
	return nil
}

func (a *App) initServices(cfg *config.Config, page clipboard.Clipboard) error {
	wf, err := conversion.New(geocode.New(), a.History,
		conversion.WithNotifier(a.Notifier),
		conversion.WithClipboard(a.Clipboard),
		conversion.WithLogger(a.Logger.Named("conversion")),
		conversion.WithTracerProvider(a.Telemetry.TracerProvider()),
	)
	if err != nil {
		return fmt.Errorf("failed to create conversion workflow: %w", err)
	}
	a.Workflow = wf

	tr, err := trigger.New(wf,
		trigger.WithNotifier(a.Notifier),
		trigger.WithPageClipboard(page),
		trigger.WithLogger(a.Logger.Named("trigger")),
	)
	if err != nil {
		return fmt.Errorf("failed to create selection trigger: %w", err)
	}
	a.Trigger = tr

	locator, err := location.New(cfg.Location, location.WithLogger(a.Logger.Named("location")))
	if err != nil {
		return fmt.Errorf("failed to create locator: %w", err)
	}
	a.Locator = locator

	a.Maps = mapview.New(cfg.Maps)
	return nil
}

// NATSConn returns the notification connection, or nil when NATS
// notifications are disabled.
func (a *App) NATSConn() *nats.Conn {
	return a.natsConn
}

// Close releases storage, connections and telemetry. It is safe to call on
// a partially built App.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Storage != nil {
		if err := a.Storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close storage: %w", err))
		}
	}
	if a.natsConn != nil {
		a.natsConn.Close()
	}
	if a.Telemetry != nil {
		if err := a.Telemetry.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown telemetry: %w", err))
		}
	}
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
	return errors.Join(errs...)
}
