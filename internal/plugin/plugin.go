// Package plugin is the facade the validator host drives. It owns the
// plugin's lifecycle: OnLoad builds the publisher, the worker runtime and
// the callback bridge from the config file; OnUnload tears them down again.
//
// Nothing here may panic across the host boundary. Every entry point
// recovers and reports failures as *geyser.PluginError.
package plugin

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/oops"
	"go.uber.org/zap"

	"github.com/AlaaZorkane/dragonslayer-nats-geyser/internal/affinity"
	"github.com/AlaaZorkane/dragonslayer-nats-geyser/internal/bridge"
	"github.com/AlaaZorkane/dragonslayer-nats-geyser/internal/config"
	"github.com/AlaaZorkane/dragonslayer-nats-geyser/internal/constants"
	"github.com/AlaaZorkane/dragonslayer-nats-geyser/internal/executor"
	"github.com/AlaaZorkane/dragonslayer-nats-geyser/internal/exporter"
	"github.com/AlaaZorkane/dragonslayer-nats-geyser/internal/geyser"
	"github.com/AlaaZorkane/dragonslayer-nats-geyser/internal/logging"
	"github.com/AlaaZorkane/dragonslayer-nats-geyser/internal/message"
	"github.com/AlaaZorkane/dragonslayer-nats-geyser/internal/metrics"
	"github.com/AlaaZorkane/dragonslayer-nats-geyser/internal/publisher"
)

// Error codes attached to host-facing errors.
const (
	CodeAlreadyLoaded      = "PLUGIN_ALREADY_LOADED"
	CodeNotLoaded          = "PLUGIN_NOT_LOADED"
	CodeConfigInvalid      = "CONFIG_INVALID"
	CodeInitFailed         = "PLUGIN_INIT_FAILED"
	CodeUnsupportedVersion = "UNSUPPORTED_VERSION"
	CodeSubmissionFailed   = "SUBMISSION_FAILED"
	CodeCallbackPanicked   = "CALLBACK_PANICKED"
)

// ErrNotLoaded is returned by event callbacks before OnLoad or after OnUnload.
var ErrNotLoaded = errors.New("plugin not loaded")

// Plugin implements geyser.Plugin.
type Plugin struct {
	logger       *zap.Logger
	newPublisher func(cfg config.PublishersConfig, logger *zap.Logger) (publisher.Publisher, error)
	pin          affinity.Pinner

	// mu serializes OnLoad and OnUnload. Event callbacks only read state.
	mu    sync.Mutex
	state atomic.Pointer[loaded]
}

// loaded is everything OnLoad acquired.
type loaded struct {
	cfg     *config.Config
	logger  *zap.Logger
	ownLog  bool
	metrics *metrics.Metrics
	pub     *publisher.Tap
	rt      *executor.Runtime
	bridge  *bridge.Bridge

	server     *exporter.Server
	stopServer context.CancelFunc
	serverDone chan struct{}
}

// Option configures a Plugin.
type Option func(*Plugin)

// WithLogger makes the plugin log to logger instead of building one from
// the config file's log level.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Plugin) { p.logger = logger }
}

// WithPublisher replaces the publishers named in the config with pub.
func WithPublisher(pub publisher.Publisher) Option {
	return func(p *Plugin) {
		p.newPublisher = func(config.PublishersConfig, *zap.Logger) (publisher.Publisher, error) {
			return pub, nil
		}
	}
}

// WithPinner replaces the CPU affinity call made on every worker thread.
func WithPinner(pin affinity.Pinner) Option {
	return func(p *Plugin) { p.pin = pin }
}

// New creates an unloaded plugin.
func New(opts ...Option) *Plugin {
	p := &Plugin{
		newPublisher: publisher.FromConfig,
		pin:          affinity.Pin,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var _ geyser.Plugin = (*Plugin)(nil)

func (p *Plugin) Name() string {
	return constants.PluginName + "-" + constants.Version
}

// Loaded reports whether OnLoad has succeeded and OnUnload has not run since.
func (p *Plugin) Loaded() bool {
	return p.state.Load() != nil
}

// OnLoad activates the plugin. On failure everything acquired so far is
// released and the plugin stays unloaded.
func (p *Plugin) OnLoad(configFile string, isReload bool) (err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err = geyser.NewError(geyser.ErrCustom,
				oops.Code(CodeInitFailed).With("panic", r).Errorf("panic during load: %v", r))
		}
	}()

	if p.state.Load() != nil {
		return geyser.NewError(geyser.ErrCustom,
			oops.Code(CodeAlreadyLoaded).Errorf("plugin already loaded"))
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		kind := geyser.ErrConfigFileRead
		if errors.Is(err, config.ErrNotFound) {
			kind = geyser.ErrConfigFileOpen
		}
		return geyser.NewError(kind,
			oops.Code(CodeConfigInvalid).With("config_file", configFile).Wrap(err))
	}

	l, err := p.build(cfg)
	if err != nil {
		return geyser.NewError(geyser.ErrCustom,
			oops.Code(CodeInitFailed).With("config_file", configFile).Wrap(err))
	}
	p.state.Store(l)

	l.logger.Info("Plugin loaded",
		zap.String("config_file", configFile),
		zap.Bool("is_reload", isReload),
		zap.Strings("workers", l.rt.Workers()),
		zap.String("publisher", l.pub.Name()))
	return nil
}

// build acquires resources in order and releases them in reverse on failure.
func (p *Plugin) build(cfg *config.Config) (_ *loaded, err error) {
	l := &loaded{cfg: cfg, logger: p.logger}
	if l.logger == nil {
		if l.logger, err = logging.New(cfg.Log.Level); err != nil {
			return nil, err
		}
		l.ownLog = true
	}
	l.logger = l.logger.With(zap.String("plugin", p.Name()))

	var undo []func()
	defer func() {
		if err != nil {
			for i := len(undo) - 1; i >= 0; i-- {
				undo[i]()
			}
			l.logger.Error("Plugin load failed", zap.Error(err))
			if l.ownLog {
				_ = l.logger.Sync()
			}
		}
	}()

	l.metrics = metrics.New()

	pub, err := p.newPublisher(cfg.Publishers, l.logger.Named("publisher"))
	if err != nil {
		return nil, fmt.Errorf("publisher: %w", err)
	}
	l.pub = publisher.NewTap(pub)

	ctx, cancel := context.WithTimeout(context.Background(), constants.ConnectTimeout)
	err = l.pub.Connect(ctx)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", pub.Name(), err)
	}
	undo = append(undo, func() { l.closePublisher() })

	runtimeLog := l.logger.Named("runtime")
	l.rt, err = executor.Build(executor.Config{
		WorkerThreads: cfg.Workers(),
		QueueSize:     cfg.Runtime.QueueSize,
		OnThreadStart: func(name string) error {
			if err := p.pin(cfg.Runtime.Affinity); err != nil {
				return fmt.Errorf("pin to cpus %v: %w", cfg.Runtime.Affinity, err)
			}
			runtimeLog.Debug("Worker thread started",
				zap.String("thread", name),
				zap.Ints("affinity", cfg.Runtime.Affinity))
			return nil
		},
	}, runtimeLog)
	if err != nil {
		return nil, err
	}
	l.metrics.WatchRuntime(l.rt)

	l.bridge = bridge.New(l.rt, l.pub, cfg.Notifications, l.metrics, l.logger.Named("bridge"))

	if cfg.Metrics.Enabled {
		l.startServer()
	}
	return l, nil
}

func (l *loaded) startServer() {
	log := l.logger.Named("exporter")
	l.server = exporter.New(l.cfg.Metrics.Addr, l.metrics.Registry, l.pub, log)

	ctx, cancel := context.WithCancel(context.Background())
	l.stopServer = cancel
	l.serverDone = make(chan struct{})
	go func() {
		defer close(l.serverDone)
		if err := l.server.Run(ctx); err != nil {
			log.Error("Metrics exporter stopped", zap.Error(err))
		}
	}()
	l.server.SetReady(true)
}

func (l *loaded) stopServerAndWait() {
	if l.server == nil {
		return
	}
	l.server.SetReady(false)
	l.stopServer()
	select {
	case <-l.serverDone:
	case <-time.After(constants.ExporterShutdownTimeout + time.Second):
		l.logger.Warn("Metrics exporter did not stop in time")
	}
}

func (l *loaded) closePublisher() {
	ctx, cancel := context.WithTimeout(context.Background(), constants.PublisherCloseTimeout)
	defer cancel()
	if err := l.pub.Close(ctx); err != nil {
		l.logger.Error("Publisher close failed", zap.Error(err))
	}
}

// OnUnload deactivates the plugin. It waits up to the configured shutdown
// timeout for queued messages to be published, then abandons the rest.
// Calling it while unloaded does nothing.
func (p *Plugin) OnUnload() {
	p.mu.Lock()
	defer p.mu.Unlock()

	l := p.state.Swap(nil)
	if l == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("Panic during unload", zap.Any("panic", r), zap.Stack("stack"))
		}
		if l.ownLog {
			_ = l.logger.Sync()
		}
	}()

	start := time.Now()
	if l.server != nil {
		l.server.SetReady(false)
	}
	drained := l.rt.Shutdown(l.cfg.Runtime.ShutdownTimeout)
	l.closePublisher()
	l.stopServerAndWait()

	stats := l.rt.Stats()
	l.logger.Info("Plugin unloaded",
		zap.Bool("drained", drained),
		zap.Duration("took", time.Since(start)),
		zap.Uint64("completed", stats.Completed),
		zap.Uint64("rejected", stats.Rejected),
		zap.Uint64("panicked", stats.Panicked))
}

// withInner runs fn against the loaded state, turning every failure,
// panics included, into a *geyser.PluginError of the given kind.
func (p *Plugin) withInner(kind geyser.ErrorKind, fn func(l *loaded) error) (err error) {
	l := p.state.Load()
	if l == nil {
		return geyser.NewError(geyser.ErrCustom, oops.Code(CodeNotLoaded).Wrap(ErrNotLoaded))
	}

	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("Callback panicked", zap.Any("panic", r), zap.Stack("stack"))
			err = geyser.NewError(kind,
				oops.Code(CodeCallbackPanicked).Errorf("callback panicked: %v", r))
		}
	}()

	if err := fn(l); err != nil {
		return geyser.NewError(kind, classify(err))
	}
	return nil
}

func classify(err error) error {
	var uv *message.UnsupportedVersionError
	if errors.As(err, &uv) {
		return oops.Code(CodeUnsupportedVersion).
			With("kind", uv.Kind.String()).
			With("version", string(uv.Version)).
			Wrap(err)
	}
	var se *bridge.SubmissionError
	if errors.As(err, &se) {
		return oops.Code(CodeSubmissionFailed).With("kind", se.Kind.String()).Wrap(err)
	}
	return err
}

func (p *Plugin) UpdateAccount(account geyser.ReplicaAccountInfoVersions, slot uint64, isStartup bool) error {
	return p.withInner(geyser.ErrAccountsUpdate, func(l *loaded) error {
		return l.bridge.UpdateAccount(account, slot, isStartup)
	})
}

func (p *Plugin) NotifyEndOfStartup() error {
	return p.withInner(geyser.ErrCustom, func(l *loaded) error {
		return l.bridge.NotifyEndOfStartup()
	})
}

func (p *Plugin) UpdateSlotStatus(slot uint64, parent *uint64, status geyser.SlotStatus) error {
	return p.withInner(geyser.ErrSlotStatusUpdate, func(l *loaded) error {
		return l.bridge.UpdateSlotStatus(slot, parent, status)
	})
}

func (p *Plugin) NotifyTransaction(tx geyser.ReplicaTransactionInfoVersions, slot uint64) error {
	return p.withInner(geyser.ErrTransactionUpdate, func(l *loaded) error {
		return l.bridge.NotifyTransaction(tx, slot)
	})
}

func (p *Plugin) NotifyEntry(entry geyser.ReplicaEntryInfoVersions) error {
	return p.withInner(geyser.ErrCustom, func(l *loaded) error {
		return l.bridge.NotifyEntry(entry)
	})
}

func (p *Plugin) NotifyBlockMetadata(info geyser.ReplicaBlockInfoVersions) error {
	return p.withInner(geyser.ErrCustom, func(l *loaded) error {
		return l.bridge.NotifyBlockMetadata(info)
	})
}

// Feature flags. Before OnLoad the defaults apply.

func (p *Plugin) notifications() config.NotificationsConfig {
	if l := p.state.Load(); l != nil {
		return l.cfg.Notifications
	}
	return config.Default().Notifications
}

func (p *Plugin) AccountDataNotificationsEnabled() bool {
	return p.notifications().Accounts
}

func (p *Plugin) AccountDataSnapshotNotificationsEnabled() bool {
	return p.notifications().AccountSnapshot
}

func (p *Plugin) TransactionNotificationsEnabled() bool {
	return p.notifications().Transactions
}

func (p *Plugin) EntryNotificationsEnabled() bool {
	return p.notifications().Entries
}
