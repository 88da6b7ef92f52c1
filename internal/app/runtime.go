package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/nhle/pmcore/internal/connectivity"
	"github.com/nhle/pmcore/internal/forward"
	"github.com/nhle/pmcore/internal/kvstore"
	"github.com/nhle/pmcore/internal/metrics"
	"github.com/nhle/pmcore/internal/model"
	"github.com/nhle/pmcore/internal/notification"
	"github.com/nhle/pmcore/internal/offline"
	"github.com/nhle/pmcore/internal/toast"
)

// Runtime owns the stores and their collaborators for one process.
type Runtime struct {
	Config        *model.AppConfig
	Log           *zap.Logger
	Store         kvstore.Store
	Notifications *notification.Store
	Queue         *offline.Queue
	Registry      *prometheus.Registry

	// Simulated lets the user force the queue offline from the UI.
	Simulated *connectivity.Manual

	// Prober is nil unless Options.Probe was set.
	Prober *connectivity.Prober

	secrets   kvstore.Store
	forwarder forward.Forwarder
	stops     []func()
}

// Options tune what Open wires up.
type Options struct {
	// Toasts receives user feedback from both stores.
	Toasts toast.Presenter

	// Probe starts the background connectivity prober.
	Probe bool
}

// Open builds the runtime from cfg and loads both collections.
func Open(ctx context.Context, cfg *model.AppConfig, log *zap.Logger, opts Options) (*Runtime, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Toasts == nil {
		opts.Toasts = toast.Nop{}
	}

	policy, err := offline.ParseFlushPolicy(cfg.Offline.FlushPolicy)
	if err != nil {
		return nil, err
	}

	kv, err := kvstore.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	r := &Runtime{
		Config:    cfg,
		Log:       log,
		Store:     kv,
		Registry:  prometheus.NewRegistry(),
		Simulated: connectivity.NewManual(connectivity.Status{Connected: true, InternetReachable: true}),
	}

	if cfg.Offline.Forwarder == model.ForwarderIMAP {
		r.secrets, err = r.openSecrets()
		if err != nil {
			_ = kv.Close()
			return nil, err
		}
	}

	r.forwarder, err = forward.New(cfg, log.Named("forward"), r.secrets)
	if err != nil {
		_ = kv.Close()
		return nil, fmt.Errorf("building forwarder: %w", err)
	}

	m := metrics.New(r.Registry)

	r.Notifications = notification.New(kv,
		notification.WithKey(cfg.Storage.NotificationsKey),
		notification.WithLogger(log.Named("notifications")),
		notification.WithToasts(opts.Toasts),
		notification.WithMetrics(m),
	)

	queueOpts := []offline.Option{
		offline.WithKey(cfg.Storage.OfflineKey),
		offline.WithLogger(log.Named("offline")),
		offline.WithToasts(opts.Toasts),
		offline.WithMetrics(m),
		offline.WithPolicy(policy),
		offline.WithForwardTimeout(time.Duration(cfg.Offline.ForwardTimeout) * time.Second),
	}
	if r.forwarder != nil {
		queueOpts = append(queueOpts, offline.WithForwarder(r.forwarder))
	}
	r.Queue = offline.New(kv, queueOpts...)

	r.Notifications.Load(ctx)
	r.Queue.Load(ctx)

	if opts.Probe {
		r.Prober = connectivity.NewProber(
			cfg.Connectivity.ProbeAddr,
			cfg.Connectivity.Timeout(),
			connectivity.WithInterval(cfg.Connectivity.Interval()),
			connectivity.WithLogger(log.Named("connectivity")),
		)
	}

	return r, nil
}

// openSecrets reuses the storage backend when it already is the
// keyring and opens the keyring otherwise.
func (r *Runtime) openSecrets() (kvstore.Store, error) {
	if ks, ok := r.Store.(*kvstore.KeyringStore); ok {
		return ks, nil
	}
	return kvstore.OpenKeyring(r.Config.Storage.KeyringService, r.Config.Storage.KeyringDir)
}

// Secrets returns the keyring, opening it on first use.
func (r *Runtime) Secrets() (kvstore.Store, error) {
	if r.secrets == nil {
		s, err := r.openSecrets()
		if err != nil {
			return nil, err
		}
		r.secrets = s
	}
	return r.secrets, nil
}

// Start subscribes the queue to connectivity changes and starts the
// prober if one was requested.
func (r *Runtime) Start(ctx context.Context) {
	r.stops = append(r.stops, r.Queue.Watch(ctx, r.Simulated))
	if r.Prober != nil {
		r.stops = append(r.stops, r.Queue.Watch(ctx, r.Prober))
		r.Prober.Start()
	}
}

// ServeMetrics exposes the registry on cfg.Metrics.Listen until ctx is
// done. It returns immediately when no address is configured.
func (r *Runtime) ServeMetrics(ctx context.Context) {
	addr := r.Config.Metrics.Listen
	if addr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(r.Registry))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.Log.Error("serving metrics", zap.String("addr", addr), zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}

// Close stops background work and releases the forwarder and storage.
func (r *Runtime) Close() error {
	for _, stop := range r.stops {
		stop()
	}
	r.stops = nil

	if r.Prober != nil {
		r.Prober.Stop()
	}

	var errs []error
	if r.forwarder != nil {
		if err := r.forwarder.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing forwarder: %w", err))
		}
	}
	if r.secrets != nil && r.secrets != r.Store {
		if err := r.secrets.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing secrets: %w", err))
		}
	}
	r.secrets = nil
	if err := r.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing store: %w", err))
	}
	return errors.Join(errs...)
}
