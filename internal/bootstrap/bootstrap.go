// Package bootstrap assembles the quote store, the remote client and the
// synchronizer from configuration. The service and quotectl share it so
// both see the same store with the same semantics.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jsamuelsen/quotesync/internal/adapters/clients"
	"github.com/jsamuelsen/quotesync/internal/adapters/clients/acl"
	"github.com/jsamuelsen/quotesync/internal/adapters/notify"
	"github.com/jsamuelsen/quotesync/internal/adapters/storage"
	"github.com/jsamuelsen/quotesync/internal/app"
	"github.com/jsamuelsen/quotesync/internal/domain"
	"github.com/jsamuelsen/quotesync/internal/platform/config"
	"github.com/jsamuelsen/quotesync/internal/platform/logging"
	"github.com/jsamuelsen/quotesync/internal/ports"
)

// healthCheckTimeout bounds each readiness check.
const healthCheckTimeout = 2 * time.Second

// Options are the optional collaborators of Build.
type Options struct {
	// Metrics receives one record per sync cycle.
	Metrics app.CycleRecorder

	// Notifier overrides the in-process notification center.
	Notifier ports.Notifier

	// Remote overrides the posts client built from cfg.Services.Remote.
	Remote ports.RemoteQuoteSource
}

// Components is the wired application core.
type Components struct {
	Backend       storage.Backend
	Notifications *notify.Center
	Store         *app.QuoteStore
	Remote        ports.RemoteQuoteSource
	Sync          *app.Synchronizer
	Health        *ports.DefaultHealthRegistry
}

// NewLogger builds the process logger from the log section of cfg.
func NewLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	return logging.NewWithWriter(&logging.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: cfg.App.Name,
		Version: cfg.App.Version,
		File: logging.FileConfig{
			Enabled:    cfg.Log.File.Enabled,
			Path:       cfg.Log.File.Path,
			MaxSizeMB:  cfg.Log.File.MaxSizeMB,
			MaxBackups: cfg.Log.File.MaxBackups,
			MaxAgeDays: cfg.Log.File.MaxAgeDays,
			Compress:   cfg.Log.File.Compress,
		},
	}, w)
}

// Build opens the store backend, loads the quote list and wires the
// synchronizer. The caller owns the result and must Close it.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*Components, error) {
	backend, err := storage.Open(ctx, cfg.Store.Backend, cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	c := &Components{
		Backend:       backend,
		Notifications: notify.NewCenter(notify.WithLogger(logger)),
		Health:        ports.NewHealthRegistry(ports.WithCheckTimeout(healthCheckTimeout)),
	}

	notifier := opts.Notifier
	if notifier == nil {
		notifier = c.Notifications
	}

	if err := c.Health.Register(backend); err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("registering store health check: %w", err)
	}

	c.Remote = opts.Remote
	if c.Remote == nil {
		posts, err := newPostsClient(cfg, logger)
		if err != nil {
			_ = backend.Close()
			return nil, err
		}

		if err := c.Health.Register(posts); err != nil {
			_ = backend.Close()
			return nil, fmt.Errorf("registering remote health check: %w", err)
		}

		c.Remote = posts
	}

	c.Store = app.NewQuoteStore(app.QuoteStoreConfig{
		Store:    backend,
		Notifier: notifier,
		Logger:   logger,
	})

	if err := c.Store.Load(ctx); err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("loading quotes: %w", err)
	}

	c.Sync = app.NewSynchronizer(app.SynchronizerConfig{
		Store:       c.Store,
		Remote:      c.Remote,
		Notifier:    notifier,
		Metrics:     opts.Metrics,
		Logger:      logger,
		PostTimeout: cfg.Sync.PostTimeout,
	})

	if cfg.Sync.PostOnAdd {
		c.Store.OnAdd(func(ctx context.Context, q domain.Quote) {
			c.Sync.PostQuote(ctx, q)
		})
	}

	return c, nil
}

func newPostsClient(cfg *config.Config, logger *slog.Logger) (*acl.PostsClient, error) {
	remote := cfg.Services.Remote

	httpClient, err := clients.New(&clients.Config{
		BaseURL:     remote.BaseURL,
		ServiceName: remote.Name,
		Timeout:     cfg.Client.Timeout,
		Retry:       cfg.Client.Retry,
		Circuit:     cfg.Client.CircuitBreaker,
		Transport:   cfg.Client.Transport,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating remote client: %w", err)
	}

	return acl.NewPostsClient(acl.PostsClientConfig{
		Client:     httpClient,
		PostsPath:  remote.PostsPath,
		FetchLimit: cfg.Sync.FetchLimit,
		Category:   cfg.Sync.ServerCategory,
		UserID:     cfg.Sync.UserID,
		Logger:     logger,
	}), nil
}

// Close drains background posts, bounded by ctx, then closes the backend.
func (c *Components) Close(ctx context.Context) error {
	waitErr := c.Sync.Wait(ctx)
	if waitErr != nil {
		waitErr = fmt.Errorf("waiting for background posts: %w", waitErr)
	}

	return errors.Join(waitErr, c.Backend.Close())
}
