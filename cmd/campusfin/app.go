package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/campusfin/client/internal/application/access"
	"github.com/campusfin/client/internal/application/finance"
	"github.com/campusfin/client/internal/application/navigation"
	"github.com/campusfin/client/internal/application/receipt"
	"github.com/campusfin/client/internal/application/session"
	"github.com/campusfin/client/internal/domain/identity"
	"github.com/campusfin/client/internal/domain/shared"
	"github.com/campusfin/client/internal/infrastructure/backend"
	"github.com/campusfin/client/internal/infrastructure/config"
	"github.com/campusfin/client/internal/infrastructure/event"
	"github.com/campusfin/client/internal/infrastructure/httpclient"
	"github.com/campusfin/client/internal/infrastructure/logger"
	"github.com/campusfin/client/internal/infrastructure/metrics"
	"github.com/campusfin/client/internal/infrastructure/storage"
	"github.com/campusfin/client/internal/infrastructure/telemetry"
	"github.com/campusfin/client/internal/infrastructure/tokenstore"
	"github.com/campusfin/client/internal/infrastructure/viewer"
	"go.uber.org/zap"
)

// app holds every wired component for one CLI invocation
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	metrics   *metrics.Recorder
	tracing   *telemetry.TracerProvider
	bus       *event.InMemoryEventBus
	tokens    tokenstore.Store
	api       *backend.API
	session   *session.Manager
	finance   *finance.Store
	receipts  *receipt.Workflow
	navigator *navigation.Navigator
	viewer    *viewer.ChromeViewer
	handlers  []shared.EventHandler
}

// newApp wires the client from cfg. Close must be called when done.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	a := &app{cfg: cfg, logger: log}

	if cfg.Metrics.Enabled {
		a.metrics = metrics.NewRecorder()
		if cfg.Metrics.Addr != "" {
			addr, err := a.metrics.Serve(cfg.Metrics.Addr)
			if err != nil {
				return nil, err
			}
			log.Info("serving metrics", zap.String("addr", addr.String()))
		}
	}

	a.tracing, err = telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.tokens, err = tokenstore.New(cfg, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.bus = event.NewInMemoryEventBus(log)

	// The client reads the token from the session manager, which itself
	// talks to the backend through the client.
	client, err := httpclient.New(cfg.API,
		httpclient.WithTokenSource(httpclient.TokenFunc(func() string { return a.session.Token() })),
		httpclient.WithUnauthorizedHandler(func(ctx context.Context) { a.session.HandleUnauthorized(ctx) }),
		httpclient.WithMetrics(a.metrics),
		httpclient.WithLogger(log),
	)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.api = backend.New(client)

	a.session = session.NewManager(a.api, a.tokens,
		session.WithEventPublisher(a.bus),
		session.WithMetrics(a.metrics),
		session.WithLogger(log),
	)
	a.finance = finance.NewStore(a.api, a.session,
		finance.WithMetrics(a.metrics),
		finance.WithLogger(log),
	)

	sink, err := storage.NewSink(cfg, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.viewer = viewer.NewChromeViewer(cfg.Viewer, viewer.WithLogger(log))
	a.receipts = receipt.NewWorkflow(a.api, sink,
		receipt.WithViewer(a.viewer),
		receipt.WithPrintDelay(cfg.Receipts.PrintDelay),
		receipt.WithMetrics(a.metrics),
		receipt.WithLogger(log),
	)

	a.navigator = navigation.New(cfg.Session.DefaultPath,
		navigation.WithLoginPath(cfg.Session.LoginPath),
		navigation.WithHomePath(cfg.Session.DefaultPath),
		navigation.WithLogger(log),
	)
	a.subscribe(a.navigator)
	a.subscribe(event.NewFuncHandler(func(ctx context.Context, _ shared.DomainEvent) error {
		a.finance.Reset()
		return nil
	}, identity.EventTypeSessionExpired, identity.EventTypeLoggedOut))

	return a, nil
}

func (a *app) subscribe(h shared.EventHandler) {
	a.bus.Subscribe(h)
	a.handlers = append(a.handlers, h)
}

// enter revalidates the persisted session and checks it may open route.
func (a *app) enter(ctx context.Context, route string) (identity.Session, error) {
	if err := a.session.Start(ctx); err != nil {
		return identity.Session{}, err
	}
	snap := a.session.Snapshot()
	if _, d := a.navigator.Navigate(snap, route); d != access.Allow {
		return snap, &accessError{route: route, decision: d}
	}
	return snap, nil
}

// Close releases everything newApp acquired
func (a *app) Close() {
	ctx := context.Background()
	// detach first so nothing reacts to events while components shut down
	for _, h := range a.handlers {
		a.bus.Unsubscribe(h)
	}
	a.handlers = nil

	var errs []error
	if a.viewer != nil {
		errs = append(errs, a.viewer.Close())
	}
	if a.tokens != nil {
		errs = append(errs, a.tokens.Close())
	}
	if a.tracing != nil {
		errs = append(errs, a.tracing.Shutdown(ctx))
	}
	if a.metrics != nil {
		errs = append(errs, a.metrics.Shutdown(ctx))
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("error during shutdown", zap.Error(err))
	}
	_ = logger.Sync(a.logger)
}
