package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/diwise/activitystreams/internal/pkg/application/objectstore"
	"github.com/diwise/activitystreams/internal/pkg/application/subscriptions"
	"github.com/diwise/activitystreams/internal/pkg/infrastructure/router"
	"github.com/diwise/activitystreams/internal/pkg/infrastructure/storage"
	api "github.com/diwise/activitystreams/internal/pkg/presentation/api/activitystreams"
	"github.com/diwise/activitystreams/pkg/activitystreams/jsonld"
	"github.com/diwise/service-chassis/pkg/infrastructure/buildinfo"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	_ "github.com/joho/godotenv/autoload"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const serviceName string = "activitystreams"

func main() {
	serviceVersion := buildinfo.SourceVersion()

	ctx, flags := parseExternalConfig(context.Background(), defaultFlags())

	ctx, logger, cleanup := o11y.Init(ctx, serviceName, serviceVersion, flags[logFormat])
	defer cleanup()

	appConfig, err := loadAppConfig(flags)
	if err != nil {
		logger.Error("failed to load configuration", "err", err.Error())
		os.Exit(1)
	}

	handler, shutdown, err := initialize(ctx, flags, appConfig)
	if err != nil {
		logger.Error("failed to initialize service", "err", err.Error())
		os.Exit(1)
	}
	defer shutdown()

	address := net.JoinHostPort(flags[listenAddress], flags[servicePort])
	logger.Info("starting to listen for connections", "address", address)

	err = http.ListenAndServe(address, handler)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("failed to listen for connections", "err", err.Error())
	}
}

func initialize(ctx context.Context, flags FlagMap, cfg *AppConfig) (http.Handler, func(), error) {
	defer cfg.opaConfig.Close()

	closers := []func(){}
	shutdown := func() {
		for idx := len(closers) - 1; idx >= 0; idx-- {
			closers[idx]()
		}
	}

	logging.GetFromContext(ctx).Info("opening object storage", "driver", cfg.storeConfig.Storage.Driver)

	store, err := storage.Open(ctx, cfg.storeConfig.Storage.Driver, cfg.storeConfig.Storage.Path)
	if err != nil {
		return nil, nil, err
	}
	closers = append(closers, store.Close)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	options := []objectstore.Option{objectstore.WithRegisterer(reg)}

	notifier, closeNotifier, err := newNotifier(ctx, cfg.storeConfig.Notifications)
	if err != nil {
		shutdown()
		return nil, nil, err
	}

	if notifier != nil {
		notifier.Start()
		closers = append(closers, closeNotifier)
		options = append(options, objectstore.WithNotifier(notifier))
	}

	if flags[remoteContexts] == "true" {
		options = append(options, objectstore.WithDocumentLoader(jsonld.NewHTTPLoader()))
	}

	app, err := objectstore.New(ctx, cfg.storeConfig, cfg.assets, store, options...)
	if err != nil {
		shutdown()
		return nil, nil, err
	}

	r := router.New(serviceName, reg)

	err = api.RegisterHandlers(ctx, r, nil, cfg.opaConfig, app)
	if err != nil {
		shutdown()
		return nil, nil, err
	}

	return r, shutdown, nil
}

// newNotifier prefers nats over http when both are configured
func newNotifier(ctx context.Context, cfg objectstore.NotificationConfig) (subscriptions.Notifier, func(), error) {
	if cfg.NATS.URL != "" {
		nc, err := nats.Connect(cfg.NATS.URL, nats.Name(serviceName))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to nats: %w", err)
		}

		n, err := subscriptions.NewNATSNotifier(ctx, nc, cfg.NATS.Subject)
		if err != nil {
			nc.Close()
			return nil, nil, err
		}

		return n, func() { n.Stop(); nc.Drain() }, nil
	}

	if cfg.Endpoint != "" {
		n, err := subscriptions.NewNotifier(ctx, cfg.Endpoint)
		if err != nil {
			return nil, nil, err
		}
		return n, func() { n.Stop() }, nil
	}

	return nil, func() {}, nil
}
