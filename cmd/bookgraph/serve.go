package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hanpama/bookgraph/internal/catalog"
	"github.com/hanpama/bookgraph/internal/config"
	"github.com/hanpama/bookgraph/internal/eventbus"
	"github.com/hanpama/bookgraph/internal/executor"
	"github.com/hanpama/bookgraph/internal/introspection"
	"github.com/hanpama/bookgraph/internal/localrt"
	"github.com/hanpama/bookgraph/internal/logging"
	"github.com/hanpama/bookgraph/internal/metrics"
	"github.com/hanpama/bookgraph/internal/otel"
	"github.com/hanpama/bookgraph/internal/server"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the GraphQL API and GraphiQL on /graphql",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var portFlag *int
			if cmd.Flags().Changed("port") {
				portFlag = &port
			}
			cfg, err := loadConfig(configPath, portFlag)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", os.Getenv("BOOKGRAPH_CONFIG"), "YAML config `file` (env BOOKGRAPH_CONFIG)")
	cmd.Flags().IntVar(&port, "port", config.DefaultPort, "HTTP listen port; overrides config and environment")
	return cmd
}

// loadConfig resolves the configuration: file, then environment, then the
// port flag when it was given. The result is validated.
func loadConfig(path string, port *int) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := config.ApplyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if port != nil {
		cfg.Server.Port = *port
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newHandler seeds the catalog and mounts the GraphQL handler on /graphql.
func newHandler(cfg *config.Config) (http.Handler, *catalog.Store, error) {
	seed := catalog.DefaultSeed()
	if cfg.Catalog.SeedFile != "" {
		var err error
		if seed, err = catalog.LoadSeed(cfg.Catalog.SeedFile); err != nil {
			return nil, nil, err
		}
	}
	store := catalog.NewStore(seed, catalog.WithStrictReferences(cfg.Catalog.StrictReferences))

	var rtOpts []localrt.Option
	if cfg.Catalog.ParallelBatches {
		rtOpts = append(rtOpts, localrt.WithParallelGroups())
	}
	sch, rt, err := catalog.Build(store, rtOpts...)
	if err != nil {
		return nil, nil, err
	}
	var runtime executor.Runtime = rt
	if cfg.Server.Introspection {
		w := introspection.Wrap(rt, sch)
		runtime, sch = w.Runtime, w.Schema
	}

	opts := []server.Option{
		server.WithGraphiQL(cfg.Server.GraphiQL),
		server.WithTimeout(cfg.Server.Timeout),
		server.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
	}
	if cfg.Server.Pretty {
		opts = append(opts, server.WithPretty())
	}
	if len(cfg.Server.CORSOrigins) > 0 {
		opts = append(opts, server.WithCORS(cfg.Server.CORSOrigins...))
	}
	h, err := server.New(runtime, sch, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("server init: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/graphql", h)
	return mux, store, nil
}

// newMetricsHandler registers the collectors for store on a fresh registry
// and returns the /metrics handler.
func newMetricsHandler(store *catalog.Store) (http.Handler, func(), error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	if err := metrics.RegisterCatalog(reg, store); err != nil {
		return nil, nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	return mux, m.Subscribe(), nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	eventbus.Use(eventbus.New())
	defer eventbus.Use(nil)
	defer logging.Subscribe(logger)()

	shutdownTracing, err := otel.Setup(cfg.OTel.Endpoint, cfg.OTel.Service)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	handler, store, err := newHandler(cfg)
	if err != nil {
		return err
	}
	servers := []*http.Server{{Addr: cfg.Addr(), Handler: handler, ReadHeaderTimeout: 10 * time.Second}}
	if cfg.Metrics.Addr != "" {
		mh, unsubscribe, err := newMetricsHandler(store)
		if err != nil {
			return err
		}
		defer unsubscribe()
		servers = append(servers, &http.Server{Addr: cfg.Metrics.Addr, Handler: mh, ReadHeaderTimeout: 10 * time.Second})
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(func() error {
			logger.Info("listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		var errs []error
		for _, srv := range servers {
			errs = append(errs, srv.Shutdown(sctx))
		}
		return errors.Join(errs...)
	})
	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("stopped")
	return nil
}
