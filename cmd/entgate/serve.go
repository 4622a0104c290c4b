package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/archvision/entgate/internal/api"
	"github.com/archvision/entgate/internal/cache"
	"github.com/archvision/entgate/internal/catalog"
	"github.com/archvision/entgate/internal/config"
	"github.com/archvision/entgate/internal/engine"
	"github.com/archvision/entgate/internal/logging"
	"github.com/archvision/entgate/internal/metrics"
	"github.com/archvision/entgate/internal/observability"
	"github.com/archvision/entgate/internal/service"
	"github.com/archvision/entgate/internal/store"
)

func serveCmd() *cobra.Command {
	var (
		httpAddr   string
		configPath string
		noCache    bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the evaluation and administration HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			cfg := config.DefaultConfig()
			if configPath != "" {
				loaded, err := config.LoadFromFile(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			config.LoadFromEnv(cfg)
			if httpAddr != "" {
				cfg.Server.HTTPAddr = httpAddr
			}
			if pgDSN != "" {
				cfg.Postgres.DSN = pgDSN
			}
			if logLevel != "" {
				cfg.Server.LogLevel = logLevel
			}
			if noCache {
				cfg.Cache.Enabled = false
			}

			logging.SetLevelFromString(cfg.Server.LogLevel)
			metrics.InitPrometheus(cfg.MetricsNS, nil)

			if err := observability.Init(ctx, observability.Config{
				Enabled:     cfg.Telemetry.Enabled,
				Exporter:    cfg.Telemetry.Exporter,
				Endpoint:    cfg.Telemetry.Endpoint,
				ServiceName: "entgate",
				SampleRate:  cfg.Telemetry.SampleRate,
			}); err != nil {
				return err
			}
			defer observability.Shutdown(ctx)

			if cfg.AuditPath != "" {
				if err := logging.Decisions().SetOutput(cfg.AuditPath); err != nil {
					return err
				}
				defer logging.Decisions().Close()
			}

			st, err := getStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			cat := catalog.Default()
			if cfg.CatalogPath != "" {
				cat, err = catalog.LoadFile(cfg.CatalogPath)
				if err != nil {
					return err
				}
			}

			// Read path: optionally front the store with a cache. With
			// Redis configured the cache is tiered and grant mutations
			// propagate invalidations to every replica.
			readStore := store.EntitlementStore(st)
			var invalidator service.GrantInvalidator
			if cfg.Cache.Enabled {
				local := cache.NewInMemoryCache()
				var layered cache.Cache = local
				var pub store.Publisher
				if cfg.Redis.Addr != "" {
					client := redis.NewClient(&redis.Options{
						Addr:     cfg.Redis.Addr,
						Password: cfg.Redis.Password,
						DB:       cfg.Redis.DB,
					})
					if err := client.Ping(ctx).Err(); err != nil {
						logging.Op().Warn("redis unreachable, using local cache only",
							"addr", cfg.Redis.Addr, "error", err)
					} else {
						layered = cache.NewTieredCache(local, cache.NewRedisCacheFromClient(client, ""), cfg.Cache.TTL)
						inv := cache.NewInvalidator(local, client)
						if err := inv.Start(ctx); err != nil {
							return err
						}
						defer inv.Close()
						pub = inv
					}
				}
				cached := store.NewCachedEntitlementStore(st, layered, cfg.Cache.TTL)
				if pub != nil {
					cached.SetPublisher(pub)
				}
				readStore = cached
				invalidator = cached
			}

			eng := engine.New(readStore, st,
				engine.WithStoreTimeout(cfg.Engine.StoreTimeout),
				engine.WithBatchConcurrency(cfg.Engine.BatchConcurrency),
			)
			admin := service.NewAdminService(st, cat, invalidator)

			server := api.StartHTTPServer(cfg.Server.HTTPAddr, api.ServerConfig{
				Engine: eng,
				Admin:  admin,
				Store:  st,
			})
			logging.Op().Info("entgate serving", "addr", cfg.Server.HTTPAddr,
				"cache", cfg.Cache.Enabled, "products", len(cat.ProductCodes()))

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			<-sigCh

			return server.Shutdown(ctx)
		},
	}

	cmd.Flags().StringVar(&httpAddr, "http", "", "HTTP listen address")
	cmd.Flags().StringVar(&configPath, "config", "", "Config file path (JSON)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "Disable the entitlement read cache")

	return cmd
}
