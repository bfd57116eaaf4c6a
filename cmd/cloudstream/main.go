package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"

	"github.com/zsiec/cloudstream/internal/api"
	"github.com/zsiec/cloudstream/internal/config"
	"github.com/zsiec/cloudstream/internal/health"
	"github.com/zsiec/cloudstream/internal/logger"
	"github.com/zsiec/cloudstream/internal/registry"
	"github.com/zsiec/cloudstream/internal/server"
	"github.com/zsiec/cloudstream/internal/stream"
	"github.com/zsiec/cloudstream/pkg/version"
)

func main() {
	var (
		configPath  string
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "configs/default.yaml", "Path to configuration file")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.Parse()

	if showVersion {
		fmt.Println(version.GetInfo().String())
		os.Exit(0)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logrusLogger, err := logger.New(&cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	log := logger.FromLogrus(logrusLogger)

	log.WithField("version", version.GetInfo().Short()).Info("Starting cloudstream")
	log.WithField("config_path", configPath).Debug("Configuration loaded")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Error("cloudstream stopped with error")
		os.Exit(1)
	}
	log.Info("Shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	reg, redisClient, err := openRegistry(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer reg.Close()

	slots, err := stream.NewSlotStore(afero.NewOsFs(), cfg.Streaming.SlotDir, cfg.Streaming.SlotPattern, cfg.Streaming.RotationWidth)
	if err != nil {
		return err
	}

	fetcher, err := stream.NewHTTPFetcher(stream.FetcherConfig{
		BaseURL:            cfg.Streaming.BaseURL,
		Transport:          cfg.Streaming.Transport,
		Timeout:            cfg.Streaming.FetchTimeout,
		MaxBytes:           cfg.Streaming.MaxFrameBytes,
		InsecureSkipVerify: cfg.Streaming.InsecureSkipVerify,
	})
	if err != nil {
		return err
	}
	defer fetcher.Close()

	publisher := stream.NewPublisher()
	ctrl, err := stream.NewController(stream.ControllerConfig{
		Fetcher:     fetcher,
		Slots:       slots,
		Publisher:   publisher,
		NamePattern: cfg.Streaming.NamePattern,
		MaxPoints:   cfg.Streaming.MaxPoints,
		Logger:      log,
	})
	if err != nil {
		return err
	}

	session, err := stream.NewSession(cfg.Streaming.StartIndex, cfg.Streaming.RotationWidth)
	if err != nil {
		return err
	}
	runner := stream.NewRunner(ctrl, session, cfg.Streaming.TickRate, cfg.Streaming.TickBurst, log)
	runner.Observe(func(s stream.Session) {
		if err := reg.SaveSession(ctx, s); err != nil {
			log.WithError(err).Debug("Failed to save session")
		}
	})
	go recordFrames(ctx, publisher, reg, session.ID, log)

	srv := server.New(&cfg.Server, log)
	hm := srv.HealthManager()
	hm.Register(health.NewSlotDirChecker(slots))
	hm.Register(health.NewSessionChecker(runner.Session))
	if redisClient != nil {
		hm.Register(health.NewRedisChecker(redisClient))
	}
	handlers := api.NewHandlers(runner, publisher, reg, stream.NewHub(publisher, log), log)
	srv.RegisterRoutes(func(r *mux.Router) { handlers.Register(r) })

	if cfg.Metrics.Enabled {
		go startMetricsServer(ctx, cfg.Metrics, log)
	}

	srvCtx, stopServer := context.WithCancel(ctx)
	defer stopServer()
	srvErr := make(chan error, 1)
	go func() { srvErr <- srv.Start(srvCtx) }()

	runCtx, stopRunner := context.WithCancel(ctx)
	defer stopRunner()
	runErr := make(chan error, 1)
	go func() { runErr <- runner.Run(runCtx) }()

	select {
	case err := <-srvErr:
		return err
	case err := <-runErr:
		if errors.Is(err, context.Canceled) {
			break
		}
		if cfg.Streaming.StopOnHalt {
			stopServer()
			<-srvErr
			return err
		}
		log.WithError(err).Warn("Streaming halted; still serving the last published frame")
	}

	<-ctx.Done()
	return <-srvErr
}

// openRegistry connects to Redis when enabled and falls back to an
// in-memory registry otherwise.
func openRegistry(ctx context.Context, cfg *config.Config, log logger.Logger) (registry.Registry, redis.UniversalClient, error) {
	if !cfg.Redis.Enabled {
		log.Info("Redis disabled; keeping frame history in memory")
		return registry.NewMemoryRegistry(registry.DefaultHistory), nil, nil
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:        cfg.Redis.Addresses,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		MaxRetries:   cfg.Redis.MaxRetries,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	log.WithField("addresses", cfg.Redis.Addresses).Info("Connected to Redis")

	return registry.NewRedisRegistry(client, log, cfg.Redis.TTL, registry.DefaultHistory), client, nil
}

// recordFrames writes every published snapshot to the registry.
func recordFrames(ctx context.Context, p *stream.Publisher, reg registry.Registry, sessionID string, log logger.Logger) {
	frames, unsubscribe := p.Subscribe(16)
	defer unsubscribe()

	for {
		select {
		case snap := <-frames:
			if err := reg.Record(ctx, registry.EntryFor(sessionID, snap)); err != nil {
				log.WithError(err).WithField("frame", snap.Name).Warn("Failed to record frame")
			}
		case <-ctx.Done():
			return
		}
	}
}

func startMetricsServer(ctx context.Context, cfg config.MetricsConfig, log logger.Logger) {
	metricsMux := http.NewServeMux()
	metricsMux.Handle(cfg.Path, promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Port), Handler: metricsMux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	log.WithField("addr", srv.Addr).Info("Starting metrics server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Error("Metrics server error")
	}
}
