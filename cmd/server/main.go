// Command server runs the trip and passenger correlation engine: it consumes
// face-detection events from the device topic, serves the HTTP API, and
// publishes live trip events for dashboards.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/sanjeevantech/bustrack/internal/device"
	devicehandler "github.com/sanjeevantech/bustrack/internal/device/handler"
	"github.com/sanjeevantech/bustrack/internal/engine"
	enginehandler "github.com/sanjeevantech/bustrack/internal/engine/handler"
	enginemetrics "github.com/sanjeevantech/bustrack/internal/engine/metrics"
	"github.com/sanjeevantech/bustrack/internal/events"
	"github.com/sanjeevantech/bustrack/internal/fare"
	"github.com/sanjeevantech/bustrack/internal/ingest"
	passengerstore "github.com/sanjeevantech/bustrack/internal/passenger/store"
	"github.com/sanjeevantech/bustrack/internal/platform/config"
	"github.com/sanjeevantech/bustrack/internal/platform/httpserver"
	"github.com/sanjeevantech/bustrack/internal/platform/kafka/consumer"
	"github.com/sanjeevantech/bustrack/internal/platform/logger"
	"github.com/sanjeevantech/bustrack/internal/platform/postgres"
	platformredis "github.com/sanjeevantech/bustrack/internal/platform/redis"
	"github.com/sanjeevantech/bustrack/internal/resolver"
	"github.com/sanjeevantech/bustrack/internal/resolver/dedupe"
	"github.com/sanjeevantech/bustrack/internal/resolver/watermark"
	"github.com/sanjeevantech/bustrack/internal/schedule"
	schedulehandler "github.com/sanjeevantech/bustrack/internal/schedule/handler"
	"github.com/sanjeevantech/bustrack/internal/ticket"
	triphandler "github.com/sanjeevantech/bustrack/internal/trip/handler"
	tripmetrics "github.com/sanjeevantech/bustrack/internal/trip/metrics"
	tripservice "github.com/sanjeevantech/bustrack/internal/trip/service"
	tripstore "github.com/sanjeevantech/bustrack/internal/trip/store"
	"github.com/sanjeevantech/bustrack/internal/trip/tracker"
	httptransport "github.com/sanjeevantech/bustrack/internal/transport/http"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var checks []httptransport.HealthCheck

	// Storage. Without DATABASE_URL everything runs in memory, which is how
	// the pilot fleet's single-box deployments operate.
	db, err := postgres.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	var (
		trips     tripstore.Store
		directory passengerstore.Directory
		schedules schedule.Provider
	)
	if db != nil {
		defer db.Close()
		if err := postgres.Ping(ctx, db); err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			return err
		}
		trips = tripstore.NewPostgresStore(db)
		directory = passengerstore.NewPostgresDirectory(db)
		schedules = schedule.NewPostgresProvider(db)
		checks = append(checks, httptransport.HealthCheck{Name: "postgres", Probe: func(ctx context.Context) error {
			return db.PingContext(ctx)
		}})
		log.Info("using postgres storage")
	} else {
		trips = tripstore.NewInMemoryStore()
		directory = passengerstore.NewInMemoryDirectory()
		memProvider := schedule.NewInMemoryProvider()
		if cfg.ScheduleFile != "" {
			snap, err := schedule.LoadFile(cfg.ScheduleFile)
			if err != nil {
				return err
			}
			schedule.SeedProvider(memProvider, snap)
			log.Info("schedule loaded", "file", cfg.ScheduleFile, "routes", len(snap.Routes))
		}
		schedules = memProvider
		log.Warn("no DATABASE_URL set, using in-memory storage")
	}

	// Redis backs the device watermarks and the dedup window so restarts do
	// not reopen the replay and double-count windows.
	rdb, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	var (
		watermarks watermark.Store
		dedupCache dedupe.Cache
	)
	if rdb != nil {
		defer rdb.Close()
		watermarks = watermark.NewRedisStore(rdb.Client)
		dedupCache = dedupe.NewRedisCache(rdb.Client)
		checks = append(checks, httptransport.HealthCheck{Name: "redis", Probe: rdb.Health})
		log.Info("using redis for watermarks and dedup")
	} else {
		watermarks = watermark.NewInMemoryStore()
		dedupCache = dedupe.NewInMemoryCache()
		log.Warn("no REDIS_URL set, watermarks and dedup are in-memory")
	}

	// Pipeline stages.
	res, err := resolver.New(resolver.Config{
		ConfidenceThreshold: cfg.Engine.ConfidenceThreshold,
		SkewTolerance:       cfg.Engine.SkewTolerance,
		DedupWindow:         cfg.Engine.DedupWindow,
	}, watermarks, dedupCache, resolver.WithLogger(log))
	if err != nil {
		return err
	}

	validator, err := ticket.New(directory,
		ticket.WithLogger(log),
		ticket.WithRetries(cfg.Engine.LookupRetries),
	)
	if err != nil {
		return err
	}

	svcOpts := []tripservice.Option{
		tripservice.WithLogger(log),
		tripservice.WithMetrics(tripmetrics.New()),
		tripservice.WithFareCalculator(fare.New(cfg.FareBase, cfg.FarePerStage)),
	}
	if cfg.NATSURL != "" {
		publisher, err := events.NewNATSPublisher(cfg.NATSURL, events.WithLogger(log))
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		defer publisher.Close()
		svcOpts = append(svcOpts, tripservice.WithEventPublisher(publisher))
		log.Info("publishing live events to nats", "url", cfg.NATSURL)
	}

	tripSvc := tripservice.New(
		trips,
		schedules,
		tracker.New(cfg.Engine.StopProximityKm, tracker.WithLogger(log)),
		cfg.Engine.InactivityTimeout,
		svcOpts...,
	)

	eng := engine.New(res, validator, tripSvc, schedules,
		engine.WithLogger(log),
		engine.WithMetrics(enginemetrics.New()),
		engine.WithTicketRequiredDefault(cfg.Engine.TicketRequiredDefault),
	)

	registry := device.NewRegistry(device.WithLogger(log))

	// HTTP surface.
	router := httptransport.NewRouter(log, checks,
		enginehandler.New(eng, log),
		triphandler.New(tripSvc, log),
		schedulehandler.New(schedules, log),
		devicehandler.New(registry, log),
	)
	srv := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("http server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = httpserver.New(cfg.MetricsAddr, mux)
		g.Go(func() error {
			log.Info("metrics server listening", "addr", cfg.MetricsAddr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	if len(cfg.KafkaBrokers) > 0 {
		handler := ingest.NewKafkaHandler(eng, log)
		cons, err := consumer.New(cfg.KafkaBrokers, cfg.KafkaGroup, cfg.KafkaTopic, handler, consumer.WithLogger(log))
		if err != nil {
			return fmt.Errorf("kafka consumer: %w", err)
		}
		g.Go(func() error {
			defer cons.Close()
			log.Info("consuming device events", "topic", cfg.KafkaTopic, "group", cfg.KafkaGroup)
			return cons.Run(ctx)
		})
	} else {
		log.Warn("no KAFKA_BROKERS set, device events arrive over HTTP only")
	}

	// Shutdown: wait for a signal or a fatal component error, then drain the
	// HTTP servers.
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if metricsSrv != nil {
			_ = metricsSrv.Shutdown(shutdownCtx)
		}
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("server stopped")
	return nil
}
