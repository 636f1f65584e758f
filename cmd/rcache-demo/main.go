package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/vnykmshr/rcache-go/internal/config"
	"github.com/vnykmshr/rcache-go/internal/demo"
	"github.com/vnykmshr/rcache-go/pkg/metrics"
	"github.com/vnykmshr/rcache-go/pkg/rcache"
)

func main() {
	log.SetFormatter(&log.JSONFormatter{})

	envFile := flag.String("env", config.DefaultEnvFile, "dotenv file with REDIS_* settings")
	embedded := flag.Bool("embedded", false, "run against an in-process Redis server")
	serve := flag.Bool("serve", false, "keep serving metrics and debug endpoints after the demo")
	metricsAddr := flag.String("metrics-addr", ":9090", "address for /metrics")
	debugAddr := flag.String("debug-addr", ":9091", "address for the cache debug endpoints")
	userID := flag.Int("user", 7, "user id to look up")
	latency := flag.Duration("latency", 500*time.Millisecond, "simulated backend latency")
	flag.Parse()

	opts := []config.Option{config.WithEnvFile(*envFile)}

	if *embedded {
		mr := miniredis.NewMiniRedis()
		mr.RequireUserAuth("demo", "demo")
		if err := mr.Start(); err != nil {
			log.WithField("error", err).Fatal("Failed to start embedded Redis.")
		}
		defer mr.Close()

		port, _ := strconv.Atoi(mr.Port())
		opts = append(opts, config.WithAddress(mr.Host(), port), config.WithCredentials("demo", "demo"))
		log.WithField("addr", mr.Addr()).Info("Started embedded Redis.")
	}

	settings, err := config.Load(opts...)
	if err != nil {
		log.WithField("error", err).Fatal("Failed to load settings.")
	}

	lvl, err := log.ParseLevel(settings.LogLevel)
	if err != nil {
		log.WithField("error", err).Warn("Unknown log level, using info.")
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)

	redisOpts, err := settings.RedisOptions()
	if err != nil {
		log.WithField("error", err).Fatal("Invalid Redis settings.")
	}
	client := redis.NewClient(redisOpts)
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	err = client.Ping(pingCtx).Err()
	pingCancel()
	if err != nil {
		log.WithFields(log.Fields{"error": err, "addr": settings.Addr()}).Fatal("Redis is not reachable.")
	}

	registry := prometheus.NewRegistry()
	promExporter, err := metrics.NewPrometheusExporter(metrics.NewDefaultConfig(), &metrics.PrometheusConfig{Registry: registry})
	if err != nil {
		log.WithField("error", err).Fatal("Failed to create Prometheus exporter.")
	}
	otelExporter, err := metrics.NewOpenTelemetryExporter(metrics.NewDefaultConfig(), &metrics.OpenTelemetryConfig{
		Meter:   otel.Meter("github.com/vnykmshr/rcache-go"),
		Context: ctx,
	})
	if err != nil {
		log.WithField("error", err).Fatal("Failed to create OpenTelemetry exporter.")
	}

	logger := rcache.NewLogrusLogger(log.StandardLogger())
	cacheConfig := rcache.NewRedisConfigWithClient(client).
		WithRedisKeyPrefix(settings.KeyPrefix).
		WithDefaultTTL(settings.TTLFast).
		WithOperationTimeout(settings.OperationTimeout).
		WithLogger(logger).
		WithHooks(rcache.NewLoggingHookBuilder().WithLogger(logger).EnableAllLogging().Build()).
		WithMetricsExporter(metrics.NewMultiExporter(promExporter, otelExporter), "demo")

	cache, err := rcache.New(cacheConfig)
	if err != nil {
		log.WithField("error", err).Fatal("Failed to create cache.")
	}
	defer cache.Close()

	metricsServer := &http.Server{
		Addr:              *metricsAddr,
		Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	debugServer := cache.NewDebugServer(*debugAddr)
	for _, srv := range []*http.Server{metricsServer, debugServer} {
		go func(srv *http.Server) {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithFields(log.Fields{"error": err, "addr": srv.Addr}).Error("Listener stopped.")
			}
		}(srv)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = metricsServer.Shutdown(shutdownCtx)
		_ = debugServer.Shutdown(shutdownCtx)
	}()

	backend := demo.NewBackend(*latency, 4*(*latency))
	svc, err := demo.NewService(cache, backend, demo.TTLs{Fast: settings.TTLFast, Slow: settings.TTLSlow})
	if err != nil {
		log.WithField("error", err).Fatal("Failed to create demo service.")
	}

	run(ctx, svc, *userID)

	users, predictions, updates := backend.Calls()
	stats := cache.Stats()
	log.WithFields(log.Fields{
		"backend_user_calls":       users,
		"backend_prediction_calls": predictions,
		"backend_update_calls":     updates,
		"hits":                     stats.Hits(),
		"misses":                   stats.Misses(),
		"hit_rate":                 stats.HitRate(),
	}).Info("Demo finished.")

	if !*serve {
		return
	}

	log.WithFields(log.Fields{"metrics": *metricsAddr, "debug": *debugAddr}).Info("Serving until interrupted.")
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	<-sigs
	log.Info("Exiting application.")
}

func run(ctx context.Context, svc *demo.Service, id int) {
	timed := func(name string, fn func() (any, error)) {
		start := time.Now()
		v, err := fn()
		entry := log.WithFields(log.Fields{"call": name, "elapsed": time.Since(start).String()})
		if err != nil {
			entry.WithField("error", err).Error("Call failed.")
			return
		}
		entry.WithField("result", v).Info("Call returned.")
	}

	getUser := func() (any, error) { return svc.GetUser(ctx, id) }
	timed("GetUser", getUser)
	timed("GetUser", getUser)

	timed("UpdateUser", func() (any, error) {
		return svc.UpdateUser(ctx, id, rcache.Kwargs{"name": "User_" + strconv.Itoa(id) + "_updated"})
	})
	timed("GetUser", getUser)

	timed("GetUserAsync", func() (any, error) {
		res := <-svc.GetUserAsync(ctx, id)
		return res.Val, res.Err
	})

	predict := func() (any, error) { return svc.RunPrediction(ctx, "model_a", []float64{0.5, 1.5, 2.5}) }
	timed("RunPrediction", predict)
	timed("RunPrediction", predict)
}
