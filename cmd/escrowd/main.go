package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/escrowd/internal/config"
	"github.com/tdex-network/escrowd/internal/core/application"
	"github.com/tdex-network/escrowd/internal/infrastructure/custody"
	"github.com/tdex-network/escrowd/internal/infrastructure/eventfeed"
	"github.com/tdex-network/escrowd/internal/infrastructure/pubsub"
	httpinterface "github.com/tdex-network/escrowd/internal/interfaces/http"
	"github.com/tdex-network/escrowd/pkg/stats"
)

func main() {
	if err := config.InitConfig(); err != nil {
		log.WithError(err).Fatal("failed to load config")
	}

	log.SetLevel(log.Level(config.GetInt(config.LogLevelKey)))

	dbType := config.GetString(config.DBTypeKey)
	datadir := config.GetDatadir()
	dbDir := filepath.Join(datadir, config.DbLocation)
	pubsubDir := datadir
	custodyDir := dbDir
	if dbType == application.DBInMemory {
		pubsubDir = ""
		custodyDir = ""
	}

	webhookSvc, err := pubsub.NewService(
		pubsubDir, log.New(),
		config.GetWebhookTimeout(), config.GetInt(config.WebhookRateLimitKey),
	)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize webhook service")
	}

	var (
		metrics        *stats.Metrics
		metricsHandler http.Handler
	)
	if config.GetBool(config.EnableMetricsKey) {
		registry := prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics, err = stats.NewMetrics(registry)
		if err != nil {
			log.WithError(err).Fatal("failed to register metrics")
		}
		metricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	}

	custodian, err := custody.NewPersistentService(custodyDir, log.New())
	if err != nil {
		log.WithError(err).Fatal("failed to initialize custody service")
	}
	feed := eventfeed.NewService()

	appConfig := &application.Config{
		DBType:         dbType,
		DBConfig:       dbDir,
		Custodian:      custodian,
		PubSub:         webhookSvc,
		EventFeed:      feed,
		Metrics:        metrics,
		Owner:          config.GetOwner(),
		LedgerAddress:  config.GetLedgerAddress(),
		MinimumPayment: config.GetMinimumPayment(),
	}
	if err := appConfig.Validate(); err != nil {
		log.WithError(err).Fatal("invalid config")
	}

	opts := httpinterface.ServiceOpts{
		Port:           config.GetInt(config.ListeningPortKey),
		MaxConnections: config.GetInt(config.MaxConnectionsKey),
		NoAuth:         config.GetBool(config.NoAuthKey),
		AuthSecret:     config.GetString(config.AuthSecretKey),
		EscrowSvc:      appConfig.EscrowService(),
		PubSubSvc:      appConfig.PubSubService(),
		Custodian:      custodian,
		EventStream:    feed,
		Metrics:        metricsHandler,
	}
	if config.GetBool(config.EnableFaucetKey) {
		opts.Faucet = custodian
		log.Warn("faucet endpoints are enabled, do not use in production")
	}
	if opts.NoAuth {
		log.Warn("caller authentication is disabled, do not use in production")
	}

	svc, err := httpinterface.NewService(opts)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize http interface")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if config.GetBool(config.EnableProfilerKey) {
		interval := time.Duration(config.GetInt(config.StatsIntervalKey)) * time.Second
		stats.EnableMemoryStatistics(ctx, interval)
	}

	log.Info("starting daemon")
	defer log.Info("shutdown")

	if err := svc.Start(); err != nil {
		log.WithError(err).Fatal("failed to start daemon")
	}
	log.Infof(
		"ledger owned by %s, custody account %s",
		config.GetOwner().Hex(), config.GetLedgerAddress().Hex(),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT, os.Interrupt)
	<-sigChan

	log.Info("shutting down daemon")
	svc.Stop()
	appConfig.Close()
	if err := custodian.Close(); err != nil {
		log.WithError(err).Warn("failed to close custody store")
	}
}
