package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"storefront/internal/config"
	"storefront/internal/events"
	"storefront/internal/http/handlers"
	applog "storefront/internal/log"
	"storefront/internal/metrics"
	"storefront/internal/repos"
)

func main() {
	log := applog.Logger()

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("config")
	}
	closer, err := applog.Setup(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.WithError(err).Fatal("log setup")
	}
	defer closer.Close()

	db, err := repos.OpenDB(cfg.DBDSN)
	if err != nil {
		log.WithError(err).Fatal("open db")
	}
	defer db.Close()

	if !filepath.IsAbs(cfg.MediaDir) {
		if abs, err := filepath.Abs(cfg.MediaDir); err == nil {
			cfg.MediaDir = abs
		}
	}
	log.WithField("dir", cfg.MediaDir).Info("static.media")

	m := metrics.New()
	deps := handlers.NewDeps(db, cfg, m)
	app := handlers.NewApp(deps, handlers.AppOptions{
		TemplateDir:  cfg.TemplateDir,
		Reload:       cfg.TemplateReload,
		CookieSecure: cfg.CookieSecure,
		AccessLog:    true,
	})

	// Order events
	var pub events.Publisher = events.LogPublisher{}
	if cfg.KafkaBrokers != "" {
		pub = events.NewKafkaPublisher(cfg.KafkaBrokers)
		log.WithField("topic", cfg.OrderEventsTopic).Info("events.kafka")
	}
	relay := &events.Relay{
		Outbox:   deps.Outbox,
		Pub:      pub,
		Batch:    cfg.OutboxBatch,
		Interval: cfg.OutboxInterval,
		Metrics:  m,
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		relay.Run(ctx)
	}()

	go func() {
		<-ctx.Done()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.WithError(err).Warn("shutdown")
		}
	}()

	log.WithField("addr", cfg.Addr()).Info("listening")
	if err := app.Listen(cfg.Addr()); err != nil {
		log.WithError(err).Error("listen")
	}
	stop()
	<-relayDone
	if err := pub.Close(); err != nil {
		log.WithError(err).Warn("publisher close")
	}
}
