package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Kluncker/rockville-cg-app/internal/bootstrap"
	"github.com/Kluncker/rockville-cg-app/internal/config"
	httpapi "github.com/Kluncker/rockville-cg-app/internal/http"
	"github.com/Kluncker/rockville-cg-app/internal/lifecycle"
	"github.com/Kluncker/rockville-cg-app/internal/logging"
	"github.com/Kluncker/rockville-cg-app/internal/queue"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("info", "text").Fatal(err)
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var pub lifecycle.ChangePublisher
	if len(cfg.KafkaBrokers) > 0 {
		prod, err := queue.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopicTask)
		if err != nil {
			log.WithError(err).Fatal("api: init kafka producer")
		}
		defer prod.Close()
		pub = prod
		log.WithField("topic", cfg.KafkaTopicTask).Info("api: publishing task changes to kafka")
	} else {
		log.Info("api: KAFKA_BROKERS not set, running task triggers inline")
	}

	svc, err := bootstrap.Build(ctx, cfg, log, bootstrap.Options{Publisher: pub, WithLease: true})
	if err != nil {
		log.WithError(err).Fatal("api: init services")
	}
	defer svc.Close()

	app := &httpapi.App{
		Store:     svc.Store,
		Lifecycle: svc.Lifecycle,
		Tokens:    svc.Tokens,
		Reminders: svc.Reminders,
		JWTSecret: []byte(cfg.JWTSecret),
		Log:       logging.Component(log, "http"),
	}
	if cfg.JWTSecret == "" {
		log.Warn("api: JWT_SECRET not set, authenticated routes will fail")
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(app),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()

	log.WithField("addr", cfg.HTTPAddr).Info("api: listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("api: serve")
	}
}
