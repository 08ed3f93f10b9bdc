package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Kluncker/rockville-cg-app/internal/bootstrap"
	"github.com/Kluncker/rockville-cg-app/internal/config"
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
	if len(cfg.KafkaBrokers) == 0 {
		log.Fatal("worker: KAFKA_BROKERS is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// no publisher: the worker is the end of the queue
	svc, err := bootstrap.Build(ctx, cfg, log, bootstrap.Options{})
	if err != nil {
		log.WithError(err).Fatal("worker: init services")
	}
	defer svc.Close()

	consumer := queue.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopicTask, cfg.KafkaGroupID)
	defer consumer.Close()

	wlog := log.WithFields(logrus.Fields{
		"component": "worker",
		"topic":     cfg.KafkaTopicTask,
		"group":     cfg.KafkaGroupID,
	})
	wlog.Info("worker: started")

	for {
		msg, commit, err := consumer.ReadTaskChange(ctx)
		if err != nil {
			if ctx.Err() != nil {
				wlog.Info("worker: shutting down")
				return
			}
			if errors.Is(err, queue.ErrInvalidMessage) {
				wlog.WithError(err).Warn("worker: dropped bad message")
				continue
			}
			wlog.WithError(err).Error("worker: read error")
			time.Sleep(500 * time.Millisecond)
			continue
		}

		handle(ctx, svc.Lifecycle, msg, wlog)

		// email failures are logged, not retried, so a redelivery cannot
		// double-send what already went out
		if err := commit(ctx); err != nil {
			wlog.WithError(err).Error("worker: commit error")
		}
	}
}

func handle(ctx context.Context, lc *lifecycle.Manager, msg queue.TaskChangeMessage, log logrus.FieldLogger) {
	log = log.WithFields(logrus.Fields{"task_id": msg.TaskID, "kind": msg.Kind})

	var err error
	switch msg.Kind {
	case lifecycle.ChangeCreated:
		err = lc.OnTaskCreated(ctx, *msg.After)
	case lifecycle.ChangeUpdated:
		err = lc.OnTaskUpdated(ctx, *msg.Before, *msg.After)
	}
	if err != nil {
		log.WithError(err).Warn("worker: trigger finished with errors")
		return
	}
	log.Debug("worker: trigger done")
}
