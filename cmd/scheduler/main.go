package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Kluncker/rockville-cg-app/internal/bootstrap"
	"github.com/Kluncker/rockville-cg-app/internal/config"
	"github.com/Kluncker/rockville-cg-app/internal/logging"
	"github.com/Kluncker/rockville-cg-app/internal/reminders"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:           "scheduler",
		Short:         "Send task reminders once a day",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log := logging.New(cfg.LogLevel, cfg.LogFormat)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			err = run(ctx, cfg, log, once)
			if err != nil {
				log.WithError(err).Error("scheduler: exiting")
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run a single sweep now and exit")
	return cmd
}

func run(ctx context.Context, cfg *config.Config, log *logrus.Logger, once bool) error {
	svc, err := bootstrap.Build(ctx, cfg, log, bootstrap.Options{WithLease: true})
	if err != nil {
		return err
	}
	defer svc.Close()

	if once {
		rep, err := svc.Reminders.Sweep(ctx)
		if errors.Is(err, reminders.ErrLeaseHeld) {
			log.Info("scheduler: another sweep is running")
			return nil
		}
		if err != nil {
			return err
		}
		log.WithFields(logrus.Fields{
			"scanned": rep.Scanned,
			"sent":    rep.Sent,
			"skipped": rep.Skipped,
			"failed":  rep.Failed,
		}).Info("scheduler: done")
		return nil
	}

	log.WithFields(logrus.Fields{
		"hour":     cfg.ReminderHour,
		"timezone": cfg.Location.String(),
	}).Info("scheduler: started")
	err = svc.Reminders.RunDaily(ctx, cfg.ReminderHour)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
