// Package bootstrap wires the shared services from config for the commands.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Kluncker/rockville-cg-app/internal/config"
	"github.com/Kluncker/rockville-cg-app/internal/email"
	"github.com/Kluncker/rockville-cg-app/internal/lease"
	"github.com/Kluncker/rockville-cg-app/internal/lifecycle"
	"github.com/Kluncker/rockville-cg-app/internal/logging"
	"github.com/Kluncker/rockville-cg-app/internal/notify"
	"github.com/Kluncker/rockville-cg-app/internal/reminders"
	"github.com/Kluncker/rockville-cg-app/internal/store"
	"github.com/Kluncker/rockville-cg-app/internal/tokens"
)

type Services struct {
	Store     store.Store
	Sender    email.Sender
	Composer  *notify.Composer
	Issuer    *tokens.Issuer
	Lifecycle *lifecycle.Manager
	Tokens    *tokens.Service
	Reminders *reminders.Scheduler

	closers []func() error
}

// Close releases connections opened by Build.
func (s *Services) Close() {
	for _, c := range s.closers {
		_ = c()
	}
}

type Options struct {
	Publisher lifecycle.ChangePublisher
	// WithLease connects to REDIS_ADDR (when set) for the sweep lease.
	WithLease bool
}

func OpenStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case "memory":
		return store.NewMemoryStore(), nil
	case "dynamo", "":
		return store.NewDynamoStore(ctx, store.DynamoConfig{
			Region:      cfg.AWSRegion,
			Endpoint:    cfg.DynamoEndpoint,
			TablePrefix: cfg.DynamoTablePrefix,
		})
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}

func Build(ctx context.Context, cfg *config.Config, log *logrus.Logger, o Options) (*Services, error) {
	st, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	from := cfg.EmailFrom
	if cfg.EmailProvider == "ses" {
		from = cfg.SESFromEmail
	}
	provider, err := email.NewSender(ctx, email.Options{
		Provider:       cfg.EmailProvider,
		FromEmail:      from,
		FromName:       cfg.EmailFromName,
		SendGridAPIKey: cfg.SendGridAPIKey,
	}, logging.Component(log, "email"))
	if err != nil {
		return nil, fmt.Errorf("init email: %w", err)
	}
	sender := email.NewBreakerSender(provider, log)

	s := &Services{
		Store:    st,
		Sender:   sender,
		Composer: notify.NewComposer(cfg.AppBaseURL, cfg.Location),
		Issuer:   tokens.NewIssuer(st, cfg.TokenTTL),
	}
	s.Lifecycle = lifecycle.NewManager(lifecycle.Deps{
		Store:     st,
		Sender:    sender,
		Composer:  s.Composer,
		Minter:    s.Issuer,
		Publisher: o.Publisher,
		Log:       log,
	})
	s.Tokens = tokens.NewService(s.Issuer, st, s.Lifecycle, log)

	var runLease reminders.Lease
	if o.WithLease && cfg.RedisAddr != "" {
		rc, err := lease.Dial(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, rc.Close)
		runLease = lease.NewRedisLease(rc)
	}
	s.Reminders = reminders.NewScheduler(reminders.Deps{
		Store:    st,
		Sender:   sender,
		Composer: s.Composer,
		Lease:    runLease,
		Location: cfg.Location,
		Log:      log,
	})
	return s, nil
}
