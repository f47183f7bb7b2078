package main

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/coachlatam/coachlatam/pkg/auth"
	"github.com/coachlatam/coachlatam/pkg/billing"
	"github.com/coachlatam/coachlatam/pkg/config"
	"github.com/coachlatam/coachlatam/pkg/email"
	"github.com/coachlatam/coachlatam/pkg/logger"
	"github.com/coachlatam/coachlatam/pkg/pg"
	"github.com/coachlatam/coachlatam/pkg/redis"
	"github.com/coachlatam/coachlatam/svc/coupon"
	"github.com/coachlatam/coachlatam/svc/subscription"
)

// AppConfig holds process wide settings.
type AppConfig struct {
	Env  string `env:"APP_ENV" envDefault:"development"`
	Name string `env:"APP_NAME" envDefault:"coachlatam"`
}

// app is shared by every command. Connections are opened lazily by the
// commands that need them.
type app struct {
	cfg AppConfig
	log *slog.Logger

	newOperator func(ctx context.Context) (sagaOperator, func(), error)
}

func newRootCmd() *cobra.Command {
	return newRootCmdWith(&app{})
}

func newRootCmdWith(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "coachlatam",
		Short:         "CoachLatam billing service",
		Long:          "Runs the billing API and the operator tooling for subscriptions, coupons and billing sagas.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load[AppConfig]()
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.log = logger.New(
				logger.WithEnvironment(cfg.Env, cfg.Name),
				logger.WithContextExtractors(auth.UserIDExtractor, requestIDExtractor),
			)
			logger.SetAsDefault(a.log)
			a.log.DebugContext(cmd.Context(), "command start", slog.String("command", cmd.CommandPath()))
			return nil
		},
	}

	root.AddCommand(
		newServeCmd(a),
		newMigrateCmd(a),
		newSagasCmd(a),
	)
	return root
}

func (a *app) connectPostgres(ctx context.Context) (*pgxpool.Pool, pg.Config, error) {
	cfg, err := config.Load[pg.Config]()
	if err != nil {
		return nil, cfg, err
	}
	pool, err := pg.Connect(ctx, cfg)
	if err != nil {
		return nil, cfg, err
	}
	return pool, cfg, nil
}

func (a *app) connectRedis(ctx context.Context) (*goredis.Client, error) {
	cfg, err := config.Load[redis.Config]()
	if err != nil {
		return nil, err
	}
	return redis.Connect(ctx, cfg)
}

// services are the billing services built on shared connections.
type services struct {
	subscriptions *subscription.Service
	coupons       *coupon.Service
}

// buildServices wires the payment provider, stores, lock and operator
// notifier into the billing services.
func (a *app) buildServices(pool *pgxpool.Pool, rdb goredis.UniversalClient) (*services, error) {
	subCfg, err := config.Load[subscription.Config]()
	if err != nil {
		return nil, err
	}
	billingCfg, err := config.Load[billing.Config]()
	if err != nil {
		return nil, err
	}
	emailCfg, err := config.Load[email.Config]()
	if err != nil {
		return nil, err
	}

	if err := subCfg.Validate(billingCfg.CallTimeout()); err != nil {
		return nil, err
	}

	catalog, err := subscription.LoadCatalog(subCfg.PlansFile)
	if err != nil {
		return nil, err
	}
	provider, err := billing.New(billingCfg, a.log)
	if err != nil {
		return nil, err
	}

	var notifier subscription.Notifier = subscription.NewLogNotifier(a.log)
	if subCfg.OpsAlertEmail != "" {
		sender, err := email.New(emailCfg, a.log)
		if err != nil {
			return nil, err
		}
		notifier = subscription.NewEmailNotifier(sender, subCfg.OpsAlertEmail)
	} else {
		a.log.Warn("OPS_ALERT_EMAIL is not set, critical billing alerts are only logged")
	}

	coupons := coupon.NewService(coupon.NewPGStore(pool), a.log)
	store := subscription.NewPGStore(pool)

	opts := []subscription.Option{
		subscription.WithCoupons(coupons),
		subscription.WithNotifier(notifier),
		subscription.WithLogger(a.log),
		subscription.WithCompensationTimeout(subCfg.CompensationTimeout),
	}
	if rdb != nil {
		opts = append(opts, subscription.WithLocker(
			subscription.NewRedisLocker(redis.NewLocker(rdb, subCfg.LockPrefix, subCfg.LockTTL), a.log),
		))
	}

	return &services{
		subscriptions: subscription.NewService(provider, store, store, catalog, opts...),
		coupons:       coupons,
	}, nil
}
