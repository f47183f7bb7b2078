package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/coachlatam/coachlatam/migrations"
	billingapi "github.com/coachlatam/coachlatam/modules/billing"
	"github.com/coachlatam/coachlatam/pkg/auth"
	"github.com/coachlatam/coachlatam/pkg/config"
	"github.com/coachlatam/coachlatam/pkg/httpserver"
	"github.com/coachlatam/coachlatam/pkg/logger"
	"github.com/coachlatam/coachlatam/pkg/pg"
	"github.com/coachlatam/coachlatam/pkg/ratelimiter"
	"github.com/coachlatam/coachlatam/pkg/redis"
)

// ServeConfig holds settings that only the API server reads.
type ServeConfig struct {
	MigrateOnStart bool               `env:"MIGRATE_ON_START" envDefault:"false"`
	ReadyTimeout   time.Duration      `env:"HEALTH_READY_TIMEOUT" envDefault:"3s"`
	CouponLimit    ratelimiter.Config `envPrefix:"COUPON_RATE_"`
}

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the billing HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	serveCfg, err := config.Load[ServeConfig]()
	if err != nil {
		return err
	}
	httpCfg, err := config.Load[httpserver.Config]()
	if err != nil {
		return err
	}
	authCfg, err := config.Load[auth.Config]()
	if err != nil {
		return err
	}

	pool, pgCfg, err := a.connectPostgres(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	if serveCfg.MigrateOnStart {
		if err := pg.Migrate(ctx, pool, migrations.FS, pgCfg, a.log); err != nil {
			return err
		}
	}

	rdb, err := a.connectRedis(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = rdb.Close() }()

	svcs, err := a.buildServices(pool, rdb)
	if err != nil {
		return err
	}

	verifier, err := auth.NewVerifier(authCfg)
	if err != nil {
		return err
	}
	couponLimit, err := ratelimiter.NewBucket(
		ratelimiter.NewRedisStore(rdb, ratelimiter.WithKeyPrefix("billing:ratelimit:")),
		serveCfg.CouponLimit,
	)
	if err != nil {
		return err
	}

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		requestLogger(a.log),
	)

	r.Get("/health/live", httpserver.LivenessHandler())
	r.Get("/health/ready", httpserver.ReadinessHandler(a.log, serveCfg.ReadyTimeout,
		httpserver.Check{Name: "postgres", Fn: pg.Healthcheck(pool)},
		httpserver.Check{Name: "redis", Fn: redis.Healthcheck(rdb)},
	))

	r.Mount("/api", billingapi.Router(billingapi.RouterOptions{
		Subscription: billingapi.NewSubscriptionHandler(svcs.subscriptions, a.log),
		Coupons:      billingapi.NewCouponHandler(svcs.coupons, a.log, billingapi.WithRateLimiter(couponLimit)),
		Webhooks:     billingapi.NewWebhookHandler(svcs.subscriptions, a.log),
		Authenticate: auth.Middleware(auth.MiddlewareConfig{
			Verifier:  verifier,
			Extractor: auth.FirstOf(auth.BearerTokenExtractor, auth.CookieTokenExtractor("sb-access-token")),
			OnError:   billingapi.Unauthorized,
		}),
	}))

	srv := httpserver.NewFromConfig(httpCfg, httpserver.WithLogger(a.log))
	return srv.Run(ctx, r)
}

// requestLogger logs one line per request once the response is written.
func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			log.LogAttrs(r.Context(), slog.LevelInfo, "http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status_code", ww.Status()),
				slog.Int("bytes", ww.BytesWritten()),
				logger.Duration(time.Since(start)),
			)
		})
	}
}

func requestIDExtractor(ctx context.Context) (slog.Attr, bool) {
	id := middleware.GetReqID(ctx)
	if id == "" {
		return slog.Attr{}, false
	}
	return logger.RequestID(id), true
}
