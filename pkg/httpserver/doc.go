// Package httpserver runs an http.Handler with graceful shutdown on context
// cancellation or SIGINT/SIGTERM, and provides liveness and readiness check
// handlers.
//
//	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))
//	r.Get("/health/live", httpserver.LivenessHandler())
//	r.Get("/health/ready", httpserver.ReadinessHandler(log, 2*time.Second,
//	    httpserver.Check{Name: "postgres", Fn: pg.Healthcheck(pool)},
//	    httpserver.Check{Name: "redis", Fn: redis.Healthcheck(client)},
//	))
//	if err := srv.Run(ctx, r); err != nil {
//	    return err
//	}
package httpserver
