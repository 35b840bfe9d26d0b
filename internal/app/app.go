package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/xenking/course-coupons/internal/domain/coupon"
	"github.com/xenking/course-coupons/internal/domain/receipt"
	"github.com/xenking/course-coupons/internal/ecommerce"
	"github.com/xenking/course-coupons/internal/handler"
	"github.com/xenking/course-coupons/pkg/health"
	"github.com/xenking/course-coupons/pkg/httpmiddleware"
)

// NewClient creates the upstream client described by cfg.
func NewClient(cfg *Config, m *app.Telemetry) (*ecommerce.Client, error) {
	return ecommerce.New(ecommerce.Config{
		BaseURL: cfg.EcommerceURL,
		LMSURL:  cfg.LMSURL,
		Timeout: cfg.HTTPTimeout,
		Retry: ecommerce.RetryPolicy{
			Times: cfg.Retry.Times,
			Delay: cfg.Retry.Delay,
		},
	},
		ecommerce.WithTracerProvider(m.TracerProvider()),
		ecommerce.WithMeterProvider(m.MeterProvider()),
	)
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the service.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("ecommerce", cfg.EcommerceURL),
	)

	client, err := NewClient(cfg, m)
	if err != nil {
		return errors.Wrap(err, "create ecommerce client")
	}

	healthSvc := health.New()
	healthSvc.AddReadinessCheck("ecommerce", 5*time.Second, health.PingCheck("ecommerce", client))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	h := handler.New(handler.Config{
		PlatformName: cfg.PlatformName,
		LMSURL:       cfg.LMSURL,
		PartnerID:    cfg.PartnerID,
		PageSize:     cfg.Offers.PageSize,
		CSRFCookie:   cfg.CSRFCookie,
	}, handler.Deps{
		Coupons:   client,
		Partners:  client,
		Offers:    client,
		Credits:   client,
		Receipts:  receipt.NewService(client),
		Validator: coupon.NewValidator(nil),
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/api/", http.StripPrefix("/api", h.Routes()))

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		// Receipt reads may wait out upstream retries.
		WriteTimeout:   cfg.HTTPTimeout + time.Duration(cfg.Retry.Times+1)*(cfg.Retry.Delay+cfg.HTTPTimeout),
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
		Addr:           cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.Trace("coupons-api",
				otelhttp.WithTracerProvider(m.TracerProvider()),
				otelhttp.WithMeterProvider(m.MeterProvider()),
				otelhttp.WithFilter(func(r *http.Request) bool {
					return r.URL.Path != "/livez" && r.URL.Path != "/readyz"
				}),
			),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "X-CSRFToken", "X-Request-ID"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
