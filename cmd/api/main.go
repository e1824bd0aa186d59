package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hamed0406/scholarwatch/internal/config"
	"github.com/hamed0406/scholarwatch/internal/esindex"
	"github.com/hamed0406/scholarwatch/internal/httpapi"
	apimw "github.com/hamed0406/scholarwatch/internal/httpapi/middleware"
	"github.com/hamed0406/scholarwatch/internal/logging"
	"github.com/hamed0406/scholarwatch/internal/metrics"
	"github.com/hamed0406/scholarwatch/internal/notify"
	"github.com/hamed0406/scholarwatch/internal/probe"
	"github.com/hamed0406/scholarwatch/internal/scheduler"
	"github.com/hamed0406/scholarwatch/internal/scholar"
	"github.com/hamed0406/scholarwatch/internal/sites"
	"github.com/hamed0406/scholarwatch/internal/workflow"
)

func main() {
	cfg := config.FromEnv()
	logger, err := logging.NewLogger(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("config_invalid", zap.Error(err))
	}

	registry, err := sites.LoadFile(cfg.SitesFile)
	if err != nil {
		logger.Fatal("sites_load_error", zap.String("file", cfg.SitesFile), zap.Error(err))
	}

	index, err := newIndex(logger, cfg)
	if err != nil {
		logger.Fatal("index_init_error", zap.String("backend", cfg.SearchBackend), zap.Error(err))
	}
	policy, err := probe.ParsePolicy(cfg.ScanPolicy)
	if err != nil {
		logger.Fatal("config_invalid", zap.Error(err))
	}
	checker := probe.NewPresenceChecker(logger, index, policy, cfg.MaxSamples, probe.NewDrawPacer(cfg.DrawDelay))

	mailer := notify.NewMailer(logger, notify.TLSDialer{Timeout: cfg.SMTPTimeout}, notify.MailerConfig{
		Host: cfg.SMTPHost,
		Port: cfg.SMTPPort,
		From: cfg.SenderEmail,
		Credentials: notify.Credentials{
			Username: cfg.SenderEmail,
			Password: cfg.SenderPass,
		},
		MaxConns: cfg.MailMaxConns,
	})
	dispatcher := notify.NewDispatcher(logger, mailer, cfg.MailRetryAttempts, cfg.MailRetryBackoff)

	wf := workflow.New(logger, registry, checker, dispatcher, cfg.Recipients)
	wf.Metrics = metrics.New(prometheus.DefaultRegisterer)
	if mirror := notify.SlackMirrors(cfg.SlackWebhooks); mirror != nil {
		wf.Mirror = mirror
	}

	hash, err := apimw.HashPassword(cfg.Password)
	if err != nil {
		logger.Fatal("password_hash_error", zap.Error(err))
	}
	api := httpapi.NewServer(logger, wf, registry, httpapi.Options{
		Username:       cfg.Username,
		PasswordHash:   hash,
		RPM:            cfg.RPM,
		Burst:          cfg.Burst,
		AllowedOrigins: cfg.AllowedOrigins,
		Concurrency:    cfg.MaxConcurrentChecks,
		Metrics:        promhttp.Handler(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	rc := scheduler.NewRechecker(logger, wf, cfg.CheckInterval, cfg.MaxConcurrentChecks)
	go rc.Run(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      5 * time.Minute,
	}
	go func() {
		logger.Info("api_listen",
			zap.String("addr", cfg.Addr),
			zap.String("backend", cfg.SearchBackend),
			zap.String("policy", string(policy)),
			zap.Int("sites", len(registry.All())),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("api_listen_error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("api_shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("api_shutdown_error", zap.Error(err))
	}
}

func newIndex(logger *zap.Logger, cfg config.Config) (probe.Index, error) {
	if cfg.SearchBackend == config.BackendElasticsearch {
		es, err := esindex.New(logger, esindex.Config{
			Addresses:   cfg.ESAddrs,
			Index:       cfg.ESIndex,
			DomainField: cfg.ESDomainField,
			Username:    cfg.ESUsername,
			Password:    cfg.ESPassword,
		})
		if err != nil {
			return nil, err
		}
		return es, nil
	}
	sc, err := scholar.New(logger, scholar.Config{
		BaseURL:   cfg.ScholarBaseURL,
		UserAgent: cfg.ScholarUserAgent,
		Timeout:   cfg.HTTPTimeout,
		ProxyURL:  cfg.ScholarProxyURL,
	})
	if err != nil {
		return nil, err
	}
	return sc, nil
}
