package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lokapay/settlement-engine/internal/cron"
	"github.com/lokapay/settlement-engine/internal/queue"
	"github.com/lokapay/settlement-engine/pkg/chain"
	"github.com/lokapay/settlement-engine/pkg/config"
	"github.com/lokapay/settlement-engine/pkg/db"
	"github.com/lokapay/settlement-engine/pkg/logger"
	"github.com/lokapay/settlement-engine/pkg/redis"
)

type ServiceParams struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       *db.Client
	Redis    *redis.Client
	Chain    *chain.Client
	Cron     *cron.Service
	Consumer *queue.Consumer
}

// Service runs the two worker loops (reconcile cron, sweep consumer) plus the
// health and metrics listener in a single process.
type Service struct {
	cfg      *config.Config
	logg     *logger.Logger
	db       *db.Client
	redis    *redis.Client
	chain    *chain.Client
	cron     *cron.Service
	consumer *queue.Consumer
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Redis == nil {
		return nil, errors.New("redis client is required")
	}
	if params.Chain == nil {
		return nil, errors.New("chain client is required")
	}
	if params.Cron == nil {
		return nil, errors.New("cron service is required")
	}
	if params.Consumer == nil {
		return nil, errors.New("sweep consumer is required")
	}
	return &Service{
		cfg:      params.Config,
		logg:     params.Logger,
		db:       params.DB,
		redis:    params.Redis,
		chain:    params.Chain,
		cron:     params.Cron,
		consumer: params.Consumer,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	if err := pingDependency(ctx, s.logg, "database", s.db.Ping); err != nil {
		return err
	}
	if err := pingDependency(ctx, s.logg, "redis", s.redis.Ping); err != nil {
		return err
	}
	if err := pingDependency(ctx, s.logg, "chain", s.chain.Ping); err != nil {
		return err
	}
	s.logg.Info(ctx, "all worker dependencies are ready")
	return nil
}

func pingDependency(ctx context.Context, logg *logger.Logger, name string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
		return fmt.Errorf("%s ping failed: %w", name, err)
	}
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	server := &http.Server{
		Addr:    ":" + s.cfg.App.Port,
		Handler: s.router(),
	}

	errCh := make(chan error, 3)
	go func() {
		errCh <- s.cron.Run(ctx)
	}()
	go func() {
		errCh <- s.consumer.Run(ctx)
	}()
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logg.Error(ctx, "health listener shutdown failed", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logg.Info(ctx, "worker context canceled")
		return ctx.Err()
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logg.Error(ctx, "worker loop stopped unexpectedly", err)
			return err
		}
		return err
	}
}

func (s *Service) router() http.Handler {
	r := chi.NewRouter()
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"live"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		checks := map[string]func(context.Context) error{
			"database": s.db.Ping,
			"redis":    s.redis.Ping,
			"chain":    s.chain.Ping,
		}
		for name, fn := range checks {
			if err := fn(req.Context()); err != nil {
				s.logg.Error(req.Context(), fmt.Sprintf("%s readiness check failed", name), err)
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"unavailable"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}
