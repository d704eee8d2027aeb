package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"storefront-session-svc/src/clients"
	"storefront-session-svc/src/internal/config"
	"storefront-session-svc/src/internal/dependency"
	"storefront-session-svc/src/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Server struct {
	config *config.Configuration
	deps   *dependency.Manager
	http   *http.Server
}

// New connects only the backends the configuration asks for: redis or mongo
// when they back the session storage, rabbitmq when activity publishing is on.
func New(ctx context.Context, cfg *config.Configuration) (*Server, error) {
	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	var (
		mongodb     *clients.MongoDB
		redisClient *clients.RedisClient
		rabbitMQ    *clients.RabbitMQ
		err         error
	)

	switch cfg.Storage.Driver {
	case storage.DriverMongo:
		mongodb, err = clients.NewMongoDB(ctx, &cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
		}
	case storage.DriverRedis:
		redisClient, err = clients.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
	}

	if cfg.Queue.Enabled {
		rabbitMQ, err = clients.NewRabbitMQ(&cfg.Queue)
		if err != nil {
			// activity events are optional; the session works without them
			logrus.WithError(err).Warn("RabbitMQ unavailable, session activity will not be published")
			rabbitMQ = nil
		} else if err := rabbitMQ.SetupExchange(); err != nil {
			logrus.WithError(err).Warn("Failed to declare activity exchange")
		}
	}

	deps, err := dependency.NewDependencyManager(router, mongodb, redisClient, rabbitMQ, cfg)
	if err != nil {
		return nil, err
	}
	SetupRoutes(deps)

	return &Server{
		config: cfg,
		deps:   deps,
		http: &http.Server{
			Addr:         ":" + cfg.Server.Port,
			Handler:      router,
			ReadTimeout:  seconds(cfg.Server.ReadTimeout, 15),
			WriteTimeout: seconds(cfg.Server.WriteTimeout, 15),
			IdleTimeout:  seconds(cfg.Server.IdleTimeout, 60),
		},
	}, nil
}

// Start hydrates the session from storage, serves until ctx is cancelled and
// then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.deps.Store.Hydrate(ctx)

	errCh := make(chan error, 1)
	go func() {
		logrus.WithField("addr", s.http.Addr).Info("HTTP server listening")
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.close()
		return err
	case <-ctx.Done():
	}

	logrus.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), seconds(s.config.App.Timeout, 10))
	defer cancel()

	err := s.http.Shutdown(shutdownCtx)
	s.close()
	return err
}

func (s *Server) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if s.deps.RabbitMQ != nil {
		_ = s.deps.RabbitMQ.Close()
	}
	if s.deps.Redis != nil {
		if err := s.deps.Redis.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close redis")
		}
	}
	if s.deps.Mongodb != nil {
		if err := s.deps.Mongodb.Close(ctx); err != nil {
			logrus.WithError(err).Warn("Failed to close mongodb")
		}
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logrus.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"route":      c.GetString("route_name"),
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
		}).Debug("Request handled")
	}
}

func seconds(value, fallback int) time.Duration {
	if value <= 0 {
		value = fallback
	}
	return time.Duration(value) * time.Second
}
