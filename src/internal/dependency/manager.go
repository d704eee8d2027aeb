package dependency

import (
	"time"

	"storefront-session-svc/src/clients"
	"storefront-session-svc/src/internal/config"
	"storefront-session-svc/src/internal/session"
	"storefront-session-svc/src/internal/storage"

	"github.com/gin-gonic/gin"
)

type Manager struct {
	Router         *gin.Engine
	Config         *config.Configuration
	Mongodb        *clients.MongoDB
	Redis          *clients.RedisClient
	RabbitMQ       *clients.RabbitMQ
	Storage        storage.Storage
	Store          *session.Store
	AuthClient     *clients.AuthClient
	SessionHandler session.Handler
}

// NewDependencyManager wires the session store on top of whichever backends
// were connected. Any of mongodb, redisClient and rabbitMQ may be nil.
func NewDependencyManager(router *gin.Engine,
	mongodb *clients.MongoDB,
	redisClient *clients.RedisClient,
	rabbitMQ *clients.RabbitMQ,
	cfg *config.Configuration) (*Manager, error) {
	var backends storage.Backends
	if mongodb != nil {
		backends.Database = mongodb.Database
	}
	if redisClient != nil {
		backends.Redis = redisClient.Client
	}

	st, err := storage.New(cfg, backends)
	if err != nil {
		return nil, err
	}

	opts := []session.Option{
		session.WithStorageTimeout(time.Duration(cfg.Session.StorageTimeout) * time.Second),
	}
	if rabbitMQ != nil && cfg.Queue.Enabled {
		opts = append(opts, session.WithListener(clients.NewActivityPublisher(rabbitMQ.Channel, cfg)))
	}

	store := session.NewStore(st, opts...)
	authClient := clients.NewAuthClient(cfg, store)
	sessionHandler := session.NewHandler(cfg, store, authClient)

	return &Manager{
		Router:         router,
		Config:         cfg,
		Mongodb:        mongodb,
		Redis:          redisClient,
		RabbitMQ:       rabbitMQ,
		Storage:        st,
		Store:          store,
		AuthClient:     authClient,
		SessionHandler: sessionHandler,
	}, nil
}
