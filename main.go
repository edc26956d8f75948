package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"brokerage-gateway/domain/model"
	"brokerage-gateway/domain/repository"
	"brokerage-gateway/infrastructure/audit"
	"brokerage-gateway/infrastructure/cache"
	"brokerage-gateway/infrastructure/clients/brokerage"
	"brokerage-gateway/infrastructure/configuration"
	"brokerage-gateway/infrastructure/logger"
	"brokerage-gateway/infrastructure/oauth1"
	"brokerage-gateway/infrastructure/persistence"
	"brokerage-gateway/infrastructure/pubsub"
	"brokerage-gateway/infrastructure/servicebus"
	"brokerage-gateway/infrastructure/utils"
	"brokerage-gateway/infrastructure/vault"
	httpHandler "brokerage-gateway/interfaces/http"
	"brokerage-gateway/server"
	"brokerage-gateway/usecase"

	"golang.org/x/sync/errgroup"
)

const requestTokenPrefix = "brokerage:request_token:"

var httpServer *http.Server

func recoverPanic() {
	if err := recover(); err != nil {
		logger.GetLogger().WithField("error", err).Error("Application panic recovered")
	}
}

func main() {
	defer recoverPanic()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	g, ctx := errgroup.WithContext(ctx)

	// OS env still has precedence over the files.
	if n := configuration.LoadEnvFromFile("config.env", ".env"); n > 0 {
		logger.GetLogger().WithField("variables", n).Info("Loaded env files")
		configuration.Reload()
	}
	cfg := configuration.C
	if err := cfg.Validate(); err != nil {
		logger.GetLogger().WithField("error", err).Fatal("Invalid configuration")
	}

	key, err := vault.DecodeKey(cfg.Vault.Key)
	if err != nil {
		logger.GetLogger().WithField("error", err).Fatal("Invalid vault key")
	}
	secretVault, err := vault.New(key)
	if err != nil {
		logger.GetLogger().WithField("error", err).Fatal("Error while instantiate vault")
	}

	checks := map[string]httpHandler.Check{}

	db, accessTokens, err := InitiateDatabase(cfg.Database.Vendor)
	if err != nil {
		logger.GetLogger().WithField("error", err).Fatal("Database initialization failed")
	}
	defer db.Close()
	checks[cfg.Database.Vendor] = db.PingContext

	pending := initiateRequestTokenStore(ctx, g, cfg, secretVault, checks)

	auditSink, closers, err := audit.Build(ctx, cfg.Audit.Sinks, auditFactories(cfg))
	if err != nil {
		logger.GetLogger().WithField("error", err).Fatal("Audit initialization failed")
	}
	defer func() {
		for _, closeFn := range closers {
			closeFn()
		}
	}()
	logger.GetLogger().WithFields(map[string]interface{}{
		"configured": cfg.Audit.Sinks,
		"active":     auditSink.Len(),
		"queue":      cfg.Audit.QueueSize,
	}).Info("Audit sinks ready")

	// Stopped after the HTTP server so in-flight calls are still flushed.
	auditCtx, stopAudit := context.WithCancel(context.Background())
	defer stopAudit()
	auditWriter := audit.NewAsync(auditSink, cfg.Audit.QueueSize, 5*time.Second)
	g.Go(func() error { return auditWriter.Run(auditCtx) })

	clock := utils.SystemClock()
	consumer := model.ConsumerCredential{ConsumerKey: cfg.Brokerage.ConsumerKey, ConsumerSecret: cfg.Brokerage.ConsumerSecret}
	signer := oauth1.NewSigner(consumer, oauth1.WithClock(clock))
	transport := brokerage.NewHTTPTransport(&http.Client{})
	executor := brokerage.NewExecutor(signer, transport, auditWriter, clock, brokerage.Config{
		RequestTimeout: cfg.Brokerage.RequestTimeout,
		MaxRetries:     cfg.Brokerage.MaxRetries,
		BackoffBase:    cfg.Brokerage.BackoffBase,
		BackoffFactor:  cfg.Brokerage.BackoffFactor,
	})

	tokenManager := usecase.NewTokenManager(consumer, usecase.Endpoints{
		RequestTokenURL: cfg.Brokerage.URL(cfg.Brokerage.RequestTokenPath),
		AuthorizeURL:    cfg.Brokerage.AuthorizeURL,
		AccessTokenURL:  cfg.Brokerage.URL(cfg.Brokerage.AccessTokenPath),
		RenewTokenURL:   cfg.Brokerage.URL(cfg.Brokerage.RenewTokenPath),
		RevokeTokenURL:  cfg.Brokerage.URL(cfg.Brokerage.RevokeTokenPath),
		Callback:        cfg.Brokerage.Callback,
	}, executor, accessTokens, pending, secretVault, clock).WithRequestTokenTTL(cfg.Brokerage.RequestTokenTTL)

	dispatcher := brokerage.NewDispatcher(tokenManager, executor)
	accountUsecase := usecase.NewAccountUsecase(dispatcher, cfg.Brokerage.BaseURL)

	router := server.InitiateRouter(server.Handlers{
		OAuth:   httpHandler.NewOAuthHandler(tokenManager),
		Account: httpHandler.NewAccountHandler(accountUsecase),
		Health:  httpHandler.NewHealthHandler(checks),
	}, cfg.App.SecretKey, cfg.App.AllowedOrigins)

	app := cfg.App
	logger.GetLogger().WithFields(map[string]interface{}{"port": app.Port, "tls": app.TLSEnabled}).Info("Starting application")
	httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error {
		var err error
		if app.TLSEnabled && app.TLSCertFile != "" && app.TLSKeyFile != "" {
			logger.GetLogger().WithFields(map[string]interface{}{"cert": app.TLSCertFile, "key": app.TLSKeyFile}).Info("Serving HTTPS")
			err = httpServer.ListenAndServeTLS(app.TLSCertFile, app.TLSKeyFile)
		} else {
			if app.TLSEnabled {
				logger.GetLogger().Error("TLS enabled but cert or key path empty; falling back to HTTP")
			}
			err = httpServer.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	select {
	case <-interrupt:
		logger.GetLogger().Info("Application shutdown requested")
	case <-ctx.Done():
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while shutting down server")
	}
	stopAudit()

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.GetLogger().WithField("error", err).Error("Server returned an error")
		os.Exit(2)
	}
}

// InitiateDatabase opens the access-token store for vendor ("mssql" or "psql").
func InitiateDatabase(vendor string) (*sql.DB, repository.IAccessToken, error) {
	if vendor == "mssql" {
		db, err := persistence.NewMSSQLDB()
		if err != nil {
			return nil, nil, fmt.Errorf("connect mssql: %w", err)
		}
		if err := persistence.EnsureAccessTokenSchemaMSSQL(db); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("ensure access token schema: %w", err)
		}
		return db, persistence.NewAccessTokenRepositoryMSSQL(db), nil
	}

	db, err := persistence.NewPostgreSQLDB()
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := persistence.EnsureAccessTokenSchema(db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ensure access token schema: %w", err)
	}
	return db, persistence.NewAccessTokenRepository(db), nil
}

// initiateRequestTokenStore prefers Redis so pending authorizations survive
// across instances, and falls back to the in-process store.
func initiateRequestTokenStore(ctx context.Context, g *errgroup.Group, cfg configuration.Config, cipher repository.ISecretCipher, checks map[string]httpHandler.Check) repository.IRequestTokenStore {
	if cfg.RedisClient.Host != "" {
		client, err := cache.NewCache(
			ctx,
			fmt.Sprintf("%s:%s", cfg.RedisClient.Host, cfg.RedisClient.Port),
			cfg.RedisClient.Username,
			cfg.RedisClient.Password,
		)
		if err == nil {
			logger.GetLogger().Info("Redis client initialized successfully.")
			checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
			return cache.NewRedisRequestTokenStore(client, requestTokenPrefix, cipher)
		}
		logger.GetLogger().WithField("error", err).Warn("Redis not available - keeping request tokens in memory")
	}

	store := cache.NewMemoryRequestTokenStore()
	g.Go(func() error { return store.Run(ctx) })
	return store
}

func auditFactories(cfg configuration.Config) map[string]audit.Factory {
	return map[string]audit.Factory{
		"log": func(context.Context) (repository.IAuditSink, func(), error) {
			return audit.LogSink{}, nil, nil
		},
		"mysql": func(context.Context) (repository.IAuditSink, func(), error) {
			db, err := persistence.NewRepositories()
			if err != nil {
				return nil, nil, err
			}
			if err := persistence.EnsureAuditSchema(db); err != nil {
				return nil, nil, err
			}
			closeFn := func() {
				if sqlDB, err := db.DB(); err == nil {
					_ = sqlDB.Close()
				}
			}
			return persistence.NewAuditRepository(db), closeFn, nil
		},
		"mongo": func(ctx context.Context) (repository.IAuditSink, func(), error) {
			m := cfg.Database.Mongo
			client, err := persistence.NewMongoDb(m.Host, m.Port, m.User, m.Password, m.Name)
			if err != nil {
				return nil, nil, err
			}
			closeFn := func() { _ = client.Disconnect(context.Background()) }
			if err := client.Ping(ctx, nil); err != nil {
				closeFn()
				return nil, nil, err
			}
			return persistence.NewMongoAuditRepository(client, m.Name, cfg.Audit.MongoCollection), closeFn, nil
		},
		"pubsub": func(ctx context.Context) (repository.IAuditSink, func(), error) {
			client, err := pubsub.NewPubSub(ctx, cfg.Pubsub.ProjectID)
			if err != nil {
				return nil, nil, err
			}
			publisher, err := pubsub.NewAuditPublisher(ctx, client, cfg.Pubsub.AuditTopic)
			if err != nil {
				_ = client.Close()
				return nil, nil, err
			}
			return publisher, func() {
				publisher.Stop()
				_ = client.Close()
			}, nil
		},
		"servicebus": func(ctx context.Context) (repository.IAuditSink, func(), error) {
			client, err := servicebus.NewServiceBus(ctx, cfg.ServiceBus.Namespace)
			if err != nil {
				return nil, nil, err
			}
			sender, err := servicebus.NewAuditSender(client, cfg.ServiceBus.AuditQueue)
			if err != nil {
				_ = client.Close(ctx)
				return nil, nil, err
			}
			return sender, func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				sender.Close(closeCtx)
				_ = client.Close(closeCtx)
			}, nil
		},
	}
}
