package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	database "github.com/Armour007/docproc-backend/internal"
	"github.com/Armour007/docproc-backend/internal/api"
	"github.com/Armour007/docproc-backend/internal/blob"
	"github.com/Armour007/docproc-backend/internal/config"
	"github.com/Armour007/docproc-backend/internal/directory"
	"github.com/Armour007/docproc-backend/internal/logging"
	"github.com/Armour007/docproc-backend/internal/mesh"
	"github.com/Armour007/docproc-backend/internal/processor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	shutdownOTel, tracing := api.SetupOTel(ctx, cfg.Telemetry)
	defer func() { _ = shutdownOTel(context.Background()) }()

	if err := database.Connect(ctx, cfg.Database); err != nil {
		return err
	}
	defer database.Close()

	dir, err := buildDirectory(cfg.Directory)
	if err != nil {
		return err
	}
	store, err := buildBlobStore(ctx, cfg.Blob)
	if err != nil {
		return err
	}

	var proc api.ProcessorClient
	if cfg.Processor.BaseURL != "" {
		c, err := processor.New(processor.Config{BaseURL: cfg.Processor.BaseURL, Token: cfg.Processor.Token, Timeout: cfg.Processor.Timeout})
		if err != nil {
			return err
		}
		proc = c
	} else {
		logger.Warn("DOCPROC_PROCESSOR_URL not set; processing routes will return 503")
	}
	api.ConfigureBreakers(cfg.Processor.BreakerThreshold, cfg.Processor.BreakerOpenFor)

	var rc *redis.Client
	var revocations api.RevocationStore
	memRevocations := api.NewMemoryRevocations()
	if cfg.Redis.Addr != "" {
		rc = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer func() { _ = rc.Close() }()
		revocations = api.NewRedisRevocations(rc)
		memRevocations = nil
	} else {
		revocations = memRevocations
	}

	bus, err := buildBus(cfg.NATS)
	if err != nil {
		return err
	}
	defer func() { _ = bus.Close() }()
	if err := api.SubscribeAudit(bus, logger.Named("audit"), true); err != nil {
		return err
	}

	api.Configure(api.Deps{
		Directory:          dir,
		Blobs:              store,
		Processor:          proc,
		Revocations:        revocations,
		Bus:                bus,
		JWTSecret:          []byte(cfg.JWT.Secret),
		TokenTTL:           cfg.JWT.ExpiresIn,
		SnapshotSigningKey: cfg.Blob.SigningKey,
		StrictSessions:     cfg.Sessions.Strict,
		BlobTimeout:        cfg.Blob.UploadTimeout,
	})

	sweeper, err := api.StartSessionSweeper(cfg.Sessions.SweepCron, memRevocations)
	if err != nil {
		return fmt.Errorf("session sweeper: %w", err)
	}
	defer func() { <-sweeper.Stop().Done() }()

	router := api.NewRouter(api.RouterOptions{
		Logger:         logger,
		ServiceName:    cfg.Telemetry.ServiceName,
		Tracing:        tracing,
		CORSOrigins:    cfg.CORS.Origins,
		TrustedProxies: cfg.Server.TrustedProxies,
		BodyLimitBytes: cfg.Server.BodyLimitBytes,
		LoginRPM:       cfg.Server.LoginRPM,
		Redis:          rc,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info("starting document processing backend", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("signal received, shutting down")
	}
	sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(sctx)
}

func buildDirectory(cfg config.DirectoryConfig) (directory.Authenticator, error) {
	switch cfg.Kind {
	case "static":
		return directory.LoadStatic(cfg.StaticUsersFile, cfg.LDAPEmailDomain)
	default:
		return directory.NewLDAP(directory.LDAPConfig{
			URL:         cfg.LDAPURL,
			BaseDN:      cfg.LDAPBaseDN,
			StartTLS:    cfg.LDAPStartTLS,
			Timeout:     cfg.LDAPTimeout,
			EmailDomain: cfg.LDAPEmailDomain,
		}), nil
	}
}

// buildBlobStore returns nil when snapshots are disabled.
func buildBlobStore(ctx context.Context, cfg config.BlobConfig) (blob.Store, error) {
	switch cfg.Backend {
	case "azure":
		var (
			a   *blob.Azure
			err error
		)
		if cfg.AzureConnectionString != "" {
			a, err = blob.NewAzureFromConnectionString(cfg.AzureConnectionString, cfg.AzureContainer)
		} else {
			a, err = blob.NewAzureWithDefaultCredential(cfg.AzureAccountURL, cfg.AzureContainer)
		}
		if err != nil {
			return nil, err
		}
		if err := a.EnsureContainer(ctx); err != nil {
			zap.L().Warn("could not ensure blob container", zap.Error(err))
		}
		return a, nil
	case "minio":
		return blob.NewMinio(ctx, blob.MinioConfig{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
		})
	default:
		zap.L().Info("blob snapshots disabled")
		return nil, nil
	}
}

func buildBus(cfg config.NATSConfig) (mesh.Bus, error) {
	if cfg.URL == "" {
		return mesh.NewLocalBus(), nil
	}
	b, err := mesh.NewNatsBus(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("nats: %w", err)
	}
	return b, nil
}
