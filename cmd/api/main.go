package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	v1 "aquanexus/marketplace-backend/api/v1"
	"aquanexus/marketplace-backend/internal/auth"
	"aquanexus/marketplace-backend/internal/certificates"
	"aquanexus/marketplace-backend/internal/config"
	"aquanexus/marketplace-backend/internal/ledger"
	"aquanexus/marketplace-backend/internal/logger"
	"aquanexus/marketplace-backend/internal/notifications/websocket"
	"aquanexus/marketplace-backend/internal/projects"
	"aquanexus/marketplace-backend/internal/settlement"
	"aquanexus/marketplace-backend/pkg/pdf"
	"aquanexus/marketplace-backend/pkg/storage"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the JSON config file")
	issueToken := flag.String("issue-token", "", "print an operator token for the given subject and exit")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	defer log.Sync()

	if *issueToken != "" {
		if cfg.Security.JWTSecret == "" {
			log.Fatal("security.jwt_secret is required to issue tokens")
		}
		tokens := auth.NewTokenManager(cfg.Security.JWTSecret, cfg.Security.JWTIssuer, cfg.Security.TokenTTL)
		token, expires, err := tokens.Issue(*issueToken, auth.RoleOperator)
		if err != nil {
			log.Fatal("Failed to issue token", zap.Error(err))
		}
		fmt.Println(token)
		log.Info("Issued operator token", zap.String("subject", *issueToken), zap.Time("expires_at", expires))
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database
	var db *sqlx.DB
	if cfg.UsesPostgres() {
		log.Info("Connecting to database",
			zap.String("host", cfg.Database.Host),
			zap.String("db_name", cfg.Database.DBName),
		)
		db, err = sqlx.Connect("postgres", cfg.Database.GetDatabaseURL())
		if err != nil {
			log.Fatal("Failed to connect to database", zap.Error(err))
		}
		db.SetMaxOpenConns(cfg.Database.MaxConnections)
		db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.Database.MaxLifetime)
	}

	catalog, err := openCatalog(ctx, cfg, db)
	if err != nil {
		log.Fatal("Failed to open project catalog", zap.String("backend", cfg.Catalog.Backend), zap.Error(err))
	}
	seedCatalog(ctx, cfg, catalog, log)

	store, err := openLedger(ctx, cfg, db)
	if err != nil {
		log.Fatal("Failed to open ledger", zap.String("backend", cfg.Ledger.Backend), zap.Error(err))
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := settlement.NewMetrics(registry)

	renderer := certificates.NewRenderer(pdf.NewGenerator(pdf.DefaultOptions()))
	certCache := certificates.NewCache(cfg.Settlement.CertificateCacheTTL)
	hub := websocket.NewHub(cfg.Server.AllowedOrigins, log)

	publishers := settlement.Publishers{settlement.NewFeedPublisher(hub)}
	var archivePublisher *settlement.ArchivePublisher
	if cfg.Archive.Enabled {
		s3Client, err := storage.NewS3Client(ctx, storage.Config{
			Region:       cfg.AWS.Region,
			Endpoint:     cfg.AWS.Endpoint,
			AccessKey:    cfg.AWS.AccessKey,
			SecretKey:    cfg.AWS.SecretKey,
			UsePathStyle: cfg.AWS.UsePathStyle,
		}, storage.WithLogger(log))
		if err != nil {
			log.Fatal("Failed to create S3 client", zap.Error(err))
		}
		archive := certificates.NewArchive(s3Client, renderer, cfg.Archive.Bucket, cfg.Archive.Prefix, log)
		archivePublisher = settlement.NewArchivePublisher(archive, cfg.Archive.QueueSize, 30*time.Second, log)
		publishers = append(publishers, archivePublisher)
	}

	reconciler := settlement.NewReconciler(catalog, store, settlement.ReconcilerConfig{
		Schedule:    cfg.Settlement.ReconcileCron,
		CallTimeout: cfg.Settlement.StoreTimeout,
	}, metrics, log)

	opts := []settlement.Option{
		settlement.WithMetrics(metrics),
		settlement.WithPublisher(publishers),
		settlement.WithUnrecordedSink(reconciler),
		settlement.WithCertificateCache(certCache),
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatal("Failed to connect to redis", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		opts = append(opts, settlement.WithLocker(settlement.NewRedisLocker(redisClient, settlement.RedisLockerConfig{
			TTL: cfg.Redis.LockTTL,
		}, log)))
		log.Info("Using redis settlement lock", zap.String("addr", cfg.Redis.Addr))
	}

	engine := settlement.NewEngine(catalog, store, &settlement.Config{
		StoreTimeout:         cfg.Settlement.StoreTimeout,
		LedgerRetries:        cfg.Settlement.LedgerRetries,
		LedgerRetryDelay:     cfg.Settlement.LedgerRetryDelay,
		DefaultBuyer:         cfg.Settlement.DefaultBuyer,
		SerializeTransitions: cfg.Settlement.SerializeTransitions,
	}, log, opts...)

	if err := reconciler.Start(ctx); err != nil {
		log.Fatal("Failed to start reconciler", zap.Error(err))
	}

	var (
		tokens      *auth.TokenManager
		authHandler *auth.Handler
	)
	if cfg.Security.JWTSecret != "" {
		tokens = auth.NewTokenManager(cfg.Security.JWTSecret, cfg.Security.JWTIssuer, cfg.Security.TokenTTL)
		authHandler = auth.NewHandler(tokens)
	} else {
		log.Warn("security.jwt_secret not set, admin endpoints disabled")
	}

	gin.SetMode(gin.ReleaseMode)
	router := v1.NewRouter(v1.API{
		Projects:       projects.NewHandler(projects.NewService(catalog, log), log),
		Ledger:         ledger.NewHandler(ledger.NewService(store, log), log),
		Settlement:     settlement.NewHandler(engine, renderer, reconciler, log),
		Auth:           authHandler,
		Feed:           hub,
		Tokens:         tokens,
		Gatherer:       registry,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, log)

	srv := &http.Server{
		Addr:         cfg.Server.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	log.Info("Server started",
		zap.String("addr", srv.Addr),
		zap.String("catalog", cfg.Catalog.Backend),
		zap.String("ledger", cfg.Ledger.Backend),
	)

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	reconciler.Stop()
	if archivePublisher != nil {
		archivePublisher.Close()
	}
	hub.Close()
	certCache.Stop()
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Warn("Failed to close redis", zap.Error(err))
		}
	}
	if db != nil {
		if err := db.Close(); err != nil {
			log.Warn("Failed to close database", zap.Error(err))
		}
	}

	log.Info("Server exiting")
}

func openCatalog(ctx context.Context, cfg *config.Config, db *sqlx.DB) (projects.Gateway, error) {
	switch cfg.Catalog.Backend {
	case "postgres":
		gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{SkipDefaultTransaction: true})
		if err != nil {
			return nil, fmt.Errorf("failed to open gorm: %w", err)
		}
		catalog := projects.NewGormCatalog(gdb)
		if err := catalog.AutoMigrate(); err != nil {
			return nil, fmt.Errorf("failed to migrate projects: %w", err)
		}
		return catalog, nil

	case "dynamodb":
		awsCfg, err := loadAWSConfig(ctx, cfg.AWS)
		if err != nil {
			return nil, err
		}
		client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
			if cfg.AWS.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.AWS.Endpoint)
			}
		})
		return projects.NewDynamoCatalog(client, cfg.Catalog.DynamoTable), nil

	default:
		return projects.NewMemoryCatalog(), nil
	}
}

func loadAWSConfig(ctx context.Context, cfg config.AWSConfig) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return awsCfg, nil
}

func seedCatalog(ctx context.Context, cfg *config.Config, catalog projects.Gateway, log *zap.Logger) {
	seeder, ok := catalog.(projects.Seeder)
	if !ok || cfg.Catalog.SeedPath == "" {
		return
	}
	inserted, err := projects.LoadSeed(ctx, cfg.Catalog.SeedPath, seeder)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Warn("Seed file not found, catalog starts empty", zap.String("path", cfg.Catalog.SeedPath))
			return
		}
		log.Fatal("Failed to seed catalog", zap.String("path", cfg.Catalog.SeedPath), zap.Error(err))
	}
	log.Info("Seeded project catalog", zap.Int("inserted", inserted), zap.String("path", cfg.Catalog.SeedPath))
}

func openLedger(ctx context.Context, cfg *config.Config, db *sqlx.DB) (ledger.Store, error) {
	if cfg.Ledger.Backend != "postgres" {
		return ledger.NewMemoryStore(), nil
	}
	if err := ledger.EnsureSchema(ctx, db); err != nil {
		return nil, err
	}
	return ledger.NewPostgresStore(db), nil
}
