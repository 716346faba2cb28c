package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"toko/internal/config"
	"toko/internal/models"
	"toko/internal/repositories"
	"toko/internal/server"
	"toko/internal/services"
	"toko/internal/storage"
	"toko/pkg/logger"
	"toko/pkg/rabbitmq"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const shutdownTimeout = 10 * time.Second

// stores bundles the repositories of the selected driver.
type stores struct {
	products repositories.ProductRepository
	users    repositories.UserRepository
	health   map[string]server.HealthCheck
	close    func()
}

func main() {
	// --- Configuration ---
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Fatalf("Failed to load .env: %v", err)
	}

	cfg, err := config.Load(viper.New())
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zl, err := logger.New("toko", cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if err := run(cfg, zl); err != nil {
		zl.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, zl *zap.Logger) error {
	ctx := context.Background()

	// --- Stores ---
	st, err := openStores(ctx, cfg, zl)
	if err != nil {
		return err
	}
	defer st.close()

	// --- Uploads ---
	uploads := afero.NewOsFs()
	images, err := storage.NewDiskImageStore(uploads, cfg.UploadDir, storage.WithMaxSize(cfg.MaxUploadSize))
	if err != nil {
		return err
	}

	// --- Events ---
	var events services.EventPublisher
	if cfg.RabbitMQURL != "" {
		mqClient, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL, Queue: cfg.RabbitMQQueue}, zl)
		if err != nil {
			return err
		}
		defer func() {
			if err := mqClient.Close(); err != nil {
				zl.Warn("failed to close rabbitmq client", zap.Error(err))
			}
		}()
		events = mqClient
		st.health["rabbitmq"] = func(context.Context) error { return mqClient.Ping() }

		if cfg.RabbitConsume {
			if err := mqClient.Consume(rabbitmq.LogEventHandler(zl.Named("audit"))); err != nil {
				return err
			}
		}
	} else {
		zl.Info("RABBITMQ_URL not set, product events are disabled")
	}

	// --- Services ---
	productService := services.NewProductService(st.products, images, events, zl, cfg.StoreTimeout)
	authService := services.NewAuthService(st.users, cfg.JWTSecret, cfg.JWTTTL, zl)

	app := server.New(server.Deps{
		Config:         cfg,
		Logger:         zl,
		ProductService: productService,
		AuthService:    authService,
		Uploads:        uploads,
		HealthChecks:   st.health,
	})

	// --- Start HTTP Server ---
	listenErr := make(chan error, 1)
	go func() {
		zl.Info("starting server", zap.String("addr", cfg.AppPort), zap.String("store", cfg.StoreDriver))
		listenErr <- app.Listen(cfg.AppPort)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-listenErr:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-quit:
		zl.Info("shutting down server", zap.String("signal", sig.String()))
	}

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		zl.Error("error during fiber shutdown", zap.Error(err))
	}
	zl.Info("server gracefully stopped")
	return nil
}

func openStores(ctx context.Context, cfg *config.Config, zl *zap.Logger) (*stores, error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		return openMongoStores(ctx, cfg, zl)
	case config.DriverPostgres:
		return openGORMStores(ctx, postgres.Open(cfg.DatabaseDSN), zl)
	case config.DriverSQLite:
		return openGORMStores(ctx, sqlite.Open(cfg.DatabaseDSN), zl)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}

func openMongoStores(ctx context.Context, cfg *config.Config, zl *zap.Logger) (*stores, error) {
	client, err := repositories.NewMongoConnection(ctx, repositories.MongoConfig{
		URI:     cfg.MongoURI,
		DBName:  cfg.MongoDatabase,
		Timeout: cfg.StoreTimeout,
	}, zl)
	if err != nil {
		return nil, err
	}
	disconnect := func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := client.Disconnect(ctx); err != nil {
			zl.Warn("failed to disconnect from mongodb", zap.Error(err))
		}
	}
	db := client.Database(cfg.MongoDatabase)

	users := repositories.NewMongoUserRepository(db)
	indexCtx, cancel := context.WithTimeout(ctx, cfg.StoreTimeout)
	defer cancel()
	if err := users.EnsureIndexes(indexCtx); err != nil {
		disconnect()
		return nil, err
	}

	return &stores{
		products: repositories.NewMongoProductRepository(db),
		users:    users,
		health: map[string]server.HealthCheck{
			"mongo": func(ctx context.Context) error { return client.Ping(ctx, readpref.Primary()) },
		},
		close: disconnect,
	}, nil
}

func openGORMStores(ctx context.Context, dialector gorm.Dialector, zl *zap.Logger) (*stores, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.WithContext(ctx).AutoMigrate(&models.Product{}, &models.User{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	zl.Info("connected to database", zap.String("dialect", dialector.Name()))

	return &stores{
		products: repositories.NewGORMProductRepository(db),
		users:    repositories.NewGORMUserRepository(db),
		health: map[string]server.HealthCheck{
			"database": sqlDB.PingContext,
		},
		close: func() {
			if err := sqlDB.Close(); err != nil {
				zl.Warn("failed to close database", zap.Error(err))
			}
		},
	}, nil
}
