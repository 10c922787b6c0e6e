package database

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"affiliate-api/internal/config"
	"affiliate-api/internal/repository"
)

type Database struct {
	MongoDB      *mongo.Database
	RedisDB      *redis.Client
	Repositories *Repositories
}

type Repositories struct {
	Affiliate    repository.AffiliateRepository
	Purchase     repository.PurchaseRepository
	Distribution repository.DistributionRepository
	Ledger       repository.LedgerRepository
	Withdrawal   repository.WithdrawalRepository
	Settings     repository.SettingsRepository
	Lock         repository.LockRepository
	LockManager  *repository.NetworkLockManager
}

func Initialize(ctx context.Context, cfg *config.Config) (*Database, error) {
	mongoDB, err := initializeMongoDB(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MongoDB: %w", err)
	}

	redisDB, err := initializeRedis(ctx, cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Redis: %w", err)
	}

	repos := &Repositories{
		Affiliate:    repository.NewAffiliateRepository(mongoDB),
		Purchase:     repository.NewPurchaseRepository(mongoDB),
		Distribution: repository.NewDistributionRepository(mongoDB),
		Ledger:       repository.NewLedgerRepository(mongoDB),
		Withdrawal:   repository.NewWithdrawalRepository(mongoDB),
		Settings:     repository.NewSettingsRepository(mongoDB),
		Lock:         repository.NewLockRepository(redisDB),
	}
	repos.LockManager = repository.NewNetworkLockManager(repos.Lock)

	if err := createIndexes(ctx, repos); err != nil {
		return nil, fmt.Errorf("failed to create database indexes: %w", err)
	}

	return &Database{
		MongoDB:      mongoDB,
		RedisDB:      redisDB,
		Repositories: repos,
	}, nil
}

func initializeMongoDB(ctx context.Context, cfg config.DatabaseConfig) (*mongo.Database, error) {
	clientOptions := options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(uint64(cfg.MaxPoolSize)).
		SetMinPoolSize(uint64(cfg.MinPoolSize)).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetSocketTimeout(cfg.SocketTimeout).
		SetServerSelectionTimeout(cfg.SelectionTimeout)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(cfg.Database), nil
}

func initializeRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opts := &redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	client := redis.NewClient(opts)

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

func createIndexes(ctx context.Context, repos *Repositories) error {
	if err := repos.Affiliate.CreateIndexes(ctx); err != nil {
		return fmt.Errorf("affiliate indexes: %w", err)
	}
	if err := repos.Distribution.CreateIndexes(ctx); err != nil {
		return fmt.Errorf("distribution indexes: %w", err)
	}
	if err := repos.Ledger.CreateIndexes(ctx); err != nil {
		return fmt.Errorf("ledger indexes: %w", err)
	}
	if err := repos.Withdrawal.CreateIndexes(ctx); err != nil {
		return fmt.Errorf("withdrawal indexes: %w", err)
	}
	return nil
}

func (db *Database) Close(ctx context.Context) error {
	var errs []error

	if db.MongoDB != nil {
		if err := db.MongoDB.Client().Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to close MongoDB: %w", err))
		}
	}

	if db.RedisDB != nil {
		if err := db.RedisDB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close Redis: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing database connections: %v", errs)
	}

	return nil
}

func (db *Database) HealthCheck(ctx context.Context) error {
	if err := db.MongoDB.Client().Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("MongoDB health check failed: %w", err)
	}

	if _, err := db.RedisDB.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("Redis health check failed: %w", err)
	}

	return nil
}

// RunMaintenance sweeps redis lock keys that lost their TTL.
func (db *Database) RunMaintenance(ctx context.Context) error {
	if err := db.Repositories.Lock.CleanupExpiredLocks(ctx); err != nil {
		return fmt.Errorf("failed to cleanup expired locks: %w", err)
	}
	return nil
}
