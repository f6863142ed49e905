package data

import (
	"context"
	"fmt"
	"time"

	"movieflix/internal/biz"
	"movieflix/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// ProviderSet is data providers.
var ProviderSet = wire.NewSet(
	NewData,
	NewTransaction,
	NewStoreProbe,
	NewLakeReader,
	NewStagingRepo,
	NewWarehouseRepo,
	NewMartRepo,
	NewSnapshotRepo,
	NewExportWriter,
	NewRunLocker,
)

const (
	defaultCacheTTL = 15 * time.Minute
	driverPostgres  = "postgres"
)

// Data encapsulates database and cache connections
type Data struct {
	db       *gorm.DB
	rdb      *redis.Client
	cacheTTL time.Duration
	log      *log.Helper
}

type contextTxKey struct{}

// NewData creates Data instance with database and Redis connections
func NewData(c *conf.Data, logger log.Logger) (*Data, func(), error) {
	l := log.NewHelper(log.With(logger, "module", "data"))

	if d := c.Database.Driver; d != "" && d != driverPostgres {
		return nil, nil, fmt.Errorf("unsupported database driver %q", d)
	}

	// Initialize PostgreSQL connection
	db, err := gorm.Open(postgres.Open(c.Database.Source), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		l.Errorf("failed to connect to database: %v", err)
		return nil, nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		l.Errorf("failed to get database instance: %v", err)
		return nil, nil, err
	}

	// Configure connection pool
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	l.Info("database connected successfully")

	data := &Data{
		db:       db,
		cacheTTL: defaultCacheTTL,
		log:      l,
	}

	if c.Redis != nil && c.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Network:      c.Redis.Network,
			Addr:         c.Redis.Addr,
			ReadTimeout:  c.Redis.ReadTimeout.AsDuration(),
			WriteTimeout: c.Redis.WriteTimeout.AsDuration(),
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := rdb.Ping(ctx).Err(); err != nil {
			// Redis is optional, continue without it
			l.Warnf("failed to connect to redis: %v", err)
			_ = rdb.Close()
		} else {
			l.Info("redis connected successfully")
			data.rdb = rdb
		}
		if ttl := c.Redis.TTL.AsDuration(); ttl > 0 {
			data.cacheTTL = ttl
		}
	} else {
		l.Info("redis not configured, insight cache disabled")
	}

	cleanup := func() {
		l.Info("closing data resources")
		if data.rdb != nil {
			if err := data.rdb.Close(); err != nil {
				l.Errorf("failed to close redis: %v", err)
			}
		}
		if err := sqlDB.Close(); err != nil {
			l.Errorf("failed to close database: %v", err)
		}
	}

	return data, cleanup, nil
}

// InTx runs fn inside a database transaction carried by ctx.
func (d *Data) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ctx = context.WithValue(ctx, contextTxKey{}, tx)
		return fn(ctx)
	})
}

// DB returns the transaction bound to ctx, or the pool.
func (d *Data) DB(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(contextTxKey{}).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return d.db.WithContext(ctx)
}

// Ping issues a trivial query.
func (d *Data) Ping(ctx context.Context) error {
	return d.db.WithContext(ctx).Exec("select 1").Error
}

// NewTransaction exposes Data as the biz transaction manager.
func NewTransaction(d *Data) biz.Transaction {
	return d
}

// NewStoreProbe exposes Data as the biz health probe.
func NewStoreProbe(d *Data) biz.StoreProbe {
	return d
}

// execAll runs statements in order on db, stopping at the first failure.
func execAll(db *gorm.DB, stmts []string) error {
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}
