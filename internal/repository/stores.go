package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/gorm"

	"cardledger/internal/config"
	"cardledger/internal/db"
	"cardledger/internal/model"
)

// Stores bundles the repositories of one storage backend.
type Stores struct {
	Cards       CardRepository
	Users       UserRepository
	PostingLogs PostingLogRepository

	close func(ctx context.Context) error
}

// Close releases the underlying connections.
func (s *Stores) Close(ctx context.Context) error {
	if s == nil || s.close == nil {
		return nil
	}
	return s.close(ctx)
}

// OpenStores connects to the configured backend and prepares its schema.
func OpenStores(ctx context.Context, cfg *config.Config) (*Stores, error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		client, err := db.NewMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		database := client.Database(cfg.MongoDatabase)
		if err := EnsureMongoIndexes(ctx, database); err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
		stores := NewMongoStores(database)
		stores.close = client.Disconnect
		return stores, nil
	case config.DriverMySQL, config.DriverSQLite:
		var (
			gormDB *gorm.DB
			err    error
		)
		if cfg.StoreDriver == config.DriverSQLite {
			gormDB, err = db.NewSQLite(cfg.SQLitePath)
		} else {
			gormDB, err = db.NewMySQL(cfg.MySQLDSN)
		}
		if err != nil {
			return nil, err
		}
		if err := Migrate(gormDB, cfg.ResetDB); err != nil {
			return nil, err
		}
		stores := NewGormStores(gormDB)
		stores.close = func(context.Context) error {
			sqlDB, err := gormDB.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		}
		return stores, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// NewGormStores builds the relational repositories on top of db.
func NewGormStores(db *gorm.DB) *Stores {
	return &Stores{
		Cards:       NewCardRepository(db),
		Users:       NewUserRepository(db),
		PostingLogs: NewPostingLogRepository(db),
	}
}

// NewMongoStores builds the document repositories on top of database.
func NewMongoStores(database *mongo.Database) *Stores {
	return &Stores{
		Cards:       NewMongoCardRepository(database),
		Users:       NewMongoUserRepository(database),
		PostingLogs: NewMongoPostingLogRepository(database),
	}
}

// Migrate creates or updates the relational schema, dropping it first when reset is set.
func Migrate(db *gorm.DB, reset bool) error {
	tables := []interface{}{
		&model.PostingLog{},
		&model.CardOperation{},
		&model.Card{},
		&model.User{},
	}
	if reset {
		for _, table := range tables {
			if err := db.Migrator().DropTable(table); err != nil {
				return fmt.Errorf("drop table: %w", err)
			}
		}
	}
	if err := db.AutoMigrate(tables...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

// EnsureMongoIndexes creates the indexes the document repositories rely on.
func EnsureMongoIndexes(ctx context.Context, database *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		cardsCollection: {
			{Keys: bson.D{{Key: "owner", Value: 1}, {Key: "order", Value: 1}}},
		},
		usersCollection: {
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		postingLogsCollection: {
			{Keys: bson.D{{Key: "cardId", Value: 1}}},
		},
	}
	for collection, models := range indexes {
		if _, err := database.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", collection, err)
		}
	}
	return nil
}
