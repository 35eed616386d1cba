package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/liamashdown/arbwatch/internal/config"
	"github.com/liamashdown/arbwatch/internal/metrics"
)

// DB wraps the GORM database connection
type DB struct {
	conn *gorm.DB
	log  *logrus.Logger
}

// New creates a new database connection with GORM
func New(cfg *config.Config, log *logrus.Logger) (*DB, error) {
	gormLogger := logger.New(
		&gormLogAdapter{log: log},
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	dialector, err := openDialector(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.DatabaseMaxConns)
	sqlDB.SetMaxIdleConns(cfg.DatabaseMaxConns / 2)
	sqlDB.SetConnMaxIdleTime(cfg.DatabaseMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log.WithField("driver", cfg.DatabaseDriver).Info("Database connection established")

	return &DB{conn: conn, log: log}, nil
}

func openDialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "mysql", "":
		return mysql.Open(dsn), nil
	case "postgres":
		return postgres.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Close closes the database connection
func (db *DB) Close() error {
	sqlDB, err := db.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping verifies the connection is alive
func (db *DB) Ping(ctx context.Context) error {
	sqlDB, err := db.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// AutoMigrate runs GORM auto-migration
func (db *DB) AutoMigrate() error {
	return db.conn.AutoMigrate(
		&AppState{},
		&BookmakerAccount{},
		&OpportunityRecord{},
	)
}

// GetState retrieves a state value by key
func (db *DB) GetState(ctx context.Context, key string) (string, error) {
	var state AppState
	result := db.conn.WithContext(ctx).Where("state_key = ?", key).First(&state)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if result.Error != nil {
		return "", result.Error
	}
	return state.StateValue, nil
}

// SetState sets a state value
func (db *DB) SetState(ctx context.Context, key, value string) error {
	state := AppState{
		StateKey:   key,
		StateValue: value,
		UpdatedTS:  time.Now().Unix(),
	}
	return db.conn.WithContext(ctx).Save(&state).Error
}

// GetAccount returns a bookmaker account, or nil when it does not exist
func (db *DB) GetAccount(ctx context.Context, name string) (*BookmakerAccount, error) {
	start := time.Now()
	var account BookmakerAccount
	result := db.conn.WithContext(ctx).Where("name = ?", name).First(&account)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		metrics.RecordDatabaseQuery("get_account", time.Since(start), nil)
		return nil, nil
	}
	metrics.RecordDatabaseQuery("get_account", time.Since(start), result.Error)
	if result.Error != nil {
		return nil, result.Error
	}
	return &account, nil
}

// UpsertAccount inserts or replaces a bookmaker account
func (db *DB) UpsertAccount(ctx context.Context, account *BookmakerAccount) error {
	start := time.Now()
	err := db.conn.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "stealth_score", "updated_ts"}),
		}).
		Create(account).Error
	metrics.RecordDatabaseQuery("upsert_account", time.Since(start), err)
	return err
}

// ListAccounts returns every bookmaker account ordered by name
func (db *DB) ListAccounts(ctx context.Context) ([]BookmakerAccount, error) {
	var accounts []BookmakerAccount
	err := db.conn.WithContext(ctx).Order("name ASC").Find(&accounts).Error
	return accounts, err
}

// InsertOpportunity stores an opportunity snapshot and returns its ID
func (db *DB) InsertOpportunity(ctx context.Context, rec *OpportunityRecord) (string, error) {
	start := time.Now()
	err := db.conn.WithContext(ctx).Create(rec).Error
	metrics.RecordDatabaseQuery("insert_opportunity", time.Since(start), err)
	if err != nil {
		return "", err
	}
	return rec.ID, nil
}

// GetLastOpportunityByFingerprint returns the most recent snapshot with the given fingerprint
func (db *DB) GetLastOpportunityByFingerprint(ctx context.Context, fingerprint string) (*OpportunityRecord, error) {
	var rec OpportunityRecord
	result := db.conn.WithContext(ctx).
		Where("fingerprint = ?", fingerprint).
		Order("detected_ts DESC").
		First(&rec)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &rec, nil
}

// ListOpportunities returns the newest snapshots, optionally filtered by sport
func (db *DB) ListOpportunities(ctx context.Context, sport string, limit int) ([]OpportunityRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	q := db.conn.WithContext(ctx).Order("detected_ts DESC").Limit(limit)
	if sport != "" {
		q = q.Where("sport = ?", sport)
	}

	var recs []OpportunityRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

// gormLogAdapter adapts logrus to GORM's logger interface
type gormLogAdapter struct {
	log *logrus.Logger
}

func (l *gormLogAdapter) Printf(format string, args ...interface{}) {
	l.log.Debugf(format, args...)
}
