package warehouse

import (
	"context"
	"database/sql"
	"fmt"

	"coingecko_etl/exception"
	"coingecko_etl/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Loader appends normalized coin rows to the warehouse table
type Loader struct {
	dialector  func() gorm.Dialector
	gormConfig *gorm.Config
	logger     *zap.Logger
}

// NewLoader creates a loader. dialector is called once per Load so every run
// gets its own connection, released before Load returns.
func NewLoader(dialector func() gorm.Dialector, gormConfig *gorm.Config, logger *zap.Logger) *Loader {
	if gormConfig == nil {
		gormConfig = &gorm.Config{}
	}
	return &Loader{
		dialector:  dialector,
		gormConfig: gormConfig,
		logger:     logger,
	}
}

// Load inserts every record in one transaction, one parameterized INSERT per
// row. Either the whole batch is committed or nothing is. Rows are never
// deduplicated, loading the same batch twice stores it twice.
func (l *Loader) Load(ctx context.Context, records []models.CoinRecord) (int, error) {
	db, sqlDB, err := l.open(ctx)
	if err != nil {
		return 0, err
	}
	defer l.close(sqlDB)

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range records {
			row := records[i]
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("insert row %d (%s): %w", i, row.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", exception.ErrWrite, err)
	}

	l.logger.Info("loaded coin rows",
		zap.Int("rows", len(records)),
		zap.String("table", models.CoinTableName),
	)
	return len(records), nil
}

// Ping opens a connection, checks it and releases it again
func (l *Loader) Ping(ctx context.Context) error {
	_, sqlDB, err := l.open(ctx)
	if err != nil {
		return err
	}
	l.close(sqlDB)
	return nil
}

// EnsureTable creates the coin table if needed. Only meant for the local
// SQLite warehouse.
func (l *Loader) EnsureTable(ctx context.Context) error {
	db, sqlDB, err := l.open(ctx)
	if err != nil {
		return err
	}
	defer l.close(sqlDB)

	if err := models.MigrateCoinModels(db.WithContext(ctx)); err != nil {
		return fmt.Errorf("%w: create %s: %w", exception.ErrWrite, models.CoinTableName, err)
	}
	return nil
}

func (l *Loader) open(ctx context.Context) (*gorm.DB, *sql.DB, error) {
	db, err := gorm.Open(l.dialector(), l.gormConfig)
	if err != nil {
		if db != nil {
			if sqlDB, dbErr := db.DB(); dbErr == nil {
				sqlDB.Close()
			}
		}
		return nil, nil, fmt.Errorf("%w: failed to connect to warehouse: %w", exception.ErrConnection, err)
	}

	// Verify connection with ping
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: failed to get database: %w", exception.ErrConnection, err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, nil, fmt.Errorf("%w: warehouse ping failed: %w", exception.ErrConnection, err)
	}

	return db, sqlDB, nil
}

func (l *Loader) close(sqlDB *sql.DB) {
	if err := sqlDB.Close(); err != nil {
		l.logger.Warn("failed to close warehouse connection", zap.Error(err))
	}
}
