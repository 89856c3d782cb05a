package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

// Migration is a named, run-once schema step.
type Migration struct {
	Name  string
	Apply func(*gorm.DB) error
}

// ApplyMigrations runs every migration that has no ledger entry yet, in order.
// Each migration and its ledger entry commit in one transaction.
func ApplyMigrations(ctx context.Context, db *gorm.DB, logger *zap.Logger, migrations []Migration) error {
	if db == nil {
		return fmt.Errorf("database handle is required")
	}
	if err := db.WithContext(ctx).AutoMigrate(&migrationRecord{}); err != nil {
		return err
	}

	for _, migration := range migrations {
		applied, err := migrationApplied(ctx, db, migration.Name)
		if err != nil {
			return err
		}
		if applied {
			continue
		}
		err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := migration.Apply(tx); err != nil {
				return err
			}
			appliedAt := time.Now().UTC().Unix()
			return tx.Create(&migrationRecord{Name: migration.Name, AppliedAtSeconds: appliedAt}).Error
		})
		if err != nil {
			return fmt.Errorf("migration %s: %w", migration.Name, err)
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.Name))
		}
	}
	return nil
}

func migrationApplied(ctx context.Context, db *gorm.DB, name string) (bool, error) {
	var record migrationRecord
	err := db.WithContext(ctx).Where("name = ?", name).Take(&record).Error
	if err == nil {
		return true, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return false, err
}
