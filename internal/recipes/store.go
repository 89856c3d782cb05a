package recipes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"

	"github.com/MarcoPoloResearchLab/receitas/internal/database"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SchemaVersion is the version of the receitas container provisioned by Open.
const SchemaVersion = 1

const (
	opOpen    = "recipes.open"
	opInsert  = "recipes.insert"
	opListAll = "recipes.list_all"
	opFindBy  = "recipes.find_by"

	reasonMissingDatabase     = "missing_database"
	reasonProvisioningFailed  = "schema_provisioning_failed"
	reasonStoreNotReady       = "store_not_ready"
	reasonTransactionFailed   = "transaction_failed"
	reasonQueryFailed         = "query_failed"
	reasonScanFailed          = "scan_failed"
	reasonCursorFailed        = "cursor_failed"
	reasonUnknownField        = "unknown_field"
	migrationCreateReceitasV1 = "2024-01-01_receitas_v1"
	orderIDAsc                = "id ASC"
)

var (
	// ErrStoreNotReady is returned by operations on a store that was not produced by Open.
	ErrStoreNotReady   = errors.New("recipes: store not ready")
	errMissingDatabase = errors.New("database handle is required")
	noOpLogger         = zap.NewNop()
)

// StoreError carries a stable operation.reason code alongside the underlying cause.
type StoreError struct {
	code string
	err  error
}

func (e *StoreError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *StoreError) Unwrap() error {
	return e.err
}

func (e *StoreError) Code() string {
	return e.code
}

func newStoreError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &StoreError{code: code, err: cause}
}

// StoreConfig describes the dependencies of the recipe store.
type StoreConfig struct {
	Database *gorm.DB
	Logger   *zap.Logger
}

// Store persists recipe records in an append-only container keyed by an
// auto-incrementing identifier.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

type accessMode int

const (
	accessReadOnly accessMode = iota
	accessReadWrite
)

// Open provisions the versioned receitas schema and returns a ready store.
// No store is returned until provisioning has completed.
func Open(ctx context.Context, cfg StoreConfig) (*Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	store := &Store{db: cfg.Database, logger: logger}

	if cfg.Database == nil {
		store.logError(opOpen, reasonMissingDatabase, errMissingDatabase)
		return nil, newStoreError(opOpen, reasonMissingDatabase, errMissingDatabase)
	}

	if err := database.ApplyMigrations(ctx, cfg.Database, logger, schemaMigrations()); err != nil {
		store.logError(opOpen, reasonProvisioningFailed, err)
		return nil, newStoreError(opOpen, reasonProvisioningFailed, err)
	}

	logger.Info("recipe store ready", zap.Int("schema_version", SchemaVersion))
	return store, nil
}

func schemaMigrations() []database.Migration {
	return []database.Migration{
		{
			Name: migrationCreateReceitasV1,
			Apply: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&recipeRow{})
			},
		},
	}
}

// Insert stores a new recipe in its own read-write transaction and returns the assigned id.
// The write is durable once Insert returns without error.
func (s *Store) Insert(ctx context.Context, fields RecipeFields) (RecipeID, error) {
	if err := s.ready(opInsert); err != nil {
		return 0, err
	}

	row := newRecipeRow(fields)
	err := s.withTransaction(ctx, accessReadWrite, func(tx *gorm.DB) error {
		return tx.Create(&row).Error
	})
	if err != nil {
		s.logError(opInsert, reasonTransactionFailed, err, zap.String("nome", fields.Name))
		return 0, newStoreError(opInsert, reasonTransactionFailed, err)
	}

	return RecipeID(row.ID), nil
}

// ListAll returns a restartable sequence over every recipe in ascending id order.
// Each iteration reads a fresh snapshot inside a read-only transaction. A read
// failure yields the records read before it, then the error, and ends the sequence.
func (s *Store) ListAll(ctx context.Context) iter.Seq2[Recipe, error] {
	return s.sequence(ctx, opListAll, nil)
}

// FindBy returns the recipes whose indexed field equals value, in ascending id order.
func (s *Store) FindBy(ctx context.Context, field IndexedField, value string) iter.Seq2[Recipe, error] {
	parsed, err := ParseIndexedField(string(field))
	if err != nil {
		return func(yield func(Recipe, error) bool) {
			yield(Recipe{}, newStoreError(opFindBy, reasonUnknownField, err))
		}
	}
	column := string(parsed)
	return s.sequence(ctx, opFindBy, func(query *gorm.DB) *gorm.DB {
		return query.Where(column+" = ?", value)
	})
}

// Collect materializes ListAll.
func (s *Store) Collect(ctx context.Context) ([]Recipe, error) {
	records := make([]Recipe, 0)
	for record, err := range s.ListAll(ctx) {
		if err != nil {
			return records, err
		}
		records = append(records, record)
	}
	return records, nil
}

func (s *Store) sequence(ctx context.Context, operation string, scope func(*gorm.DB) *gorm.DB) iter.Seq2[Recipe, error] {
	return func(yield func(Recipe, error) bool) {
		if err := s.ready(operation); err != nil {
			yield(Recipe{}, err)
			return
		}
		records, err := s.snapshot(ctx, operation, scope)
		for _, record := range records {
			if !yield(record, nil) {
				return
			}
		}
		if err != nil {
			yield(Recipe{}, err)
		}
	}
}

func (s *Store) snapshot(ctx context.Context, operation string, scope func(*gorm.DB) *gorm.DB) ([]Recipe, error) {
	var records []Recipe
	err := s.withTransaction(ctx, accessReadOnly, func(tx *gorm.DB) error {
		query := tx.Model(&recipeRow{}).Order(orderIDAsc)
		if scope != nil {
			query = scope(query)
		}
		rows, err := query.Rows()
		if err != nil {
			return newStoreError(operation, reasonQueryFailed, err)
		}
		defer rows.Close()

		for rows.Next() {
			var row recipeRow
			if err := tx.ScanRows(rows, &row); err != nil {
				return newStoreError(operation, reasonScanFailed, err)
			}
			records = append(records, row.recipe())
		}
		if err := rows.Err(); err != nil {
			return newStoreError(operation, reasonCursorFailed, err)
		}
		return nil
	})
	if err != nil {
		var storeErr *StoreError
		if !errors.As(err, &storeErr) {
			err = newStoreError(operation, reasonTransactionFailed, err)
		}
		s.logError(operation, "snapshot_failed", err, zap.Int("records_read", len(records)))
		return records, err
	}
	return records, nil
}

func (s *Store) withTransaction(ctx context.Context, mode accessMode, fn func(tx *gorm.DB) error) error {
	session := s.db.WithContext(ctx)
	if mode == accessReadOnly {
		return session.Transaction(fn, &sql.TxOptions{ReadOnly: true})
	}
	return session.Transaction(fn)
}

func (s *Store) ready(operation string) error {
	if s == nil || s.db == nil {
		return newStoreError(operation, reasonStoreNotReady, ErrStoreNotReady)
	}
	return nil
}

func (s *Store) loggerOrDefault() *zap.Logger {
	if s == nil || s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Store) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("recipe store error", attrs...)
}
