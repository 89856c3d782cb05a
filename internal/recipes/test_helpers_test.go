package recipes

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/MarcoPoloResearchLab/receitas/internal/database"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func openTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "receitas.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close(db)
	})
	return db
}

func mustOpenStore(t *testing.T, db *gorm.DB) *Store {
	t.Helper()
	store, err := Open(context.Background(), StoreConfig{Database: db, Logger: zap.NewNop()})
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	return store
}

func mustInsert(t *testing.T, store *Store, fields RecipeFields) RecipeID {
	t.Helper()
	id, err := store.Insert(context.Background(), fields)
	if err != nil {
		t.Fatalf("unexpected insert error: %v", err)
	}
	return id
}

func sampleFields(name string) RecipeFields {
	return RecipeFields{
		Name:        name,
		Ingredients: "farinha,ovos",
		Description: "simples",
		Author:      "Ana",
		Image:       "data:image/webp;base64,AAA",
		Date:        "01/01/2024",
	}
}
