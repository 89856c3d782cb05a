package server

import (
	"bytes"
	"context"
	"errors"
	"iter"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/receitas/internal/database"
	"github.com/MarcoPoloResearchLab/receitas/internal/recipes"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var fixedNow = time.Date(2024, time.January, 1, 10, 0, 0, 0, time.UTC)

func fixedClock() time.Time {
	return fixedNow
}

func newSQLiteStore(testContext *testing.T) *recipes.Store {
	testContext.Helper()
	db, err := database.OpenSQLite(context.Background(), filepath.Join(testContext.TempDir(), "receitas.db"), zap.NewNop())
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}
	testContext.Cleanup(func() {
		_ = database.Close(db)
	})
	store, err := recipes.Open(context.Background(), recipes.StoreConfig{Database: db, Logger: zap.NewNop()})
	if err != nil {
		testContext.Fatalf("failed to open store: %v", err)
	}
	return store
}

func newTestHandler(testContext *testing.T, store RecipeStore) http.Handler {
	testContext.Helper()
	gin.SetMode(gin.TestMode)
	handler, err := NewHTTPHandler(Dependencies{
		Recipes: store,
		Clock:   fixedClock,
		Logger:  zap.NewNop(),
	})
	if err != nil {
		testContext.Fatalf("failed to build handler: %v", err)
	}
	return handler
}

func perform(handler http.Handler, request *http.Request) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	return recorder
}

func postForm(values url.Values) *http.Request {
	request := httptest.NewRequest(http.MethodPost, "/receitas", strings.NewReader(values.Encode()))
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return request
}

func postMultipart(testContext *testing.T, values url.Values, fileName string, file []byte) *http.Request {
	testContext.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for key, entries := range values {
		for _, entry := range entries {
			if err := writer.WriteField(key, entry); err != nil {
				testContext.Fatalf("failed to write field: %v", err)
			}
		}
	}
	if fileName != "" {
		part, err := writer.CreateFormFile("imagem", fileName)
		if err != nil {
			testContext.Fatalf("failed to create file part: %v", err)
		}
		if _, err := part.Write(file); err != nil {
			testContext.Fatalf("failed to write file part: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		testContext.Fatalf("failed to close multipart writer: %v", err)
	}
	request := httptest.NewRequest(http.MethodPost, "/receitas", &body)
	request.Header.Set("Content-Type", writer.FormDataContentType())
	return request
}

func navigation(target string) *http.Request {
	request := httptest.NewRequest(http.MethodGet, target, http.NoBody)
	request.Header.Set("Sec-Fetch-Mode", "navigate")
	request.Header.Set("Sec-Fetch-Dest", "document")
	request.Header.Set("Accept", "text/html")
	return request
}

func boloForm() url.Values {
	return url.Values{
		"nome":         {"Bolo"},
		"ingredientes": {"farinha,ovos"},
		"descricao":    {"simples"},
		"autor":        {"Ana"},
		"imagem_data":  {"data:image/webp;base64,AAA"},
	}
}

var errStoreDown = errors.New("store down")

// memoryRecipes is an in-process RecipeStore with injectable failures.
type memoryRecipes struct {
	mu          sync.Mutex
	records     []recipes.Recipe
	insertErr   error
	listErrFrom int
	listErr     error
}

func (m *memoryRecipes) Insert(_ context.Context, fields recipes.RecipeFields) (recipes.RecipeID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return 0, m.insertErr
	}
	id := recipes.RecipeID(len(m.records) + 1)
	m.records = append(m.records, recipes.Recipe{ID: id, RecipeFields: fields})
	return id, nil
}

func (m *memoryRecipes) ListAll(_ context.Context) iter.Seq2[recipes.Recipe, error] {
	m.mu.Lock()
	snapshot := append([]recipes.Recipe(nil), m.records...)
	listErr, listErrFrom := m.listErr, m.listErrFrom
	m.mu.Unlock()

	return func(yield func(recipes.Recipe, error) bool) {
		for index, recipe := range snapshot {
			if listErr != nil && index == listErrFrom {
				yield(recipes.Recipe{}, listErr)
				return
			}
			if !yield(recipe, nil) {
				return
			}
		}
		if listErr != nil && listErrFrom >= len(snapshot) {
			yield(recipes.Recipe{}, listErr)
		}
	}
}

func boloFields() recipes.RecipeFields {
	return recipes.RecipeFields{
		Name:        "Bolo",
		Ingredients: "farinha,ovos",
		Description: "simples",
		Author:      "Ana",
		Image:       "data:image/webp;base64,AAA",
		Date:        "01/01/2024",
	}
}
