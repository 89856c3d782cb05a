package server

import (
	"context"
	"errors"
	"iter"
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/receitas/internal/offline"
	"github.com/MarcoPoloResearchLab/receitas/internal/recipes"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	defaultFallbackPath = "/offline.html"
	recipesPath         = "/receitas"
	staticPrefix        = "/static"
)

var errMissingRecipeStore = errors.New("recipe store dependency required")

// RecipeStore is the slice of the recipe store the pages depend on.
type RecipeStore interface {
	Insert(ctx context.Context, fields recipes.RecipeFields) (recipes.RecipeID, error)
	ListAll(ctx context.Context) iter.Seq2[recipes.Recipe, error]
}

type Dependencies struct {
	Recipes      RecipeStore
	Clock        func() time.Time
	Logger       *zap.Logger
	FallbackPath string
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Recipes == nil {
		return nil, errMissingRecipeStore
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	fallbackPath := deps.FallbackPath
	if fallbackPath == "" {
		fallbackPath = defaultFallbackPath
	}

	templates, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	static, err := staticFiles()
	if err != nil {
		return nil, err
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))
	router.Use(corsMiddleware())
	router.SetHTMLTemplate(templates)

	handler := &httpHandler{
		recipes: deps.Recipes,
		clock:   clock,
		logger:  logger,
	}

	router.GET("/", handler.handleForm)
	router.GET(recipesPath, handler.handleListRecipes)
	router.POST(recipesPath, handler.handleCreateRecipe)
	router.GET(fallbackPath, handleOfflineDocument)
	router.StaticFS(staticPrefix, static)

	return router, nil
}

type httpHandler struct {
	recipes RecipeStore
	clock   func() time.Time
	logger  *zap.Logger
}

func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:    []string{"Content-Type", requestIDHeader},
		ExposeHeaders:   []string{requestIDHeader, "X-Cache"},
		MaxAge:          12 * time.Hour,
	})
}

func handleOfflineDocument(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", offline.FallbackDocument())
}
