package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/MarcoPoloResearchLab/receitas/internal/capture"
	"github.com/MarcoPoloResearchLab/receitas/internal/recipes"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	latestRecipeQuery    = "nova"
	messageMissingFields = "Preencha todos os campos!"
	messageInvalidImage  = "Não foi possível ler a imagem enviada."
	messageInsertFailed  = "Erro ao adicionar receita."
	messageListFailed    = "Erro ao listar receitas."
)

type recipeForm struct {
	Name          string
	Ingredients   string
	Description   string
	Author        string
	Image         string
	Latitude      string
	Longitude     string
	LocationError string
}

func (f recipeForm) complete() bool {
	return f.Name != "" && f.Ingredients != "" && f.Description != "" && f.Author != "" && f.Image != ""
}

func (f recipeForm) fields(now time.Time) recipes.RecipeFields {
	return recipes.RecipeFields{
		Name:        f.Name,
		Ingredients: f.Ingredients,
		Description: f.Description,
		Author:      f.Author,
		Image:       f.Image,
		Date:        now.Format(recipes.DateLayout),
	}
}

// location renders the reported position for display only.
func (f recipeForm) location() ([]string, string) {
	if f.LocationError != "" {
		return nil, capture.ParseLocationErrorCode(f.LocationError).Message()
	}
	if f.Latitude == "" && f.Longitude == "" {
		return nil, ""
	}
	coordinates, err := capture.ParseCoordinates(f.Latitude, f.Longitude)
	if err != nil {
		var locationErr *capture.LocationError
		if errors.As(err, &locationErr) {
			return nil, locationErr.Message()
		}
		return nil, capture.LocationUnknown.Message()
	}
	return coordinates.Lines(), ""
}

type recipeView struct {
	recipes.Recipe
	Latest bool
}

func (h *httpHandler) handleForm(c *gin.Context) {
	h.renderForm(c, http.StatusOK, recipeForm{}, "")
}

func (h *httpHandler) handleListRecipes(c *gin.Context) {
	page := listPage{Title: pageTitle}
	if latest, err := strconv.ParseInt(c.Query(latestRecipeQuery), 10, 64); err == nil {
		page.Latest = latest
	}

	for recipe, err := range h.recipes.ListAll(c.Request.Context()) {
		if err != nil {
			h.logger.Error("failed to list recipes", zap.String("code", errorCode(err)), zap.Error(err))
			page.Error = messageListFailed
			break
		}
		page.Recipes = append(page.Recipes, recipeView{Recipe: recipe, Latest: recipe.ID.Int64() == page.Latest})
	}

	status := http.StatusOK
	if page.Error != "" {
		status = http.StatusInternalServerError
	}
	c.HTML(status, "receitas.html", page)
}

func (h *httpHandler) handleCreateRecipe(c *gin.Context) {
	form, err := readRecipeForm(c)
	if err != nil {
		h.logger.Warn("recipe image rejected", zap.Error(err))
		h.renderForm(c, http.StatusBadRequest, form, messageInvalidImage)
		return
	}
	if !form.complete() {
		h.renderForm(c, http.StatusUnprocessableEntity, form, messageMissingFields)
		return
	}

	id, err := h.recipes.Insert(c.Request.Context(), form.fields(h.clock()))
	if err != nil {
		h.logger.Error("failed to add recipe", zap.String("code", errorCode(err)), zap.Error(err))
		h.renderForm(c, http.StatusInternalServerError, form, messageInsertFailed)
		return
	}

	h.logger.Info("recipe added", zap.Int64("recipe_id", id.Int64()))
	c.Redirect(http.StatusSeeOther, recipesPath+"?"+latestRecipeQuery+"="+strconv.FormatInt(id.Int64(), 10))
}

func (h *httpHandler) renderForm(c *gin.Context, status int, form recipeForm, message string) {
	location, locationErr := form.location()
	c.HTML(status, "index.html", formPage{
		Title:         pageTitle,
		Message:       message,
		Form:          form,
		Location:      location,
		LocationError: locationErr,
	})
}

// readRecipeForm accepts the image either as an uploaded still or as a data URI.
func readRecipeForm(c *gin.Context) (recipeForm, error) {
	form := recipeForm{
		Name:          c.PostForm("nome"),
		Ingredients:   c.PostForm("ingredientes"),
		Description:   c.PostForm("descricao"),
		Author:        c.PostForm("autor"),
		Image:         c.PostForm("imagem_data"),
		Latitude:      c.PostForm("latitude"),
		Longitude:     c.PostForm("longitude"),
		LocationError: c.PostForm("localizacao_erro"),
	}

	fileHeader, err := c.FormFile("imagem")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return form, nil
	}
	if err != nil {
		return form, fmt.Errorf("read uploaded image: %w", err)
	}
	file, err := fileHeader.Open()
	if err != nil {
		return form, fmt.Errorf("open uploaded image: %w", err)
	}
	defer file.Close()

	snapshot, err := capture.DecodeSnapshot(file)
	if err != nil {
		return form, err
	}
	form.Image = snapshot.String()
	return form, nil
}

func errorCode(err error) string {
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		return coded.Code()
	}
	return ""
}
