package recipes

import (
	"errors"
	"fmt"
	"strings"
)

// RecipeID is the store-assigned identifier of a recipe.
type RecipeID int64

// Int64 exposes the raw identifier value.
func (id RecipeID) Int64() int64 {
	return int64(id)
}

// DateLayout is the timestamp format callers use for RecipeFields.Date.
const DateLayout = "02/01/2006 15:04:05"

// RecipeFields carries the caller-supplied content of a recipe.
// The store persists these values as given; presence checks belong to the caller.
type RecipeFields struct {
	Name        string `json:"nome"`
	Ingredients string `json:"ingredientes"`
	Description string `json:"descricao"`
	Author      string `json:"autor"`
	Image       string `json:"imagem"`
	Date        string `json:"data"`
}

// Recipe is a persisted recipe record.
type Recipe struct {
	ID RecipeID `json:"id"`
	RecipeFields
}

// recipeRow is the storage representation of a recipe in the receitas table.
type recipeRow struct {
	ID          int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Name        string `gorm:"column:nome;type:text;not null;default:'';index:idx_receitas_nome"`
	Ingredients string `gorm:"column:ingredientes;type:text;not null;default:'';index:idx_receitas_ingredientes"`
	Description string `gorm:"column:descricao;type:text;not null;default:'';index:idx_receitas_descricao"`
	Image       string `gorm:"column:imagem;type:text;not null;default:'';index:idx_receitas_imagem"`
	Date        string `gorm:"column:data;type:text;not null;default:'';index:idx_receitas_data"`
	Author      string `gorm:"column:autor;type:text;not null;default:'';index:idx_receitas_autor"`
}

// TableName provides the explicit table binding for GORM.
func (recipeRow) TableName() string {
	return "receitas"
}

func newRecipeRow(fields RecipeFields) recipeRow {
	return recipeRow{
		Name:        fields.Name,
		Ingredients: fields.Ingredients,
		Description: fields.Description,
		Image:       fields.Image,
		Date:        fields.Date,
		Author:      fields.Author,
	}
}

func (row recipeRow) recipe() Recipe {
	return Recipe{
		ID: RecipeID(row.ID),
		RecipeFields: RecipeFields{
			Name:        row.Name,
			Ingredients: row.Ingredients,
			Description: row.Description,
			Author:      row.Author,
			Image:       row.Image,
			Date:        row.Date,
		},
	}
}

// IndexedField names one of the secondary lookup fields.
type IndexedField string

const (
	FieldName        IndexedField = "nome"
	FieldIngredients IndexedField = "ingredientes"
	FieldDescription IndexedField = "descricao"
	FieldImage       IndexedField = "imagem"
	FieldDate        IndexedField = "data"
	FieldAuthor      IndexedField = "autor"
)

// ErrUnknownField indicates a lookup against a field that carries no index.
var ErrUnknownField = errors.New("recipes: unknown indexed field")

// IndexedFields lists every secondary lookup field in schema order.
func IndexedFields() []IndexedField {
	return []IndexedField{FieldName, FieldIngredients, FieldDescription, FieldImage, FieldDate, FieldAuthor}
}

// ParseIndexedField validates raw input and returns an IndexedField.
func ParseIndexedField(rawInput string) (IndexedField, error) {
	candidate := IndexedField(strings.ToLower(strings.TrimSpace(rawInput)))
	for _, field := range IndexedFields() {
		if field == candidate {
			return field, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, rawInput)
}
