package server

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
)

//go:embed web/templates/*.html web/static
var webFiles embed.FS

const pageTitle = "Receitas"

func parseTemplates() (*template.Template, error) {
	return template.New("pages").Funcs(template.FuncMap{
		"imageURL": imageURL,
	}).ParseFS(webFiles, "web/templates/*.html")
}

func staticFiles() (http.FileSystem, error) {
	static, err := fs.Sub(webFiles, "web/static")
	if err != nil {
		return nil, err
	}
	return http.FS(static), nil
}

// imageURL admits only embedded image data into img src attributes.
func imageURL(value string) template.URL {
	if !strings.HasPrefix(value, "data:image/") {
		return ""
	}
	return template.URL(value)
}

type formPage struct {
	Title         string
	Message       string
	Form          recipeForm
	Location      []string
	LocationError string
}

type listPage struct {
	Title   string
	Recipes []recipeView
	Latest  int64
	Error   string
}
