package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/MarcoPoloResearchLab/receitas/internal/capture"
	"github.com/MarcoPoloResearchLab/receitas/internal/config"
	"github.com/MarcoPoloResearchLab/receitas/internal/database"
	"github.com/MarcoPoloResearchLab/receitas/internal/logging"
	"github.com/MarcoPoloResearchLab/receitas/internal/recipes"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var errMissingFields = errors.New("Preencha todos os campos!")

type addOptions struct {
	name        string
	ingredients string
	description string
	author      string
	imagePath   string
	imageData   string
	facing      string
}

func newAddCommand() *cobra.Command {
	options := addOptions{}
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a recipe",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRecipeStore(cmd.Context(), func(store *recipes.Store, logger *zap.Logger) error {
				return runAdd(cmd.Context(), cmd.OutOrStdout(), store, logger, options, time.Now)
			})
		},
	}
	cmd.Flags().StringVar(&options.name, "nome", "", "Recipe name")
	cmd.Flags().StringVar(&options.ingredients, "ingredientes", "", "Ingredients")
	cmd.Flags().StringVar(&options.description, "descricao", "", "Preparation")
	cmd.Flags().StringVar(&options.author, "autor", "", "Author")
	cmd.Flags().StringVar(&options.imagePath, "imagem", "", "Path to a PNG, JPEG or GIF photo")
	cmd.Flags().StringVar(&options.imageData, "imagem-data", "", "Photo as a data URI")
	cmd.Flags().StringVar(&options.facing, "camera", "back", "Camera the photo was taken with (front, back)")
	return cmd
}

func runAdd(ctx context.Context, out io.Writer, store *recipes.Store, logger *zap.Logger, options addOptions, clock func() time.Time) error {
	imageURI := options.imageData
	if options.imagePath != "" {
		snapshot, err := snapshotFromFile(options.imagePath, options.facing)
		if err != nil {
			return err
		}
		imageURI = snapshot.String()
	}

	fields := recipes.RecipeFields{
		Name:        options.name,
		Ingredients: options.ingredients,
		Description: options.description,
		Author:      options.author,
		Image:       imageURI,
		Date:        clock().Format(recipes.DateLayout),
	}
	if fields.Name == "" || fields.Ingredients == "" || fields.Description == "" || fields.Author == "" || fields.Image == "" {
		return errMissingFields
	}

	id, err := store.Insert(ctx, fields)
	if err != nil {
		return err
	}
	logger.Debug("recipe added", zap.Int64("recipe_id", id.Int64()))
	_, err = fmt.Fprintf(out, "Receita adicionada com sucesso! (id %d)\n", id.Int64())
	return err
}

// snapshotFromFile takes a still frame from the photo the way the camera page does.
func snapshotFromFile(path, facingName string) (capture.DataURI, error) {
	facing, err := capture.ParseFacing(facingName)
	if err != nil {
		return "", err
	}
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	frame, _, err := image.Decode(file)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", path, err)
	}
	session := capture.NewSession(capture.NewStillCamera(frame), facing)
	if err := session.Start(); err != nil {
		return "", err
	}
	defer session.Stop() //nolint:errcheck
	return session.Snapshot()
}

func newListCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every recipe in insertion order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRecipeStore(cmd.Context(), func(store *recipes.Store, _ *zap.Logger) error {
				return runList(cmd.Context(), cmd.OutOrStdout(), store, asJSON)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print recipes as JSON")
	return cmd
}

func runList(ctx context.Context, out io.Writer, store *recipes.Store, asJSON bool) error {
	if asJSON {
		list, err := store.Collect(ctx)
		if err != nil {
			return err
		}
		if list == nil {
			list = []recipes.Recipe{}
		}
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(list)
	}

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tNOME\tAUTOR\tDATA")
	for recipe, err := range store.ListAll(ctx) {
		if err != nil {
			_ = writer.Flush()
			return err
		}
		fmt.Fprintf(writer, "%d\t%s\t%s\t%s\n", recipe.ID.Int64(), recipe.Name, recipe.Author, recipe.Date)
	}
	return writer.Flush()
}

func withRecipeStore(ctx context.Context, fn func(*recipes.Store, *zap.Logger) error) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	logger, err := logging.NewConsoleLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, store, err := openRecipeStore(ctx, appConfig, logger)
	if err != nil {
		return err
	}
	defer database.Close(db) //nolint:errcheck
	return fn(store, logger)
}
