package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

// NewRecipeCmd создаёт группу команд для управления recipes.
func NewRecipeCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recipe",
		Short: "Manage recipes",
	}

	cmd.AddCommand(
		newRecipeListCmd(clientFn, outputFn),
		newRecipeCreateCmd(clientFn, outputFn),
		newRecipeShowCmd(clientFn, outputFn),
		newRecipeUpdateCmd(clientFn, outputFn),
		newRecipeDeleteCmd(clientFn, outputFn),
	)

	return cmd
}

func recipeRow(r *RecipeResponse) []string {
	return []string{r.ID, r.Name, strconv.FormatBool(r.IsActive), strconv.Itoa(len(r.Steps)), r.CreatedAt}
}

var recipeHeaders = []string{"ID", "NAME", "ACTIVE", "STEPS", "CREATED"}

func newRecipeListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all recipes",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			recipes, err := client.ListRecipes()
			if err != nil {
				return err
			}

			rows := make([][]string, len(recipes))
			for i := range recipes {
				rows[i] = recipeRow(&recipes[i])
			}

			out.Print(recipeHeaders, rows, recipes)
			return nil
		},
	}
}

func newRecipeCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a recipe from a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("failed to read recipe file: %w", err)
			}
			if !json.Valid(data) {
				return fmt.Errorf("recipe file is not valid JSON")
			}

			recipe, err := client.CreateRecipe(json.RawMessage(data))
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Recipe created: %s", recipe.ID))
			out.Print(recipeHeaders, [][]string{recipeRow(recipe)}, recipe)
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Path to recipe JSON file (required)")
	cmd.MarkFlagRequired("file")

	return cmd
}

func newRecipeShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show recipe details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			recipe, err := client.GetRecipe(args[0])
			if err != nil {
				return err
			}

			out.Print(recipeHeaders, [][]string{recipeRow(recipe)}, recipe)
			return nil
		},
	}
}

func newRecipeUpdateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var name string
	var active string
	var stepsFile string

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Update a recipe",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := UpdateRecipeRequest{}
			if cmd.Flags().Changed("name") {
				req.Name = &name
			}
			if cmd.Flags().Changed("active") {
				b, err := strconv.ParseBool(active)
				if err != nil {
					return fmt.Errorf("invalid value for --active: %s", active)
				}
				req.IsActive = &b
			}
			if cmd.Flags().Changed("steps-file") {
				data, err := os.ReadFile(stepsFile)
				if err != nil {
					return fmt.Errorf("failed to read steps file: %w", err)
				}
				var steps []json.RawMessage
				if err := json.Unmarshal(data, &steps); err != nil {
					return fmt.Errorf("steps file must contain a JSON array: %w", err)
				}
				req.Steps = &steps
			}

			recipe, err := client.UpdateRecipe(args[0], req)
			if err != nil {
				return err
			}

			out.Success("Recipe updated")
			out.Print(recipeHeaders, [][]string{recipeRow(recipe)}, recipe)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "New recipe name")
	cmd.Flags().StringVar(&active, "active", "", "Set active status (true/false)")
	cmd.Flags().StringVar(&stepsFile, "steps-file", "", "Path to JSON file with new steps")

	return cmd
}

func newRecipeDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a recipe",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.DeleteRecipe(args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Recipe deleted: %s", args[0]))
			return nil
		},
	}
}
