package main

import (
	"fmt"
	"strconv"

	"github.com/Veraticus/tally/internal/cli"
	"github.com/Veraticus/tally/internal/model"
	"github.com/spf13/cobra"
)

func categoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Manage spending categories",
		Long:  `List and add the categories transactions are sorted into.`,
	}

	cmd.AddCommand(listCategoriesCmd())
	cmd.AddCommand(addCategoryCmd())

	return cmd
}

func listCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all categories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			categories, err := store.GetCategories(ctx)
			if err != nil {
				return fmt.Errorf("failed to get categories: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(categories) == 0 {
				fmt.Fprintln(out, cli.FormatInfo("No categories found. Use 'tally categories add' to create one."))
				return nil
			}

			rows := make([][]string, 0, len(categories))
			for _, c := range categories {
				kind := "expense"
				if c.IsIncome {
					kind = "income"
				}
				desc := c.Description
				if desc == "" {
					desc = cli.SubtleStyle.Render("(no description)")
				}
				rows = append(rows, []string{strconv.FormatInt(c.ID, 10), c.Name, kind, desc})
			}
			fmt.Fprintln(out, cli.RenderTable([]string{"ID", "Name", "Kind", "Description"}, rows))
			return nil
		},
	}
}

func addCategoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a new category",
		Long: `Add a category. A description or keywords make the category available
to the external text classifier.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			description, _ := cmd.Flags().GetString("description")
			keywords, _ := cmd.Flags().GetString("keywords")
			income, _ := cmd.Flags().GetBool("income")

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			category := &model.Category{
				Name:        args[0],
				Description: description,
				Keywords:    keywords,
				IsIncome:    income,
			}
			if err := store.CreateCategory(ctx, category); err != nil {
				return fmt.Errorf("failed to create category: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(
				fmt.Sprintf("Created category %q (ID: %d)", category.Name, category.ID)))
			return nil
		},
	}

	cmd.Flags().String("description", "", "natural-language description of the category")
	cmd.Flags().String("keywords", "", "natural-language keywords for the category")
	cmd.Flags().Bool("income", false, "mark the category as income")

	return cmd
}
