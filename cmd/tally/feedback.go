package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Veraticus/tally/internal/cli"
	"github.com/Veraticus/tally/internal/engine"
	"github.com/Veraticus/tally/internal/model"
	"github.com/spf13/cobra"
)

func applyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply <id>",
		Short: "Confirm a transaction's categorization",
		Long: `Confirm the classification and category of one transaction.

The transaction is locked against automated changes, a merchant rule is
learned from it (unless --no-learn) and similar unconfirmed transactions
are updated to match.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			classification, err := classificationFlag(cmd)
			if err != nil {
				return err
			}
			noLearn, _ := cmd.Flags().GetBool("no-learn")

			a, err := initApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			categoryFlag, _ := cmd.Flags().GetString("category")
			categoryID, err := resolveCategory(ctx, a.store, categoryFlag)
			if err != nil {
				return err
			}

			result, err := a.engine.ApplyFeedback(ctx, engine.FeedbackRequest{
				TransactionID:  id,
				Classification: classification,
				CategoryID:     categoryID,
				Learn:          !noLearn,
			})
			if err != nil {
				return err
			}

			printFeedback(cmd.OutOrStdout(), result)
			return nil
		},
	}

	addCategorizationFlags(cmd)
	cmd.Flags().Bool("no-learn", false, "do not learn a merchant rule from this correction")

	return cmd
}

func applyBulkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply-bulk",
		Short: "Confirm one categorization across many transactions",
		Long: `Confirm the same classification and category on every listed transaction.
Unknown ids are reported and skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			idFlags, _ := cmd.Flags().GetStringSlice("ids")
			ids, err := parseIDs(idFlags)
			if err != nil {
				return err
			}
			classification, err := classificationFlag(cmd)
			if err != nil {
				return err
			}
			learn, _ := cmd.Flags().GetBool("learn")

			a, err := initApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			categoryFlag, _ := cmd.Flags().GetString("category")
			categoryID, err := resolveCategory(ctx, a.store, categoryFlag)
			if err != nil {
				return err
			}

			result, err := a.engine.BulkApply(ctx, ids, classification, categoryID, learn)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Updated %d of %d transactions", result.Updated, len(ids))))
			if len(result.Missing) > 0 {
				missing := make([]string, 0, len(result.Missing))
				for _, id := range result.Missing {
					missing = append(missing, strconv.FormatInt(id, 10))
				}
				fmt.Fprintln(out, cli.FormatWarning("Not found: "+strings.Join(missing, ", ")))
			}
			return nil
		},
	}

	cmd.Flags().StringSlice("ids", nil, "comma separated transaction ids (required)")
	_ = cmd.MarkFlagRequired("ids")
	addCategorizationFlags(cmd)
	cmd.Flags().Bool("learn", false, "learn a merchant rule from every updated transaction")

	return cmd
}

func applyRulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apply-rules",
		Short: "Apply learned rules to uncategorized transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := initApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			updated, err := a.engine.ApplyRulesToPending(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("%s Rules categorized %d transactions", cli.RuleIcon, updated)))
			return nil
		},
	}
}

func resetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset <id>",
		Short: "Clear a transaction's categorization",
		Long: `Clear a transaction's category and unlock it for automated updates.
With --repredict the trained model suggests a new category and applies it
when confident enough.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			repredict, _ := cmd.Flags().GetBool("repredict")

			a, err := initApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.engine.Reset(cmd.Context(), id, repredict)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Reset transaction %d", id)))
			if p := result.Prediction; p != nil {
				verb := "Suggested"
				if result.Applied {
					verb = "Applied"
				}
				fmt.Fprintln(out, cli.FormatInfo(fmt.Sprintf("%s %s %s (%s)", cli.ModelIcon, verb, p.CategoryName, cli.FormatConfidence(p.Confidence))))
			} else if repredict {
				fmt.Fprintln(out, cli.FormatWarning("No model prediction available"))
			}
			return nil
		},
	}

	cmd.Flags().Bool("repredict", false, "re-predict the category with the trained model")

	return cmd
}

func similarCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "similar <id>",
		Short: "List transactions from the same merchant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			includeCategorized, _ := cmd.Flags().GetBool("include-categorized")

			a, err := initApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			similar, err := a.engine.FindSimilar(cmd.Context(), id, includeCategorized)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(similar) == 0 {
				fmt.Fprintln(out, cli.FormatInfo("No similar transactions found."))
				return nil
			}
			printTransactions(out, similar)
			return nil
		},
	}

	cmd.Flags().Bool("include-categorized", false, "include transactions that are already confirmed")

	return cmd
}

func addCategorizationFlags(cmd *cobra.Command) {
	cmd.Flags().String("classification", "", "personal, business or unclassified (required)")
	cmd.Flags().String("category", "", "category name or id")
	_ = cmd.MarkFlagRequired("classification")
}

func classificationFlag(cmd *cobra.Command) (model.Classification, error) {
	value, _ := cmd.Flags().GetString("classification")
	return model.ParseClassification(value)
}

func printFeedback(out io.Writer, result *engine.FeedbackResult) {
	txn := result.Transaction
	fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Confirmed transaction %d as %s", txn.ID, txn.Classification)))
	if r := result.Rule; r != nil {
		fmt.Fprintln(out, cli.FormatInfo(fmt.Sprintf("%s Learned rule %q (%s, confidence %s)",
			cli.RuleIcon, r.Pattern, r.MatchType, cli.FormatConfidence(r.Confidence))))
	}
	if result.SimilarFound > 0 {
		fmt.Fprintln(out, cli.FormatInfo(fmt.Sprintf("Updated %d of %d similar transactions",
			result.SimilarUpdated, result.SimilarFound)))
	}
}

func printTransactions(out io.Writer, txns []model.Transaction) {
	rows := make([][]string, 0, len(txns))
	for _, txn := range txns {
		confirmed := ""
		if txn.IsUserConfirmed {
			confirmed = cli.SuccessIcon
		}
		rows = append(rows, []string{
			strconv.FormatInt(txn.ID, 10),
			txn.Date.Format("2006-01-02"),
			txn.Details,
			txn.Amount.StringFixed(2),
			string(txn.Classification),
			string(txn.Source),
			confirmed,
		})
	}
	fmt.Fprintln(out, cli.RenderTable([]string{"ID", "Date", "Details", "Amount", "Class", "Source", "Confirmed"}, rows))
}
