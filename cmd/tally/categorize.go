package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/Veraticus/tally/internal/cli"
	"github.com/Veraticus/tally/internal/engine"
	"github.com/Veraticus/tally/internal/model"
	"github.com/spf13/cobra"
)

// categorizeChunk is the number of transactions suggested per batch call.
const categorizeChunk = 50

func categorizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categorize [ids...]",
		Short: "Suggest categories for transactions",
		Long: `Suggest a classification and category for each transaction without
changing anything. Suggestions come from learned rules, the trained model,
the external text classifier and finally keyword heuristics, in that order.

Use 'tally apply' or 'tally review' to confirm suggestions.`,
		RunE: runCategorize,
	}

	cmd.Flags().Bool("all-pending", false, "categorize every uncategorized transaction")
	cmd.Flags().Int("limit", 0, "maximum pending transactions to categorize (0 = all)")
	cmd.Flags().Bool("rules-only", false, "only consult learned rules")
	cmd.Flags().Bool("force-llm", false, "ask the external text classifier even when a rule matches")

	return cmd
}

func runCategorize(cmd *cobra.Command, args []string) error {
	allPending, _ := cmd.Flags().GetBool("all-pending")
	limit, _ := cmd.Flags().GetInt("limit")
	rulesOnly, _ := cmd.Flags().GetBool("rules-only")
	forceExternal, _ := cmd.Flags().GetBool("force-llm")

	if allPending == (len(args) > 0) {
		return fmt.Errorf("give transaction ids or --all-pending, not both")
	}
	if rulesOnly && forceExternal {
		return fmt.Errorf("--rules-only and --force-llm are mutually exclusive")
	}

	a, err := initApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	handler := cli.NewInterruptHandler(out, "Categorization")
	ctx, stop := handler.HandleInterrupts(cmd.Context(), "tally categorize --all-pending")
	defer stop()

	var txns []model.Transaction
	if allPending {
		txns, err = a.engine.Pending(ctx, limit)
	} else {
		var ids []int64
		if ids, err = parseIDs(args); err == nil {
			txns, err = a.engine.Transactions(ctx, ids)
		}
		if err == nil {
			if missing := engine.MissingIDs(ids, txns); len(missing) > 0 {
				fmt.Fprintln(out, cli.FormatWarning(fmt.Sprintf("Transactions not found: %v", missing)))
			}
		}
	}
	if err != nil {
		return err
	}

	if len(txns) == 0 {
		fmt.Fprintln(out, cli.FormatInfo("No transactions to categorize."))
		return nil
	}
	if forceExternal && !a.engine.TextAvailable() {
		fmt.Fprintln(out, cli.FormatWarning("No external text classifier is configured; --force-llm has no effect."))
	}

	suggestions, err := suggestAll(ctx, a.engine, out, txns, rulesOnly, forceExternal)
	if err != nil && !(errors.Is(err, context.Canceled) && handler.WasInterrupted()) {
		return err
	}

	printSuggestions(out, txns, suggestions)
	return nil
}

// suggestAll categorizes txns in chunks behind a progress bar. On
// cancellation it returns the suggestions made so far along with the error.
func suggestAll(ctx context.Context, eng *engine.Engine, out io.Writer, txns []model.Transaction, rulesOnly, forceExternal bool) ([]model.Suggestion, error) {
	bar := cli.NewProgressBar(out, len(txns), "Categorizing")
	suggestions := make([]model.Suggestion, 0, len(txns))

	if forceExternal {
		for _, txn := range txns {
			s, err := eng.Categorize(ctx, txn, true)
			if err != nil {
				return suggestions, err
			}
			suggestions = append(suggestions, *s)
			_ = bar.Add(1)
		}
		return suggestions, nil
	}

	for start := 0; start < len(txns); start += categorizeChunk {
		end := min(start+categorizeChunk, len(txns))
		batch, err := eng.CategorizeBatch(ctx, txns[start:end], rulesOnly)
		suggestions = append(suggestions, batch...)
		_ = bar.Add(len(batch))
		if err != nil {
			return suggestions, err
		}
	}
	return suggestions, nil
}

func printSuggestions(out io.Writer, txns []model.Transaction, suggestions []model.Suggestion) {
	details := make(map[int64]string, len(txns))
	for _, txn := range txns {
		details[txn.ID] = txn.Details
	}

	rows := make([][]string, 0, len(suggestions))
	counts := make(map[model.CategorizationSource]int)
	for _, s := range suggestions {
		counts[s.Source]++
		category := s.CategoryName
		if category == "" {
			category = "-"
		}
		rows = append(rows, []string{
			strconv.FormatInt(s.TransactionID, 10),
			details[s.TransactionID],
			string(s.Classification),
			category,
			cli.FormatConfidence(s.Confidence),
			cli.SourceIcon(s.Source) + " " + string(s.Source),
		})
	}

	fmt.Fprintln(out, cli.RenderTable([]string{"ID", "Details", "Class", "Category", "Conf.", "Source"}, rows))
	fmt.Fprintln(out, cli.FormatInfo(fmt.Sprintf(
		"%d suggestions: %d rule, %d model, %d text, %d heuristic, %d unmatched",
		len(suggestions),
		counts[model.SourceRule],
		counts[model.SourceML],
		counts[model.SourceLLM],
		counts[model.SourceDefault],
		counts[model.SourceNone])))
}
