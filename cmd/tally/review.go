package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/Veraticus/tally/internal/cli"
	"github.com/Veraticus/tally/internal/engine"
	"github.com/Veraticus/tally/internal/tui"
	"github.com/spf13/cobra"
)

func reviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Review and confirm suggestions interactively",
		Long: `Walk through unreviewed transactions, accepting or correcting each
suggestion. Every confirmation is learned from and propagated to similar
transactions.

The full-screen interface is used by default; --plain falls back to a
line-based prompt that works in any terminal.`,
		Args: cobra.NoArgs,
		RunE: runReview,
	}

	cmd.Flags().Int("limit", 0, "maximum transactions to review (0 = all)")
	cmd.Flags().Bool("plain", false, "use the line-based prompt instead of the full-screen interface")
	cmd.Flags().Bool("force-llm", false, "ask the external text classifier for every suggestion")
	cmd.Flags().Bool("no-learn", false, "do not learn merchant rules from confirmations")

	return cmd
}

func runReview(cmd *cobra.Command, _ []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	plain, _ := cmd.Flags().GetBool("plain")
	forceExternal, _ := cmd.Flags().GetBool("force-llm")
	noLearn, _ := cmd.Flags().GetBool("no-learn")

	a, err := initApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	if !plain {
		stats, err := tui.Run(cmd.Context(), a.engine, tui.Config{
			Limit:         limit,
			ForceExternal: forceExternal,
			NoLearn:       noLearn,
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf(
			"Accepted %d, modified %d, skipped %d, propagated to %d similar",
			stats.Accepted, stats.Modified, stats.Skipped, stats.Propagated)))
		return nil
	}

	handler := cli.NewInterruptHandler(out, "Review")
	ctx, stop := handler.HandleInterrupts(cmd.Context(), "tally review --plain")
	defer stop()

	prompter := cli.NewPrompter(cmd.InOrStdin(), out)
	if err := reviewPlain(ctx, a.engine, prompter, out, reviewOptions{
		limit:         limit,
		forceExternal: forceExternal,
		learn:         !noLearn,
	}); err != nil && !handler.WasInterrupted() {
		return err
	}
	prompter.ShowCompletion()
	return nil
}

type reviewOptions struct {
	limit         int
	forceExternal bool
	learn         bool
}

// reviewPlain runs a line-based review session until the queue is empty or
// the user quits.
func reviewPlain(ctx context.Context, reviewer tui.Reviewer, prompter *cli.Prompter, out io.Writer, opts reviewOptions) error {
	txns, err := reviewer.Unreviewed(ctx, opts.limit)
	if err != nil {
		return err
	}
	if len(txns) == 0 {
		fmt.Fprintln(out, cli.FormatInfo("Nothing to review."))
		return nil
	}

	categories, err := reviewer.Categories(ctx)
	if err != nil {
		return err
	}
	prompter.SetCategories(categories)
	prompter.SetTotal(len(txns))

	for _, txn := range txns {
		suggestion, err := reviewer.Categorize(ctx, txn, opts.forceExternal)
		if err != nil {
			return err
		}

		decision, err := prompter.Review(ctx, txn, *suggestion)
		if err != nil {
			return err
		}

		switch decision.Action {
		case cli.ActionQuit:
			return nil
		case cli.ActionSkip:
			continue
		case cli.ActionAccept, cli.ActionOverride:
		}

		result, err := reviewer.ApplyFeedback(ctx, engine.FeedbackRequest{
			TransactionID:  txn.ID,
			Classification: decision.Classification,
			CategoryID:     decision.CategoryID,
			Learn:          opts.learn,
		})
		if err != nil {
			return fmt.Errorf("failed to save transaction %d: %w", txn.ID, err)
		}
		if result.SimilarUpdated > 0 {
			slog.Info("Propagated to similar transactions", "transaction_id", txn.ID, "updated", result.SimilarUpdated)
		}
	}
	return nil
}
