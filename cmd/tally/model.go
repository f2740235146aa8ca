package main

import (
	"errors"
	"fmt"

	"github.com/Veraticus/tally/internal/cli"
	"github.com/Veraticus/tally/internal/common"
	"github.com/spf13/cobra"
)

func trainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the statistical classifier",
		Long: `Train a random forest on every confirmed, categorized transaction and
save it. The previous model stays in use if training fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			minSamples, _ := cmd.Flags().GetInt("min-samples")
			if minSamples < 0 {
				return fmt.Errorf("--min-samples must not be negative")
			}

			a, err := initApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, cli.FormatInfo(cli.ModelIcon+" Training model..."))

			result, err := a.engine.Train(cmd.Context(), minSamples)
			if err != nil {
				return err
			}
			if !result.Success {
				fmt.Fprintln(out, cli.FormatWarning(fmt.Sprintf("Training skipped: %s", result.Error)))
				return nil
			}

			fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf(
				"Trained on %d samples across %d categories (accuracy %.1f%%)",
				result.Samples, result.Categories, result.Accuracy*100)))
			return nil
		},
	}

	cmd.Flags().Int("min-samples", 0, "minimum confirmed samples required (0 = configured default)")

	return cmd
}

func predictCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "predict <id>",
		Short: "Predict a transaction's category with the trained model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			a, err := initApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := a.engine.Predict(cmd.Context(), id)
			if errors.Is(err, common.ErrNoPrediction) {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatWarning(fmt.Sprintf("No prediction for transaction %d.", id)))
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo(fmt.Sprintf("%s Transaction %d: %s (category %d) %s",
				cli.ModelIcon, p.TransactionID, p.CategoryName, p.CategoryID, cli.FormatConfidence(p.Confidence))))
			return nil
		},
	}
}

func autoCategorizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auto-categorize",
		Short: "Apply confident model predictions to pending transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			minConfidence, _ := cmd.Flags().GetFloat64("min-confidence")
			if minConfidence < 0 || minConfidence > 1 {
				return fmt.Errorf("--min-confidence must be between 0 and 1")
			}

			a, err := initApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.engine.AutoCategorize(cmd.Context(), minConfidence)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf(
				"%s Categorized %d of %d pending transactions", cli.ModelIcon, result.Categorized, result.Processed)))
			return nil
		},
	}

	cmd.Flags().Float64("min-confidence", 0, "minimum prediction confidence to apply (0 = engine.auto_apply_threshold)")

	return cmd
}

func modelInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "model-info",
		Short: "Describe the trained model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := initApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			info, ok := a.engine.ModelInfo()
			if !ok {
				fmt.Fprintln(out, cli.FormatWarning("No trained model. Run 'tally train' first."))
				return nil
			}

			fmt.Fprintln(out, cli.RenderBox(cli.ModelIcon+" Model", fmt.Sprintf(
				"Trained:    %s\nSamples:    %d\nCategories: %d\nFeatures:   %d\nAccuracy:   %.1f%%",
				info.TrainedAt.Local().Format("2006-01-02 15:04"),
				info.Samples,
				info.Categories,
				info.Features,
				info.Accuracy*100)))
			return nil
		},
	}
}
