package main

import (
	"fmt"
	"strconv"

	"github.com/Veraticus/tally/internal/cli"
	"github.com/Veraticus/tally/internal/model"
	"github.com/spf13/cobra"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect learned merchant rules",
	}

	cmd.AddCommand(listRulesCmd())
	cmd.AddCommand(ruleStatsCmd())

	return cmd
}

func listRulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List learned rules, most confident first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := initApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			rules, err := a.engine.Rules(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(rules) == 0 {
				fmt.Fprintln(out, cli.FormatInfo("No rules learned yet. Confirm a few transactions with 'tally apply'."))
				return nil
			}

			names := make(map[int64]string)
			categories, err := a.engine.Categories(ctx)
			if err != nil {
				return err
			}
			for _, c := range categories {
				names[c.ID] = c.Name
			}

			rows := make([][]string, 0, len(rules))
			for _, r := range rules {
				rows = append(rows, []string{
					strconv.FormatInt(r.ID, 10),
					r.Pattern,
					string(r.MatchType),
					string(r.Classification),
					ruleCategory(r, names),
					cli.FormatConfidence(r.Confidence),
					fmt.Sprintf("%d/%d", r.TimesApplied-r.TimesOverridden, r.TimesApplied),
				})
			}
			fmt.Fprintln(out, cli.RenderTable(
				[]string{"ID", "Pattern", "Match", "Class", "Category", "Conf.", "Correct"}, rows))
			return nil
		},
	}
}

func ruleCategory(r model.MerchantRule, names map[int64]string) string {
	if r.CategoryID == nil {
		return "-"
	}
	if name, ok := names[*r.CategoryID]; ok {
		return name
	}
	return strconv.FormatInt(*r.CategoryID, 10)
}

func ruleStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize rule accuracy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := initApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.engine.RuleStats(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderBox(cli.RuleIcon+" Rules", fmt.Sprintf(
				"Rules:           %d\nHigh confidence: %d\nApplied:         %d\nOverridden:      %d\nAccuracy:        %.1f%%",
				stats.TotalRules,
				stats.HighConfidence,
				stats.TotalApplied,
				stats.TotalOverridden,
				stats.AccuracyRate*100)))
			return nil
		},
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show categorization progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := initApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.engine.Stats(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderBox(cli.ChartIcon+" Transactions", fmt.Sprintf(
				"Total:                  %d\nUser confirmed:         %d\nAuto categorized:       %d\nUncategorized:          %d\nUnclassified:           %d\nPersonal uncategorized: %d\nNeeds attention:        %d",
				stats.Total,
				stats.UserConfirmed,
				stats.AutoCategorized,
				stats.Uncategorized,
				stats.Unclassified,
				stats.PersonalUncategorized,
				stats.NeedsAttention)))
			return nil
		},
	}
}
