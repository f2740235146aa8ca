package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Veraticus/tally/internal/cli"
	"github.com/Veraticus/tally/internal/ofx"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <files...>",
		Short: "Import transactions from OFX/QFX files",
		Long: `Import bank transactions from OFX or QFX statements into an account.

Rows already imported into the account (same FITID) are skipped, so a
statement can be re-imported safely.

Examples:
  # Import one statement
  tally import --account "Everyday" ~/Downloads/statement.ofx

  # Import a directory of statements
  tally import --account 2 ~/Downloads/bank/*.qfx`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImport,
	}

	cmd.Flags().String("account", "", "account name or id to import into (required)")
	_ = cmd.MarkFlagRequired("account")

	return cmd
}

func expandFiles(patterns []string) ([]string, error) {
	var files []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", pattern, err)
		}
		if len(matches) == 0 {
			if _, err := os.Stat(pattern); err == nil {
				files = append(files, pattern)
			} else {
				slog.Warn("No files found matching pattern", "pattern", pattern)
			}
			continue
		}
		files = append(files, matches...)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no files found to import")
	}
	return files, nil
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	accountFlag, _ := cmd.Flags().GetString("account")

	files, err := expandFiles(args)
	if err != nil {
		return err
	}

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	account, err := resolveAccount(ctx, store, accountFlag)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	importer := ofx.NewImporter(store)

	var inserted, skipped int
	for _, path := range files {
		name := filepath.Base(path)

		var bar *progressbar.ProgressBar
		importer.Progress = func(done, total int) {
			if bar == nil {
				bar = cli.NewProgressBar(out, total, "Importing "+name)
			}
			_ = bar.Set(done)
		}

		result, err := importFile(cmd, importer, path, account.ID)
		if err != nil {
			return fmt.Errorf("failed to import %s: %w", name, err)
		}

		inserted += result.Inserted
		skipped += result.Skipped
		slog.Info("Imported file",
			"file", name,
			"batch_id", result.BatchID,
			"parsed", result.Parsed,
			"inserted", result.Inserted,
			"skipped", result.Skipped)
	}

	fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf(
		"Imported %d transactions into %q (%d already present)", inserted, account.Name, skipped)))
	if inserted > 0 {
		fmt.Fprintln(out, cli.FormatInfo("Run 'tally categorize --all-pending' or 'tally review' next."))
	}
	return nil
}

func importFile(cmd *cobra.Command, importer *ofx.Importer, path string, accountID int64) (*ofx.ImportResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	return importer.Import(cmd.Context(), f, accountID)
}
