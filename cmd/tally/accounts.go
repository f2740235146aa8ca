package main

import (
	"fmt"
	"strconv"

	"github.com/Veraticus/tally/internal/cli"
	"github.com/Veraticus/tally/internal/model"
	"github.com/spf13/cobra"
)

func accountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Manage bank accounts",
		Long: `Accounts group imported transactions. The account type decides the
default classification and which learned rules apply.`,
	}

	cmd.AddCommand(listAccountsCmd())
	cmd.AddCommand(addAccountCmd())

	return cmd
}

func listAccountsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all accounts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			accounts, err := store.GetAccounts(ctx)
			if err != nil {
				return fmt.Errorf("failed to get accounts: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(accounts) == 0 {
				fmt.Fprintln(out, cli.FormatInfo("No accounts found. Use 'tally accounts add' to create one."))
				return nil
			}

			rows := make([][]string, 0, len(accounts))
			for _, a := range accounts {
				rows = append(rows, []string{strconv.FormatInt(a.ID, 10), a.Name, string(a.Type)})
			}
			fmt.Fprintln(out, cli.RenderTable([]string{"ID", "Name", "Type"}, rows))
			return nil
		},
	}
}

func addAccountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a new account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			typeFlag, _ := cmd.Flags().GetString("type")

			accountType, err := model.ParseAccountType(typeFlag)
			if err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			account := &model.Account{Name: args[0], Type: accountType}
			if err := store.CreateAccount(ctx, account); err != nil {
				return fmt.Errorf("failed to create account: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(
				fmt.Sprintf("Created %s account %q (ID: %d)", account.Type, account.Name, account.ID)))
			return nil
		},
	}

	cmd.Flags().String("type", string(model.AccountPersonal), "account type (personal, business, savings)")

	return cmd
}
