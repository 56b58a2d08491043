package commands

import (
	"github.com/spf13/cobra"

	"github.com/sitebooks/sitebooks/internal/buildinfo"
)

// globals are the persistent flags shared by every subcommand.
type globals struct {
	repo string
	user string
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	g := &globals{}
	rootCmd := &cobra.Command{
		Use:     "sitebooks",
		Short:   "Double-entry books for construction companies",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&g.repo, "repo", ".", "project directory")
	rootCmd.PersistentFlags().StringVar(&g.user, "user", envOr("SITEBOOKS_USER", "cli"), "user the operations run as")

	rootCmd.AddCommand(
		newInitCommand(),
		newMigrateCommand(g),
		newAccountsCommand(g),
		newVoucherCommand(g),
		newPurchaseCommand(g),
		newImportCommand(g),
		newServeCommand(g),
	)

	return rootCmd
}
